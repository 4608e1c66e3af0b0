package article

import (
	"time"

	"github.com/mx-space/press/internal/models"
)

// ArticleDTO is the full editable state of an article. Create and update both
// take it whole; omitted tags mean no tags.
type ArticleDTO struct {
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	URL             string     `json:"url"`
	Content         string     `json:"content"`
	ContentFormat   string     `json:"contentFormat"   binding:"omitempty,oneof=html markdown"`
	Published       bool       `json:"published"`
	Updated         *time.Time `json:"updated"`
	CategoryID      *string    `json:"categoryId"`
	FeaturedImageID *string    `json:"featuredImageId"`
	Tags            []string   `json:"tags"`
}

// ListOptions narrows List. CategoryURL and TagURL are slugs; an unknown slug
// yields an empty list.
type ListOptions struct {
	PublishedOnly bool
	CategoryURL   string
	TagURL        string
	Limit         int
}

// Limits are the editorial length caps, counted in characters.
type Limits struct {
	TitleMax       int
	DescriptionMax int
}

func DefaultLimits() Limits {
	return Limits{TitleMax: 100, DescriptionMax: 160}
}

// FeaturedImage is the featured image row with a signed display URL.
type FeaturedImage struct {
	models.ImageModel
	URL string `json:"url"`
}

// View is an article composed with its relations. Content and the featured
// image URL are in display form.
type View struct {
	models.ArticleModel
	Status        Status                `json:"status"`
	Category      *models.CategoryModel `json:"category,omitempty"`
	FeaturedImage *FeaturedImage        `json:"featuredImage,omitempty"`
	Tags          []models.TagModel     `json:"tags"`
}
