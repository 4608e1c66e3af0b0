package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	ContentFormatHTML     = "html"
	ContentFormatMarkdown = "markdown"
)

// ArticleModel is a blog article. Content holds canonical image references only;
// signed URLs never reach this table.
type ArticleModel struct {
	Base
	Title           string     `json:"title"           gorm:"size:255;not null"`
	Description     string     `json:"description"     gorm:"size:255"`
	URL             string     `json:"url"             gorm:"size:191;index;not null"`
	Content         string     `json:"content"         gorm:"type:text"`
	ContentFormat   string     `json:"contentFormat"   gorm:"size:16;default:html"`
	Published       bool       `json:"published"       gorm:"default:false;index"`
	Updated         *time.Time `json:"updated"         gorm:"index"`
	CategoryID      *string    `json:"categoryId"      gorm:"size:36;index"`
	FeaturedImageID *string    `json:"featuredImageId" gorm:"size:36;index"`
}

func (ArticleModel) TableName() string { return "articles" }

// EffectiveDate is the date an article sorts and schedules by: Updated, then
// CreatedAt, then now.
func (a ArticleModel) EffectiveDate(now time.Time) time.Time {
	if a.Updated != nil && !a.Updated.IsZero() {
		return *a.Updated
	}
	if !a.CreatedAt.IsZero() {
		return a.CreatedAt
	}
	return now
}

// ArticleTagModel is one Article↔Tag edge. Rows are owned by the article and are
// hard-deleted on every save, so there is no soft-delete column.
type ArticleTagModel struct {
	ID        string    `json:"id"        gorm:"type:varchar(36);primaryKey"`
	ArticleID string    `json:"articleId" gorm:"type:varchar(36);index;not null"`
	TagID     string    `json:"tagId"     gorm:"type:varchar(36);index;not null"`
	CreatedAt time.Time `json:"createdAt"`
}

func (ArticleTagModel) TableName() string { return "article_tags" }

func (m *ArticleTagModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}
