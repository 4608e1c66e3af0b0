package models

// CategoryModel groups articles. An article belongs to at most one category.
type CategoryModel struct {
	Base
	Category    string `json:"category"    gorm:"size:191;not null"`
	URL         string `json:"url"         gorm:"size:191;index;not null"`
	Description string `json:"description" gorm:"size:500"`
}

func (CategoryModel) TableName() string { return "categories" }

// TagModel labels articles through ArticleTagModel rows.
type TagModel struct {
	Base
	Tag         string `json:"tag"         gorm:"size:191;not null"`
	URL         string `json:"url"         gorm:"size:191;index;not null"`
	Description string `json:"description" gorm:"size:500"`
}

func (TagModel) TableName() string { return "tags" }
