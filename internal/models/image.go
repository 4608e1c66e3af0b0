package models

const (
	ImageKindImage = "image"
	ImageKindMedia = "media"
)

// ImageModel is an uploaded blob plus its display metadata. Path is the
// storage-relative key, e.g. "public/images/1700000000000-dog.jpg".
type ImageModel struct {
	Base
	Path        string `json:"path"        gorm:"size:512;not null"`
	Name        string `json:"name"        gorm:"size:255"`
	Caption     string `json:"caption"     gorm:"size:500"`
	Description string `json:"description" gorm:"size:1000"`
	AltText     string `json:"altText"     gorm:"size:255"`
	Kind        string `json:"kind"        gorm:"size:16;default:image;index"`
	ContentType string `json:"contentType" gorm:"size:127"`
	Size        int64  `json:"size"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

func (ImageModel) TableName() string { return "images" }
