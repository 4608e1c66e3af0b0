package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the base model for all entities.
// ID is a UUID string so rows move between the SQL, Mongo and in-memory stores unchanged.
type Base struct {
	ID        string         `json:"id"         gorm:"type:varchar(36);primaryKey"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"modifiedAt"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = NewID()
	}
	return nil
}

// NewID returns a fresh entity identifier.
func NewID() string {
	return uuid.New().String()
}

// GetID exposes the primary key to generic helpers.
func (b Base) GetID() string { return b.ID }
