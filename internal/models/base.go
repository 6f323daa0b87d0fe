package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// BaseModel is embedded by every persisted model
// Holds the shared fields: ID and timestamps
// Nothing in the chat engine is soft deleted: sessions and messages are
// kept forever, departments are removed for real so the slug frees up
// ===========================================================================

// BaseModel shared fields for all models
type BaseModel struct {
	// ID primary key, generated in BeforeCreate when empty
	ID uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`

	// CreatedAt record creation time
	CreatedAt time.Time `gorm:"not null" json:"created_at"`

	// UpdatedAt last update time
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate generates a UUID if the record has none
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	b.EnsureID()
	return nil
}

// EnsureID assigns a fresh UUID when ID is empty
func (b *BaseModel) EnsureID() {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
}

// GetID returns the model ID
func (b *BaseModel) GetID() uuid.UUID {
	return b.ID
}
