package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Message
// One entry in a session transcript
// Messages are append only; the only mutation is ReadAt going from nil to a
// timestamp. Order inside a session is (CreatedAt, Seq)
// ===========================================================================

// SenderType who sent the message
type SenderType string

const (
	// SenderVisitor message from the visitor widget
	SenderVisitor SenderType = "visitor"

	// SenderAdmin message from an agent in the admin console
	SenderAdmin SenderType = "admin"

	// SenderSystem synthetic message written by the engine
	SenderSystem SenderType = "system"
)

// IsValid known sender type
func (t SenderType) IsValid() bool {
	return t == SenderVisitor || t == SenderAdmin || t == SenderSystem
}

// Message a transcript entry
type Message struct {
	BaseModel

	// SessionID owning session, never changes
	SessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_messages_session_seq,priority:1" json:"session_id"`

	// Seq insertion sequence inside the session, starts at 1
	Seq int64 `gorm:"not null;uniqueIndex:idx_messages_session_seq,priority:2" json:"seq"`

	// SenderType visitor, admin or system
	SenderType SenderType `gorm:"size:20;not null;index" json:"sender_type"`

	// SenderID agent id for admin messages, visitor id for visitor messages
	SenderID *string `gorm:"size:255" json:"sender_id,omitempty"`

	// Body message text
	Body string `gorm:"type:text;not null" json:"body"`

	// ReadAt when the other party read the message
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// TableName table name
func (Message) TableName() string {
	return "chat_messages"
}

// IsRead message already read
func (m *Message) IsRead() bool { return m.ReadAt != nil }

// MarkAsRead sets ReadAt once, later calls are no-ops
func (m *Message) MarkAsRead(at time.Time) bool {
	if m.ReadAt != nil {
		return false
	}
	m.ReadAt = &at
	return true
}

// Before ordering inside a transcript
func (m *Message) Before(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.Seq < other.Seq
	}
	return m.CreatedAt.Before(other.CreatedAt)
}
