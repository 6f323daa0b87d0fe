package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// Department and Agent
// Routing targets for chat sessions. Sessions only hold a weak reference
// (DepartmentID); removing a department never removes sessions
// ===========================================================================

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ValidSlug URL safe slug: lowercase letters, digits and single dashes
func ValidSlug(slug string) bool {
	return len(slug) <= 100 && slugPattern.MatchString(slug)
}

// Department a routing target
type Department struct {
	BaseModel

	// Name display name
	Name string `gorm:"size:255;not null" json:"name"`

	// Slug unique, immutable once a session references the department
	Slug string `gorm:"size:100;not null;uniqueIndex" json:"slug"`

	// Description shown in the widget department picker
	Description string `gorm:"type:text" json:"description"`

	// ContactEmail department contact address
	ContactEmail string `gorm:"size:255" json:"contact_email"`

	// IsActive inactive departments are skipped by the router
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// SortOrder lower first
	SortOrder int `gorm:"not null;default:0;index" json:"sort_order"`
}

// TableName table name
func (Department) TableName() string {
	return "chat_departments"
}

// Agent a member of a department pool
type Agent struct {
	BaseModel

	// DepartmentID pool the agent belongs to
	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id,omitempty"`

	// Name display name
	Name string `gorm:"size:255;not null" json:"name"`

	// Email contact email
	Email string `gorm:"size:255;not null;uniqueIndex" json:"email"`

	// IsActive accepting new chats
	IsActive bool `gorm:"not null;default:true" json:"is_active"`

	// MaxActiveChats open assigned sessions allowed at once, 0 means unlimited
	MaxActiveChats int `gorm:"not null;default:0" json:"max_active_chats"`

	// LastAssignedAt used for least recently assigned selection
	LastAssignedAt *time.Time `json:"last_assigned_at,omitempty"`
}

// TableName table name
func (Agent) TableName() string {
	return "chat_agents"
}

// HasCapacity reports whether the agent can take one more session
func (a *Agent) HasCapacity(openSessions int64) bool {
	return a.MaxActiveChats <= 0 || openSessions < int64(a.MaxActiveChats)
}

// AssignedBefore least recently assigned ordering, never assigned first
func (a *Agent) AssignedBefore(other *Agent) bool {
	switch {
	case a.LastAssignedAt == nil && other.LastAssignedAt == nil:
		return a.ID.String() < other.ID.String()
	case a.LastAssignedAt == nil:
		return true
	case other.LastAssignedAt == nil:
		return false
	case a.LastAssignedAt.Equal(*other.LastAssignedAt):
		return a.ID.String() < other.ID.String()
	default:
		return a.LastAssignedAt.Before(*other.LastAssignedAt)
	}
}
