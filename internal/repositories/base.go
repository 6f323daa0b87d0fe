package repositories

import (
	"errors"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Repository Base Types
// Shared query options and helpers for every repository
// ===========================================================================

// FindOptions query options for list methods
type FindOptions struct {
	// Offset first record (pagination)
	Offset int

	// Limit max records
	Limit int

	// OrderBy column to sort on
	OrderBy string

	// OrderDir "asc" or "desc"
	OrderDir string
}

// SetDefaults fills unset options
func (o *FindOptions) SetDefaults() {
	if o.Limit == 0 {
		o.Limit = 20
	}
	if o.OrderBy == "" {
		o.OrderBy = "last_message_at"
	}
	if o.OrderDir != "asc" {
		o.OrderDir = "desc"
	}
}

// GetOrderClause ORDER BY clause
func (o *FindOptions) GetOrderClause() string {
	return o.OrderBy + " " + o.OrderDir
}

// SessionFilter filters for session listing, nil fields are ignored
type SessionFilter struct {
	Status       *models.SessionStatus
	DepartmentID *uuid.UUID
	AgentID      *uuid.UUID
}

// Snapshot point in time view of the session store and message log used by
// the analytics aggregator
type Snapshot struct {
	// TakenAt when the snapshot was read
	TakenAt time.Time

	// Sessions sessions created inside the window
	Sessions []models.ChatSession

	// FirstAdminReply first admin message time per session
	FirstAdminReply map[uuid.UUID]time.Time

	// Departments every department known at TakenAt
	Departments map[uuid.UUID]models.Department
}

// Repositories bundles the data access used by the chat engine
type Repositories struct {
	Sessions    SessionRepository
	Messages    MessageRepository
	Departments DepartmentRepository
	Agents      AgentRepository
	Knowledge   KnowledgeRepository
	Snapshots   SnapshotReader
}

// translateError maps GORM errors onto application errors
func translateError(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperrors.Wrap(apperrors.ErrConflict, err.Error())
	default:
		return err
	}
}
