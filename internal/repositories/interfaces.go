package repositories

import (
	"context"
	"time"

	"chatdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Session Repository Interface
// Persists chat sessions; writes that also append messages are atomic
// ===========================================================================

// SessionRepository chat session data access
type SessionRepository interface {
	// FindByID returns ErrSessionNotFound for unknown ids
	FindByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error)

	// List sessions matching filter, newest activity first
	List(ctx context.Context, filter SessionFilter, opts FindOptions) ([]models.ChatSession, int64, error)

	// Create inserts the session together with its first messages, returns
	// ErrNotFound when the referenced department no longer exists
	Create(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error

	// Update saves the session together with newly appended messages
	// The stored department_id is kept and copied back into session
	Update(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error

	// UpdateRouting saves the session including its department, returns
	// ErrNotFound when that department no longer exists
	UpdateRouting(ctx context.Context, session *models.ChatSession) error

	// SaveRating stores the rating only if none is stored yet, returns
	// ErrAlreadyRated otherwise
	SaveRating(ctx context.Context, session *models.ChatSession) error

	// CountOpenByAgent open sessions currently assigned to the agent
	CountOpenByAgent(ctx context.Context, agentID uuid.UUID) (int64, error)

	// CountByDepartment sessions referencing the department
	CountByDepartment(ctx context.Context, departmentID uuid.UUID) (int64, error)
}

// ===========================================================================
// Message Repository Interface
// Append only log; Append happens through SessionRepository
// ===========================================================================

// MessageRepository message log reads and read receipts
type MessageRepository interface {
	// ListBySession transcript ordered by (created_at, seq)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error)

	// MarkRead sets read_at on unread messages from the given senders,
	// returns how many messages changed
	MarkRead(ctx context.Context, sessionID uuid.UUID, senders []models.SenderType, at time.Time) (int64, error)
}

// ===========================================================================
// Department / Agent Repository Interfaces
// ===========================================================================

// DepartmentRepository department registry data access
type DepartmentRepository interface {
	// FindByID returns ErrNotFound for unknown ids
	FindByID(ctx context.Context, id uuid.UUID) (*models.Department, error)

	// FindBySlug returns ErrNotFound for unknown slugs
	FindBySlug(ctx context.Context, slug string) (*models.Department, error)

	// List ordered by sort_order, name
	List(ctx context.Context, activeOnly bool) ([]models.Department, error)

	// Create returns ErrDuplicateSlug when the slug is taken
	Create(ctx context.Context, dept *models.Department) error

	// Update returns ErrDuplicateSlug when the new slug is taken
	Update(ctx context.Context, dept *models.Department) error

	// Delete removes the department and nulls the reference on sessions
	// and agents, returns the number of sessions detached
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// AgentRepository agent pool data access
type AgentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error)

	// ListByDepartment agents of a department
	ListByDepartment(ctx context.Context, departmentID uuid.UUID, activeOnly bool) ([]models.Agent, error)

	List(ctx context.Context) ([]models.Agent, error)
	Create(ctx context.Context, agent *models.Agent) error
	Update(ctx context.Context, agent *models.Agent) error

	// MarkAssigned records the assignment time used by round robin
	MarkAssigned(ctx context.Context, id uuid.UUID, at time.Time) error
}

// ===========================================================================
// Knowledge Repository Interface
// ===========================================================================

// KnowledgeCounter counter column on knowledge articles
type KnowledgeCounter string

const (
	CounterViews      KnowledgeCounter = "views"
	CounterHelpful    KnowledgeCounter = "helpful"
	CounterNotHelpful KnowledgeCounter = "not_helpful"
)

// KnowledgeRepository knowledge base data access
type KnowledgeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error)

	// List articles, optionally filtered by category
	List(ctx context.Context, category string) ([]models.KnowledgeArticle, error)

	Create(ctx context.Context, article *models.KnowledgeArticle) error
	Update(ctx context.Context, article *models.KnowledgeArticle) error
	Delete(ctx context.Context, id uuid.UUID) error

	// Increment atomically adds one to a counter
	Increment(ctx context.Context, id uuid.UUID, counter KnowledgeCounter) error
}

// ===========================================================================
// Snapshot Reader Interface
// ===========================================================================

// SnapshotReader reads a consistent view for analytics without blocking
// writers for longer than the copy
type SnapshotReader interface {
	Snapshot(ctx context.Context, since time.Time) (*Snapshot, error)
}
