package services

import (
	"context"

	"chatdesk/internal/bot"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
)

// ===========================================================================
// Session Service Interface
// The chat session state machine: open -> route -> messages -> resolve/close
// Every mutation of one session is serialized by a per-session lock
// ===========================================================================

// OpenInput a visitor starting a chat
type OpenInput struct {
	// VisitorID principal id of the visitor
	VisitorID string

	// VisitorName display name, required
	VisitorName string

	// VisitorEmail optional
	VisitorEmail string

	// DepartmentID department picked in the widget, optional
	DepartmentID *uuid.UUID

	// Message first visitor message, required
	Message string
}

// OpenResult the created session
type OpenResult struct {
	Session *models.ChatSession

	// Messages appended while opening (visitor message, optional suggestion)
	Messages []models.Message

	// Outcome router outcome, "" when auto assignment is disabled
	Outcome RouteOutcome

	// Suggestions knowledge articles matching the first message
	Suggestions []bot.ArticleMatch
}

// AppendInput one message for an existing session
type AppendInput struct {
	// Sender visitor, admin or system
	Sender models.SenderType

	// SenderID visitor id or agent id
	SenderID string

	// Body message text
	Body string
}

// AppendResult the session after the append
type AppendResult struct {
	Session *models.ChatSession
	Message *models.Message

	// Reopened the append moved a resolved or closed session back to waiting
	Reopened bool
}

// Transcript session plus its ordered messages
type Transcript struct {
	Session  *models.ChatSession
	Messages []models.Message

	// MarkedRead messages marked read by this fetch
	MarkedRead int64
}

// SessionService chat session operations
type SessionService interface {
	// Open creates a waiting session with the first visitor message and,
	// when enabled, routes it
	Open(ctx context.Context, in OpenInput) (*OpenResult, error)

	// AppendMessage appends to the log; a visitor message on a resolved or
	// closed session reopens it
	AppendMessage(ctx context.Context, sessionID uuid.UUID, in AppendInput) (*AppendResult, error)

	// SetStatus validated status change; assigned runs the router
	SetStatus(ctx context.Context, sessionID uuid.UUID, target models.SessionStatus) (*models.ChatSession, error)

	// Route runs the router for a waiting session
	Route(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, RouteOutcome, error)

	// Reassign explicit admin hand-off to a department and/or agent
	Reassign(ctx context.Context, sessionID uuid.UUID, departmentID, agentID *uuid.UUID) (*models.ChatSession, error)

	// Rate single assignment rating of a resolved or closed session
	Rate(ctx context.Context, sessionID uuid.UUID, visitorID string, rating int, comment string) (*models.ChatSession, error)

	// Cancel visitor abandons before any agent reply
	Cancel(ctx context.Context, sessionID uuid.UUID, visitorID string) (*models.ChatSession, error)

	// Get one session; visitorID non-empty restricts to that visitor
	Get(ctx context.Context, sessionID uuid.UUID, visitorID string) (*models.ChatSession, error)

	// Transcript ordered messages; marks the other side's messages read
	Transcript(ctx context.Context, sessionID uuid.UUID, reader models.SenderType, visitorID string) (*Transcript, error)

	// List sessions for the admin console
	List(ctx context.Context, filter repositories.SessionFilter, opts repositories.FindOptions) ([]models.ChatSession, int64, error)
}
