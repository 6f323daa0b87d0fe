package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ===========================================================================
// ChatSession
// One continuous visitor support conversation
// The status field follows a fixed transition table, see CanTransition
// Admin status changes use the narrower CanSetStatus table
// ===========================================================================

// SessionStatus chat session status
type SessionStatus string

const (
	// StatusWaiting opened (or reopened) and not yet picked up
	StatusWaiting SessionStatus = "waiting"

	// StatusActive picked up from the inbox by an agent reply
	StatusActive SessionStatus = "active"

	// StatusAssigned routed to a department, optionally to an agent
	StatusAssigned SessionStatus = "assigned"

	// StatusResolved agent marked the issue resolved
	StatusResolved SessionStatus = "resolved"

	// StatusClosed conversation closed
	StatusClosed SessionStatus = "closed"
)

// AllStatuses in lifecycle order
var AllStatuses = []SessionStatus{StatusWaiting, StatusActive, StatusAssigned, StatusResolved, StatusClosed}

// transitions allowed target statuses per current status
var transitions = map[SessionStatus][]SessionStatus{
	StatusWaiting:  {StatusAssigned, StatusActive, StatusClosed},
	StatusActive:   {StatusAssigned, StatusResolved, StatusClosed},
	StatusAssigned: {StatusResolved, StatusClosed},
	StatusResolved: {StatusClosed, StatusWaiting},
	StatusClosed:   {StatusWaiting},
}

// adminTargets statuses an admin may set directly; reopening (to waiting)
// and pick-up (to active) happen only through messages
var adminTargets = map[SessionStatus][]SessionStatus{
	StatusWaiting:  {StatusAssigned, StatusClosed},
	StatusActive:   {StatusResolved, StatusClosed},
	StatusAssigned: {StatusResolved, StatusClosed},
	StatusResolved: {StatusClosed},
}

// ParseSessionStatus parses a status value, case insensitive
func ParseSessionStatus(s string) (SessionStatus, bool) {
	status := SessionStatus(strings.ToLower(strings.TrimSpace(s)))
	_, ok := transitions[status]
	return status, ok
}

// IsTerminal resolved and closed sessions only reopen on visitor activity
func (s SessionStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusClosed
}

// CanTransition reports whether from -> to is in the transition table
func CanTransition(from, to SessionStatus) bool {
	return contains(transitions[from], to)
}

// CanSetStatus reports whether an admin may move a session from -> to
func CanSetStatus(from, to SessionStatus) bool {
	return contains(adminTargets[from], to)
}

func contains(statuses []SessionStatus, target SessionStatus) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}

// ChatSession a visitor conversation
type ChatSession struct {
	BaseModel

	// VisitorID principal id of the visitor who opened the session
	VisitorID string `gorm:"size:255;not null;index" json:"visitor_id"`

	// VisitorName display name given by the visitor
	VisitorName string `gorm:"size:255;not null" json:"visitor_name"`

	// VisitorEmail optional, visitors are not authenticated
	VisitorEmail *string `gorm:"size:255" json:"visitor_email,omitempty"`

	// Status current lifecycle status
	Status SessionStatus `gorm:"size:20;not null;default:'waiting';index" json:"status"`

	// DepartmentID weak reference into the department registry
	DepartmentID *uuid.UUID `gorm:"type:uuid;index" json:"department_id,omitempty"`

	// AssignedAgentID agent handling the session, sticky through resolve/close
	AssignedAgentID *uuid.UUID `gorm:"type:uuid;index" json:"assigned_agent_id,omitempty"`

	// LastMessageAt monotonic, moved forward by every appended message
	LastMessageAt time.Time `gorm:"not null;index" json:"last_message_at"`

	// MessageCount number of messages, also the last used message seq
	MessageCount int64 `gorm:"not null;default:0" json:"message_count"`

	// FirstResponseAt first admin reply
	FirstResponseAt *time.Time `json:"first_response_at,omitempty"`

	// ResolvedAt set on resolve, cleared on reopen
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// ClosedReason why the session was closed (cancelled, closed by agent)
	ClosedReason *string `gorm:"size:255" json:"closed_reason,omitempty"`

	// Rating 1-5, assigned at most once
	Rating *int `json:"rating,omitempty"`

	// RatingComment free text left with the rating
	RatingComment *string `gorm:"type:text" json:"rating_comment,omitempty"`

	// RatedAt when the rating was submitted
	RatedAt *time.Time `json:"rated_at,omitempty"`
}

// TableName table name
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// IsTerminal resolved or closed
func (s *ChatSession) IsTerminal() bool { return s.Status.IsTerminal() }

// IsRated rating already stored
func (s *ChatSession) IsRated() bool { return s.Rating != nil }

// IsAssigned has an agent
func (s *ChatSession) IsAssigned() bool { return s.AssignedAgentID != nil }

// IsResolved counts as resolved for analytics
func (s *ChatSession) IsResolved() bool {
	return s.ResolvedAt != nil && s.Status.IsTerminal()
}

// Transition moves the session to target if the table allows it
// Side effects per target keep the agent invariant: an agent is only set
// while the session is assigned, resolved or closed
func (s *ChatSession) Transition(target SessionStatus, at time.Time) bool {
	if !CanTransition(s.Status, target) {
		return false
	}

	switch target {
	case StatusResolved:
		s.ResolvedAt = &at
	case StatusWaiting:
		s.reopen()
	case StatusActive:
		s.AssignedAgentID = nil
	}

	s.Status = target
	return true
}

// Assign routes the session to a department and optionally an agent
// A nil agent leaves the session in the department inbox
func (s *ChatSession) Assign(departmentID, agentID *uuid.UUID, at time.Time) bool {
	if s.Status != StatusAssigned && !s.Transition(StatusAssigned, at) {
		return false
	}
	s.DepartmentID = departmentID
	s.AssignedAgentID = agentID
	return true
}

// Close closes the session with a reason
func (s *ChatSession) Close(reason string, at time.Time) bool {
	if !s.Transition(StatusClosed, at) {
		return false
	}
	s.ClosedReason = &reason
	return true
}

// reopen clears resolution data, the rating is kept
func (s *ChatSession) reopen() {
	s.ResolvedAt = nil
	s.ClosedReason = nil
	s.AssignedAgentID = nil
}

// Touch moves LastMessageAt forward and returns the timestamp to use for
// the next message, never earlier than the previous one
func (s *ChatSession) Touch(now time.Time) time.Time {
	if now.Before(s.LastMessageAt) {
		now = s.LastMessageAt
	}
	s.LastMessageAt = now
	s.MessageCount++
	return now
}

// SetFirstResponse records the first admin reply
func (s *ChatSession) SetFirstResponse(at time.Time) {
	if s.FirstResponseAt == nil {
		s.FirstResponseAt = &at
	}
}

// SetRating stores the rating, callers check IsRated and status first
func (s *ChatSession) SetRating(rating int, comment string, at time.Time) {
	s.Rating = &rating
	if comment != "" {
		s.RatingComment = &comment
	}
	s.RatedAt = &at
}
