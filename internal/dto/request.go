package dto

import (
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
)

// ===========================================================================
// Request DTOs
// Bound and validated by gin (go-playground/validator tags)
// ===========================================================================

// PaginationRequest paging for list endpoints
type PaginationRequest struct {
	// Page 1-based page number
	Page int `form:"page" binding:"min=0"`

	// Limit records per page (max 100)
	Limit int `form:"limit" binding:"min=0,max=100"`
}

// SetDefaults fills unset paging values
func (p *PaginationRequest) SetDefaults() {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = 20
	}
}

// Offset database offset
func (p *PaginationRequest) Offset() int {
	return (p.Page - 1) * p.Limit
}

// FindOptions repository options for this page
func (p *PaginationRequest) FindOptions() repositories.FindOptions {
	return repositories.FindOptions{Offset: p.Offset(), Limit: p.Limit}
}

// ===========================================================================
// Visitor Requests
// ===========================================================================

// ChatMessageRequest POST /chat; without sessionId a new session is opened
type ChatMessageRequest struct {
	SessionID *uuid.UUID `json:"sessionId"`

	// VisitorName required when opening
	VisitorName  string     `json:"visitor_name" binding:"max=255"`
	VisitorEmail string     `json:"visitor_email" binding:"omitempty,email,max=255"`
	DepartmentID *uuid.UUID `json:"department_id"`

	Message string `json:"message" binding:"required"`
}

// SessionQuery ?sessionId= on visitor endpoints
type SessionQuery struct {
	SessionID string `form:"sessionId" binding:"required"`
}

// RateRequest POST /chat/rating; the range is checked by the session store
type RateRequest struct {
	SessionID uuid.UUID `json:"sessionId" binding:"required"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
}

// KnowledgeSearchQuery GET /chat/knowledge-base
type KnowledgeSearchQuery struct {
	Query string `form:"q" binding:"required,max=500"`
	Limit int    `form:"limit" binding:"min=0,max=20"`
}

// FeedbackRequest POST /chat/knowledge-base/:id/feedback
type FeedbackRequest struct {
	Helpful *bool `json:"helpful" binding:"required"`
}

// ===========================================================================
// Admin Chat Requests
// ===========================================================================

// ListSessionsRequest GET /admin/chat
type ListSessionsRequest struct {
	PaginationRequest

	Status       string `form:"status" binding:"omitempty,oneof=waiting active assigned resolved closed"`
	DepartmentID string `form:"department_id" binding:"omitempty,uuid"`
	AgentID      string `form:"agent_id" binding:"omitempty,uuid"`
}

// AdminMessageRequest POST /admin/chat
type AdminMessageRequest struct {
	ChatID  uuid.UUID `json:"chatId" binding:"required"`
	Message string    `json:"message" binding:"required"`
}

// UpdateStatusRequest PATCH /admin/chat
type UpdateStatusRequest struct {
	ChatID uuid.UUID `json:"chatId" binding:"required"`
	Status string    `json:"status" binding:"required"`
}

// AssignRequest POST /admin/chat/assign; without department and agent the
// router picks both
type AssignRequest struct {
	ChatID       uuid.UUID  `json:"chatId" binding:"required"`
	DepartmentID *uuid.UUID `json:"department_id"`
	AgentID      *uuid.UUID `json:"agent_id"`
}

// AnalyticsQuery GET /admin/chat/analytics
type AnalyticsQuery struct {
	Days int `form:"days" binding:"min=0"`
}

// ===========================================================================
// Registry Requests
// ===========================================================================

// CreateDepartmentRequest POST /admin/chat/departments
type CreateDepartmentRequest struct {
	Name         string `json:"name" binding:"required,max=255"`
	Slug         string `json:"slug" binding:"required,max=100"`
	Description  string `json:"description"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	IsActive     *bool  `json:"is_active"`
	SortOrder    int    `json:"sort_order"`
}

// UpdateDepartmentRequest PATCH /admin/chat/departments/:id
type UpdateDepartmentRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=255"`
	Slug         *string `json:"slug" binding:"omitempty,max=100"`
	Description  *string `json:"description"`
	ContactEmail *string `json:"contact_email"`
	IsActive     *bool   `json:"is_active"`
	SortOrder    *int    `json:"sort_order"`
}

// CreateAgentRequest POST /admin/chat/agents
type CreateAgentRequest struct {
	DepartmentID   *uuid.UUID `json:"department_id"`
	Name           string     `json:"name" binding:"required,max=255"`
	Email          string     `json:"email" binding:"required,email"`
	IsActive       *bool      `json:"is_active"`
	MaxActiveChats int        `json:"max_active_chats" binding:"min=0"`
}

// UpdateAgentRequest PATCH /admin/chat/agents/:id
type UpdateAgentRequest struct {
	DepartmentID   *uuid.UUID `json:"department_id"`
	Name           *string    `json:"name" binding:"omitempty,max=255"`
	IsActive       *bool      `json:"is_active"`
	MaxActiveChats *int       `json:"max_active_chats" binding:"omitempty,min=0"`
}

// CreateArticleRequest POST /admin/chat/knowledge-base
type CreateArticleRequest struct {
	Title    string   `json:"title" binding:"required,max=255"`
	Content  string   `json:"content" binding:"required"`
	Keywords []string `json:"keywords"`
	Category string   `json:"category" binding:"max=100"`
}

// UpdateArticleRequest PATCH /admin/chat/knowledge-base/:id, counters are
// an explicit correction
type UpdateArticleRequest struct {
	Title      *string   `json:"title" binding:"omitempty,max=255"`
	Content    *string   `json:"content"`
	Keywords   *[]string `json:"keywords"`
	Category   *string   `json:"category" binding:"omitempty,max=100"`
	Views      *int64    `json:"views" binding:"omitempty,min=0"`
	Helpful    *int64    `json:"helpful" binding:"omitempty,min=0"`
	NotHelpful *int64    `json:"not_helpful" binding:"omitempty,min=0"`
}

// BoolDefault value of b, def when nil
func BoolDefault(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
