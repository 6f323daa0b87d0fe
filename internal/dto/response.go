package dto

import (
	"math"
	"net/http"
	"time"

	"chatdesk/internal/bot"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// Response DTOs
// Every endpoint answers with the same envelope
// ===========================================================================

// Response standard envelope
type Response struct {
	// Success whether the request succeeded
	Success bool `json:"success"`

	// Data payload on success
	Data interface{} `json:"data,omitempty"`

	// Error details on failure
	Error *APIError `json:"error,omitempty"`

	// Meta pagination for list endpoints
	Meta *Meta `json:"meta,omitempty"`
}

// APIError error details
type APIError struct {
	// Code machine readable code (e.g. "SESSION_NOT_FOUND", "BUSY")
	Code string `json:"code"`

	// Message human readable message
	Message string `json:"message"`
}

// Meta pagination info
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// NewMeta builds Meta from paging input
func NewMeta(page, limit int, total int64) *Meta {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return &Meta{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}
}

// ===========================================================================
// Response Builders
// ===========================================================================

// Success success envelope
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// SuccessWithMeta success envelope with pagination
func SuccessWithMeta(data interface{}, meta *Meta) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}

// Error error envelope
func Error(code, message string) Response {
	return Response{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	}
}

// ErrorFromErr maps an error onto a status code and envelope. Internal
// errors never leak their message
func ErrorFromErr(err error) (int, Response) {
	status := apperrors.StatusCode(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "An internal error occurred"
	}
	return status, Error(apperrors.ErrorCode(err), message)
}

// ===========================================================================
// Chat payloads
// ===========================================================================

// ArticleSuggestion knowledge article offered to the visitor
type ArticleSuggestion struct {
	ID         uuid.UUID `json:"id"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	Score      int       `json:"score"`
	Confidence float64   `json:"confidence"`
}

// NewArticleSuggestions converts matcher output
func NewArticleSuggestions(matches []bot.ArticleMatch) []ArticleSuggestion {
	out := make([]ArticleSuggestion, 0, len(matches))
	for _, m := range matches {
		out = append(out, ArticleSuggestion{
			ID:         m.Article.ID,
			Title:      m.Article.Title,
			Category:   m.Article.Category,
			Score:      m.Score,
			Confidence: m.Confidence,
		})
	}
	return out
}

// ChatResponse answer to POST /chat
type ChatResponse struct {
	SessionID   uuid.UUID            `json:"sessionId"`
	Status      models.SessionStatus `json:"status"`
	Created     bool                 `json:"created"`
	Reopened    bool                 `json:"reopened,omitempty"`
	Outcome     string               `json:"outcome,omitempty"`
	Message     *models.Message      `json:"message,omitempty"`
	Suggestions []ArticleSuggestion  `json:"suggestions,omitempty"`
}

// TranscriptResponse session with its ordered messages
type TranscriptResponse struct {
	Session    *models.ChatSession `json:"session"`
	Messages   []models.Message    `json:"messages"`
	MarkedRead int64               `json:"marked_read"`
}

// DeleteDepartmentResponse answer to DELETE /admin/chat/departments/:id
type DeleteDepartmentResponse struct {
	ID               uuid.UUID `json:"id"`
	SessionsDetached int64     `json:"sessions_detached"`
}

// HealthResponse answer to GET /health
type HealthResponse struct {
	Status  string    `json:"status"`
	Service string    `json:"service"`
	Storage string    `json:"storage"`
	Time    time.Time `json:"time"`
}

// PrincipalResponse caller identity
type PrincipalResponse struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role"`
}
