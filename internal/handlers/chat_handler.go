package handlers

import (
	"net/http"

	"chatdesk/internal/auth"
	"chatdesk/internal/dto"
	"chatdesk/internal/middleware"
	"chatdesk/internal/models"
	"chatdesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Chat Handler
// Visitor widget endpoints. Visitors only ever see their own sessions;
// staff may read any transcript through GET /chat
// ===========================================================================

// ChatHandler visitor facing chat endpoints
type ChatHandler struct {
	sessions services.SessionService
	logger   *zap.Logger
}

// NewChatHandler creates a ChatHandler
func NewChatHandler(sessions services.SessionService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{sessions: sessions, logger: logger}
}

// Post opens a session or appends a visitor message
// POST /chat
func (h *ChatHandler) Post(c *gin.Context) {
	var req dto.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	p := principal(c)
	ctx := c.Request.Context()

	if req.SessionID == nil {
		name := req.VisitorName
		if name == "" {
			name = p.Name
		}
		res, err := h.sessions.Open(ctx, services.OpenInput{
			VisitorID:    p.ID,
			VisitorName:  name,
			VisitorEmail: req.VisitorEmail,
			DepartmentID: req.DepartmentID,
			Message:      req.Message,
		})
		if err != nil {
			respondError(c, h.logger, err, "chat.open")
			return
		}

		resp := dto.ChatResponse{
			SessionID:   res.Session.ID,
			Status:      res.Session.Status,
			Created:     true,
			Outcome:     string(res.Outcome),
			Suggestions: dto.NewArticleSuggestions(res.Suggestions),
		}
		if len(res.Messages) > 0 {
			resp.Message = &res.Messages[0]
		}
		c.JSON(http.StatusCreated, dto.Success(resp))
		return
	}

	res, err := h.sessions.AppendMessage(ctx, *req.SessionID, services.AppendInput{
		Sender:   models.SenderVisitor,
		SenderID: p.ID,
		Body:     req.Message,
	})
	if err != nil {
		respondError(c, h.logger, err, "chat.append")
		return
	}

	c.JSON(http.StatusOK, dto.Success(dto.ChatResponse{
		SessionID: res.Session.ID,
		Status:    res.Session.Status,
		Reopened:  res.Reopened,
		Message:   res.Message,
	}))
}

// Transcript returns the session and its messages, marking the other
// side's messages read
// GET /chat?sessionId=
func (h *ChatHandler) Transcript(c *gin.Context) {
	id, ok := h.sessionQuery(c)
	if !ok {
		return
	}
	p := principal(c)

	reader, visitorID := models.SenderAdmin, ""
	if p.Role == auth.RoleVisitor {
		reader, visitorID = models.SenderVisitor, p.ID
	}

	tr, err := h.sessions.Transcript(c.Request.Context(), id, reader, visitorID)
	if err != nil {
		respondError(c, h.logger, err, "chat.transcript")
		return
	}

	c.JSON(http.StatusOK, dto.Success(dto.TranscriptResponse{
		Session:    tr.Session,
		Messages:   tr.Messages,
		MarkedRead: tr.MarkedRead,
	}))
}

// Cancel abandons a session no agent answered yet
// DELETE /chat?sessionId=
func (h *ChatHandler) Cancel(c *gin.Context) {
	id, ok := h.sessionQuery(c)
	if !ok {
		return
	}

	session, err := h.sessions.Cancel(c.Request.Context(), id, principal(c).ID)
	if err != nil {
		respondError(c, h.logger, err, "chat.cancel")
		return
	}
	c.JSON(http.StatusOK, dto.Success(session))
}

// Rate stores the visitor rating of a resolved or closed session
// POST /chat/rating
func (h *ChatHandler) Rate(c *gin.Context) {
	var req dto.RateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	session, err := h.sessions.Rate(c.Request.Context(), req.SessionID, principal(c).ID, req.Rating, req.Comment)
	if err != nil {
		respondError(c, h.logger, err, "chat.rate")
		return
	}
	c.JSON(http.StatusOK, dto.Success(session))
}

func (h *ChatHandler) sessionQuery(c *gin.Context) (uuid.UUID, bool) {
	var q dto.SessionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(q.SessionID)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.Error("VALIDATION_ERROR", "sessionId must be a uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// RegisterRoutes mounts the widget routes on rg (already authenticated);
// messageLimit guards message posting
func (h *ChatHandler) RegisterRoutes(rg *gin.RouterGroup, messageLimit gin.HandlerFunc) {
	chat := rg.Group("/chat")
	{
		chat.GET("", h.Transcript)
		chat.POST("", middleware.RequireRole(auth.RoleVisitor), messageLimit, h.Post)
		chat.DELETE("", middleware.RequireRole(auth.RoleVisitor), h.Cancel)
		chat.POST("/rating", middleware.RequireRole(auth.RoleVisitor), h.Rate)
	}
}
