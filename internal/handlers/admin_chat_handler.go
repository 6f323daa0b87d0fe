package handlers

import (
	"net/http"

	"chatdesk/internal/dto"
	"chatdesk/internal/middleware"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"
	"chatdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Admin Chat Handler
// Agent console: inbox listing, replies, status changes, routing and the
// analytics dashboard
// ===========================================================================

// AdminChatHandler staff facing chat endpoints
type AdminChatHandler struct {
	sessions  services.SessionService
	analytics services.AnalyticsService
	logger    *zap.Logger
}

// NewAdminChatHandler creates an AdminChatHandler
func NewAdminChatHandler(
	sessions services.SessionService,
	analytics services.AnalyticsService,
	logger *zap.Logger,
) *AdminChatHandler {
	return &AdminChatHandler{
		sessions:  sessions,
		analytics: analytics,
		logger:    logger,
	}
}

// List sessions, newest activity first
// GET /admin/chat?status=waiting&department_id=&agent_id=&page=1&limit=20
func (h *AdminChatHandler) List(c *gin.Context) {
	var req dto.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		bindError(c, err)
		return
	}
	req.SetDefaults()

	filter := repositories.SessionFilter{
		DepartmentID: optionalUUID(req.DepartmentID),
		AgentID:      optionalUUID(req.AgentID),
	}
	if req.Status != "" {
		status := models.SessionStatus(req.Status)
		filter.Status = &status
	}

	sessions, total, err := h.sessions.List(c.Request.Context(), filter, req.FindOptions())
	if err != nil {
		respondError(c, h.logger, err, "admin.list")
		return
	}

	c.JSON(http.StatusOK, dto.SuccessWithMeta(sessions, dto.NewMeta(req.Page, req.Limit, total)))
}

// Reply appends an ADMIN message
// POST /admin/chat
func (h *AdminChatHandler) Reply(c *gin.Context) {
	var req dto.AdminMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	res, err := h.sessions.AppendMessage(c.Request.Context(), req.ChatID, services.AppendInput{
		Sender:   models.SenderAdmin,
		SenderID: principal(c).ID,
		Body:     req.Message,
	})
	if err != nil {
		respondError(c, h.logger, err, "admin.reply")
		return
	}

	c.JSON(http.StatusCreated, dto.Success(dto.ChatResponse{
		SessionID: res.Session.ID,
		Status:    res.Session.Status,
		Message:   res.Message,
	}))
}

// UpdateStatus changes the session status
// PATCH /admin/chat {chatId, status}
func (h *AdminChatHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	status, ok := models.ParseSessionStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, dto.Error("VALIDATION_ERROR", "unknown status "+req.Status))
		return
	}

	session, err := h.sessions.SetStatus(c.Request.Context(), req.ChatID, status)
	if err != nil {
		respondError(c, h.logger, err, "admin.status")
		return
	}
	c.JSON(http.StatusOK, dto.Success(session))
}

// Assign routes the session automatically, or to the given department
// and agent
// POST /admin/chat/assign
func (h *AdminChatHandler) Assign(c *gin.Context) {
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ctx := c.Request.Context()

	if req.DepartmentID == nil && req.AgentID == nil {
		session, outcome, err := h.sessions.Route(ctx, req.ChatID)
		if err != nil {
			respondError(c, h.logger, err, "admin.route")
			return
		}
		c.JSON(http.StatusOK, dto.Success(gin.H{"session": session, "outcome": outcome}))
		return
	}

	session, err := h.sessions.Reassign(ctx, req.ChatID, req.DepartmentID, req.AgentID)
	if err != nil {
		respondError(c, h.logger, err, "admin.reassign")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"session": session, "outcome": services.OutcomeAgentOrInbox(session)}))
}

// Analytics dashboard summary for the trailing days
// GET /admin/chat/analytics?days=30
func (h *AdminChatHandler) Analytics(c *gin.Context) {
	var q dto.AnalyticsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}

	summary, err := h.analytics.Summary(c.Request.Context(), q.Days)
	if err != nil {
		respondError(c, h.logger, err, "admin.analytics")
		return
	}
	c.JSON(http.StatusOK, dto.Success(summary))
}

// RegisterRoutes mounts the console routes on rg (already authenticated)
func (h *AdminChatHandler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin/chat", middleware.RequireStaff())
	{
		admin.GET("", h.List)
		admin.POST("", h.Reply)
		admin.PATCH("", h.UpdateStatus)
		admin.POST("/assign", h.Assign)
		admin.GET("/analytics", h.Analytics)
	}
}
