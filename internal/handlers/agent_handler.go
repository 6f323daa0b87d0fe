package handlers

import (
	"net/http"

	"chatdesk/internal/dto"
	"chatdesk/internal/middleware"
	"chatdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AgentHandler agent pool endpoints
type AgentHandler struct {
	agents services.AgentService
	logger *zap.Logger
}

// NewAgentHandler creates an AgentHandler
func NewAgentHandler(agents services.AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{agents: agents, logger: logger}
}

// List agents, optionally of one department
// GET /admin/chat/agents?department_id=
func (h *AgentHandler) List(c *gin.Context) {
	agents, err := h.agents.List(c.Request.Context(), optionalUUID(c.Query("department_id")))
	if err != nil {
		respondError(c, h.logger, err, "agents.list")
		return
	}
	c.JSON(http.StatusOK, dto.Success(agents))
}

// Create an agent
// POST /admin/chat/agents
func (h *AgentHandler) Create(c *gin.Context) {
	var req dto.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	agent, err := h.agents.Create(c.Request.Context(), services.AgentInput{
		DepartmentID:   req.DepartmentID,
		Name:           req.Name,
		Email:          req.Email,
		IsActive:       dto.BoolDefault(req.IsActive, true),
		MaxActiveChats: req.MaxActiveChats,
	})
	if err != nil {
		respondError(c, h.logger, err, "agents.create")
		return
	}
	c.JSON(http.StatusCreated, dto.Success(agent))
}

// Update an agent
// PATCH /admin/chat/agents/:id
func (h *AgentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	agent, err := h.agents.Update(c.Request.Context(), id, services.AgentPatch{
		DepartmentID:   req.DepartmentID,
		Name:           req.Name,
		IsActive:       req.IsActive,
		MaxActiveChats: req.MaxActiveChats,
	})
	if err != nil {
		respondError(c, h.logger, err, "agents.update")
		return
	}
	c.JSON(http.StatusOK, dto.Success(agent))
}

// RegisterRoutes mounts the agent routes
func (h *AgentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	agents := rg.Group("/admin/chat/agents", middleware.RequireStaff())
	{
		agents.GET("", h.List)
		agents.POST("", middleware.RequireAdmin(), h.Create)
		agents.PATCH("/:id", middleware.RequireAdmin(), h.Update)
	}
}
