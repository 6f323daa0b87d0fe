package handlers

import (
	"net/http"

	"chatdesk/internal/dto"
	"chatdesk/internal/middleware"
	"chatdesk/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ===========================================================================
// Department Handler
// Registry CRUD for admins, active department list for the widget picker
// ===========================================================================

// DepartmentHandler department registry endpoints
type DepartmentHandler struct {
	departments services.DepartmentService
	logger      *zap.Logger
}

// NewDepartmentHandler creates a DepartmentHandler
func NewDepartmentHandler(departments services.DepartmentService, logger *zap.Logger) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, logger: logger}
}

// List all departments
// GET /admin/chat/departments
func (h *DepartmentHandler) List(c *gin.Context) {
	depts, err := h.departments.List(c.Request.Context(), false)
	if err != nil {
		respondError(c, h.logger, err, "departments.list")
		return
	}
	c.JSON(http.StatusOK, dto.Success(depts))
}

// ListActive departments a visitor may pick
// GET /chat/departments
func (h *DepartmentHandler) ListActive(c *gin.Context) {
	depts, err := h.departments.List(c.Request.Context(), true)
	if err != nil {
		respondError(c, h.logger, err, "departments.list_active")
		return
	}
	c.JSON(http.StatusOK, dto.Success(depts))
}

// Get one department
// GET /admin/chat/departments/:id
func (h *DepartmentHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	dept, err := h.departments.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "departments.get")
		return
	}
	c.JSON(http.StatusOK, dto.Success(dept))
}

// Create a department
// POST /admin/chat/departments
func (h *DepartmentHandler) Create(c *gin.Context) {
	var req dto.CreateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	dept, err := h.departments.Create(c.Request.Context(), services.DepartmentInput{
		Name:         req.Name,
		Slug:         req.Slug,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		IsActive:     dto.BoolDefault(req.IsActive, true),
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		respondError(c, h.logger, err, "departments.create")
		return
	}
	c.JSON(http.StatusCreated, dto.Success(dept))
}

// Update a department; the slug is frozen once a session references it
// PATCH /admin/chat/departments/:id
func (h *DepartmentHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDepartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	dept, err := h.departments.Update(c.Request.Context(), id, services.DepartmentPatch{
		Name:         req.Name,
		Slug:         req.Slug,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		IsActive:     req.IsActive,
		SortOrder:    req.SortOrder,
	})
	if err != nil {
		respondError(c, h.logger, err, "departments.update")
		return
	}
	c.JSON(http.StatusOK, dto.Success(dept))
}

// Delete a department, detaching its sessions
// DELETE /admin/chat/departments/:id
func (h *DepartmentHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	detached, err := h.departments.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "departments.delete")
		return
	}
	c.JSON(http.StatusOK, dto.Success(dto.DeleteDepartmentResponse{ID: id, SessionsDetached: detached}))
}

// RegisterRoutes mounts the registry routes; reads are open to staff,
// writes need an admin
func (h *DepartmentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/chat/departments", h.ListActive)

	depts := rg.Group("/admin/chat/departments", middleware.RequireStaff())
	{
		depts.GET("", h.List)
		depts.GET("/:id", h.Get)
		depts.POST("", middleware.RequireAdmin(), h.Create)
		depts.PATCH("/:id", middleware.RequireAdmin(), h.Update)
		depts.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
	}
}
