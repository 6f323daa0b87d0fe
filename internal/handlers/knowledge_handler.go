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
// Knowledge Handler
// Search, read and feedback for everyone; CRUD and counter correction for
// admins
// ===========================================================================

const defaultSearchLimit = 5

// KnowledgeHandler knowledge base endpoints
type KnowledgeHandler struct {
	knowledge services.KnowledgeService
	logger    *zap.Logger
}

// NewKnowledgeHandler creates a KnowledgeHandler
func NewKnowledgeHandler(knowledge services.KnowledgeService, logger *zap.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge, logger: logger}
}

// Search articles matching free text
// GET /chat/knowledge-base?q=refund&limit=5
func (h *KnowledgeHandler) Search(c *gin.Context) {
	var q dto.KnowledgeSearchQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindError(c, err)
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultSearchLimit
	}

	matches, err := h.knowledge.Search(c.Request.Context(), q.Query, q.Limit)
	if err != nil {
		respondError(c, h.logger, err, "knowledge.search")
		return
	}
	c.JSON(http.StatusOK, dto.Success(dto.NewArticleSuggestions(matches)))
}

// View returns an article and counts the view
// GET /chat/knowledge-base/:id
func (h *KnowledgeHandler) View(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	article, err := h.knowledge.View(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err, "knowledge.view")
		return
	}
	c.JSON(http.StatusOK, dto.Success(article))
}

// Feedback counts a helpful / not helpful vote
// POST /chat/knowledge-base/:id/feedback
func (h *KnowledgeHandler) Feedback(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := h.knowledge.Feedback(c.Request.Context(), id, *req.Helpful)
	if err != nil {
		respondError(c, h.logger, err, "knowledge.feedback")
		return
	}
	c.JSON(http.StatusOK, dto.Success(article))
}

// List articles, optionally by category
// GET /admin/chat/knowledge-base?category=
func (h *KnowledgeHandler) List(c *gin.Context) {
	articles, err := h.knowledge.List(c.Request.Context(), c.Query("category"))
	if err != nil {
		respondError(c, h.logger, err, "knowledge.list")
		return
	}
	c.JSON(http.StatusOK, dto.Success(articles))
}

// Create an article
// POST /admin/chat/knowledge-base
func (h *KnowledgeHandler) Create(c *gin.Context) {
	var req dto.CreateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := h.knowledge.Create(c.Request.Context(), services.ArticleInput{
		Title:    req.Title,
		Content:  req.Content,
		Keywords: req.Keywords,
		Category: req.Category,
	})
	if err != nil {
		respondError(c, h.logger, err, "knowledge.create")
		return
	}
	c.JSON(http.StatusCreated, dto.Success(article))
}

// Update an article or correct its counters
// PATCH /admin/chat/knowledge-base/:id
func (h *KnowledgeHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	article, err := h.knowledge.Update(c.Request.Context(), id, services.ArticlePatch{
		Title:      req.Title,
		Content:    req.Content,
		Keywords:   req.Keywords,
		Category:   req.Category,
		Views:      req.Views,
		Helpful:    req.Helpful,
		NotHelpful: req.NotHelpful,
	})
	if err != nil {
		respondError(c, h.logger, err, "knowledge.update")
		return
	}
	c.JSON(http.StatusOK, dto.Success(article))
}

// Delete an article
// DELETE /admin/chat/knowledge-base/:id
func (h *KnowledgeHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.knowledge.Delete(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err, "knowledge.delete")
		return
	}
	c.JSON(http.StatusOK, dto.Success(gin.H{"id": id}))
}

// RegisterRoutes mounts widget and admin knowledge routes
func (h *KnowledgeHandler) RegisterRoutes(rg *gin.RouterGroup) {
	widget := rg.Group("/chat/knowledge-base")
	{
		widget.GET("", h.Search)
		widget.GET("/:id", h.View)
		widget.POST("/:id/feedback", h.Feedback)
	}

	admin := rg.Group("/admin/chat/knowledge-base", middleware.RequireStaff())
	{
		admin.GET("", h.List)
		admin.POST("", middleware.RequireAdmin(), h.Create)
		admin.PATCH("/:id", middleware.RequireAdmin(), h.Update)
		admin.DELETE("/:id", middleware.RequireAdmin(), h.Delete)
	}
}
