package handlers

import (
	"net/http"

	"chatdesk/internal/dto"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes the validated caller; tokens are issued elsewhere
type AuthHandler struct{}

// NewAuthHandler creates an AuthHandler
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me returns the principal behind the bearer token
// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	p := principal(c)
	c.JSON(http.StatusOK, dto.Success(dto.PrincipalResponse{
		ID:   p.ID,
		Name: p.Name,
		Role: string(p.Role),
	}))
}

// RegisterRoutes mounts the auth routes on rg (already authenticated)
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/me", h.Me)
}
