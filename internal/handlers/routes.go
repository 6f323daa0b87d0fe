package handlers

import (
	"github.com/gin-gonic/gin"
)

// Handlers every HTTP handler of the service
type Handlers struct {
	Chat        *ChatHandler
	AdminChat   *AdminChatHandler
	Departments *DepartmentHandler
	Agents      *AgentHandler
	Knowledge   *KnowledgeHandler
	Auth        *AuthHandler
	Health      *HealthHandler
}

// Register mounts the public routes on r and everything else behind
// authMiddleware. messageLimit guards visitor message posting
func (h *Handlers) Register(r *gin.Engine, authMiddleware, messageLimit gin.HandlerFunc) {
	h.Health.RegisterRoutes(r)

	protected := r.Group("", authMiddleware)
	{
		h.Auth.RegisterRoutes(protected)
		h.Chat.RegisterRoutes(protected, messageLimit)
		h.Departments.RegisterRoutes(protected)
		h.Knowledge.RegisterRoutes(protected)
		h.AdminChat.RegisterRoutes(protected)
		h.Agents.RegisterRoutes(protected)
	}
}
