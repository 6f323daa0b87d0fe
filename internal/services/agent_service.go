package services

import (
	"context"
	"strings"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Agent pool
// ===========================================================================

// AgentInput create payload
type AgentInput struct {
	DepartmentID   *uuid.UUID
	Name           string
	Email          string
	IsActive       bool
	MaxActiveChats int
}

// AgentPatch update payload, nil fields are left alone
type AgentPatch struct {
	DepartmentID   *uuid.UUID
	Name           *string
	IsActive       *bool
	MaxActiveChats *int
}

// AgentService agent pool operations
type AgentService interface {
	List(ctx context.Context, departmentID *uuid.UUID) ([]models.Agent, error)
	Create(ctx context.Context, in AgentInput) (*models.Agent, error)
	Update(ctx context.Context, id uuid.UUID, patch AgentPatch) (*models.Agent, error)
}

type agentService struct {
	repos  *repositories.Repositories
	logger *zap.Logger
}

// NewAgentService creates an AgentService
func NewAgentService(repos *repositories.Repositories, logger *zap.Logger) AgentService {
	return &agentService{repos: repos, logger: logger}
}

func (s *agentService) List(ctx context.Context, departmentID *uuid.UUID) ([]models.Agent, error) {
	if departmentID != nil {
		return s.repos.Agents.ListByDepartment(ctx, *departmentID, false)
	}
	return s.repos.Agents.List(ctx)
}

func (s *agentService) Create(ctx context.Context, in AgentInput) (*models.Agent, error) {
	agent := &models.Agent{
		DepartmentID:   in.DepartmentID,
		Name:           strings.TrimSpace(in.Name),
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		IsActive:       in.IsActive,
		MaxActiveChats: in.MaxActiveChats,
	}
	if agent.Name == "" || agent.Email == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "name and email are required")
	}
	if err := s.validate(ctx, agent); err != nil {
		return nil, err
	}

	if err := s.repos.Agents.Create(ctx, agent); err != nil {
		return nil, err
	}
	s.logger.Info("agent created", zap.String("agent_id", agent.ID.String()))
	return agent, nil
}

func (s *agentService) Update(ctx context.Context, id uuid.UUID, patch AgentPatch) (*models.Agent, error) {
	agent, err := s.repos.Agents.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.DepartmentID != nil {
		agent.DepartmentID = patch.DepartmentID
	}
	if patch.Name != nil {
		agent.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.IsActive != nil {
		agent.IsActive = *patch.IsActive
	}
	if patch.MaxActiveChats != nil {
		agent.MaxActiveChats = *patch.MaxActiveChats
	}
	if err := s.validate(ctx, agent); err != nil {
		return nil, err
	}

	if err := s.repos.Agents.Update(ctx, agent); err != nil {
		return nil, err
	}
	return agent, nil
}

func (s *agentService) validate(ctx context.Context, agent *models.Agent) error {
	if agent.Name == "" {
		return apperrors.New(apperrors.ErrValidation, "name is required")
	}
	if agent.MaxActiveChats < 0 {
		return apperrors.New(apperrors.ErrValidation, "max_active_chats must not be negative")
	}
	if agent.DepartmentID != nil {
		if _, err := s.repos.Departments.FindByID(ctx, *agent.DepartmentID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.New(apperrors.ErrValidation, "unknown department")
			}
			return err
		}
	}
	return nil
}
