package services

import (
	"context"
	"net/mail"
	"strings"
	"sync"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Department Registry
// A slug is unique and frozen as soon as a session references the
// department. Deleting a department detaches its sessions and agents
// ===========================================================================

// DepartmentInput create payload
type DepartmentInput struct {
	Name         string
	Slug         string
	Description  string
	ContactEmail string
	IsActive     bool
	SortOrder    int
}

// DepartmentPatch update payload, nil fields are left alone
type DepartmentPatch struct {
	Name         *string
	Slug         *string
	Description  *string
	ContactEmail *string
	IsActive     *bool
	SortOrder    *int
}

// DepartmentService department registry operations
type DepartmentService interface {
	List(ctx context.Context, activeOnly bool) ([]models.Department, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Department, error)
	Create(ctx context.Context, in DepartmentInput) (*models.Department, error)
	Update(ctx context.Context, id uuid.UUID, patch DepartmentPatch) (*models.Department, error)

	// Delete returns the number of sessions whose department was cleared
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

type departmentService struct {
	// mu serializes registry writes so the slug check and the write agree
	mu        sync.Mutex
	repos     *repositories.Repositories
	analytics AnalyticsService
	logger    *zap.Logger
}

// NewDepartmentService creates a DepartmentService; analytics may be nil
func NewDepartmentService(repos *repositories.Repositories, analytics AnalyticsService, logger *zap.Logger) DepartmentService {
	return &departmentService{repos: repos, analytics: analytics, logger: logger}
}

func (s *departmentService) List(ctx context.Context, activeOnly bool) ([]models.Department, error) {
	return s.repos.Departments.List(ctx, activeOnly)
}

func (s *departmentService) Get(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	return s.repos.Departments.FindByID(ctx, id)
}

func (s *departmentService) Create(ctx context.Context, in DepartmentInput) (*models.Department, error) {
	dept := &models.Department{
		Name:         strings.TrimSpace(in.Name),
		Slug:         strings.TrimSpace(in.Slug),
		Description:  strings.TrimSpace(in.Description),
		ContactEmail: strings.TrimSpace(in.ContactEmail),
		IsActive:     in.IsActive,
		SortOrder:    in.SortOrder,
	}
	if err := validateDepartment(dept); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repos.Departments.Create(ctx, dept); err != nil {
		return nil, err
	}

	s.logger.Info("department created",
		zap.String("department_id", dept.ID.String()),
		zap.String("slug", dept.Slug),
	)
	return dept, nil
}

func (s *departmentService) Update(ctx context.Context, id uuid.UUID, patch DepartmentPatch) (*models.Department, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dept, err := s.repos.Departments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Slug != nil && strings.TrimSpace(*patch.Slug) != dept.Slug {
		refs, err := s.repos.Sessions.CountByDepartment(ctx, id)
		if err != nil {
			return nil, err
		}
		if refs > 0 {
			return nil, apperrors.Newf(apperrors.ErrSlugInUse, "slug %q is referenced by %d sessions", dept.Slug, refs)
		}
		dept.Slug = strings.TrimSpace(*patch.Slug)
	}
	if patch.Name != nil {
		dept.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		dept.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ContactEmail != nil {
		dept.ContactEmail = strings.TrimSpace(*patch.ContactEmail)
	}
	if patch.IsActive != nil {
		dept.IsActive = *patch.IsActive
	}
	if patch.SortOrder != nil {
		dept.SortOrder = *patch.SortOrder
	}

	if err := validateDepartment(dept); err != nil {
		return nil, err
	}
	if err := s.repos.Departments.Update(ctx, dept); err != nil {
		return nil, err
	}
	s.invalidate()
	return dept, nil
}

func (s *departmentService) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	detached, err := s.repos.Departments.Delete(ctx, id)
	if err != nil {
		return 0, err
	}
	s.invalidate()

	s.logger.Info("department deleted",
		zap.String("department_id", id.String()),
		zap.Int64("sessions_detached", detached),
	)
	return detached, nil
}

func (s *departmentService) invalidate() {
	if s.analytics != nil {
		s.analytics.Invalidate()
	}
}

func validateDepartment(d *models.Department) error {
	if d.Name == "" {
		return apperrors.New(apperrors.ErrValidation, "name is required")
	}
	if !models.ValidSlug(d.Slug) {
		return apperrors.New(apperrors.ErrValidation, "slug must be lowercase letters, digits and single dashes")
	}
	if d.ContactEmail != "" {
		if _, err := mail.ParseAddress(d.ContactEmail); err != nil {
			return apperrors.New(apperrors.ErrValidation, "contact_email is not a valid address")
		}
	}
	return nil
}
