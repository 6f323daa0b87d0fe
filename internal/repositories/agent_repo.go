package repositories

import (
	"context"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Agent Repository GORM Implementation
// ===========================================================================

type agentRepo struct {
	db *gorm.DB
}

// NewAgentRepository creates an AgentRepository
func NewAgentRepository(db *gorm.DB) AgentRepository {
	return &agentRepo{db: db}
}

func (r *agentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	var agent models.Agent
	if err := r.db.WithContext(ctx).First(&agent, "id = ?", id).Error; err != nil {
		return nil, translateError(err, apperrors.ErrNotFound)
	}
	return &agent, nil
}

func (r *agentRepo) ListByDepartment(ctx context.Context, departmentID uuid.UUID, activeOnly bool) ([]models.Agent, error) {
	var agents []models.Agent
	query := r.db.WithContext(ctx).Where("department_id = ?", departmentID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("name ASC").Find(&agents).Error
	return agents, err
}

func (r *agentRepo) List(ctx context.Context) ([]models.Agent, error) {
	var agents []models.Agent
	err := r.db.WithContext(ctx).Order("name ASC").Find(&agents).Error
	return agents, err
}

func (r *agentRepo) Create(ctx context.Context, agent *models.Agent) error {
	return translateError(r.db.WithContext(ctx).Create(agent).Error, apperrors.ErrNotFound)
}

func (r *agentRepo) Update(ctx context.Context, agent *models.Agent) error {
	return translateError(r.db.WithContext(ctx).Save(agent).Error, apperrors.ErrNotFound)
}

// MarkAssigned sets last_assigned_at without touching other columns
func (r *agentRepo) MarkAssigned(ctx context.Context, id uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.Agent{}).
		Where("id = ?", id).
		Update("last_assigned_at", at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
