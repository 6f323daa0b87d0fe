package repositories

import (
	"context"
	"errors"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Department Repository GORM Implementation
// ===========================================================================

type departmentRepo struct {
	db *gorm.DB
}

// NewDepartmentRepository creates a DepartmentRepository
func NewDepartmentRepository(db *gorm.DB) DepartmentRepository {
	return &departmentRepo{db: db}
}

func (r *departmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	var dept models.Department
	if err := r.db.WithContext(ctx).First(&dept, "id = ?", id).Error; err != nil {
		return nil, translateError(err, apperrors.ErrNotFound)
	}
	return &dept, nil
}

func (r *departmentRepo) FindBySlug(ctx context.Context, slug string) (*models.Department, error) {
	var dept models.Department
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&dept).Error; err != nil {
		return nil, translateError(err, apperrors.ErrNotFound)
	}
	return &dept, nil
}

func (r *departmentRepo) List(ctx context.Context, activeOnly bool) ([]models.Department, error) {
	var depts []models.Department
	query := r.db.WithContext(ctx).Model(&models.Department{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	err := query.Order("sort_order ASC").Order("name ASC").Find(&depts).Error
	return depts, err
}

func (r *departmentRepo) Create(ctx context.Context, dept *models.Department) error {
	return slugError(r.db.WithContext(ctx).Create(dept).Error)
}

func (r *departmentRepo) Update(ctx context.Context, dept *models.Department) error {
	return slugError(r.db.WithContext(ctx).Save(dept).Error)
}

// Delete detaches sessions and agents, then removes the department
// The row is locked first so routing writes holding a share lock on it
// finish before the detach runs
func (r *departmentRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	var detached int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var dept models.Department
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&dept, "id = ?", id).Error; err != nil {
			return translateError(err, apperrors.ErrNotFound)
		}

		result := tx.Model(&models.ChatSession{}).
			Where("department_id = ?", id).
			Update("department_id", nil)
		if result.Error != nil {
			return result.Error
		}
		detached = result.RowsAffected

		if err := tx.Model(&models.Agent{}).
			Where("department_id = ?", id).
			Update("department_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&dept).Error
	})
	if err != nil {
		return 0, err
	}
	return detached, nil
}

func slugError(err error) error {
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.ErrDuplicateSlug
	}
	return translateError(err, apperrors.ErrNotFound)
}
