package repositories

import (
	"context"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Knowledge Repository GORM Implementation
// ===========================================================================

type knowledgeRepo struct {
	db *gorm.DB
}

// NewKnowledgeRepository creates a KnowledgeRepository
func NewKnowledgeRepository(db *gorm.DB) KnowledgeRepository {
	return &knowledgeRepo{db: db}
}

func (r *knowledgeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error) {
	var article models.KnowledgeArticle
	if err := r.db.WithContext(ctx).First(&article, "id = ?", id).Error; err != nil {
		return nil, translateError(err, apperrors.ErrNotFound)
	}
	return &article, nil
}

func (r *knowledgeRepo) List(ctx context.Context, category string) ([]models.KnowledgeArticle, error) {
	var articles []models.KnowledgeArticle
	query := r.db.WithContext(ctx).Model(&models.KnowledgeArticle{})
	if category != "" {
		query = query.Where("category = ?", category)
	}
	err := query.Order("title ASC").Find(&articles).Error
	return articles, err
}

func (r *knowledgeRepo) Create(ctx context.Context, article *models.KnowledgeArticle) error {
	return translateError(r.db.WithContext(ctx).Create(article).Error, apperrors.ErrNotFound)
}

func (r *knowledgeRepo) Update(ctx context.Context, article *models.KnowledgeArticle) error {
	return translateError(r.db.WithContext(ctx).Save(article).Error, apperrors.ErrNotFound)
}

func (r *knowledgeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.KnowledgeArticle{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Increment bumps a counter in SQL so concurrent feedback is not lost
func (r *knowledgeRepo) Increment(ctx context.Context, id uuid.UUID, counter KnowledgeCounter) error {
	switch counter {
	case CounterViews, CounterHelpful, CounterNotHelpful:
	default:
		return apperrors.Newf(apperrors.ErrValidation, "unknown counter %q", counter)
	}

	column := string(counter)
	result := r.db.WithContext(ctx).
		Model(&models.KnowledgeArticle{}).
		Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + ?", 1))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
