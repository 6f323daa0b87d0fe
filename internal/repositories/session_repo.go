package repositories

import (
	"context"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ===========================================================================
// Session Repository GORM Implementation
// ===========================================================================

// sessionRepo implements SessionRepository with GORM
type sessionRepo struct {
	db *gorm.DB
}

// NewSessionRepository creates a SessionRepository
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepo{db: db}
}

// FindByID finds a session by ID
func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, translateError(err, apperrors.ErrSessionNotFound)
	}
	return &session, nil
}

// List sessions matching filter
func (r *sessionRepo) List(ctx context.Context, filter SessionFilter, opts FindOptions) ([]models.ChatSession, int64, error) {
	opts.SetDefaults()

	var sessions []models.ChatSession
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ChatSession{})
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.DepartmentID != nil {
		query = query.Where("department_id = ?", *filter.DepartmentID)
	}
	if filter.AgentID != nil {
		query = query.Where("assigned_agent_id = ?", *filter.AgentID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order(opts.GetOrderClause()).
		Order("id").
		Offset(opts.Offset).
		Limit(opts.Limit).
		Find(&sessions).Error

	return sessions, total, err
}

// Create inserts the session and its first messages in one transaction
func (r *sessionRepo) Create(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDepartment(tx, session.DepartmentID); err != nil {
			return err
		}
		if err := tx.Create(session).Error; err != nil {
			return translateError(err, apperrors.ErrSessionNotFound)
		}
		return insertMessages(tx, session.ID, msgs)
	})
}

// Update saves the session and appends messages in one transaction
// department_id is left out, only routing writes it
func (r *sessionRepo) Update(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(session).
			Select("*").
			Omit("id", "created_at", "department_id").
			Updates(session)
		if result.Error != nil {
			return translateError(result.Error, apperrors.ErrSessionNotFound)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrSessionNotFound
		}

		var stored models.ChatSession
		if err := tx.Select("department_id").First(&stored, "id = ?", session.ID).Error; err != nil {
			return translateError(err, apperrors.ErrSessionNotFound)
		}
		session.DepartmentID = stored.DepartmentID

		return insertMessages(tx, session.ID, msgs)
	})
}

// UpdateRouting saves the whole session while holding a share lock on its
// department row, a concurrent department delete either waits for this
// write and detaches it, or wins and makes this write fail
func (r *sessionRepo) UpdateRouting(ctx context.Context, session *models.ChatSession) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockDepartment(tx, session.DepartmentID); err != nil {
			return err
		}
		result := tx.Model(session).
			Select("*").
			Omit("id", "created_at").
			Updates(session)
		if result.Error != nil {
			return translateError(result.Error, apperrors.ErrSessionNotFound)
		}
		if result.RowsAffected == 0 {
			return apperrors.ErrSessionNotFound
		}
		return nil
	})
}

// lockDepartment takes a share lock on the department row, nil id is a no-op
func lockDepartment(tx *gorm.DB, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	var dept models.Department
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
		Select("id").
		First(&dept, "id = ?", *id).Error
	if err != nil {
		return apperrors.Wrap(translateError(err, apperrors.ErrNotFound), "department")
	}
	return nil
}

// SaveRating conditional update, the WHERE clause makes the rating single
// assignment even across server instances
func (r *sessionRepo) SaveRating(ctx context.Context, session *models.ChatSession) error {
	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("id = ? AND rating IS NULL", session.ID).
		Updates(map[string]interface{}{
			"rating":         session.Rating,
			"rating_comment": session.RatingComment,
			"rated_at":       session.RatedAt,
			"updated_at":     now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		session.UpdatedAt = now
		return nil
	}

	if _, err := r.FindByID(ctx, session.ID); err != nil {
		return err
	}
	return apperrors.ErrAlreadyRated
}

func insertMessages(tx *gorm.DB, sessionID uuid.UUID, msgs []*models.Message) error {
	for _, m := range msgs {
		m.SessionID = sessionID
		if err := tx.Create(m).Error; err != nil {
			return translateError(err, apperrors.ErrSessionNotFound)
		}
	}
	return nil
}

// CountOpenByAgent open sessions assigned to the agent
func (r *sessionRepo) CountOpenByAgent(ctx context.Context, agentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("assigned_agent_id = ?", agentID).
		Where("status NOT IN ?", []models.SessionStatus{models.StatusResolved, models.StatusClosed}).
		Count(&count).Error
	return count, err
}

// CountByDepartment sessions referencing the department
func (r *sessionRepo) CountByDepartment(ctx context.Context, departmentID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ChatSession{}).
		Where("department_id = ?", departmentID).
		Count(&count).Error
	return count, err
}
