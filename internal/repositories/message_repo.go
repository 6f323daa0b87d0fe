package repositories

import (
	"context"
	"time"

	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Message Repository GORM Implementation
// ===========================================================================

// messageRepo implements MessageRepository with GORM
type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository creates a MessageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepo{db: db}
}

// ListBySession full transcript in log order
func (r *messageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&messages).Error
	return messages, err
}

// MarkRead marks unread messages from senders as read
func (r *messageRepo) MarkRead(ctx context.Context, sessionID uuid.UUID, senders []models.SenderType, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("session_id = ? AND read_at IS NULL", sessionID).
		Where("sender_type IN ?", senders).
		Update("read_at", at)
	return result.RowsAffected, result.Error
}
