package repositories

import (
	"context"
	"database/sql"
	"time"

	"chatdesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ===========================================================================
// Snapshot Reader GORM Implementation
// All reads run inside one transaction so the sessions, first replies and
// departments agree with each other; on postgres it is REPEATABLE READ and
// read-only
// ===========================================================================

type snapshotReader struct {
	db *gorm.DB
}

// NewSnapshotReader creates a SnapshotReader
func NewSnapshotReader(db *gorm.DB) SnapshotReader {
	return &snapshotReader{db: db}
}

type adminReplyRow struct {
	SessionID uuid.UUID
	CreatedAt time.Time
}

// snapshotTxOptions sqlite has a single isolation level and rejects others
func snapshotTxOptions(db *gorm.DB) []*sql.TxOptions {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func (r *snapshotReader) Snapshot(ctx context.Context, since time.Time) (*Snapshot, error) {
	snap := &Snapshot{
		FirstAdminReply: make(map[uuid.UUID]time.Time),
		Departments:     make(map[uuid.UUID]models.Department),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		snap.TakenAt = time.Now()

		if err := tx.Where("created_at >= ?", since).Find(&snap.Sessions).Error; err != nil {
			return err
		}

		// earliest admin message per session, reduced here so the column
		// keeps its declared type on every dialect
		var rows []adminReplyRow
		err := tx.Model(&models.Message{}).
			Select("chat_messages.session_id AS session_id, chat_messages.created_at AS created_at").
			Joins("JOIN chat_sessions ON chat_sessions.id = chat_messages.session_id").
			Where("chat_sessions.created_at >= ?", since).
			Where("chat_messages.sender_type = ?", models.SenderAdmin).
			Order("chat_messages.session_id").
			Order("chat_messages.created_at").
			Scan(&rows).Error
		if err != nil {
			return err
		}
		for _, row := range rows {
			if first, ok := snap.FirstAdminReply[row.SessionID]; !ok || row.CreatedAt.Before(first) {
				snap.FirstAdminReply[row.SessionID] = row.CreatedAt
			}
		}

		var depts []models.Department
		if err := tx.Find(&depts).Error; err != nil {
			return err
		}
		for _, d := range depts {
			snap.Departments[d.ID] = d
		}
		return nil
	}, snapshotTxOptions(r.db)...)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// NewGormRepositories wires every repository to one GORM connection
func NewGormRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Sessions:    NewSessionRepository(db),
		Messages:    NewMessageRepository(db),
		Departments: NewDepartmentRepository(db),
		Agents:      NewAgentRepository(db),
		Knowledge:   NewKnowledgeRepository(db),
		Snapshots:   NewSnapshotReader(db),
	}
}
