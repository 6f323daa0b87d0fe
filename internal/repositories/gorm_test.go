package repositories

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"chatdesk/internal/database"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ===========================================================================
// GORM repositories against an in-memory SQLite database
// ===========================================================================

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every connection to :memory: is its own database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	return NewGormRepositories(newTestDB(t))
}

func TestGormSessionCreateUpdateAndTranscript(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	s := newSession("v1", now)
	first := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "hi"}
	require.NoError(t, repos.Sessions.Create(ctx, s, first))

	second := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 2, SenderType: models.SenderAdmin, Body: "hello"}
	s.Status = models.StatusActive
	s.MessageCount = 2
	require.NoError(t, repos.Sessions.Update(ctx, s, second))

	got, err := repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, int64(2), got.MessageCount)

	msgs, err := repos.Messages.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Body)
	assert.Equal(t, "hello", msgs[1].Body)

	_, err = repos.Sessions.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	missing := newSession("ghost", now)
	missing.EnsureID()
	assert.ErrorIs(t, repos.Sessions.Update(ctx, missing), apperrors.ErrSessionNotFound)
}

func TestGormSaveRatingSingleWinner(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	s := newSession("v1", now)
	s.Status = models.StatusResolved
	s.ResolvedAt = &now
	require.NoError(t, repos.Sessions.Create(ctx, s))

	var wg sync.WaitGroup
	var wins, rejected int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(score int) {
			defer wg.Done()
			attempt := *s
			attempt.Rating = &score
			attempt.RatedAt = &now
			err := repos.Sessions.SaveRating(ctx, &attempt)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case apperrors.Is(err, apperrors.ErrAlreadyRated):
				atomic.AddInt32(&rejected, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i%5 + 1)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, int32(7), rejected)

	got, err := repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Rating)

	unknown := newSession("ghost", now)
	unknown.EnsureID()
	assert.ErrorIs(t, repos.Sessions.SaveRating(ctx, unknown), apperrors.ErrSessionNotFound)
}

func TestGormDepartmentDeleteDetaches(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	tech := &models.Department{Name: "Technical", Slug: "technical", IsActive: true}
	require.NoError(t, repos.Departments.Create(ctx, tech))
	err := repos.Departments.Create(ctx, &models.Department{Name: "Tech 2", Slug: "technical"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSlug)

	agent := &models.Agent{Name: "Ravi", Email: "ravi@example.com", DepartmentID: &tech.ID, IsActive: true}
	require.NoError(t, repos.Agents.Create(ctx, agent))

	ids := make([]uuid.UUID, 0, 2)
	for i := 0; i < 2; i++ {
		s := newSession("v", now)
		s.DepartmentID = &tech.ID
		require.NoError(t, repos.Sessions.Create(ctx, s))
		ids = append(ids, s.ID)
	}
	require.NoError(t, repos.Sessions.Create(ctx, newSession("unrouted", now)))

	detached, err := repos.Departments.Delete(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), detached)

	for _, id := range ids {
		s, err := repos.Sessions.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, s.DepartmentID)
	}
	a, err := repos.Agents.FindByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Nil(t, a.DepartmentID)

	_, err = repos.Departments.FindByID(ctx, tech.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	_, err = repos.Departments.Delete(ctx, tech.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	// slug is free again
	require.NoError(t, repos.Departments.Create(ctx, &models.Department{Name: "Technical", Slug: "technical"}))
}

func TestGormSessionWritesKeepDeletedDepartmentDetached(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	billing := &models.Department{Name: "Billing", Slug: "billing", IsActive: true}
	require.NoError(t, repos.Departments.Create(ctx, billing))

	s := newSession("v1", now)
	s.DepartmentID = &billing.ID
	require.NoError(t, repos.Sessions.Create(ctx, s))

	// s is now a stale copy still pointing at billing
	_, err := repos.Departments.Delete(ctx, billing.ID)
	require.NoError(t, err)

	s.MessageCount = 1
	msg := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderAdmin, Body: "on it"}
	require.NoError(t, repos.Sessions.Update(ctx, s, msg))
	assert.Nil(t, s.DepartmentID)

	stored, err := repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DepartmentID)
	assert.Equal(t, int64(1), stored.MessageCount)

	// routing to the deleted department fails and writes nothing
	stale := *stored
	stale.DepartmentID = &billing.ID
	stale.Status = models.StatusAssigned
	assert.ErrorIs(t, repos.Sessions.UpdateRouting(ctx, &stale), apperrors.ErrNotFound)

	stored, err = repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.DepartmentID)
	assert.Equal(t, models.StatusWaiting, stored.Status)

	orphan := newSession("v2", now)
	orphan.DepartmentID = &billing.ID
	assert.ErrorIs(t, repos.Sessions.Create(ctx, orphan), apperrors.ErrNotFound)

	// routing to a live department writes it
	sales := &models.Department{Name: "Sales", Slug: "sales", IsActive: true}
	require.NoError(t, repos.Departments.Create(ctx, sales))
	stale.DepartmentID = &sales.ID
	require.NoError(t, repos.Sessions.UpdateRouting(ctx, &stale))

	stored, err = repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DepartmentID)
	assert.Equal(t, sales.ID, *stored.DepartmentID)
	assert.Equal(t, models.StatusAssigned, stored.Status)
}

func TestGormMarkReadIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	s := newSession("v1", now)
	require.NoError(t, repos.Sessions.Create(ctx, s,
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "a"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 2, SenderType: models.SenderAdmin, Body: "b"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 3, SenderType: models.SenderSystem, Body: "c"},
	))

	readAt := now.Add(time.Minute)
	n, err := repos.Messages.MarkRead(ctx, s.ID, []models.SenderType{models.SenderAdmin, models.SenderSystem}, readAt)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = repos.Messages.MarkRead(ctx, s.ID, []models.SenderType{models.SenderAdmin, models.SenderSystem}, readAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	msgs, err := repos.Messages.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Nil(t, msgs[0].ReadAt)
	for _, m := range msgs[1:] {
		require.NotNil(t, m.ReadAt)
		assert.WithinDuration(t, readAt, *m.ReadAt, time.Millisecond)
	}
}

func TestGormSnapshotFirstAdminReply(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now().UTC()

	tech := &models.Department{Name: "Technical", Slug: "technical", IsActive: true}
	require.NoError(t, repos.Departments.Create(ctx, tech))

	old := newSession("old", now.Add(-48*time.Hour))
	require.NoError(t, repos.Sessions.Create(ctx, old,
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now.Add(-47 * time.Hour)}, Seq: 1, SenderType: models.SenderAdmin, Body: "x"},
	))

	s := newSession("v1", now)
	s.DepartmentID = &tech.ID
	require.NoError(t, repos.Sessions.Create(ctx, s,
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "a"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now.Add(5 * time.Minute)}, Seq: 2, SenderType: models.SenderAdmin, Body: "c"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now.Add(2 * time.Minute)}, Seq: 3, SenderType: models.SenderAdmin, Body: "b"},
	))
	silent := newSession("v2", now)
	require.NoError(t, repos.Sessions.Create(ctx, silent))

	snap, err := repos.Snapshots.Snapshot(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, snap.Sessions, 2)
	require.Contains(t, snap.FirstAdminReply, s.ID)
	assert.WithinDuration(t, now.Add(2*time.Minute), snap.FirstAdminReply[s.ID], time.Millisecond)
	assert.NotContains(t, snap.FirstAdminReply, old.ID)
	assert.NotContains(t, snap.FirstAdminReply, silent.ID)
	assert.Contains(t, snap.Departments, tech.ID)
}
