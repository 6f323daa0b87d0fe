package repositories

import (
	"context"
	"testing"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(visitor string, at time.Time) *models.ChatSession {
	return &models.ChatSession{
		BaseModel:     models.BaseModel{CreatedAt: at},
		VisitorID:     visitor,
		VisitorName:   visitor,
		Status:        models.StatusWaiting,
		LastMessageAt: at,
	}
}

func TestMemorySessionCreateAndFind(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	s := newSession("v1", now)
	msg := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "hi"}
	require.NoError(t, repos.Sessions.Create(ctx, s, msg))
	assert.NotEqual(t, uuid.Nil, s.ID)

	got, err := repos.Sessions.FindByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.VisitorID)

	// returned records are copies
	got.Status = models.StatusClosed
	again, _ := repos.Sessions.FindByID(ctx, s.ID)
	assert.Equal(t, models.StatusWaiting, again.Status)

	msgs, err := repos.Messages.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, s.ID, msgs[0].SessionID)

	_, err = repos.Sessions.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestMemoryTranscriptOrderUsesSeqOnTies(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	s := newSession("v1", now)
	require.NoError(t, repos.Sessions.Create(ctx, s))

	second := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 2, SenderType: models.SenderAdmin, Body: "b"}
	first := &models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "a"}
	require.NoError(t, repos.Sessions.Update(ctx, s, second, first))

	msgs, err := repos.Messages.ListBySession(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Body)
	assert.Equal(t, "b", msgs[1].Body)
}

func TestMemoryMarkReadOnlyTouchesSenders(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	s := newSession("v1", now)
	require.NoError(t, repos.Sessions.Create(ctx, s,
		&models.Message{Seq: 1, SenderType: models.SenderVisitor, Body: "a"},
		&models.Message{Seq: 2, SenderType: models.SenderAdmin, Body: "b"},
	))

	n, err := repos.Messages.MarkRead(ctx, s.ID, []models.SenderType{models.SenderVisitor}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repos.Messages.MarkRead(ctx, s.ID, []models.SenderType{models.SenderVisitor}, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	msgs, _ := repos.Messages.ListBySession(ctx, s.ID)
	assert.True(t, msgs[0].IsRead())
	assert.False(t, msgs[1].IsRead())
}

func TestMemoryListFilterAndPaging(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	base := time.Now()

	for i := 0; i < 5; i++ {
		s := newSession("v", base.Add(time.Duration(i)*time.Minute))
		if i%2 == 0 {
			s.Status = models.StatusClosed
		}
		require.NoError(t, repos.Sessions.Create(ctx, s))
	}

	closed := models.StatusClosed
	list, total, err := repos.Sessions.List(ctx, SessionFilter{Status: &closed}, FindOptions{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.True(t, list[0].LastMessageAt.After(list[1].LastMessageAt))

	list, _, err = repos.Sessions.List(ctx, SessionFilter{}, FindOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryDepartmentSlugAndDelete(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	tech := &models.Department{Name: "Technical", Slug: "technical", IsActive: true}
	require.NoError(t, repos.Departments.Create(ctx, tech))
	err := repos.Departments.Create(ctx, &models.Department{Name: "Tech 2", Slug: "technical"})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateSlug)

	agent := &models.Agent{Name: "Ravi", Email: "ravi@example.com", DepartmentID: &tech.ID, IsActive: true}
	require.NoError(t, repos.Agents.Create(ctx, agent))

	ids := make([]uuid.UUID, 0, 3)
	for i := 0; i < 3; i++ {
		s := newSession("v", now)
		s.DepartmentID = &tech.ID
		require.NoError(t, repos.Sessions.Create(ctx, s))
		ids = append(ids, s.ID)
	}

	detached, err := repos.Departments.Delete(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), detached)

	for _, id := range ids {
		s, err := repos.Sessions.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Nil(t, s.DepartmentID)
	}
	a, err := repos.Agents.FindByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Nil(t, a.DepartmentID)

	// slug is free again
	require.NoError(t, repos.Departments.Create(ctx, &models.Department{Name: "Technical", Slug: "technical"}))
}

func TestMemoryKnowledgeIncrement(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()

	article := &models.KnowledgeArticle{Title: "Refunds", Content: "..."}
	require.NoError(t, repos.Knowledge.Create(ctx, article))
	require.NoError(t, repos.Knowledge.Increment(ctx, article.ID, CounterViews))
	require.NoError(t, repos.Knowledge.Increment(ctx, article.ID, CounterHelpful))

	got, err := repos.Knowledge.FindByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Views)
	assert.Equal(t, int64(1), got.Helpful)

	err = repos.Knowledge.Increment(ctx, article.ID, KnowledgeCounter("likes"))
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.ErrorIs(t, repos.Knowledge.Increment(ctx, uuid.New(), CounterViews), apperrors.ErrNotFound)
}

func TestMemorySnapshotFirstAdminReply(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories()
	now := time.Now()

	old := newSession("old", now.Add(-48*time.Hour))
	require.NoError(t, repos.Sessions.Create(ctx, old))

	s := newSession("v1", now)
	require.NoError(t, repos.Sessions.Create(ctx, s,
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now}, Seq: 1, SenderType: models.SenderVisitor, Body: "a"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now.Add(2 * time.Minute)}, Seq: 2, SenderType: models.SenderAdmin, Body: "b"},
		&models.Message{BaseModel: models.BaseModel{CreatedAt: now.Add(5 * time.Minute)}, Seq: 3, SenderType: models.SenderAdmin, Body: "c"},
	))

	snap, err := repos.Snapshots.Snapshot(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, snap.Sessions, 1)
	assert.Equal(t, now.Add(2*time.Minute), snap.FirstAdminReply[s.ID])
}
