package services

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) agent(t *testing.T, name string, dept *models.Department, capacity int, lastAssigned *time.Time) *models.Agent {
	t.Helper()
	a := &models.Agent{
		DepartmentID:   &dept.ID,
		Name:           name,
		Email:          name + "@example.com",
		IsActive:       true,
		MaxActiveChats: capacity,
		LastAssignedAt: lastAssigned,
	}
	require.NoError(t, e.repos.Agents.Create(context.Background(), a))
	return a
}

func TestRouteLeastRecentlyAssignedWithCapacity(t *testing.T) {
	env := newTestEnv(t, testChatConfig())
	ctx := context.Background()
	dept := env.department(t, "support", true, 0)

	older := time.Now().Add(-2 * time.Hour)
	newer := time.Now().Add(-time.Hour)
	a := env.agent(t, "alice", dept, 1, &older)
	b := env.agent(t, "bob", dept, 1, &newer)

	first := env.open(t, "v1")
	s, outcome, err := env.svc.Route(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAgent, outcome)
	assert.Equal(t, a.ID, *s.AssignedAgentID)

	second := env.open(t, "v2")
	s, outcome, err = env.svc.Route(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAgent, outcome)
	assert.Equal(t, b.ID, *s.AssignedAgentID)

	// both agents are at capacity, the session lands in the department inbox
	third := env.open(t, "v3")
	s, outcome, err = env.svc.Route(ctx, third.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInbox, outcome)
	assert.Equal(t, models.StatusAssigned, s.Status)
	assert.Nil(t, s.AssignedAgentID)
	assert.Equal(t, dept.ID, *s.DepartmentID)
}

func TestRouteNeverOverbooksUnderConcurrency(t *testing.T) {
	env := newTestEnv(t, testChatConfig())
	ctx := context.Background()
	dept := env.department(t, "support", true, 0)
	a := env.agent(t, "alice", dept, 2, nil)

	ids := make([]uuid.UUID, 6)
	for i := range ids {
		ids[i] = env.open(t, "v"+string(rune('a'+i))).ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _, err := env.svc.Route(ctx, id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	open, err := env.repos.Sessions.CountOpenByAgent(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), open)
}

func TestRouteDepartmentFallbacks(t *testing.T) {
	cfg := testChatConfig()
	cfg.DefaultDepartment = "general"
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	billing := env.department(t, "billing", false, 0)
	general := env.department(t, "general", true, 5)
	env.department(t, "sales", true, 1)

	// inactive requested department falls back to the configured default
	res, err := env.svc.Open(ctx, OpenInput{VisitorID: "v1", VisitorName: "Asha", Message: "hi", DepartmentID: &billing.ID})
	require.NoError(t, err)
	s, outcome, err := env.svc.Route(ctx, res.Session.ID)
	require.NoError(t, err)
	assert.Equal(t, OutcomeInbox, outcome)
	assert.Equal(t, general.ID, *s.DepartmentID)
}

func TestRouteFirstActiveBySortOrder(t *testing.T) {
	env := newTestEnv(t, testChatConfig())
	ctx := context.Background()

	env.department(t, "zeta", true, 2)
	first := env.department(t, "alpha", true, 1)
	env.department(t, "archived", false, 0)

	s := env.open(t, "v1")
	routed, _, err := env.svc.Route(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, *routed.DepartmentID)
}

func TestRouteRejectsTerminalSession(t *testing.T) {
	env := newTestEnv(t, testChatConfig())
	env.department(t, "general", true, 0)
	s := env.sessionWithStatus(t, models.StatusClosed)

	_, _, err := env.svc.Route(context.Background(), s.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

func TestReassignToAgent(t *testing.T) {
	env := newTestEnv(t, testChatConfig())
	ctx := context.Background()
	support := env.department(t, "support", true, 0)
	billing := env.department(t, "billing", true, 1)
	busy := env.agent(t, "carol", billing, 1, nil)

	s := env.open(t, "v1")
	_, _, err := env.svc.Route(ctx, s.ID)
	require.NoError(t, err)

	// explicit reassignment ignores capacity but checks membership
	_, err = env.svc.Reassign(ctx, s.ID, &support.ID, &busy.ID)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	got, err := env.svc.Reassign(ctx, s.ID, nil, &busy.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.ID, *got.DepartmentID)
	assert.Equal(t, busy.ID, *got.AssignedAgentID)

	other := env.open(t, "v2")
	got, err = env.svc.Reassign(ctx, other.ID, nil, &busy.ID)
	require.NoError(t, err)
	assert.Equal(t, busy.ID, *got.AssignedAgentID)

	_, err = env.svc.Reassign(ctx, other.ID, nil, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	missing := uuid.New()
	_, err = env.svc.Reassign(ctx, other.ID, nil, &missing)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
