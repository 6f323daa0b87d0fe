package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransitionTable(t *testing.T) {
	allowed := map[SessionStatus][]SessionStatus{
		StatusWaiting:  {StatusAssigned, StatusActive, StatusClosed},
		StatusActive:   {StatusAssigned, StatusResolved, StatusClosed},
		StatusAssigned: {StatusResolved, StatusClosed},
		StatusResolved: {StatusClosed, StatusWaiting},
		StatusClosed:   {StatusWaiting},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestCanSetStatusExcludesReopenAndPickUp(t *testing.T) {
	allowed := map[SessionStatus][]SessionStatus{
		StatusWaiting:  {StatusAssigned, StatusClosed},
		StatusActive:   {StatusResolved, StatusClosed},
		StatusAssigned: {StatusResolved, StatusClosed},
		StatusResolved: {StatusClosed},
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, CanSetStatus(from, to), "%s -> %s", from, to)
		}
	}
	assert.False(t, CanSetStatus(StatusClosed, StatusWaiting))
	assert.False(t, CanSetStatus(StatusWaiting, StatusActive))
}

func TestTransitionRejectedLeavesStateUnchanged(t *testing.T) {
	s := &ChatSession{Status: StatusWaiting}
	now := time.Now()

	assert.False(t, s.Transition(StatusResolved, now))
	assert.Equal(t, StatusWaiting, s.Status)
	assert.Nil(t, s.ResolvedAt)
}

func TestAssignResolveCloseKeepsAgent(t *testing.T) {
	now := time.Now()
	dept := uuid.New()
	agent := uuid.New()
	s := &ChatSession{Status: StatusWaiting}

	require.True(t, s.Assign(&dept, &agent, now))
	require.True(t, s.Transition(StatusResolved, now))
	require.True(t, s.Close("done", now))

	assert.Equal(t, StatusClosed, s.Status)
	assert.Equal(t, agent, *s.AssignedAgentID)
	assert.True(t, s.IsResolved())
}

func TestReopenClearsAgentKeepsRating(t *testing.T) {
	now := time.Now()
	dept := uuid.New()
	agent := uuid.New()
	s := &ChatSession{Status: StatusWaiting}
	require.True(t, s.Assign(&dept, &agent, now))
	require.True(t, s.Transition(StatusResolved, now))
	s.SetRating(5, "great", now)

	require.True(t, s.Transition(StatusWaiting, now))

	assert.Nil(t, s.AssignedAgentID)
	assert.Nil(t, s.ResolvedAt)
	assert.Equal(t, dept, *s.DepartmentID)
	require.NotNil(t, s.Rating)
	assert.Equal(t, 5, *s.Rating)
}

func TestTouchIsMonotonic(t *testing.T) {
	later := time.Now()
	s := &ChatSession{LastMessageAt: later}

	got := s.Touch(later.Add(-time.Minute))

	assert.Equal(t, later, got)
	assert.Equal(t, int64(1), s.MessageCount)
}

func TestParseSessionStatus(t *testing.T) {
	status, ok := ParseSessionStatus(" RESOLVED ")
	assert.True(t, ok)
	assert.Equal(t, StatusResolved, status)

	_, ok = ParseSessionStatus("pending")
	assert.False(t, ok)
}

func TestAgentOrdering(t *testing.T) {
	early := time.Now().Add(-time.Hour)
	late := time.Now()
	never := &Agent{BaseModel: BaseModel{ID: uuid.New()}}
	a := &Agent{BaseModel: BaseModel{ID: uuid.New()}, LastAssignedAt: &early}
	b := &Agent{BaseModel: BaseModel{ID: uuid.New()}, LastAssignedAt: &late}

	assert.True(t, never.AssignedBefore(a))
	assert.True(t, a.AssignedBefore(b))
	assert.False(t, b.AssignedBefore(a))
	assert.True(t, (&Agent{MaxActiveChats: 2}).HasCapacity(1))
	assert.False(t, (&Agent{MaxActiveChats: 2}).HasCapacity(2))
	assert.True(t, (&Agent{}).HasCapacity(100))
}

func TestKnowledgeMatchScore(t *testing.T) {
	a := &KnowledgeArticle{Title: "Refunds", Keywords: NewKeywords([]string{" Refund ", "money back", "refund"})}

	assert.Equal(t, Keywords{"money back", "refund"}, a.Keywords)
	assert.Equal(t, 3, a.MatchScore("I want a refund, money back please. Refunds?"))
	assert.Equal(t, 0, a.MatchScore("shipping"))
	assert.Equal(t, 0.0, a.HelpfulRatio())
}

func TestValidSlug(t *testing.T) {
	assert.True(t, ValidSlug("technical"))
	assert.True(t, ValidSlug("billing-2"))
	assert.False(t, ValidSlug("Technical"))
	assert.False(t, ValidSlug("a--b"))
	assert.False(t, ValidSlug(""))
}
