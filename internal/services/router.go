package services

import (
	"context"
	"sort"
	"sync"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/metrics"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Router
// Picks a department and, when one is free, an agent for a session
// Agent selection and the commit of the assignment run under one mutex so
// two sessions routed at the same time never overbook an agent
// ===========================================================================

// RouteOutcome how a routing attempt ended
type RouteOutcome string

const (
	// OutcomeAgent assigned to a department and an agent
	OutcomeAgent RouteOutcome = "agent"

	// OutcomeInbox assigned to a department inbox, no agent was free
	OutcomeInbox RouteOutcome = "inbox"

	// OutcomeUnrouted no active department exists, the session stays waiting
	OutcomeUnrouted RouteOutcome = "unrouted"
)

// CommitFunc persists the session after the router changed it
type CommitFunc func(ctx context.Context) error

// Router assigns sessions to departments and agents
type Router interface {
	// Route automatic assignment; requested is the visitor selected department
	Route(ctx context.Context, session *models.ChatSession, requested *uuid.UUID, at time.Time, commit CommitFunc) (RouteOutcome, error)

	// AssignTo explicit assignment by an admin; agentID nil picks a free agent
	AssignTo(ctx context.Context, session *models.ChatSession, departmentID, agentID *uuid.UUID, at time.Time, commit CommitFunc) (RouteOutcome, error)
}

type router struct {
	mu                sync.Mutex
	repos             *repositories.Repositories
	defaultDepartment string
	metrics           *metrics.Metrics
	logger            *zap.Logger
}

// NewRouter creates a Router; defaultDepartment is a slug, may be empty
func NewRouter(repos *repositories.Repositories, defaultDepartment string, m *metrics.Metrics, logger *zap.Logger) Router {
	return &router{
		repos:             repos,
		defaultDepartment: defaultDepartment,
		metrics:           m,
		logger:            logger,
	}
}

func (r *router) Route(ctx context.Context, session *models.ChatSession, requested *uuid.UUID, at time.Time, commit CommitFunc) (RouteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dept, err := r.pickDepartment(ctx, requested)
	if err != nil {
		return "", err
	}
	if dept == nil {
		r.metrics.Routed.WithLabelValues(string(OutcomeUnrouted)).Inc()
		r.logger.Warn("no active department, session left waiting",
			zap.String("session_id", session.ID.String()),
		)
		return OutcomeUnrouted, nil
	}

	agent, err := r.pickAgent(ctx, dept.ID)
	if err != nil {
		return "", err
	}
	return r.apply(ctx, session, dept, agent, at, commit)
}

func (r *router) AssignTo(ctx context.Context, session *models.ChatSession, departmentID, agentID *uuid.UUID, at time.Time, commit CommitFunc) (RouteOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var agent *models.Agent
	if agentID != nil {
		a, err := r.repos.Agents.FindByID(ctx, *agentID)
		if err != nil {
			return "", apperrors.Wrap(err, "agent")
		}
		if !a.IsActive {
			return "", apperrors.New(apperrors.ErrValidation, "agent is not active")
		}
		if a.DepartmentID == nil {
			return "", apperrors.New(apperrors.ErrValidation, "agent has no department")
		}
		if departmentID != nil && *departmentID != *a.DepartmentID {
			return "", apperrors.New(apperrors.ErrValidation, "agent does not belong to the department")
		}
		departmentID = a.DepartmentID
		agent = a
	}
	if departmentID == nil {
		return "", apperrors.New(apperrors.ErrValidation, "department_id or agent_id is required")
	}

	dept, err := r.repos.Departments.FindByID(ctx, *departmentID)
	if err != nil {
		return "", apperrors.Wrap(err, "department")
	}
	if !dept.IsActive {
		return "", apperrors.New(apperrors.ErrValidation, "department is not active")
	}

	if agent == nil {
		if agent, err = r.pickAgent(ctx, dept.ID); err != nil {
			return "", err
		}
	}
	return r.apply(ctx, session, dept, agent, at, commit)
}

// apply mutates the session, commits, then records the agent assignment
func (r *router) apply(ctx context.Context, session *models.ChatSession, dept *models.Department, agent *models.Agent, at time.Time, commit CommitFunc) (RouteOutcome, error) {
	var agentID *uuid.UUID
	outcome := OutcomeInbox
	if agent != nil {
		id := agent.ID
		agentID = &id
		outcome = OutcomeAgent
	}

	deptID := dept.ID
	if !session.Assign(&deptID, agentID, at) {
		return "", apperrors.Newf(apperrors.ErrInvalidTransition, "cannot assign a %s session", session.Status)
	}
	if err := commit(ctx); err != nil {
		return "", err
	}

	if agent != nil {
		if err := r.repos.Agents.MarkAssigned(ctx, agent.ID, at); err != nil {
			r.logger.Warn("failed to record agent assignment",
				zap.String("agent_id", agent.ID.String()),
				zap.Error(err),
			)
		}
	}

	r.metrics.Routed.WithLabelValues(string(outcome)).Inc()
	r.logger.Info("session routed",
		zap.String("session_id", session.ID.String()),
		zap.String("department", dept.Slug),
		zap.String("outcome", string(outcome)),
	)
	return outcome, nil
}

// pickDepartment requested (if active), else the default slug, else the
// first active department by sort order
func (r *router) pickDepartment(ctx context.Context, requested *uuid.UUID) (*models.Department, error) {
	if requested != nil {
		dept, err := r.repos.Departments.FindByID(ctx, *requested)
		switch {
		case err == nil && dept.IsActive:
			return dept, nil
		case err != nil && !apperrors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
	}

	if r.defaultDepartment != "" {
		dept, err := r.repos.Departments.FindBySlug(ctx, r.defaultDepartment)
		switch {
		case err == nil && dept.IsActive:
			return dept, nil
		case err != nil && !apperrors.Is(err, apperrors.ErrNotFound):
			return nil, err
		}
	}

	depts, err := r.repos.Departments.List(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(depts) == 0 {
		return nil, nil
	}
	return &depts[0], nil
}

// pickAgent least recently assigned active agent with spare capacity
func (r *router) pickAgent(ctx context.Context, departmentID uuid.UUID) (*models.Agent, error) {
	agents, err := r.repos.Agents.ListByDepartment(ctx, departmentID, true)
	if err != nil {
		return nil, err
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].AssignedBefore(&agents[j]) })

	for i := range agents {
		open, err := r.repos.Sessions.CountOpenByAgent(ctx, agents[i].ID)
		if err != nil {
			return nil, err
		}
		if agents[i].HasCapacity(open) {
			return &agents[i], nil
		}
	}
	return nil, nil
}

// OutcomeAgentOrInbox outcome of an assigned session
func OutcomeAgentOrInbox(session *models.ChatSession) RouteOutcome {
	if session.AssignedAgentID != nil {
		return OutcomeAgent
	}
	return OutcomeInbox
}
