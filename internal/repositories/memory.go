package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/models"

	"github.com/google/uuid"
)

// ===========================================================================
// In-memory implementation
// Used by the "memory" storage driver and by tests. A single RWMutex guards
// the maps; it is held only while copying records in or out, per-session
// serialization is done by the caller
// ===========================================================================

type memoryDB struct {
	mu          sync.RWMutex
	sessions    map[uuid.UUID]models.ChatSession
	messages    map[uuid.UUID][]models.Message
	departments map[uuid.UUID]models.Department
	agents      map[uuid.UUID]models.Agent
	articles    map[uuid.UUID]models.KnowledgeArticle
	now         func() time.Time
}

// NewMemoryRepositories returns repositories backed by process memory
func NewMemoryRepositories() *Repositories {
	db := &memoryDB{
		sessions:    make(map[uuid.UUID]models.ChatSession),
		messages:    make(map[uuid.UUID][]models.Message),
		departments: make(map[uuid.UUID]models.Department),
		agents:      make(map[uuid.UUID]models.Agent),
		articles:    make(map[uuid.UUID]models.KnowledgeArticle),
		now:         time.Now,
	}
	return &Repositories{
		Sessions:    &memorySessionRepo{db},
		Messages:    &memoryMessageRepo{db},
		Departments: &memoryDepartmentRepo{db},
		Agents:      &memoryAgentRepo{db},
		Knowledge:   &memoryKnowledgeRepo{db},
		Snapshots:   &memorySnapshotReader{db},
	}
}

func (db *memoryDB) stamp(b *models.BaseModel, create bool) {
	now := db.now()
	b.EnsureID()
	if create && b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

type memorySessionRepo struct{ db *memoryDB }

func (r *memorySessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	s, ok := r.db.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return &s, nil
}

func (r *memorySessionRepo) List(ctx context.Context, filter SessionFilter, opts FindOptions) ([]models.ChatSession, int64, error) {
	opts.SetDefaults()

	r.db.mu.RLock()
	matched := make([]models.ChatSession, 0)
	for _, s := range r.db.sessions {
		if filter.Status != nil && s.Status != *filter.Status {
			continue
		}
		if filter.DepartmentID != nil && (s.DepartmentID == nil || *s.DepartmentID != *filter.DepartmentID) {
			continue
		}
		if filter.AgentID != nil && (s.AssignedAgentID == nil || *s.AssignedAgentID != *filter.AgentID) {
			continue
		}
		matched = append(matched, s)
	}
	r.db.mu.RUnlock()

	desc := opts.OrderDir == "desc"
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		ta, tb := a.LastMessageAt, b.LastMessageAt
		if opts.OrderBy == "created_at" {
			ta, tb = a.CreatedAt, b.CreatedAt
		}
		if ta.Equal(tb) {
			return a.ID.String() < b.ID.String()
		}
		if desc {
			return ta.After(tb)
		}
		return ta.Before(tb)
	})

	total := int64(len(matched))
	if opts.Offset >= len(matched) {
		return []models.ChatSession{}, total, nil
	}
	end := opts.Offset + opts.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[opts.Offset:end], total, nil
}

func (r *memorySessionRepo) Create(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if err := r.db.departmentExistsLocked(session.DepartmentID); err != nil {
		return err
	}
	r.db.stamp(&session.BaseModel, true)
	if _, exists := r.db.sessions[session.ID]; exists {
		return apperrors.Wrap(apperrors.ErrConflict, "session exists")
	}
	r.db.sessions[session.ID] = *session
	r.db.appendLocked(session.ID, msgs)
	return nil
}

func (r *memorySessionRepo) Update(ctx context.Context, session *models.ChatSession, msgs ...*models.Message) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, exists := r.db.sessions[session.ID]
	if !exists {
		return apperrors.ErrSessionNotFound
	}
	r.db.stamp(&session.BaseModel, false)
	session.DepartmentID = stored.DepartmentID
	r.db.sessions[session.ID] = *session
	r.db.appendLocked(session.ID, msgs)
	return nil
}

func (r *memorySessionRepo) UpdateRouting(ctx context.Context, session *models.ChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, exists := r.db.sessions[session.ID]; !exists {
		return apperrors.ErrSessionNotFound
	}
	if err := r.db.departmentExistsLocked(session.DepartmentID); err != nil {
		return err
	}
	r.db.stamp(&session.BaseModel, false)
	r.db.sessions[session.ID] = *session
	return nil
}

func (db *memoryDB) departmentExistsLocked(id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, ok := db.departments[*id]; !ok {
		return apperrors.Wrap(apperrors.ErrNotFound, "department")
	}
	return nil
}

func (r *memorySessionRepo) SaveRating(ctx context.Context, session *models.ChatSession) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	stored, exists := r.db.sessions[session.ID]
	if !exists {
		return apperrors.ErrSessionNotFound
	}
	if stored.Rating != nil {
		return apperrors.ErrAlreadyRated
	}
	stored.Rating = session.Rating
	stored.RatingComment = session.RatingComment
	stored.RatedAt = session.RatedAt
	stored.UpdatedAt = r.db.now()
	session.UpdatedAt = stored.UpdatedAt
	r.db.sessions[session.ID] = stored
	return nil
}

func (db *memoryDB) appendLocked(sessionID uuid.UUID, msgs []*models.Message) {
	for _, m := range msgs {
		m.SessionID = sessionID
		db.stamp(&m.BaseModel, true)
		db.messages[sessionID] = append(db.messages[sessionID], *m)
	}
}

func (r *memorySessionRepo) CountOpenByAgent(ctx context.Context, agentID uuid.UUID) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var n int64
	for _, s := range r.db.sessions {
		if s.AssignedAgentID != nil && *s.AssignedAgentID == agentID && !s.IsTerminal() {
			n++
		}
	}
	return n, nil
}

func (r *memorySessionRepo) CountByDepartment(ctx context.Context, departmentID uuid.UUID) (int64, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	var n int64
	for _, s := range r.db.sessions {
		if s.DepartmentID != nil && *s.DepartmentID == departmentID {
			n++
		}
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

type memoryMessageRepo struct{ db *memoryDB }

func (r *memoryMessageRepo) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]models.Message, error) {
	r.db.mu.RLock()
	out := make([]models.Message, len(r.db.messages[sessionID]))
	copy(out, r.db.messages[sessionID])
	r.db.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Before(&out[j]) })
	return out, nil
}

func (r *memoryMessageRepo) MarkRead(ctx context.Context, sessionID uuid.UUID, senders []models.SenderType, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var changed int64
	msgs := r.db.messages[sessionID]
	for i := range msgs {
		if !containsSender(senders, msgs[i].SenderType) {
			continue
		}
		if msgs[i].MarkAsRead(at) {
			changed++
		}
	}
	return changed, nil
}

func containsSender(senders []models.SenderType, t models.SenderType) bool {
	for _, s := range senders {
		if s == t {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Departments
// ---------------------------------------------------------------------------

type memoryDepartmentRepo struct{ db *memoryDB }

func (r *memoryDepartmentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	d, ok := r.db.departments[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &d, nil
}

func (r *memoryDepartmentRepo) FindBySlug(ctx context.Context, slug string) (*models.Department, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	for _, d := range r.db.departments {
		if d.Slug == slug {
			return &d, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memoryDepartmentRepo) List(ctx context.Context, activeOnly bool) ([]models.Department, error) {
	r.db.mu.RLock()
	out := make([]models.Department, 0, len(r.db.departments))
	for _, d := range r.db.departments {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	r.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].Name < out[j].Name
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out, nil
}

func (r *memoryDepartmentRepo) slugTakenLocked(slug string, except uuid.UUID) bool {
	for id, d := range r.db.departments {
		if id != except && d.Slug == slug {
			return true
		}
	}
	return false
}

func (r *memoryDepartmentRepo) Create(ctx context.Context, dept *models.Department) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if r.slugTakenLocked(dept.Slug, uuid.Nil) {
		return apperrors.ErrDuplicateSlug
	}
	r.db.stamp(&dept.BaseModel, true)
	r.db.departments[dept.ID] = *dept
	return nil
}

func (r *memoryDepartmentRepo) Update(ctx context.Context, dept *models.Department) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.departments[dept.ID]; !ok {
		return apperrors.ErrNotFound
	}
	if r.slugTakenLocked(dept.Slug, dept.ID) {
		return apperrors.ErrDuplicateSlug
	}
	r.db.stamp(&dept.BaseModel, false)
	r.db.departments[dept.ID] = *dept
	return nil
}

func (r *memoryDepartmentRepo) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.departments[id]; !ok {
		return 0, apperrors.ErrNotFound
	}

	now := r.db.now()
	var detached int64
	for sid, s := range r.db.sessions {
		if s.DepartmentID != nil && *s.DepartmentID == id {
			s.DepartmentID = nil
			s.UpdatedAt = now
			r.db.sessions[sid] = s
			detached++
		}
	}
	for aid, a := range r.db.agents {
		if a.DepartmentID != nil && *a.DepartmentID == id {
			a.DepartmentID = nil
			a.UpdatedAt = now
			r.db.agents[aid] = a
		}
	}
	delete(r.db.departments, id)
	return detached, nil
}

// ---------------------------------------------------------------------------
// Agents
// ---------------------------------------------------------------------------

type memoryAgentRepo struct{ db *memoryDB }

func (r *memoryAgentRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Agent, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.agents[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memoryAgentRepo) ListByDepartment(ctx context.Context, departmentID uuid.UUID, activeOnly bool) ([]models.Agent, error) {
	all, _ := r.List(ctx)
	out := make([]models.Agent, 0, len(all))
	for _, a := range all {
		if a.DepartmentID == nil || *a.DepartmentID != departmentID {
			continue
		}
		if activeOnly && !a.IsActive {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *memoryAgentRepo) List(ctx context.Context) ([]models.Agent, error) {
	r.db.mu.RLock()
	out := make([]models.Agent, 0, len(r.db.agents))
	for _, a := range r.db.agents {
		out = append(out, a)
	}
	r.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryAgentRepo) Create(ctx context.Context, agent *models.Agent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, a := range r.db.agents {
		if strings.EqualFold(a.Email, agent.Email) {
			return apperrors.Wrap(apperrors.ErrConflict, "agent email exists")
		}
	}
	r.db.stamp(&agent.BaseModel, true)
	r.db.agents[agent.ID] = *agent
	return nil
}

func (r *memoryAgentRepo) Update(ctx context.Context, agent *models.Agent) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.agents[agent.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.db.stamp(&agent.BaseModel, false)
	r.db.agents[agent.ID] = *agent
	return nil
}

func (r *memoryAgentRepo) MarkAssigned(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.agents[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.LastAssignedAt = &at
	r.db.agents[id] = a
	return nil
}

// ---------------------------------------------------------------------------
// Knowledge articles
// ---------------------------------------------------------------------------

type memoryKnowledgeRepo struct{ db *memoryDB }

func (r *memoryKnowledgeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.KnowledgeArticle, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	a, ok := r.db.articles[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memoryKnowledgeRepo) List(ctx context.Context, category string) ([]models.KnowledgeArticle, error) {
	r.db.mu.RLock()
	out := make([]models.KnowledgeArticle, 0, len(r.db.articles))
	for _, a := range r.db.articles {
		if category != "" && a.Category != category {
			continue
		}
		out = append(out, a)
	}
	r.db.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (r *memoryKnowledgeRepo) Create(ctx context.Context, article *models.KnowledgeArticle) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.stamp(&article.BaseModel, true)
	r.db.articles[article.ID] = *article
	return nil
}

func (r *memoryKnowledgeRepo) Update(ctx context.Context, article *models.KnowledgeArticle) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.articles[article.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.db.stamp(&article.BaseModel, false)
	r.db.articles[article.ID] = *article
	return nil
}

func (r *memoryKnowledgeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.articles[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(r.db.articles, id)
	return nil
}

func (r *memoryKnowledgeRepo) Increment(ctx context.Context, id uuid.UUID, counter KnowledgeCounter) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	a, ok := r.db.articles[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	switch counter {
	case CounterViews:
		a.Views++
	case CounterHelpful:
		a.Helpful++
	case CounterNotHelpful:
		a.NotHelpful++
	default:
		return apperrors.Newf(apperrors.ErrValidation, "unknown counter %q", counter)
	}
	r.db.articles[id] = a
	return nil
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

type memorySnapshotReader struct{ db *memoryDB }

func (r *memorySnapshotReader) Snapshot(ctx context.Context, since time.Time) (*Snapshot, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	snap := &Snapshot{
		TakenAt:         r.db.now(),
		Sessions:        make([]models.ChatSession, 0),
		FirstAdminReply: make(map[uuid.UUID]time.Time),
		Departments:     make(map[uuid.UUID]models.Department, len(r.db.departments)),
	}
	for id, d := range r.db.departments {
		snap.Departments[id] = d
	}
	for id, s := range r.db.sessions {
		if s.CreatedAt.Before(since) {
			continue
		}
		snap.Sessions = append(snap.Sessions, s)
		for _, m := range r.db.messages[id] {
			if m.SenderType != models.SenderAdmin {
				continue
			}
			if first, ok := snap.FirstAdminReply[id]; !ok || m.CreatedAt.Before(first) {
				snap.FirstAdminReply[id] = m.CreatedAt
			}
		}
	}
	return snap, nil
}
