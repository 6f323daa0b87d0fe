package services

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"chatdesk/internal/config"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/metrics"
	"chatdesk/internal/models"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ===========================================================================
// Analytics Aggregator
// Batch recomputation over one point-in-time snapshot. Concurrent requests
// for the same window share one computation and the result is cached for
// a short TTL
// ===========================================================================

// UnassignedBucket department stats key for sessions without a department
const UnassignedBucket = "unassigned"

// DepartmentStat per department counts
type DepartmentStat struct {
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Name         string     `json:"name"`
	Count        int        `json:"count"`
	Resolved     int        `json:"resolved"`
}

// AgentStat per agent counts
type AgentStat struct {
	Count     int     `json:"count"`
	Resolved  int     `json:"resolved"`
	Rated     int     `json:"rated"`
	AvgRating float64 `json:"avg_rating"`
}

// TopRatedChat entry of the top rated list
type TopRatedChat struct {
	SessionID     uuid.UUID `json:"session_id"`
	VisitorName   string    `json:"visitor_name"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	Department    string    `json:"department"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// AnalyticsSummary dashboard view over a trailing window
type AnalyticsSummary struct {
	Days        int       `json:"days"`
	Since       time.Time `json:"since"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalChats     int     `json:"total_chats"`
	ActiveChats    int     `json:"active_chats"`
	ResolvedChats  int     `json:"resolved_chats"`
	ResolutionRate float64 `json:"resolution_rate"`

	RatedChats int     `json:"rated_chats"`
	AvgRating  float64 `json:"avg_rating"`

	// AvgResponseTime seconds from open to first admin message
	AvgResponseTime float64 `json:"avg_response_time"`
	RespondedChats  int     `json:"responded_chats"`

	DepartmentStats    map[string]DepartmentStat `json:"department_stats"`
	AgentStats         map[string]AgentStat      `json:"agent_stats"`
	RatingDistribution map[int]int               `json:"rating_distribution"`
	TopRatedChats      []TopRatedChat            `json:"top_rated_chats"`
}

// AnalyticsService computes summaries
type AnalyticsService interface {
	// Summary for the trailing days; 0 selects the configured default
	Summary(ctx context.Context, days int) (*AnalyticsSummary, error)

	// Invalidate drops cached summaries
	Invalidate()
}

type cachedSummary struct {
	summary *AnalyticsSummary
	expires time.Time
}

type analyticsService struct {
	snapshots repositories.SnapshotReader
	cfg       config.AnalyticsConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	cache map[int]cachedSummary
	// gen bumps on Invalidate, a summary computed across a bump is not cached
	gen   uint64
}

// NewAnalyticsService creates an AnalyticsService
func NewAnalyticsService(snapshots repositories.SnapshotReader, cfg config.AnalyticsConfig, m *metrics.Metrics, logger *zap.Logger) AnalyticsService {
	return &analyticsService{
		snapshots: snapshots,
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
		cache:     make(map[int]cachedSummary),
	}
}

func (s *analyticsService) Summary(ctx context.Context, days int) (*AnalyticsSummary, error) {
	if days == 0 {
		days = s.cfg.DefaultDays
	}
	if days < 1 || (s.cfg.MaxDays > 0 && days > s.cfg.MaxDays) {
		return nil, apperrors.Newf(apperrors.ErrValidation, "days must be between 1 and %d", s.cfg.MaxDays)
	}

	if cached, ok := s.cached(days); ok {
		return cached, nil
	}

	v, err, _ := s.group.Do(strconv.Itoa(days), func() (interface{}, error) {
		start := time.Now()
		defer metrics.ObserveSince(s.metrics.AnalyticsCompute, start)

		now := s.now()
		since := now.Add(-time.Duration(days) * 24 * time.Hour)
		gen := s.generation()

		// the computation is shared, one caller going away must not cancel it
		snap, err := s.snapshots.Snapshot(context.WithoutCancel(ctx), since)
		if err != nil {
			return nil, err
		}

		summary := Summarize(snap, since, days, s.cfg.TopRatedLimit)
		s.store(days, summary, now, gen)

		s.logger.Debug("analytics summary computed",
			zap.Int("days", days),
			zap.Int("sessions", summary.TotalChats),
			zap.Duration("took", time.Since(start)),
		)
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*AnalyticsSummary), nil
}

func (s *analyticsService) cached(days int) (*AnalyticsSummary, bool) {
	if s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[days]
	if !ok || !s.now().Before(entry.expires) {
		return nil, false
	}
	return entry.summary, true
}

func (s *analyticsService) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

func (s *analyticsService) store(days int, summary *AnalyticsSummary, now time.Time, gen uint64) {
	if s.cfg.CacheTTL <= 0 {
		return
	}
	s.mu.Lock()
	if gen == s.gen {
		s.cache[days] = cachedSummary{summary: summary, expires: now.Add(s.cfg.CacheTTL)}
	}
	s.mu.Unlock()
}

func (s *analyticsService) Invalidate() {
	s.mu.Lock()
	s.cache = make(map[int]cachedSummary)
	s.gen++
	s.mu.Unlock()
}

// Summarize folds a snapshot into a summary. It only reads the snapshot
func Summarize(snap *repositories.Snapshot, since time.Time, days, topLimit int) *AnalyticsSummary {
	summary := &AnalyticsSummary{
		Days:               days,
		Since:              since,
		GeneratedAt:        snap.TakenAt,
		DepartmentStats:    make(map[string]DepartmentStat),
		AgentStats:         make(map[string]AgentStat),
		RatingDistribution: make(map[int]int, 5),
		TopRatedChats:      []TopRatedChat{},
	}
	for r := 1; r <= 5; r++ {
		summary.RatingDistribution[r] = 0
	}

	var ratingSum, responseSum float64
	agentRatingSums := make(map[string]float64)
	var top []models.ChatSession

	for i := range snap.Sessions {
		session := &snap.Sessions[i]
		resolved := session.IsResolved()

		summary.TotalChats++
		if !session.IsTerminal() {
			summary.ActiveChats++
		}
		if resolved {
			summary.ResolvedChats++
		}

		key, base := departmentBucket(snap, session.DepartmentID)
		stat, seen := summary.DepartmentStats[key]
		if !seen {
			stat = base
		}
		stat.Count++
		if resolved {
			stat.Resolved++
		}
		summary.DepartmentStats[key] = stat

		if session.AssignedAgentID != nil {
			agentKey := session.AssignedAgentID.String()
			as := summary.AgentStats[agentKey]
			as.Count++
			if resolved {
				as.Resolved++
			}
			if session.Rating != nil {
				as.Rated++
				agentRatingSums[agentKey] += float64(*session.Rating)
			}
			summary.AgentStats[agentKey] = as
		}

		if session.Rating != nil {
			summary.RatedChats++
			ratingSum += float64(*session.Rating)
			summary.RatingDistribution[*session.Rating]++
			if *session.Rating >= 4 {
				top = append(top, *session)
			}
		}

		if first, ok := snap.FirstAdminReply[session.ID]; ok {
			elapsed := first.Sub(session.CreatedAt).Seconds()
			if elapsed < 0 {
				elapsed = 0
			}
			responseSum += elapsed
			summary.RespondedChats++
		}
	}

	if summary.TotalChats > 0 {
		summary.ResolutionRate = float64(summary.ResolvedChats) / float64(summary.TotalChats)
	}
	if summary.RatedChats > 0 {
		summary.AvgRating = ratingSum / float64(summary.RatedChats)
	}
	if summary.RespondedChats > 0 {
		summary.AvgResponseTime = responseSum / float64(summary.RespondedChats)
	}
	for key, as := range summary.AgentStats {
		if as.Rated > 0 {
			as.AvgRating = agentRatingSums[key] / float64(as.Rated)
			summary.AgentStats[key] = as
		}
	}

	sort.SliceStable(top, func(i, j int) bool {
		if *top[i].Rating != *top[j].Rating {
			return *top[i].Rating > *top[j].Rating
		}
		if !top[i].LastMessageAt.Equal(top[j].LastMessageAt) {
			return top[i].LastMessageAt.After(top[j].LastMessageAt)
		}
		return top[i].ID.String() < top[j].ID.String()
	})
	if topLimit > 0 && len(top) > topLimit {
		top = top[:topLimit]
	}
	for i := range top {
		entry := TopRatedChat{
			SessionID:     top[i].ID,
			VisitorName:   top[i].VisitorName,
			Rating:        *top[i].Rating,
			LastMessageAt: top[i].LastMessageAt,
		}
		entry.Department, _ = departmentBucket(snap, top[i].DepartmentID)
		if top[i].RatingComment != nil {
			entry.Comment = *top[i].RatingComment
		}
		summary.TopRatedChats = append(summary.TopRatedChats, entry)
	}

	return summary
}

// departmentBucket resolves the stats key; a dangling reference counts as
// unassigned rather than failing the summary
func departmentBucket(snap *repositories.Snapshot, departmentID *uuid.UUID) (string, DepartmentStat) {
	if departmentID != nil {
		if dept, ok := snap.Departments[*departmentID]; ok {
			return dept.Slug, DepartmentStat{DepartmentID: &dept.ID, Name: dept.Name}
		}
	}
	return UnassignedBucket, DepartmentStat{Name: "Unassigned"}
}
