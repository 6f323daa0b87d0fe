package services

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"chatdesk/internal/bot"
	"chatdesk/internal/config"
	apperrors "chatdesk/internal/errors"
	"chatdesk/internal/eventlog"
	"chatdesk/internal/lock"
	"chatdesk/internal/metrics"
	"chatdesk/internal/models"
	"chatdesk/internal/realtime"
	"chatdesk/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Session Service Implementation
// ===========================================================================

const (
	maxLockAttempts  = 2
	maxCommentLength = 1000

	reasonCancelled   = "cancelled by visitor"
	reasonClosedAgent = "closed by agent"
	cancelNotice      = "Visitor left the chat before an agent responded."
)

// sessionService implements SessionService
type sessionService struct {
	repos     *repositories.Repositories
	router    Router
	responder bot.Responder
	locks     *lock.Keyed[uuid.UUID]
	notify    *notifier
	cfg       config.ChatConfig
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSessionService creates a SessionService
func NewSessionService(
	repos *repositories.Repositories,
	router Router,
	responder bot.Responder,
	publisher realtime.Publisher,
	sink eventlog.Sink,
	cfg config.ChatConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
	caches ...Invalidator,
) SessionService {
	return &sessionService{
		repos:     repos,
		router:    router,
		responder: responder,
		locks:     lock.NewKeyed[uuid.UUID](),
		notify:    newNotifier(publisher, sink, m, logger, caches...),
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// ===========================================================================
// Open / Append
// ===========================================================================

func (s *sessionService) Open(ctx context.Context, in OpenInput) (*OpenResult, error) {
	name := strings.TrimSpace(in.VisitorName)
	body := strings.TrimSpace(in.Message)
	if in.VisitorID == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "visitor id is required")
	}
	if name == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "visitor_name is required")
	}
	if err := s.validateBody(body); err != nil {
		return nil, err
	}
	if in.DepartmentID != nil {
		if _, err := s.repos.Departments.FindByID(ctx, *in.DepartmentID); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.New(apperrors.ErrValidation, "unknown department")
			}
			return nil, err
		}
	}

	now := s.now()
	session := &models.ChatSession{
		VisitorID:     in.VisitorID,
		VisitorName:   name,
		Status:        models.StatusWaiting,
		DepartmentID:  in.DepartmentID,
		LastMessageAt: now,
	}
	session.CreatedAt = now
	session.EnsureID()
	if email := strings.TrimSpace(in.VisitorEmail); email != "" {
		session.VisitorEmail = &email
	}

	result := &OpenResult{Session: session}
	var changes []change

	err := s.withSession(ctx, session.ID, func() error {
		visitorID := in.VisitorID
		msgs := []*models.Message{s.newMessage(session, models.SenderVisitor, &visitorID, body, now)}

		if sug := s.suggest(ctx, body); sug != nil {
			result.Suggestions = sug.Matches
			if s.cfg.SuggestReply && sug.Reply != "" {
				msgs = append(msgs, s.newMessage(session, models.SenderSystem, nil, sug.Reply, now))
			}
		}

		if err := s.repos.Sessions.Create(ctx, session, msgs...); err != nil {
			if in.DepartmentID != nil && apperrors.Is(err, apperrors.ErrNotFound) {
				return apperrors.New(apperrors.ErrValidation, "unknown department")
			}
			return err
		}
		s.metrics.SessionsOpened.Inc()
		for _, m := range msgs {
			s.metrics.MessagesAppended.WithLabelValues(string(m.SenderType)).Inc()
			result.Messages = append(result.Messages, *m)
		}
		changes = append(changes, change{session: *session, messages: result.Messages, kind: eventlog.TypeSessionOpened})

		if !s.cfg.AutoAssign {
			return nil
		}

		prev := session.Status
		outcome, err := s.router.Route(ctx, session, session.DepartmentID, now, s.commit(session))
		if err != nil {
			// the session exists; a routing failure leaves it waiting
			s.logger.Warn("routing on open failed",
				zap.String("session_id", session.ID.String()),
				zap.Error(err),
			)
			if fresh, ferr := s.repos.Sessions.FindByID(ctx, session.ID); ferr == nil {
				*session = *fresh
			}
			result.Outcome = OutcomeUnrouted
			return nil
		}
		result.Outcome = outcome
		if session.Status != prev {
			s.transitioned(prev, session.Status)
			changes = append(changes, change{session: *session, kind: eventlog.TypeSessionAssigned, previous: prev})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.publish(ctx, changes...)

	s.logger.Info("chat session opened",
		zap.String("session_id", session.ID.String()),
		zap.String("status", string(session.Status)),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("suggestions", len(result.Suggestions)),
	)
	return result, nil
}

func (s *sessionService) AppendMessage(ctx context.Context, sessionID uuid.UUID, in AppendInput) (*AppendResult, error) {
	if !in.Sender.IsValid() {
		return nil, apperrors.Newf(apperrors.ErrValidation, "unknown sender type %q", in.Sender)
	}
	body := strings.TrimSpace(in.Body)
	if err := s.validateBody(body); err != nil {
		return nil, err
	}

	var result *AppendResult
	var ch change

	err := s.withSession(ctx, sessionID, func() error {
		session, err := s.repos.Sessions.FindByID(ctx, sessionID)
		if err != nil {
			return err
		}
		if in.Sender == models.SenderVisitor && session.VisitorID != in.SenderID {
			return apperrors.New(apperrors.ErrForbidden, "session belongs to another visitor")
		}

		now := s.now()
		prev := session.Status
		reopened := false

		switch in.Sender {
		case models.SenderVisitor:
			if session.IsTerminal() {
				reopened = session.Transition(models.StatusWaiting, now)
			}
		case models.SenderAdmin:
			if session.Status == models.StatusWaiting {
				session.Transition(models.StatusActive, now)
			}
		}

		var senderID *string
		if in.SenderID != "" {
			id := in.SenderID
			senderID = &id
		}
		msg := s.newMessage(session, in.Sender, senderID, body, now)
		if in.Sender == models.SenderAdmin {
			session.SetFirstResponse(msg.CreatedAt)
		}

		if err := s.repos.Sessions.Update(ctx, session, msg); err != nil {
			return err
		}
		s.metrics.MessagesAppended.WithLabelValues(string(in.Sender)).Inc()

		kind := ""
		if session.Status != prev {
			kind = eventlog.TypeStatusChanged
			s.transitioned(prev, session.Status)
		}
		ch = change{session: *session, messages: []models.Message{*msg}, kind: kind, previous: prev}
		result = &AppendResult{Session: session, Message: msg, Reopened: reopened}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.publish(ctx, ch)

	if result.Reopened {
		s.logger.Info("chat session reopened",
			zap.String("session_id", sessionID.String()),
			zap.String("previous_status", string(ch.previous)),
		)
	}
	return result, nil
}

// ===========================================================================
// Status, routing, rating, cancel
// ===========================================================================

func (s *sessionService) SetStatus(ctx context.Context, sessionID uuid.UUID, target models.SessionStatus) (*models.ChatSession, error) {
	if _, ok := models.ParseSessionStatus(string(target)); !ok {
		return nil, apperrors.Newf(apperrors.ErrValidation, "unknown status %q", target)
	}

	var session *models.ChatSession
	var ch change

	err := s.withSession(ctx, sessionID, func() error {
		var err error
		if session, err = s.repos.Sessions.FindByID(ctx, sessionID); err != nil {
			return err
		}

		prev := session.Status
		if !models.CanSetStatus(prev, target) {
			return apperrors.Newf(apperrors.ErrInvalidTransition, "cannot move session from %s to %s", prev, target)
		}

		now := s.now()
		switch target {
		case models.StatusAssigned:
			outcome, err := s.router.Route(ctx, session, session.DepartmentID, now, s.commit(session))
			if err != nil {
				return err
			}
			if outcome == OutcomeUnrouted {
				return apperrors.New(apperrors.ErrValidation, "no active department to assign the session to")
			}
			ch = change{session: *session, kind: eventlog.TypeSessionAssigned, previous: prev}
			s.transitioned(prev, session.Status)
			return nil
		case models.StatusClosed:
			session.Close(reasonClosedAgent, now)
		default:
			session.Transition(target, now)
		}

		if err := s.repos.Sessions.Update(ctx, session); err != nil {
			return err
		}
		s.transitioned(prev, session.Status)
		ch = change{session: *session, kind: eventlog.TypeStatusChanged, previous: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.publish(ctx, ch)

	s.logger.Info("chat session status changed",
		zap.String("session_id", sessionID.String()),
		zap.String("from", string(ch.previous)),
		zap.String("to", string(session.Status)),
	)
	return session, nil
}

func (s *sessionService) Route(ctx context.Context, sessionID uuid.UUID) (*models.ChatSession, RouteOutcome, error) {
	var session *models.ChatSession
	var outcome RouteOutcome
	var ch *change

	err := s.withSession(ctx, sessionID, func() error {
		var err error
		if session, err = s.repos.Sessions.FindByID(ctx, sessionID); err != nil {
			return err
		}
		prev := session.Status
		if prev != models.StatusWaiting && prev != models.StatusActive {
			return apperrors.Newf(apperrors.ErrInvalidTransition, "cannot route a %s session", prev)
		}

		outcome, err = s.router.Route(ctx, session, session.DepartmentID, s.now(), s.commit(session))
		if err != nil {
			return err
		}
		if session.Status != prev {
			s.transitioned(prev, session.Status)
			ch = &change{session: *session, kind: eventlog.TypeSessionAssigned, previous: prev}
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	if ch != nil {
		s.notify.publish(ctx, *ch)
	}
	return session, outcome, nil
}

func (s *sessionService) Reassign(ctx context.Context, sessionID uuid.UUID, departmentID, agentID *uuid.UUID) (*models.ChatSession, error) {
	if departmentID == nil && agentID == nil {
		return nil, apperrors.New(apperrors.ErrValidation, "department_id or agent_id is required")
	}

	var session *models.ChatSession
	var ch change

	err := s.withSession(ctx, sessionID, func() error {
		var err error
		if session, err = s.repos.Sessions.FindByID(ctx, sessionID); err != nil {
			return err
		}
		prev := session.Status
		if session.IsTerminal() {
			return apperrors.Newf(apperrors.ErrInvalidTransition, "cannot reassign a %s session", prev)
		}

		if _, err := s.router.AssignTo(ctx, session, departmentID, agentID, s.now(), s.commit(session)); err != nil {
			return err
		}
		if session.Status != prev {
			s.transitioned(prev, session.Status)
		}
		ch = change{session: *session, kind: eventlog.TypeSessionAssigned, previous: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.publish(ctx, ch)

	s.logger.Info("chat session reassigned",
		zap.String("session_id", sessionID.String()),
		zap.Stringp("agent_id", uuidString(session.AssignedAgentID)),
	)
	return session, nil
}

func (s *sessionService) Rate(ctx context.Context, sessionID uuid.UUID, visitorID string, rating int, comment string) (*models.ChatSession, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.New(apperrors.ErrValidation, "rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentLength {
		return nil, apperrors.Newf(apperrors.ErrValidation, "comment must be at most %d characters", maxCommentLength)
	}

	var session *models.ChatSession

	err := s.withSession(ctx, sessionID, func() error {
		var err error
		if session, err = s.repos.Sessions.FindByID(ctx, sessionID); err != nil {
			return err
		}
		if visitorID != "" && session.VisitorID != visitorID {
			return apperrors.New(apperrors.ErrForbidden, "session belongs to another visitor")
		}
		if session.IsRated() {
			return apperrors.ErrAlreadyRated
		}
		if !session.IsTerminal() {
			return apperrors.ErrNotResolved
		}

		session.SetRating(rating, comment, s.now())
		return s.repos.Sessions.SaveRating(ctx, session)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.Ratings.WithLabelValues(strconv.Itoa(rating)).Inc()
	s.notify.publish(ctx, change{session: *session, kind: eventlog.TypeSessionRated, previous: session.Status})

	s.logger.Info("chat session rated",
		zap.String("session_id", sessionID.String()),
		zap.Int("rating", rating),
	)
	return session, nil
}

func (s *sessionService) Cancel(ctx context.Context, sessionID uuid.UUID, visitorID string) (*models.ChatSession, error) {
	var session *models.ChatSession
	var ch change

	err := s.withSession(ctx, sessionID, func() error {
		var err error
		if session, err = s.repos.Sessions.FindByID(ctx, sessionID); err != nil {
			return err
		}
		if visitorID != "" && session.VisitorID != visitorID {
			return apperrors.New(apperrors.ErrForbidden, "session belongs to another visitor")
		}
		if session.IsTerminal() || session.FirstResponseAt != nil {
			return apperrors.Newf(apperrors.ErrInvalidTransition, "a %s session that an agent answered cannot be cancelled", session.Status)
		}

		now := s.now()
		prev := session.Status
		notice := s.newMessage(session, models.SenderSystem, nil, cancelNotice, now)
		session.Close(reasonCancelled, now)

		if err := s.repos.Sessions.Update(ctx, session, notice); err != nil {
			return err
		}
		s.metrics.MessagesAppended.WithLabelValues(string(models.SenderSystem)).Inc()
		s.transitioned(prev, session.Status)
		ch = change{session: *session, messages: []models.Message{*notice}, kind: eventlog.TypeStatusChanged, previous: prev}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.publish(ctx, ch)

	s.logger.Info("chat session cancelled", zap.String("session_id", sessionID.String()))
	return session, nil
}

// ===========================================================================
// Reads
// ===========================================================================

func (s *sessionService) Get(ctx context.Context, sessionID uuid.UUID, visitorID string) (*models.ChatSession, error) {
	session, err := s.repos.Sessions.FindByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if visitorID != "" && session.VisitorID != visitorID {
		return nil, apperrors.New(apperrors.ErrForbidden, "session belongs to another visitor")
	}
	return session, nil
}

func (s *sessionService) Transcript(ctx context.Context, sessionID uuid.UUID, reader models.SenderType, visitorID string) (*Transcript, error) {
	session, err := s.Get(ctx, sessionID, visitorID)
	if err != nil {
		return nil, err
	}

	// each side reads what the other side wrote
	senders := []models.SenderType{models.SenderVisitor}
	if reader == models.SenderVisitor {
		senders = []models.SenderType{models.SenderAdmin, models.SenderSystem}
	}
	marked, err := s.repos.Messages.MarkRead(ctx, sessionID, senders, s.now())
	if err != nil {
		return nil, err
	}

	messages, err := s.repos.Messages.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &Transcript{Session: session, Messages: messages, MarkedRead: marked}, nil
}

func (s *sessionService) List(ctx context.Context, filter repositories.SessionFilter, opts repositories.FindOptions) ([]models.ChatSession, int64, error) {
	return s.repos.Sessions.List(ctx, filter, opts)
}

// ===========================================================================
// Helpers
// ===========================================================================

// withSession runs fn while holding the session lock
func (s *sessionService) withSession(ctx context.Context, sessionID uuid.UUID, fn func() error) error {
	unlock, err := s.acquire(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// acquire waits up to LockTimeout, retries once after LockRetryBackoff,
// then gives up with ErrBusy
func (s *sessionService) acquire(ctx context.Context, sessionID uuid.UUID) (func(), error) {
	start := time.Now()
	for attempt := 1; attempt <= maxLockAttempts; attempt++ {
		lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
		unlock, err := s.locks.Lock(lockCtx, sessionID)
		cancel()
		if err == nil {
			metrics.ObserveSince(s.metrics.LockWait, start)
			return unlock, nil
		}
		if ctx.Err() != nil {
			return nil, apperrors.New(apperrors.ErrTimeout, "request ended while waiting for the session")
		}
		if attempt == maxLockAttempts {
			break
		}

		s.logger.Debug("session lock wait timed out, retrying",
			zap.String("session_id", sessionID.String()),
		)
		select {
		case <-time.After(s.cfg.LockRetryBackoff):
		case <-ctx.Done():
			return nil, apperrors.New(apperrors.ErrTimeout, "request ended while waiting for the session")
		}
	}

	s.metrics.LockBusy.Inc()
	s.logger.Warn("session busy", zap.String("session_id", sessionID.String()))
	return nil, apperrors.New(apperrors.ErrBusy, "session is busy, try again")
}

// commit persists a session changed by the router
func (s *sessionService) commit(session *models.ChatSession) CommitFunc {
	return func(ctx context.Context) error {
		return s.repos.Sessions.UpdateRouting(ctx, session)
	}
}

// newMessage builds the next message of the session and advances
// LastMessageAt and the sequence
func (s *sessionService) newMessage(session *models.ChatSession, sender models.SenderType, senderID *string, body string, now time.Time) *models.Message {
	at := session.Touch(now)
	msg := &models.Message{
		SessionID:  session.ID,
		Seq:        session.MessageCount,
		SenderType: sender,
		SenderID:   senderID,
		Body:       body,
	}
	msg.CreatedAt = at
	msg.EnsureID()
	return msg
}

func (s *sessionService) suggest(ctx context.Context, body string) *bot.Suggestion {
	if s.responder == nil || s.cfg.SuggestLimit <= 0 {
		return nil
	}
	sug, err := s.responder.Suggest(ctx, body, s.cfg.SuggestLimit)
	if err != nil {
		s.logger.Warn("knowledge suggestion failed", zap.Error(err))
		return nil
	}
	return sug
}

func (s *sessionService) validateBody(body string) error {
	if body == "" {
		return apperrors.New(apperrors.ErrValidation, "message is required")
	}
	if s.cfg.MaxMessageLength > 0 && len(body) > s.cfg.MaxMessageLength {
		return apperrors.Newf(apperrors.ErrValidation, "message must be at most %d bytes", s.cfg.MaxMessageLength)
	}
	return nil
}

func (s *sessionService) transitioned(from, to models.SessionStatus) {
	if from != to {
		s.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	}
}

func uuidString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	str := id.String()
	return &str
}
