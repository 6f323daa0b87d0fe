package services

import (
	"context"
	"time"

	"chatdesk/internal/eventlog"
	"chatdesk/internal/metrics"
	"chatdesk/internal/models"
	"chatdesk/internal/realtime"

	"go.uber.org/zap"
)

// ===========================================================================
// Event publication
// Committed changes go to the realtime publisher and the durable event sink
// Publication happens after the session lock is released; failures are
// logged and counted, never returned to the caller
// ===========================================================================

const publishTimeout = 3 * time.Second

// change one committed session change
type change struct {
	// session state after the commit
	session models.ChatSession

	// messages appended by the commit
	messages []models.Message

	// kind eventlog type of the session level event, "" for message only
	kind string

	// previous status before the commit
	previous models.SessionStatus
}

// Invalidator drops data derived from sessions, called after every
// committed session change
type Invalidator interface {
	Invalidate()
}

type notifier struct {
	publisher realtime.Publisher
	sink      eventlog.Sink
	caches    []Invalidator
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

func newNotifier(publisher realtime.Publisher, sink eventlog.Sink, m *metrics.Metrics, logger *zap.Logger, caches ...Invalidator) *notifier {
	if publisher == nil {
		publisher = realtime.NewNoopPublisher()
	}
	if sink == nil {
		sink = eventlog.NewNoopSink()
	}
	return &notifier{publisher: publisher, sink: sink, caches: caches, metrics: m, logger: logger}
}

func messageEvent(s *models.ChatSession, m *models.Message) *realtime.MessageEvent {
	return &realtime.MessageEvent{
		MessageID:  m.ID,
		SessionID:  s.ID,
		Seq:        m.Seq,
		SenderType: string(m.SenderType),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		Status:     string(s.Status),
	}
}

func sessionEvent(kind string, s *models.ChatSession, previous models.SessionStatus, at time.Time) *realtime.SessionEvent {
	ev := &realtime.SessionEvent{
		Type:            kind,
		SessionID:       s.ID,
		Status:          string(s.Status),
		DepartmentID:    s.DepartmentID,
		AssignedAgentID: s.AssignedAgentID,
		Rating:          s.Rating,
		OccurredAt:      at,
	}
	if previous != "" && previous != s.Status {
		ev.PreviousStatus = string(previous)
	}
	return ev
}

// publish sends every change; ctx cancellation of the request does not
// abort publication of an already committed change
func (n *notifier) publish(ctx context.Context, changes ...change) {
	for _, c := range changes {
		if c.kind != "" || len(c.messages) > 0 {
			n.invalidate()
			break
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	var events []eventlog.Event
	for i := range changes {
		c := &changes[i]
		for j := range c.messages {
			m := &c.messages[j]
			ev := messageEvent(&c.session, m)
			events = append(events, eventlog.NewEvent(eventlog.TypeMessageAppended, c.session.ID, m.CreatedAt, ev))
			if err := n.publisher.PublishNewMessage(ctx, c.session.ID, ev); err != nil {
				n.failed("realtime", c.session.ID.String(), err)
			}
		}

		if c.kind == "" {
			continue
		}
		at := c.session.UpdatedAt
		ev := sessionEvent(c.kind, &c.session, c.previous, at)
		events = append(events, eventlog.NewEvent(c.kind, c.session.ID, at, ev))
		if err := n.publisher.PublishSessionUpdate(ctx, c.session.ID, ev); err != nil {
			n.failed("realtime", c.session.ID.String(), err)
		}
	}

	if len(events) == 0 {
		return
	}
	if err := n.sink.Emit(ctx, events...); err != nil {
		n.failed("eventlog", events[0].SessionID.String(), err)
	}
}

func (n *notifier) invalidate() {
	for _, c := range n.caches {
		c.Invalidate()
	}
}

func (n *notifier) failed(target, sessionID string, err error) {
	n.metrics.PublishFailures.WithLabelValues(target).Inc()
	n.logger.Warn("event publication failed",
		zap.String("target", target),
		zap.String("session_id", sessionID),
		zap.Error(err),
	)
}
