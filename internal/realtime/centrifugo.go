package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Centrifugo Client
// Publishes chat events to the session channel (visitor widget) and to the
// shared admin channel (admin console)
// ===========================================================================

// AdminChannel channel every admin console subscribes to
const AdminChannel = "chat:admin"

// SessionChannel channel of a single chat session
func SessionChannel(sessionID uuid.UUID) string {
	return fmt.Sprintf("chat:session_%s", sessionID.String())
}

// Publisher interface for realtime events
type Publisher interface {
	// PublishNewMessage publishes a message appended to a session
	PublishNewMessage(ctx context.Context, sessionID uuid.UUID, event *MessageEvent) error

	// PublishSessionUpdate publishes a session state change
	PublishSessionUpdate(ctx context.Context, sessionID uuid.UUID, event *SessionEvent) error
}

// MessageEvent a message was appended
type MessageEvent struct {
	Type       string    `json:"type"`
	MessageID  uuid.UUID `json:"message_id"`
	SessionID  uuid.UUID `json:"session_id"`
	Seq        int64     `json:"seq"`
	SenderType string    `json:"sender_type"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`

	// Status session status after the append
	Status string `json:"status"`
}

// SessionEvent session status, routing or rating changed
type SessionEvent struct {
	Type            string     `json:"type"`
	SessionID       uuid.UUID  `json:"session_id"`
	Status          string     `json:"status"`
	PreviousStatus  string     `json:"previous_status,omitempty"`
	DepartmentID    *uuid.UUID `json:"department_id,omitempty"`
	AssignedAgentID *uuid.UUID `json:"assigned_agent_id,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	OccurredAt      time.Time  `json:"occurred_at"`
}

// CentrifugoClient implements Publisher
type CentrifugoClient struct {
	url    string
	apiKey string
	client *http.Client
	log    *zap.Logger
}

// NewCentrifugoClient creates a new Centrifugo client
func NewCentrifugoClient(url, apiKey string, log *zap.Logger) *CentrifugoClient {
	return &CentrifugoClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 5 * time.Second},
		log:    log,
	}
}

type broadcastRequest struct {
	Method string          `json:"method"`
	Params broadcastParams `json:"params"`
}

type broadcastParams struct {
	Channels []string    `json:"channels"`
	Data     interface{} `json:"data"`
}

// broadcast sends the same payload to several channels in one API call
func (c *CentrifugoClient) broadcast(ctx context.Context, channels []string, data interface{}) error {
	req := broadcastRequest{
		Method: "broadcast",
		Params: broadcastParams{
			Channels: channels,
			Data:     data,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/api", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "apikey "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.log.Warn("centrifugo broadcast failed", zap.Error(err))
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("centrifugo broadcast bad status",
			zap.Int("status", resp.StatusCode),
			zap.Strings("channels", channels),
		)
		return fmt.Errorf("bad status: %d", resp.StatusCode)
	}

	c.log.Debug("published to centrifugo", zap.Strings("channels", channels))
	return nil
}

// PublishNewMessage publishes to the session and admin channels
func (c *CentrifugoClient) PublishNewMessage(ctx context.Context, sessionID uuid.UUID, event *MessageEvent) error {
	event.Type = "new_message"
	return c.broadcast(ctx, []string{SessionChannel(sessionID), AdminChannel}, event)
}

// PublishSessionUpdate publishes to the session and admin channels
func (c *CentrifugoClient) PublishSessionUpdate(ctx context.Context, sessionID uuid.UUID, event *SessionEvent) error {
	if event.Type == "" {
		event.Type = "session_update"
	}
	return c.broadcast(ctx, []string{SessionChannel(sessionID), AdminChannel}, event)
}

// ===========================================================================
// Noop Publisher (for when Centrifugo is not configured)
// ===========================================================================

// NoopPublisher does nothing (used when realtime is disabled)
type NoopPublisher struct{}

func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{}
}

func (n *NoopPublisher) PublishNewMessage(ctx context.Context, sessionID uuid.UUID, event *MessageEvent) error {
	return nil
}

func (n *NoopPublisher) PublishSessionUpdate(ctx context.Context, sessionID uuid.UUID, event *SessionEvent) error {
	return nil
}
