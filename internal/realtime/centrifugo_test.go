package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPublishNewMessageBroadcastsToSessionAndAdmin(t *testing.T) {
	var got broadcastRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewCentrifugoClient(srv.URL, "key", zap.NewNop())
	sessionID := uuid.New()

	err := client.PublishNewMessage(context.Background(), sessionID, &MessageEvent{SessionID: sessionID, Body: "hi"})
	require.NoError(t, err)

	assert.Equal(t, "apikey key", auth)
	assert.Equal(t, "broadcast", got.Method)
	assert.Equal(t, []string{SessionChannel(sessionID), AdminChannel}, got.Params.Channels)
	data := got.Params.Data.(map[string]interface{})
	assert.Equal(t, "new_message", data["type"])
}

func TestPublishReportsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewCentrifugoClient(srv.URL, "bad", zap.NewNop())
	err := client.PublishSessionUpdate(context.Background(), uuid.New(), &SessionEvent{Status: "closed"})
	assert.ErrorContains(t, err, "bad status: 401")
}
