package eventlog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeKeysBySession(t *testing.T) {
	sessionID := uuid.New()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	events := []Event{
		NewEvent(TypeSessionOpened, sessionID, at, map[string]string{"visitor": "Asha"}),
		NewEvent(TypeMessageAppended, sessionID, at.Add(time.Second), nil),
	}

	msgs, err := encode(events)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	for i, m := range msgs {
		assert.Equal(t, sessionID.String(), string(m.Key))
		assert.Equal(t, events[i].Type, string(m.Headers[0].Value))
		assert.Equal(t, events[i].OccurredAt, m.Time)
	}

	var decoded Event
	require.NoError(t, json.Unmarshal(msgs[0].Value, &decoded))
	assert.Equal(t, TypeSessionOpened, decoded.Type)
	assert.Equal(t, sessionID, decoded.SessionID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestEncodeRejectsUnmarshalableData(t *testing.T) {
	_, err := encode([]Event{NewEvent(TypeSessionRated, uuid.New(), time.Now(), make(chan int))})
	assert.ErrorContains(t, err, "marshal event session.rated")
}
