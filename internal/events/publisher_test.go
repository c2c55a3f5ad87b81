package events

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisherDelivers(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pub, ch, err := NewPublisher(Config{Logger: logger})
	require.NoError(t, err)
	require.NotNil(t, ch)
	defer pub.Close()

	msgs, err := ch.Subscribe(context.Background(), DefaultTopic)
	require.NoError(t, err)

	ev := New(EventScoreSubmitted, ScoreSubmitted{ScoreID: 7, UserID: "u1", Score: 2, Total: 3})
	require.NoError(t, pub.Publish(context.Background(), ev))

	select {
	case msg := <-msgs:
		msg.Ack()
		assert.Equal(t, ev.ID, msg.UUID)
		assert.Equal(t, string(EventScoreSubmitted), msg.Metadata.Get("event_type"))

		var got struct {
			Type EventType      `json:"type"`
			Data ScoreSubmitted `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, EventScoreSubmitted, got.Type)
		assert.Equal(t, int64(7), got.Data.ScoreID)
		assert.Equal(t, 2, got.Data.Score)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestNewEnvelope(t *testing.T) {
	a := New(EventAttemptStarted, AttemptStarted{AttemptID: "x"})
	b := New(EventAttemptStarted, AttemptStarted{AttemptID: "x"})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "able", a.Source)
	assert.False(t, a.Timestamp.IsZero())
}

func TestMockPublisher(t *testing.T) {
	m := NewMockPublisher()
	require.NoError(t, m.Publish(context.Background(), New(EventScoreSubmitted, nil)))
	assert.Len(t, m.Events(), 1)
}
