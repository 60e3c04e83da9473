package kafkasink

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/PayTrack/internal/broker/messages"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	topic, key string
	v          any
}

func (p *fakePublisher) PublishJSON(ctx context.Context, topic, key string, v any) error {
	p.topic, p.key, p.v = topic, key, v
	return nil
}

func TestSink_Notify(t *testing.T) {
	pub := &fakePublisher{}
	s := New(pub, "session.verified")
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return at }

	require.NoError(t, s.Notify(context.Background(), "s1", "r1", map[string]any{"email": "a@b.c"}))
	require.Equal(t, "session.verified", pub.topic)
	require.Equal(t, "s1", pub.key)
	require.Equal(t, messages.SessionVerified{
		SessionID:  "s1",
		ReceiptID:  "r1",
		Metadata:   map[string]any{"email": "a@b.c"},
		VerifiedAt: at,
	}, pub.v)
}
