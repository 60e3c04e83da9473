package kafkasink

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/internal/broker/messages"
)

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// Sink publishes messages.SessionVerified keyed by session id.
type Sink struct {
	pub   Publisher
	topic string
	now   func() time.Time
}

func New(pub Publisher, topic string) *Sink {
	return &Sink{pub: pub, topic: topic, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Sink) Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error {
	return s.pub.PublishJSON(ctx, s.topic, sessionID, messages.SessionVerified{
		SessionID:  sessionID,
		ReceiptID:  receiptID,
		Metadata:   metadata,
		VerifiedAt: s.now(),
	})
}
