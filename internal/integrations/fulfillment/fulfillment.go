// Package fulfillment delivers "session verified" notifications to the
// systems that hand out the purchased goods.
package fulfillment

import (
	"context"

	"github.com/BearBump/PayTrack/internal/logger"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type Sink interface {
	Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error
}

// Multi notifies every sink and joins their errors.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error {
	var errs error
	for _, s := range m {
		errs = multierr.Append(errs, s.Notify(ctx, sessionID, receiptID, metadata))
	}
	return errs
}

// LogSink only records the notification. It is the fallback when no real
// sink is configured.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: logger.OrNop(log)}
}

func (s *LogSink) Notify(ctx context.Context, sessionID, receiptID string, metadata map[string]any) error {
	s.log.Infow("fulfillment_notify", "session_id", sessionID, "receipt_id", receiptID, "metadata", metadata)
	return nil
}
