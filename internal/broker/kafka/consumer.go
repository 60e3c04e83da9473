package kafka

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// PermanentError marks a message that will never succeed. It is logged and
// committed instead of stopping the consumer.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

const (
	defaultRetryInitial = 500 * time.Millisecond
	defaultRetryMax     = 30 * time.Second
)

type Consumer struct {
	r   messageReader
	log *zap.SugaredLogger

	retryInitial time.Duration
	retryMax     time.Duration
}

func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:           brokers,
		GroupID:           groupID,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
	}
	if groupID != "" {
		cfg.GroupTopics = []string{topic}
	} else {
		cfg.Topic = topic
	}
	return &Consumer{
		r:            kafka.NewReader(cfg),
		log:          logger.OrNop(nil),
		retryInitial: defaultRetryInitial,
		retryMax:     defaultRetryMax,
	}
}

func newConsumerWithReader(r messageReader) *Consumer {
	return &Consumer{r: r, log: logger.OrNop(nil), retryInitial: defaultRetryInitial, retryMax: defaultRetryMax}
}

// WithRetry sets the exponential backoff used while a message keeps failing
// with a transient error.
func (c *Consumer) WithRetry(initial, maxWait time.Duration) *Consumer {
	if initial > 0 {
		c.retryInitial = initial
	}
	if maxWait >= c.retryInitial {
		c.retryMax = maxWait
	}
	return c
}

func (c *Consumer) WithLogger(log *zap.SugaredLogger) *Consumer {
	c.log = logger.OrNop(log)
	return c
}

func (c *Consumer) Close() error {
	return c.r.Close()
}

// Consume hands every message to handler and commits it on success. A
// permanent handler error is committed too. Any other handler error is
// retried on the same message with exponential backoff until it succeeds or
// ctx is done. Fetch and commit failures stop the loop.
func (c *Consumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for {
		msg, err := c.r.FetchMessage(ctx)
		if err != nil {
			return errors.Wrap(err, "fetch message")
		}
		if err := c.handle(ctx, msg, handler); err != nil {
			if !IsPermanent(err) {
				return err
			}
			c.log.Warnw("kafka_message_dropped",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		}
		if err := c.r.CommitMessages(ctx, msg); err != nil {
			return errors.Wrap(err, "commit message")
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message, handler func(key, value []byte) error) error {
	op := func() error {
		err := handler(msg.Key, msg.Value)
		if err != nil && IsPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		c.log.Warnw("kafka_message_retry",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "wait", wait, "err", err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(c.retryPolicy(), ctx), notify)
}

func (c *Consumer) retryPolicy() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = c.retryMax
	b.MaxElapsedTime = 0
	return b
}
