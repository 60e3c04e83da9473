// Package bootstrap turns a loaded config into the shared pieces both
// processes run on: the store, the receiver registry, the SMS parser and the
// match engine with its fulfillment sinks.
package bootstrap

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/config"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/kafkasink"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/webhook"
	"github.com/BearBump/PayTrack/internal/integrations/receivers"
	"github.com/BearBump/PayTrack/internal/integrations/smsparser"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/services/ingestion"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/BearBump/PayTrack/internal/services/sessions"
	"github.com/BearBump/PayTrack/internal/services/sweeper"
	"github.com/BearBump/PayTrack/internal/storage/memstore"
	"github.com/BearBump/PayTrack/internal/storage/pgpayments"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Store is everything the services need from persistence.
type Store interface {
	matching.Repository
	sessions.Repository
	ingestion.Repository
	sweeper.Repository
}

type Settings struct {
	HTTPAddr       string
	WorkerHTTPAddr string
	ConsumerGroup  string
	SMSTopic       string
	VerifiedTopic  string

	SessionValidity    time.Duration
	SessionCacheTTL    time.Duration
	SubmitLimitPerMin  int
	Window             matching.Window
	FulfillmentTimeout time.Duration

	SweepInterval    time.Duration
	SweepBatchSize   int
	SweepConcurrency int
}

// Defaults fills every unset setting.
func Defaults(cfg *config.Config) Settings {
	pt := cfg.PayTrack
	s := Settings{
		HTTPAddr:           or(pt.HTTPAddr, ":8080"),
		WorkerHTTPAddr:     or(pt.WorkerHTTPAddr, ":8082"),
		ConsumerGroup:      or(pt.KafkaConsumerGroup, "pay-api"),
		SMSTopic:           or(cfg.Kafka.SMSReceivedTopicName, "sms.received"),
		VerifiedTopic:      or(cfg.Kafka.SessionVerifiedTopicName, "session.verified"),
		SessionValidity:    seconds(pt.SessionValiditySeconds, sessions.DefaultValidity),
		SessionCacheTTL:    seconds(pt.SessionCacheTTLSeconds, 10*time.Minute),
		SubmitLimitPerMin:  pt.SubmitRateLimitPerMinute,
		Window:             matching.Window{Lead: seconds(pt.ReceiptLeadSeconds, matching.DefaultLead), Grace: seconds(pt.ReceiptGraceSeconds, matching.DefaultGrace)},
		FulfillmentTimeout: seconds(pt.FulfillmentTimeoutSeconds, 10*time.Second),
		SweepInterval:      seconds(pt.WorkerSweepIntervalSeconds, 5*time.Minute),
		SweepBatchSize:     pt.WorkerBatchSize,
		SweepConcurrency:   pt.WorkerConcurrency,
	}
	if s.SubmitLimitPerMin <= 0 {
		s.SubmitLimitPerMin = 10
	}
	if s.SweepBatchSize <= 0 {
		s.SweepBatchSize = 100
	}
	if s.SweepConcurrency <= 0 {
		s.SweepConcurrency = 4
	}
	return s
}

// OpenStore connects to Postgres when a database host is configured, retrying
// for up to wait, and falls back to the in-memory store otherwise.
func OpenStore(ctx context.Context, cfg *config.Config, wait time.Duration, log *zap.SugaredLogger) (Store, func(), error) {
	log = logger.OrNop(log)
	connString := cfg.Database.ConnString()
	if connString == "" {
		log.Warnw("store_in_memory", "reason", "database.host is not set")
		st := memstore.New()
		return st, st.Close, nil
	}

	deadline := time.Now().Add(wait)
	var lastErr error
	for {
		st, err := pgpayments.New(connString)
		if err == nil {
			log.Infow("store_postgres", "host", cfg.Database.Host, "db", cfg.Database.DBName)
			return st, st.Close, nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			break
		}
		log.Warnw("postgres_not_ready", "err", err)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
}

func NewRegistry(cfg *config.Config) *receivers.Registry {
	return receivers.New(cfg.Receivers.Active, cfg.Receivers.Retired)
}

// NewParser reads SMS wall-clock times in the configured offset; zero keeps
// the parser default.
func NewParser(cfg *config.Config) *smsparser.Parser {
	off := cfg.PayTrack.SMSTimezoneOffsetMinutes
	if off == 0 {
		return smsparser.New(nil)
	}
	return smsparser.New(time.FixedZone("sms", off*60))
}

// NewFulfiller fans out to the Kafka topic when a publisher is given and to
// the webhook when a URL is configured. With neither it only logs.
func NewFulfiller(cfg *config.Config, s Settings, pub kafkasink.Publisher, log *zap.SugaredLogger) fulfillment.Sink {
	var sinks fulfillment.Multi
	if pub != nil {
		sinks = append(sinks, kafkasink.New(pub, s.VerifiedTopic))
	}
	if cfg.PayTrack.FulfillmentWebhookURL != "" {
		sinks = append(sinks, webhook.New(cfg.PayTrack.FulfillmentWebhookURL))
	}
	if len(sinks) == 0 {
		return fulfillment.NewLogSink(log)
	}
	return sinks
}

func NewEngine(store Store, sink fulfillment.Sink, s Settings, m *metrics.Metrics, log *zap.SugaredLogger) *matching.Engine {
	return matching.New(store, sink, log).
		WithWindow(s.Window).
		WithFulfillmentTimeout(s.FulfillmentTimeout).
		WithMetrics(m)
}

func NewSweeper(store Store, eng *matching.Engine, s Settings, m *metrics.Metrics, log *zap.SugaredLogger) *sweeper.Sweeper {
	return sweeper.New(store, eng, log).
		WithSettings(s.SweepInterval, s.SweepBatchSize, s.SweepConcurrency).
		WithMetrics(m)
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func seconds(n int, def time.Duration) time.Duration {
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
