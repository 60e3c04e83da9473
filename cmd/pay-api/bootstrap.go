package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/PayTrack/config"
	paymentsapi "github.com/BearBump/PayTrack/internal/api/payments_api"
	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/BearBump/PayTrack/internal/broker/kafka"
	"github.com/BearBump/PayTrack/internal/cache/rediscache"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/kafkasink"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/services/ingestion"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/BearBump/PayTrack/internal/services/sessions"
	"go.uber.org/zap"
)

type payAPIApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   payAPIOpts
	log    *zap.SugaredLogger

	api      *paymentsapi.PaymentsAPI
	metrics  *metrics.Metrics
	ingest   *ingestion.Service
	engine   *matching.Engine
	consumer *kafka.Consumer
	producer *kafka.Producer
	redis    *rediscache.RedisCache
	closeDB  func()
}

func mustBootstrapPayAPI() *payAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}
	log, err := logger.New(cfg.PayTrack.LogLevel)
	if err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	app, err := buildPayAPI(ctx, cfg, swaggerPath, log)
	if err != nil {
		cancel()
		panic(err)
	}
	app.ctx, app.cancel = ctx, cancel
	return app
}

// buildPayAPI wires the process from config. Kafka and Redis are optional:
// without them SMS arrive only over HTTP and sessions are neither cached nor
// rate limited.
func buildPayAPI(ctx context.Context, cfg *config.Config, swaggerPath string, log *zap.SugaredLogger) (*payAPIApp, error) {
	log = logger.OrNop(log)
	s := bootstrap.Defaults(cfg)
	m := metrics.New("paytrack")

	st, closeDB, err := bootstrap.OpenStore(ctx, cfg, 60*time.Second, log)
	if err != nil {
		return nil, err
	}
	app := &payAPIApp{
		opts: payAPIOpts{
			httpAddr:      s.HTTPAddr,
			swaggerPath:   swaggerPath,
			topic:         s.SMSTopic,
			consumerGroup: s.ConsumerGroup,
		},
		log:     log,
		metrics: m,
		closeDB: closeDB,
	}

	var pub kafkasink.Publisher
	if brokers := cfg.Kafka.Brokers(); brokers != nil {
		app.producer = kafka.NewProducer(brokers)
		app.consumer = kafka.NewConsumer(brokers, s.SMSTopic, s.ConsumerGroup).WithLogger(log)
		pub = app.producer
	}

	registry := bootstrap.NewRegistry(cfg)
	app.engine = bootstrap.NewEngine(st, bootstrap.NewFulfiller(cfg, s, pub, log), s, m, log)

	sessSvc := sessions.New(st, app.engine, registry, log).WithValidity(s.SessionValidity)
	if addr := cfg.Redis.Addr(); addr != "" {
		app.redis = rediscache.New(addr)
		sessSvc.WithCache(app.redis, s.SessionCacheTTL).
			WithLimiter(app.redis.RateLimiter(), s.SubmitLimitPerMin)
	} else {
		log.Warnw("redis_disabled", "reason", "redis.host is not set")
	}

	app.ingest = ingestion.New(st, registry, app.engine, bootstrap.NewParser(cfg), log).WithMetrics(m)
	sw := bootstrap.NewSweeper(st, app.engine, s, m, log)
	app.api = paymentsapi.New(sessSvc, app.ingest, sw, log)
	return app, nil
}

func (a *payAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.engine != nil {
		a.engine.Wait()
	}
	if a.producer != nil {
		_ = a.producer.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
	_ = a.log.Sync()
}

func (a *payAPIApp) Run() error {
	var consumer kafkaConsumer
	if a.consumer != nil {
		consumer = a.consumer
	}
	return runPayAPI(a.ctx, a.opts, a.api, a.metricsHandler(), consumer, a.ingest, a.log)
}

func (a *payAPIApp) metricsHandler() http.Handler {
	return a.metrics.Handler()
}
