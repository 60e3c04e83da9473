package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	paymentsapi "github.com/BearBump/PayTrack/internal/api/payments_api"
	"github.com/BearBump/PayTrack/internal/broker/kafka"
	"github.com/BearBump/PayTrack/internal/broker/messages"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/models"
	"github.com/BearBump/PayTrack/internal/services/ingestion"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type payAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	restartInitial time.Duration
	restartMax     time.Duration

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

type smsHandler interface {
	HandleSMS(ctx context.Context, msg messages.SMSReceived) (ingestion.Result, error)
}

// runPayAPI serves HTTP and, when a consumer is given, ingests SMS relay
// messages until ctx is done or the HTTP server fails. A consumer that stops
// is restarted with backoff.
func runPayAPI(ctx context.Context, opts payAPIOpts, api *paymentsapi.PaymentsAPI, metricsHandler http.Handler,
	consumer kafkaConsumer, sms smsHandler, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, lis, newRouter(api, metricsHandler, opts.swaggerPath), log)
	}()

	consumerErr := make(chan error, 1)
	if consumer != nil {
		go func() {
			consumerErr <- runConsumer(ctx, opts, consumer, smsMessageHandler(ctx, sms, log), log)
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	case err := <-consumerErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("sms consumer stopped: %w", err)
	}
}

// runConsumer re-runs Consume until ctx is done, waiting with exponential
// backoff between runs.
func runConsumer(ctx context.Context, opts payAPIOpts, consumer kafkaConsumer,
	handler func(key, value []byte) error, log *zap.SugaredLogger) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second
	if opts.restartInitial > 0 {
		b.InitialInterval = opts.restartInitial
	}
	if opts.restartMax > 0 {
		b.MaxInterval = opts.restartMax
	}
	b.MaxElapsedTime = 0

	return backoff.RetryNotify(func() error {
		log.Infow("kafka_consumer_started", "topic", opts.topic, "group", opts.consumerGroup)
		started := time.Now()
		err := consumer.Consume(ctx, handler)
		if time.Since(started) >= b.MaxInterval {
			b.Reset()
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if err == nil {
			err = fmt.Errorf("consumer returned")
		}
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		log.Warnw("kafka_consumer_restart", "topic", opts.topic, "wait", wait, "err", err)
	})
}

// smsMessageHandler maps ingestion outcomes onto consumer commit semantics:
// undecodable or invalid messages are permanent, store failures are retried.
func smsMessageHandler(ctx context.Context, sms smsHandler, log *zap.SugaredLogger) func(key, value []byte) error {
	log = logger.OrNop(log)
	return func(_ []byte, value []byte) error {
		var m messages.SMSReceived
		if err := json.Unmarshal(value, &m); err != nil {
			return kafka.Permanent(err)
		}
		res, err := sms.HandleSMS(ctx, m)
		if err != nil {
			if models.IsValidationError(err) {
				return kafka.Permanent(err)
			}
			return err
		}
		log.Debugw("sms_ingested", "receipt_id", res.Receipt.ID, "is_new", res.IsNew, "verdicts", len(res.Verdicts))
		return nil
	}
}

func newRouter(api *paymentsapi.PaymentsAPI, metricsHandler http.Handler, swaggerPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, swaggerPath)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger.json"),
	))

	api.Mount(r)
	return r
}

func runHTTPServer(ctx context.Context, lis net.Listener, h http.Handler, log *zap.SugaredLogger) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Infow("http_listening", "addr", lis.Addr().String())
	err := srv.Serve(lis)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
