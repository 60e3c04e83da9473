package main

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/config"
	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/BearBump/PayTrack/internal/broker/kafka"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/kafkasink"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/metrics"
	"github.com/BearBump/PayTrack/internal/services/sweeper"
	"go.uber.org/zap"
)

type workerFactories struct {
	newStorage   func(ctx context.Context, cfg *config.Config) (st bootstrap.Store, closeFn func(), err error)
	newPublisher func(cfg *config.Config) (pub kafkasink.Publisher, closeFn func())
}

func defaultWorkerFactories(log *zap.SugaredLogger) workerFactories {
	return workerFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (bootstrap.Store, func(), error) {
			return bootstrap.OpenStore(ctx, cfg, 60*time.Second, log)
		},
		newPublisher: func(cfg *config.Config) (kafkasink.Publisher, func()) {
			brokers := cfg.Kafka.Brokers()
			if brokers == nil {
				return nil, nil
			}
			p := kafka.NewProducer(brokers)
			return p, func() { _ = p.Close() }
		},
	}
}

type workerOpts struct {
	swaggerPath string
	onListen    func(httpAddr string)
	// onReady receives the sweeper once it is wired.
	onReady func(sw *sweeper.Sweeper)
}

// RunPayWorker runs the periodic sweep and the worker HTTP server until ctx is
// done.
func RunPayWorker(ctx context.Context, cfg *config.Config, f workerFactories, opts workerOpts, log *zap.SugaredLogger) error {
	log = logger.OrNop(log)
	s := bootstrap.Defaults(cfg)
	m := metrics.New("paytrack_worker")

	st, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	pub, closePub := f.newPublisher(cfg)
	if closePub != nil {
		defer closePub()
	}

	eng := bootstrap.NewEngine(st, bootstrap.NewFulfiller(cfg, s, pub, log), s, m, log)
	defer eng.Wait()

	sw := bootstrap.NewSweeper(st, eng, s, m, log)
	if opts.onReady != nil {
		opts.onReady(sw)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:    s.WorkerHTTPAddr,
			swaggerPath: opts.swaggerPath,
			onListen:    opts.onListen,
			sweeper:     sw,
			settings:    s,
			metrics:     m,
		})
	}()

	runErr := make(chan error, 1)
	go func() { runErr <- sw.Run(ctx) }()

	select {
	case err := <-runErr:
		return err
	case err := <-httpErr:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Errorw("worker_http_stopped", "err", err)
		cancel()
		<-runErr
		return err
	}
}
