package main

import (
	"context"
	"time"

	"github.com/BearBump/PayTrack/internal/bootstrap"
	"github.com/BearBump/PayTrack/internal/broker/kafka"
	"github.com/BearBump/PayTrack/internal/integrations/fulfillment/kafkasink"
	"github.com/BearBump/PayTrack/internal/logger"
	"github.com/BearBump/PayTrack/internal/services/matching"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ctlEnv is the engine stack a one-shot command runs on.
type ctlEnv struct {
	settings bootstrap.Settings
	store    bootstrap.Store
	engine   *matching.Engine
	log      *zap.SugaredLogger
	closers  []func()
}

func openEnv(ctx context.Context, cmd *cobra.Command) (*ctlEnv, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = cfg.PayTrack.LogLevel
	}
	log, err := logger.New(level)
	if err != nil {
		return nil, err
	}

	env := &ctlEnv{settings: bootstrap.Defaults(cfg), log: log}
	st, closeDB, err := bootstrap.OpenStore(ctx, cfg, 10*time.Second, log)
	if err != nil {
		return nil, err
	}
	env.store = st
	env.closers = append(env.closers, closeDB)

	var pub kafkasink.Publisher
	if brokers := cfg.Kafka.Brokers(); brokers != nil {
		p := kafka.NewProducer(brokers)
		pub = p
		env.closers = append(env.closers, func() { _ = p.Close() })
	}
	env.engine = bootstrap.NewEngine(st, bootstrap.NewFulfiller(cfg, env.settings, pub, log), env.settings, nil, log)
	return env, nil
}

// Close waits for in-flight fulfillment before releasing connections.
func (e *ctlEnv) Close() {
	e.engine.Wait()
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
	_ = e.log.Sync()
}
