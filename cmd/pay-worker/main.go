package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/BearBump/PayTrack/config"
	"github.com/BearBump/PayTrack/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("config parse error, %v", err))
	}
	log, err := logger.New(cfg.PayTrack.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := workerOpts{swaggerPath: os.Getenv("workerSwaggerPath")}
	if err := RunPayWorker(ctx, cfg, defaultWorkerFactories(log), opts, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorw("pay_worker_stopped", "err", err)
		panic(err)
	}
}
