package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/app"
	"github.com/dharsanguruparan/VaultSign/internal/config"
	"github.com/dharsanguruparan/VaultSign/internal/queue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := app.NewLogger(cfg)
	if cfg.Backend == config.BackendMemory || cfg.BlobDriver == config.BlobMemory {
		logger.Warn("worker is using in-process stores; it cannot see the server's data")
	}

	docs, closeDocs, err := app.OpenDocuments(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open document store")
	}
	defer closeDocs()
	blobs, err := app.OpenBlobs(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open blob store")
	}
	if err := docs.EnsureSchema(ctx); err != nil {
		logger.WithError(err).Fatal("ensure schema")
	}
	if err := blobs.EnsureBuckets(ctx); err != nil {
		logger.WithError(err).Fatal("ensure buckets")
	}

	redis := app.RedisOpt(cfg)
	server := asynq.NewServer(redis, asynq.Config{
		Concurrency: 1,
		Logger:      logger,
	})
	processor := app.NewSweeper(cfg, docs, blobs, logger)
	mux := processor.Handler()

	scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{Logger: logger})
	task, err := queue.NewSweepTask(queue.SweepPayload{})
	if err != nil {
		logger.WithError(err).Fatal("build sweep task")
	}
	entryID, err := scheduler.Register(cfg.SweepSchedule, task)
	if err != nil {
		logger.WithError(err).WithField("schedule", cfg.SweepSchedule).Fatal("register sweep schedule")
	}
	logger.WithFields(logrus.Fields{"entry": entryID, "schedule": cfg.SweepSchedule}).Info("sweep scheduled")
	if err := scheduler.Start(); err != nil {
		logger.WithError(err).Fatal("start scheduler")
	}

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		logger.WithError(err).Error("worker stopped")
		os.Exit(1)
	}
}
