// Package main runs the VaultSign HTTP API.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/api"
	"github.com/dharsanguruparan/VaultSign/internal/app"
	"github.com/dharsanguruparan/VaultSign/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := app.NewLogger(cfg)

	docs, closeDocs, err := app.OpenDocuments(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open document store")
	}
	defer closeDocs()
	blobs, err := app.OpenBlobs(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("open blob store")
	}
	sender, err := app.NewSender(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("init sender")
	}
	ctl, err := app.NewController(cfg, docs, blobs, sender, logger)
	if err != nil {
		logger.WithError(err).Fatal("init controller")
	}
	// Setup is also exposed at /api/setup-db; running it here lets a fresh
	// stack serve uploads without a manual call. Failure is not fatal so the
	// endpoint can retry once the dependencies come up.
	if err := ctl.Setup(ctx); err != nil {
		logger.WithError(err).Warn("initial setup failed")
	}

	srv := api.New(cfg, ctl, logger)
	if h, ok := blobs.(http.Handler); ok {
		srv.MountBlobs(h)
	}
	logger.WithFields(logrus.Fields{
		"backend":     cfg.Backend,
		"blob_driver": cfg.BlobDriver,
	}).Info("VaultSign starting")
	if err := srv.Run(ctx); err != nil {
		logger.WithError(err).Error("server stopped")
		os.Exit(1)
	}
}
