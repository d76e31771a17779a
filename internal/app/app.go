// Package app builds the collaborators shared by the server, the worker and
// the CLI from a loaded configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/blob"
	"github.com/dharsanguruparan/VaultSign/internal/config"
	"github.com/dharsanguruparan/VaultSign/internal/database"
	"github.com/dharsanguruparan/VaultSign/internal/lifecycle"
	"github.com/dharsanguruparan/VaultSign/internal/notify"
	pdfutil "github.com/dharsanguruparan/VaultSign/internal/pdf"
	"github.com/dharsanguruparan/VaultSign/internal/repository"
	"github.com/dharsanguruparan/VaultSign/internal/storage"
	"github.com/dharsanguruparan/VaultSign/internal/worker"
)

// Documents is the row store as seen by both the controller and the sweep.
type Documents interface {
	lifecycle.DocumentStore
	worker.References
}

// Blobs is the object store as seen by both the controller and the sweep.
type Blobs interface {
	lifecycle.BlobStore
	worker.Blobs
}

// NewLogger returns a logger configured from cfg.LogLevel and cfg.LogFormat.
func NewLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.WithField("level", cfg.LogLevel).Warn("unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// OpenDocuments returns the configured row store. The returned func releases
// its resources.
func OpenDocuments(ctx context.Context, cfg *config.Config) (Documents, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return storage.NewMemoryStore(), func() {}, nil
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect database: %w", err)
		}
		return repository.NewDocumentRepository(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// OpenBlobs returns the configured object store.
func OpenBlobs(ctx context.Context, cfg *config.Config) (Blobs, error) {
	pdfs, signatures := blob.Buckets(cfg)
	switch cfg.BlobDriver {
	case config.BlobMemory:
		return blob.NewMemory(cfg.PublicBlobURL, pdfs, signatures), nil
	case config.BlobMinio:
		store, err := blob.NewMinio(cfg, pdfs, signatures)
		if err != nil {
			return nil, fmt.Errorf("init minio: %w", err)
		}
		return store, nil
	case config.BlobS3:
		store, err := blob.NewS3(ctx, cfg, pdfs, signatures)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

// NewSender returns an SMTP sender, or a logging sender when no relay is
// configured.
func NewSender(cfg *config.Config, log logrus.FieldLogger) (lifecycle.Sender, error) {
	if cfg.SMTPHost == "" {
		log.Warn("no smtp host configured; signing emails are logged, not sent")
		return notify.LogSender{Log: log}, nil
	}
	sender, err := notify.NewSMTPSender(cfg)
	if err != nil {
		return nil, fmt.Errorf("init smtp: %w", err)
	}
	return sender, nil
}

// NewController wires a lifecycle.Controller over the given stores.
func NewController(cfg *config.Config, docs lifecycle.DocumentStore, blobs lifecycle.BlobStore, sender lifecycle.Sender, log logrus.FieldLogger) (*lifecycle.Controller, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return lifecycle.New(docs, blobs, sender, pdfutil.Inspector{}, lifecycle.Options{
		BaseURL:          cfg.BaseURL,
		PDFBucket:        cfg.PDFBucket,
		SignatureBucket:  cfg.SignatureBucket,
		MaxPDFSize:       cfg.MaxPDFSize,
		MaxSignatureSize: cfg.MaxSigSize,
		Location:         loc,
		Log:              log,
	}), nil
}

// NewSweeper wires the orphaned-blob sweep.
func NewSweeper(cfg *config.Config, docs worker.References, blobs worker.Blobs, log logrus.FieldLogger) *worker.Processor {
	return worker.NewProcessor(blobs, docs, worker.Options{
		PDFBucket:       cfg.PDFBucket,
		SignatureBucket: cfg.SignatureBucket,
		Grace:           cfg.SweepGrace,
		Log:             log,
	})
}

// RedisOpt returns the asynq connection options.
func RedisOpt(cfg *config.Config) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
}
