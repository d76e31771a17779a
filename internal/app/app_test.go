package app

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/dharsanguruparan/VaultSign/internal/blob"
	"github.com/dharsanguruparan/VaultSign/internal/config"
	"github.com/dharsanguruparan/VaultSign/internal/notify"
	"github.com/dharsanguruparan/VaultSign/internal/storage"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Backend:         config.BackendMemory,
		BlobDriver:      config.BlobMemory,
		BaseURL:         "http://sign.test",
		PublicBlobURL:   "http://sign.test/blobs",
		PDFBucket:       "pdfs",
		SignatureBucket: "signatures",
		MaxPDFSize:      10 << 20,
		MaxSigSize:      5 << 20,
		LogLevel:        "debug",
		LogFormat:       "json",
	}
}

func TestNewLogger(t *testing.T) {
	cfg := memoryConfig()
	logger := NewLogger(cfg)
	if logger.GetLevel() != logrus.DebugLevel {
		t.Fatalf("unexpected level %v", logger.GetLevel())
	}
	if _, ok := logger.Formatter.(*logrus.JSONFormatter); !ok {
		t.Fatalf("expected json formatter, got %T", logger.Formatter)
	}
	cfg.LogLevel = "loud"
	if NewLogger(cfg).GetLevel() != logrus.InfoLevel {
		t.Fatalf("unknown level should fall back to info")
	}
}

func TestMemoryWiring(t *testing.T) {
	ctx := context.Background()
	cfg := memoryConfig()
	logger := NewLogger(cfg)

	docs, closeDocs, err := OpenDocuments(ctx, cfg)
	if err != nil {
		t.Fatalf("open documents: %v", err)
	}
	defer closeDocs()
	if _, ok := docs.(*storage.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", docs)
	}
	blobs, err := OpenBlobs(ctx, cfg)
	if err != nil {
		t.Fatalf("open blobs: %v", err)
	}
	if _, ok := blobs.(*blob.MemoryStore); !ok {
		t.Fatalf("expected memory blobs, got %T", blobs)
	}
	sender, err := NewSender(cfg, logger)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if _, ok := sender.(notify.LogSender); !ok {
		t.Fatalf("expected log sender without smtp host, got %T", sender)
	}
	ctl, err := NewController(cfg, docs, blobs, sender, logger)
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if err := ctl.Setup(ctx); err != nil {
		t.Fatalf("setup: %v", err)
	}
	report, err := NewSweeper(cfg, docs, blobs, logger).Sweep(ctx, cfg.SweepGrace, false)
	if err != nil || report.Scanned != 0 {
		t.Fatalf("unexpected sweep %+v %v", report, err)
	}
}

func TestUnknownDrivers(t *testing.T) {
	cfg := memoryConfig()
	cfg.Backend = "sqlite"
	if _, _, err := OpenDocuments(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown backend error")
	}
	cfg.BlobDriver = "gcs"
	if _, err := OpenBlobs(context.Background(), cfg); err == nil {
		t.Fatalf("expected unknown blob driver error")
	}
}
