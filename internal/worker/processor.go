package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/dharsanguruparan/VaultSign/internal/blob"
	"github.com/dharsanguruparan/VaultSign/internal/model"
	"github.com/dharsanguruparan/VaultSign/internal/queue"
)

// Blobs lists and deletes objects in a bucket.
type Blobs interface {
	List(ctx context.Context, bucket string) ([]blob.Object, error)
	Delete(ctx context.Context, bucket, key string) error
}

// References reports which blob keys document rows still point at.
type References interface {
	ObjectKeys(ctx context.Context) (model.ObjectKeys, error)
}

// Options configures a Processor.
type Options struct {
	PDFBucket       string
	SignatureBucket string
	Grace           time.Duration
	Now             func() time.Time
	Log             logrus.FieldLogger
}

// Report summarizes one sweep.
type Report struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Kept    int `json:"kept"`
}

// Processor is plugged into the asynq worker loop.
type Processor struct {
	blobs Blobs
	refs  References
	opts  Options
}

// NewProcessor constructs a worker processor.
func NewProcessor(blobs Blobs, refs References, opts Options) *Processor {
	if opts.Grace <= 0 {
		opts.Grace = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Processor{blobs: blobs, refs: refs, opts: opts}
}

// Handler registers the sweep job handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.SweepBlobsTask, p.handleSweep)
	return mux
}

func (p *Processor) handleSweep(ctx context.Context, task *asynq.Task) error {
	var payload queue.SweepPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			// Retrying cannot fix a malformed payload.
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	report, err := p.Sweep(ctx, payload.Grace(p.opts.Grace), payload.DryRun)
	if err != nil {
		return err
	}
	if w := task.ResultWriter(); w != nil {
		if data, err := json.Marshal(report); err == nil {
			_, _ = w.Write(data)
		}
	}
	return nil
}

// Sweep deletes objects no row references once they are older than grace.
// The grace period covers blobs written by an upload or sign whose row
// write is still in flight.
func (p *Processor) Sweep(ctx context.Context, grace time.Duration, dryRun bool) (Report, error) {
	var report Report
	keys, err := p.refs.ObjectKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("load referenced keys: %w", err)
	}
	cutoff := p.opts.Now().Add(-grace)
	buckets := []struct {
		name    string
		refs    map[string]struct{}
		objects []blob.Object
	}{
		{name: p.opts.PDFBucket, refs: keys.FilePaths},
		{name: p.opts.SignatureBucket, refs: keys.SignaturePaths},
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range buckets {
		b := &buckets[i]
		g.Go(func() error {
			objects, err := p.blobs.List(gctx, b.name)
			if err != nil {
				return fmt.Errorf("list %s: %w", b.name, err)
			}
			b.objects = objects
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}
	for _, b := range buckets {
		for _, obj := range b.objects {
			report.Scanned++
			if _, referenced := b.refs[obj.Key]; referenced || obj.LastModified.After(cutoff) {
				report.Kept++
				continue
			}
			log := p.opts.Log.WithFields(logrus.Fields{"bucket": b.name, "key": obj.Key, "dry_run": dryRun})
			if !dryRun {
				if err := p.blobs.Delete(ctx, b.name, obj.Key); err != nil {
					return report, fmt.Errorf("delete %s/%s: %w", b.name, obj.Key, err)
				}
			}
			log.Info("orphaned object")
			report.Deleted++
		}
	}
	p.opts.Log.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"deleted": report.Deleted,
		"kept":    report.Kept,
	}).Info("blob sweep finished")
	return report, nil
}
