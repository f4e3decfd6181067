package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/abduss/cloudbox/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reconciler compares the object store against the metadata store and reports blobs without
// records (orphaned) and records without blobs (missing). It never repairs anything.
type Reconciler struct {
	records  MetadataStore
	objects  ObjectStore
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewReconciler builds a reconciler. Start is a no-op when interval is not positive.
func NewReconciler(records MetadataStore, objects ObjectStore, interval time.Duration, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{
		records:  records,
		objects:  objects,
		interval: interval,
		log:      log.Named("reconcile"),
		now:      time.Now,
	}
}

// Start runs RunOnce every interval until ctx is cancelled or Stop is called.
func (r *Reconciler) Start(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("reconciliation disabled")
		return
	}

	r.mu.Lock()
	if r.cancel != nil {
		r.mu.Unlock()
		r.log.Warn("reconciliation already started")
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.cancel, r.done = cancel, done
	r.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := r.RunOnce(runCtx); err != nil && err != ErrReconcileInProgress && runCtx.Err() == nil {
					r.log.Error("reconciliation failed", zap.Error(err))
				}
			}
		}
	}()

	r.log.Info("reconciliation started", zap.Duration("interval", r.interval))
}

// Stop halts the periodic loop and waits for it to exit.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	r.log.Info("reconciliation stopped")
}

// RunOnce performs a single pass. A pass already in flight makes it return ErrReconcileInProgress.
func (r *Reconciler) RunOnce(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return Report{}, ErrReconcileInProgress
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	report := Report{StartedAt: r.now().UTC()}

	var objectKeys, recordKeys []string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		keys, err := r.objects.List(gctx, "")
		objectKeys = keys
		return err
	})
	g.Go(func() error {
		keys, err := r.records.ListStorageKeys(gctx)
		recordKeys = keys
		return err
	})
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	objects := make(map[string]struct{}, len(objectKeys))
	for _, key := range objectKeys {
		objects[key] = struct{}{}
	}
	recorded := make(map[string]struct{}, len(recordKeys))
	for _, key := range recordKeys {
		recorded[key] = struct{}{}
		if _, ok := objects[key]; !ok {
			report.MissingBlobs = append(report.MissingBlobs, key)
		}
	}
	// A Store in flight has written its blob but not yet its record, so it shows up here
	// as orphaned until the insert lands. Re-check before acting on a single report.
	for key := range objects {
		if _, ok := recorded[key]; !ok {
			report.OrphanedBlobs = append(report.OrphanedBlobs, key)
		}
	}
	sort.Strings(report.OrphanedBlobs)
	sort.Strings(report.MissingBlobs)

	report.Checked = len(objects) + len(report.MissingBlobs)
	report.CompletedAt = r.now().UTC()

	metrics.ReconcileRun()
	for range report.OrphanedBlobs {
		metrics.ConsistencyAnomaly(AnomalyOrphanedBlob)
	}
	for range report.MissingBlobs {
		metrics.ConsistencyAnomaly(AnomalyMissingBlob)
	}

	fields := []zap.Field{
		zap.Int("checked", report.Checked),
		zap.Int("orphaned_blobs", len(report.OrphanedBlobs)),
		zap.Int("missing_blobs", len(report.MissingBlobs)),
		zap.Duration("duration", report.CompletedAt.Sub(report.StartedAt)),
	}
	if report.Consistent() {
		r.log.Info("reconciliation finished", fields...)
	} else {
		r.log.Warn("reconciliation found inconsistencies",
			append(fields,
				zap.Strings("orphaned", report.OrphanedBlobs),
				zap.Strings("missing", report.MissingBlobs),
				zap.String("note", "orphaned blobs may include uploads still in progress"),
			)...)
	}
	return report, nil
}
