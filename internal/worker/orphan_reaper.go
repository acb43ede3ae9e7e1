package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/repository"
	"github.com/edudashpro/finance-service/internal/storage"
)

// OrphanReaper removes stored proof files that no upload row references.
// A file becomes orphaned when the database insert fails after a
// successful transfer; the reaper is the compensating cleanup for that
// gap. A grace period keeps it from racing an in-flight submission.
type OrphanReaper struct {
	uploads *repository.UploadRepository
	store   *storage.ProofStore
	logger  *zap.Logger

	interval    time.Duration
	gracePeriod time.Duration

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewOrphanReaper creates a reaper scanning every interval; files younger
// than gracePeriod are never touched.
func NewOrphanReaper(uploads *repository.UploadRepository, store *storage.ProofStore, interval, gracePeriod time.Duration, logger *zap.Logger) *OrphanReaper {
	if interval <= 0 {
		interval = time.Hour
	}
	if gracePeriod <= 0 {
		gracePeriod = 24 * time.Hour
	}
	return &OrphanReaper{
		uploads:     uploads,
		store:       store,
		logger:      logger,
		interval:    interval,
		gracePeriod: gracePeriod,
	}
}

// Start launches the reap loop
func (r *OrphanReaper) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isRunning {
		return fmt.Errorf("orphan reaper is already running")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.isRunning = true

	r.logger.Info("OrphanReaper started",
		zap.Duration("interval", r.interval),
		zap.Duration("grace_period", r.gracePeriod))

	go r.loop()
	return nil
}

// Stop stops the reap loop
func (r *OrphanReaper) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.isRunning {
		return
	}
	r.isRunning = false
	r.cancel()
}

// Name returns the worker name
func (r *OrphanReaper) Name() string {
	return "OrphanReaper"
}

func (r *OrphanReaper) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.ReapOnce(); err != nil {
				r.logger.Error("Orphan reap pass failed", zap.Error(err))
			}
		}
	}
}

// ReapOnce runs a single reap pass and returns the number of files removed
func (r *OrphanReaper) ReapOnce() (int, error) {
	cutoff := time.Now().Add(-r.gracePeriod)
	paths, err := r.store.ListOlderThan(cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored files: %w", err)
	}

	removed := 0
	for _, path := range paths {
		referenced, err := r.uploads.ExistsByFilePath(path)
		if err != nil {
			r.logger.Warn("Failed to check file reference",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		if referenced {
			continue
		}

		if err := r.store.Delete(path); err != nil {
			r.logger.Warn("Failed to delete orphaned file",
				zap.String("path", path),
				zap.Error(err))
			continue
		}
		removed++
		r.logger.Info("Orphaned proof file removed", zap.String("path", path))
	}

	if removed > 0 {
		r.logger.Info("Orphan reap pass completed",
			zap.Int("scanned", len(paths)),
			zap.Int("removed", removed))
	}
	return removed, nil
}
