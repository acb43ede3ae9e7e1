package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/edudashpro/finance-service/internal/repository"
)

// OverdueMarker flips pending fees whose due date has passed to overdue so
// they surface in fallback fee matching and admin views.
type OverdueMarker struct {
	fees   *repository.FeeRepository
	logger *zap.Logger

	interval time.Duration

	mu        sync.Mutex
	isRunning bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewOverdueMarker creates a marker running every interval
func NewOverdueMarker(fees *repository.FeeRepository, interval time.Duration, logger *zap.Logger) *OverdueMarker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &OverdueMarker{
		fees:     fees,
		logger:   logger,
		interval: interval,
	}
}

// Start launches the marking loop
func (m *OverdueMarker) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return fmt.Errorf("overdue marker is already running")
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.isRunning = true

	m.logger.Info("OverdueMarker started", zap.Duration("interval", m.interval))

	go m.loop()
	return nil
}

// Stop stops the marking loop
func (m *OverdueMarker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.isRunning {
		return
	}
	m.isRunning = false
	m.cancel()
}

// Name returns the worker name
func (m *OverdueMarker) Name() string {
	return "OverdueMarker"
}

func (m *OverdueMarker) loop() {
	// Run once at startup so a restarted service catches up immediately.
	m.MarkOnce()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.MarkOnce()
		}
	}
}

// MarkOnce runs a single marking pass and returns the number of fees flipped
func (m *OverdueMarker) MarkOnce() int64 {
	count, err := m.fees.MarkOverdueBefore(time.Now().UTC())
	if err != nil {
		m.logger.Error("Overdue marking pass failed", zap.Error(err))
		return 0
	}
	if count > 0 {
		m.logger.Info("Fees marked overdue", zap.Int64("count", count))
	}
	return count
}
