package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nftmarket/offchain/internal/config"
	"nftmarket/offchain/internal/models"
	"nftmarket/offchain/internal/service"
)

// Constants for worker configuration
const (
	DefaultPollInterval = 30 * time.Second
	DefaultBatchSize    = 50
	MonitorTimeout      = 30 * time.Second
)

// PendingStore lists transactions still awaiting a receipt
type PendingStore interface {
	GetPendingTransactions(ctx context.Context, limit int) ([]models.Transaction, error)
}

// Verifier resolves a transaction's receipt and records the outcome
type Verifier interface {
	VerifyTransaction(ctx context.Context, hash string) (*service.Verification, error)
}

// WorkerManager orchestrates background workers
type WorkerManager struct {
	store    PendingStore
	verifier Verifier
	cfg      config.MonitorConfig
	logger   *zap.Logger

	// Worker components
	monitor *Monitor

	// Control
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerManager creates a new worker manager with all required dependencies
func NewWorkerManager(
	store PendingStore,
	verifier Verifier,
	cfg config.MonitorConfig,
	logger *zap.Logger,
) *WorkerManager {
	logger = logger.Named("worker")

	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	wm := &WorkerManager{
		store:    store,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}

	wm.monitor = NewMonitor(wm)

	return wm
}

// Start starts all worker goroutines
func (wm *WorkerManager) Start() {
	wm.logger.Info("Starting worker manager",
		zap.Duration("poll_interval", wm.cfg.Interval),
		zap.Int("batch_size", wm.cfg.BatchSize))

	// Start monitor goroutine
	wm.wg.Add(1)
	go func() {
		defer wm.wg.Done()
		wm.monitor.Run(wm.ctx)
	}()

	wm.logger.Info("Worker manager started")
}

// Shutdown gracefully stops all workers
func (wm *WorkerManager) Shutdown(timeout time.Duration) error {
	wm.logger.Info("Shutting down worker manager")

	// Signal workers to stop
	wm.cancel()

	// Wait for workers to finish with timeout
	done := make(chan struct{})
	go func() {
		wm.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		wm.logger.Info("Workers stopped gracefully")
	case <-time.After(timeout):
		wm.logger.Warn("Worker shutdown timed out")
		return context.DeadlineExceeded
	}

	wm.logger.Info("Worker manager shutdown complete")
	return nil
}
