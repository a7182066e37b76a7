package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nftmarket/offchain/internal/models"
)

// Monitor polls tracked transactions that are still pending and verifies
// them against the chain
type Monitor struct {
	manager *WorkerManager
	logger  *zap.Logger
}

// NewMonitor creates a new receipt monitor
func NewMonitor(manager *WorkerManager) *Monitor {
	return &Monitor{
		manager: manager,
		logger:  manager.logger.Named("monitor"),
	}
}

// Run starts the monitor polling loop
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("Monitor started",
		zap.Duration("poll_interval", m.manager.cfg.Interval))

	ticker := time.NewTicker(m.manager.cfg.Interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor stopping")
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

// poll executes one polling cycle and returns how many transactions settled
func (m *Monitor) poll(ctx context.Context) int {
	pollCtx, cancel := context.WithTimeout(ctx, MonitorTimeout)
	defer cancel()

	m.logger.Debug("Starting poll cycle")

	pending, err := m.manager.store.GetPendingTransactions(pollCtx, m.manager.cfg.BatchSize)
	if err != nil {
		m.logger.Error("Failed to get pending transactions", zap.Error(err))
		return 0
	}

	if len(pending) == 0 {
		return 0
	}

	m.logger.Debug("Checking pending transactions", zap.Int("count", len(pending)))

	settled := 0
	for _, tx := range pending {
		select {
		case <-pollCtx.Done():
			return settled
		default:
		}

		result, err := m.manager.verifier.VerifyTransaction(pollCtx, tx.TransactionHash)
		if err != nil {
			m.logger.Warn("Failed to verify transaction",
				zap.String("tx_hash", tx.TransactionHash),
				zap.Error(err))
			continue
		}

		if result.Status != models.TransactionStatusPending {
			settled++
		}
	}

	if settled > 0 {
		m.logger.Info("Pending transactions settled",
			zap.Int("checked", len(pending)),
			zap.Int("settled", settled))
	}
	return settled
}
