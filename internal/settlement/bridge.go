package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/przemek890/Praychain/internal/metrics"
	"github.com/przemek890/Praychain/internal/service"
)

const defaultPollInterval = 5 * time.Second

// Bridge drains the settlement outbox: each pending job becomes one transfer
// attempt, marked done or failed afterwards. A failed transfer is terminal
// for the job and is only logged; the ledger award stands.
type Bridge struct {
	storage      service.Storage
	transferrer  service.Transferrer
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewBridge creates a settlement bridge.
func NewBridge(storage service.Storage, transferrer service.Transferrer, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		storage:      storage,
		transferrer:  transferrer,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// Run polls the outbox until the context is canceled.
func (b *Bridge) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		if err := b.Drain(ctx); err != nil {
			b.logger.Error("settlement drain failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Drain processes pending jobs until the outbox is empty.
func (b *Bridge) Drain(ctx context.Context) error {
	for {
		processed, err := b.ProcessOne(ctx)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
	}
}

// ProcessOne attempts the oldest pending job. It returns false when the
// outbox is empty. The returned error covers bookkeeping failures only; a
// failed transfer is recorded and logged, not returned.
func (b *Bridge) ProcessOne(ctx context.Context) (bool, error) {
	job, err := b.storage.NextPendingSettlement(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to fetch settlement job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	txHash, transferErr := b.transferrer.Transfer(ctx, job.WalletAddress, job.Amount)
	if transferErr != nil {
		// Bail out on cancellation so the job stays pending for the next run.
		if errors.Is(transferErr, context.Canceled) || errors.Is(transferErr, context.DeadlineExceeded) {
			return false, transferErr
		}

		metrics.SettlementFailuresTotal.Inc()
		b.logger.Error("settlement transfer failed",
			"job_id", job.ID,
			"transaction_id", job.TransactionID,
			"wallet", job.WalletAddress,
			"amount", job.Amount,
			"error", transferErr)

		if err := b.storage.MarkSettlementFailed(ctx, job.ID, transferErr.Error()); err != nil {
			return false, fmt.Errorf("failed to mark settlement failed: %w", err)
		}
		return true, nil
	}

	if err := b.storage.MarkSettlementDone(ctx, job.ID, txHash); err != nil {
		return false, fmt.Errorf("failed to mark settlement done: %w", err)
	}

	b.logger.Info("settlement transfer complete",
		"job_id", job.ID,
		"transaction_id", job.TransactionID,
		"wallet", job.WalletAddress,
		"amount", job.Amount,
		"tx_hash", txHash)
	return true, nil
}
