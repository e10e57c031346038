package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/przemek890/Praychain/internal/model"
	"github.com/przemek890/Praychain/internal/service"
)

// NextPendingSettlement returns the oldest pending settlement job, or
// (nil, nil) when the outbox is drained.
func (s *SQLiteStorage) NextPendingSettlement(ctx context.Context) (*service.SettlementJob, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	var job service.SettlementJob
	err := s.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, wallet_address, amount, attempts, created_at
			FROM settlement_outbox
			WHERE status = 'pending'
			ORDER BY id ASC
			LIMIT 1`).Scan(&job.ID, &job.TransactionID, &job.WalletAddress,
		&job.Amount, &job.Attempts, &job.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement outbox: %w", err)
	}

	return &job, nil
}

// MarkSettlementDone records a successful transfer against the job and its
// ledger transaction.
func (s *SQLiteStorage) MarkSettlementDone(ctx context.Context, jobID int64, txHash string) error {
	return s.finishSettlement(ctx, jobID, model.SettlementDone, txHash, "")
}

// MarkSettlementFailed records a failed transfer. The ledger transaction
// keeps its award amount; only the settlement columns change.
func (s *SQLiteStorage) MarkSettlementFailed(ctx context.Context, jobID int64, reason string) error {
	return s.finishSettlement(ctx, jobID, model.SettlementFailed, "", reason)
}

func (s *SQLiteStorage) finishSettlement(ctx context.Context, jobID int64, status model.SettlementStatus, txHash, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var transactionID string
	err = tx.QueryRowContext(ctx,
		`SELECT transaction_id FROM settlement_outbox WHERE id = ?`, jobID).Scan(&transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("settlement job %d not found", jobID)
	}
	if err != nil {
		return fmt.Errorf("failed to load settlement job: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE settlement_outbox
			SET status = ?, tx_hash = ?, error = ?, attempts = attempts + 1,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
		status, txHash, reason, jobID); err != nil {
		return fmt.Errorf("failed to update settlement job: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE transactions
			SET settlement_status = ?, settlement_tx_hash = ?, settlement_error = ?
			WHERE id = ?`,
		status, txHash, reason, transactionID); err != nil {
		return fmt.Errorf("failed to update transaction settlement: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settlement update: %w", err)
	}
	return nil
}
