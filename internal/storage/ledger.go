package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/model"
)

const transactionColumns = `id, user_id, type, amount, source, description,
	accuracy_points, stability_points, fluency_points, focus_points, penalty_applied,
	settlement_status, settlement_tx_hash, settlement_error, created_at`

// Award records an earn transaction and increments the account balance
// atomically. It is idempotent per submission id: a repeated award returns
// the previously recorded transaction with duplicate=true and leaves the
// balance untouched. When the account has a wallet address and amount > 0, a
// settlement job is enqueued in the same database transaction.
func (s *SQLiteStorage) Award(ctx context.Context, userID, submissionID string, amount int64, breakdown *model.RewardBreakdown, description string) (*model.LedgerTransaction, bool, error) {
	if err := validateContext(ctx); err != nil {
		return nil, false, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, false, err
	}
	if err := validateString(submissionID, "submissionID"); err != nil {
		return nil, false, err
	}
	if amount < 0 {
		return nil, false, fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}

	source := "prayer:" + submissionID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.getEarnBySourceTx(ctx, tx, source)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO accounts (user_id) VALUES (?) ON CONFLICT(user_id) DO NOTHING`,
		userID); err != nil {
		return nil, false, fmt.Errorf("failed to ensure account: %w", err)
	}

	var wallet string
	if err = tx.QueryRowContext(ctx,
		`SELECT wallet_address FROM accounts WHERE user_id = ?`,
		userID).Scan(&wallet); err != nil {
		return nil, false, fmt.Errorf("failed to read wallet address: %w", err)
	}

	settlementStatus := model.SettlementSkipped
	if wallet != "" && amount > 0 {
		settlementStatus = model.SettlementPending
	}

	txn := &model.LedgerTransaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             model.TxEarn,
		Amount:           amount,
		Source:           source,
		Description:      description,
		Breakdown:        breakdown,
		SettlementStatus: settlementStatus,
	}

	if err = s.insertTransactionTx(ctx, tx, txn); err != nil {
		// Unique index backstop for concurrent writers outside this process.
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			_ = tx.Rollback()
			prior, getErr := s.getEarnBySource(ctx, source)
			if getErr != nil {
				return nil, false, getErr
			}
			return prior, true, nil
		}
		return nil, false, err
	}

	if amount > 0 {
		if _, err = tx.ExecContext(ctx,
			`UPDATE accounts
				SET total_earned = total_earned + ?,
					current_balance = current_balance + ?,
					last_updated = CURRENT_TIMESTAMP
				WHERE user_id = ?`,
			amount, amount, userID); err != nil {
			return nil, false, fmt.Errorf("failed to credit account: %w", err)
		}
	}

	if settlementStatus == model.SettlementPending {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO settlement_outbox (transaction_id, wallet_address, amount) VALUES (?, ?, ?)`,
			txn.ID, wallet, amount); err != nil {
			return nil, false, fmt.Errorf("failed to enqueue settlement: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit award: %w", err)
	}

	stored, err := s.fetchTransactionByID(ctx, txn.ID)
	return stored, false, err
}

// Spend records a spend transaction and debits the account. The balance guard
// lives in the UPDATE's WHERE clause so an overdraft can never be committed,
// and a rejected spend leaves the balance unchanged.
func (s *SQLiteStorage) Spend(ctx context.Context, userID string, amount int64, source, description string) (*model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateAmount(amount); err != nil {
		return nil, err
	}
	if err := validateString(source, "source"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE accounts
			SET total_spent = total_spent + ?,
				current_balance = current_balance - ?,
				last_updated = CURRENT_TIMESTAMP
			WHERE user_id = ? AND current_balance >= ?`,
		amount, amount, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("failed to debit account: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check debit result: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: cannot spend %d tokens", common.ErrInsufficientFunds, amount)
	}

	txn := &model.LedgerTransaction{
		ID:               uuid.NewString(),
		UserID:           userID,
		Type:             model.TxSpend,
		Amount:           amount,
		Source:           source,
		Description:      description,
		SettlementStatus: model.SettlementSkipped,
	}
	if err = s.insertTransactionTx(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit spend: %w", err)
	}

	return s.fetchTransactionByID(ctx, txn.ID)
}

// GetAccount returns a user's ledger account.
func (s *SQLiteStorage) GetAccount(ctx context.Context, userID string) (*model.LedgerAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var acct model.LedgerAccount
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, wallet_address, total_earned, total_spent, current_balance, last_updated
			FROM accounts WHERE user_id = ?`,
		userID).Scan(&acct.UserID, &acct.WalletAddress, &acct.TotalEarned,
		&acct.TotalSpent, &acct.CurrentBalance, &acct.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: account for user %s", common.ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &acct, nil
}

// SetWalletAddress sets the settlement wallet for a user, creating the
// account row if needed. An empty address disables settlement for future
// awards.
func (s *SQLiteStorage) SetWalletAddress(ctx context.Context, userID, address string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (user_id, wallet_address) VALUES (?, ?)
			ON CONFLICT(user_id) DO UPDATE SET
				wallet_address = excluded.wallet_address,
				last_updated = CURRENT_TIMESTAMP`,
		userID, address)
	if err != nil {
		return fmt.Errorf("failed to set wallet address: %w", err)
	}
	return nil
}

// GetTransactions returns a user's ledger history, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, limit, offset int) ([]model.LedgerTransaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.LedgerTransaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		txns = append(txns, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return txns, nil
}

// Leaderboard returns the accounts with the highest lifetime earnings.
func (s *SQLiteStorage) Leaderboard(ctx context.Context, limit int) ([]model.LedgerAccount, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, wallet_address, total_earned, total_spent, current_balance, last_updated
			FROM accounts
			ORDER BY total_earned DESC, user_id ASC
			LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accounts []model.LedgerAccount
	for rows.Next() {
		var acct model.LedgerAccount
		if err := rows.Scan(&acct.UserID, &acct.WalletAddress, &acct.TotalEarned,
			&acct.TotalSpent, &acct.CurrentBalance, &acct.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leaderboard: %w", err)
	}

	return accounts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.LedgerTransaction, error) {
	var txn model.LedgerTransaction
	var description sql.NullString
	var accuracy, stability, fluency, focus sql.NullFloat64
	var penalty bool

	err := row.Scan(&txn.ID, &txn.UserID, &txn.Type, &txn.Amount, &txn.Source, &description,
		&accuracy, &stability, &fluency, &focus, &penalty,
		&txn.SettlementStatus, &txn.SettlementTxHash, &txn.SettlementError, &txn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	txn.Description = description.String
	if accuracy.Valid {
		txn.Breakdown = &model.RewardBreakdown{
			AccuracyPoints:  accuracy.Float64,
			StabilityPoints: stability.Float64,
			FluencyPoints:   fluency.Float64,
			FocusPoints:     focus.Float64,
			PenaltyApplied:  penalty,
			TokensEarned:    txn.Amount,
		}
	}

	return &txn, nil
}

func (s *SQLiteStorage) insertTransactionTx(ctx context.Context, tx *sql.Tx, txn *model.LedgerTransaction) error {
	var accuracy, stability, fluency, focus sql.NullFloat64
	var penalty bool
	if b := txn.Breakdown; b != nil {
		accuracy = sql.NullFloat64{Float64: b.AccuracyPoints, Valid: true}
		stability = sql.NullFloat64{Float64: b.StabilityPoints, Valid: true}
		fluency = sql.NullFloat64{Float64: b.FluencyPoints, Valid: true}
		focus = sql.NullFloat64{Float64: b.FocusPoints, Valid: true}
		penalty = b.PenaltyApplied
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (id, user_id, type, amount, source, description,
			accuracy_points, stability_points, fluency_points, focus_points, penalty_applied,
			settlement_status)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.Type, txn.Amount, txn.Source, txn.Description,
		accuracy, stability, fluency, focus, penalty, txn.SettlementStatus)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) getEarnBySourceTx(ctx context.Context, tx *sql.Tx, source string) (*model.LedgerTransaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE type = 'earn' AND source = ?`,
		source)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: earn transaction for %s", common.ErrNotFound, source)
		}
		return nil, err
	}
	return txn, nil
}

func (s *SQLiteStorage) getEarnBySource(ctx context.Context, source string) (*model.LedgerTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE type = 'earn' AND source = ?`,
		source)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: earn transaction for %s", common.ErrNotFound, source)
		}
		return nil, err
	}
	return txn, nil
}

func (s *SQLiteStorage) fetchTransactionByID(ctx context.Context, id string) (*model.LedgerTransaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
		}
		return nil, err
	}
	return txn, nil
}
