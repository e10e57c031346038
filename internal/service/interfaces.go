// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/przemek890/Praychain/internal/model"
)

// Storage defines the contract for the persistence layer. All balance
// mutations are atomic increments inside a single database transaction;
// callers never read-modify-write account rows.
type Storage interface {
	// Ledger operations. Award is idempotent per submission id: a repeated
	// award for the same submission returns the previously recorded
	// transaction with duplicate=true and performs no balance mutation.
	// When the account has a wallet address and amount > 0, Award also
	// enqueues a settlement job in the same database transaction.
	Award(ctx context.Context, userID, submissionID string, amount int64, breakdown *model.RewardBreakdown, description string) (txn *model.LedgerTransaction, duplicate bool, err error)
	Spend(ctx context.Context, userID string, amount int64, source, description string) (*model.LedgerTransaction, error)
	GetAccount(ctx context.Context, userID string) (*model.LedgerAccount, error)
	SetWalletAddress(ctx context.Context, userID, address string) error
	GetTransactions(ctx context.Context, userID string, limit, offset int) ([]model.LedgerTransaction, error)
	Leaderboard(ctx context.Context, limit int) ([]model.LedgerAccount, error)

	// Audit trail. Verdicts are persisted for every submission, fraud
	// entries only for rejected ones; neither is ever deleted.
	SaveVerdict(ctx context.Context, verdict *model.VerificationVerdict) error
	SaveFraudEntry(ctx context.Context, entry *model.FraudEntry) error
	GetFraudEntries(ctx context.Context, userID string) ([]model.FraudEntry, error)

	// Settlement outbox operations, consumed by the settlement bridge.
	NextPendingSettlement(ctx context.Context) (*SettlementJob, error)
	MarkSettlementDone(ctx context.Context, jobID int64, txHash string) error
	MarkSettlementFailed(ctx context.Context, jobID int64, reason string) error

	// Database management.
	Migrate(ctx context.Context) error
	Close() error
}

// SettlementJob is one pending external transfer from the outbox.
type SettlementJob struct {
	ID            int64
	TransactionID string
	WalletAddress string
	Amount        int64
	Attempts      int
	CreatedAt     time.Time
}

// Encoder produces fixed-length voice embeddings from an audio sample. The
// backing model loads lazily; EnsureLoaded must succeed before Embed is
// meaningful and implementations must be safe for concurrent use.
type Encoder interface {
	EnsureLoaded(ctx context.Context) error
	Embed(ctx context.Context, audioRef string) ([]float64, error)
}

// EmotionAnalyzer returns an emotion probability distribution and a sentiment
// label for a piece of text via an external inference service.
type EmotionAnalyzer interface {
	Emotions(ctx context.Context, text string) (map[string]float64, error)
	Sentiment(ctx context.Context, text string) (label string, score float64, err error)
}

// Transferrer mirrors an internal award onto an external payment rail.
// Failures are non-fatal to the caller; the ledger award stands regardless.
type Transferrer interface {
	Transfer(ctx context.Context, address string, amount int64) (txHash string, err error)
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
