package model

import "time"

// TransactionType is the business reason for a ledger transaction.
type TransactionType string

const (
	TxEarn  TransactionType = "earn"
	TxSpend TransactionType = "spend"
)

// SettlementStatus tracks the best-effort on-chain mirror of an award.
type SettlementStatus string

const (
	SettlementSkipped SettlementStatus = "skipped"
	SettlementPending SettlementStatus = "pending"
	SettlementDone    SettlementStatus = "done"
	SettlementFailed  SettlementStatus = "failed"
)

// LedgerAccount holds a user's token bookkeeping. CurrentBalance is always
// TotalEarned - TotalSpent; the storage layer only ever mutates it through
// atomic increments.
type LedgerAccount struct {
	UserID         string
	WalletAddress  string
	TotalEarned    int64
	TotalSpent     int64
	CurrentBalance int64
	LastUpdated    time.Time
}

// RewardBreakdown records how a reward was computed. TokensEarned is the
// clamped final amount in [0,100].
type RewardBreakdown struct {
	AccuracyPoints  float64
	StabilityPoints float64
	FluencyPoints   float64
	FocusPoints     float64
	PenaltyApplied  bool
	TokensEarned    int64
}

// LedgerTransaction is an immutable append-only ledger record. At most one
// earn transaction exists per submission id (Source carries the id).
type LedgerTransaction struct {
	ID               string
	UserID           string
	Type             TransactionType
	Amount           int64
	Source           string
	Description      string
	Breakdown        *RewardBreakdown
	SettlementStatus SettlementStatus
	SettlementTxHash string
	SettlementError  string
	CreatedAt        time.Time
}
