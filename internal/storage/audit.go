package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/przemek890/Praychain/internal/model"
)

// SaveVerdict persists the gating outcome for a submission. Verdicts are
// written for every submission, accepted or not, and are never updated:
// re-saving an already-recorded submission id is a no-op so that retrying
// a pipeline run stays safe.
func (s *SQLiteStorage) SaveVerdict(ctx context.Context, verdict *model.VerificationVerdict) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateVerdict(verdict); err != nil {
		return err
	}

	reasons, err := json.Marshal(verdict.FailureReasons)
	if err != nil {
		return fmt.Errorf("failed to marshal failure reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO verdicts (submission_id, challenge_similarity, challenge_passed,
			is_human, human_confidence, voice_match, voice_similarity, failure_reasons)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(submission_id) DO NOTHING`,
		verdict.SubmissionID, verdict.ChallengeSimilarity, verdict.ChallengePassed,
		verdict.IsHuman, verdict.HumanConfidence, verdict.VoiceMatch,
		verdict.VoiceSimilarity, string(reasons))
	if err != nil {
		return fmt.Errorf("failed to save verdict: %w", err)
	}
	return nil
}

// SaveFraudEntry appends a rejected submission to the fraud log.
func (s *SQLiteStorage) SaveFraudEntry(ctx context.Context, entry *model.FraudEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateFraudEntry(entry); err != nil {
		return err
	}

	reasons, err := json.Marshal(entry.Reasons)
	if err != nil {
		return fmt.Errorf("failed to marshal reasons: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO fraud_entries (id, submission_id, user_id, reasons) VALUES (?, ?, ?, ?)`,
		entry.ID, entry.SubmissionID, entry.UserID, string(reasons))
	if err != nil {
		return fmt.Errorf("failed to save fraud entry: %w", err)
	}
	return nil
}

// GetFraudEntries returns a user's fraud log, newest first.
func (s *SQLiteStorage) GetFraudEntries(ctx context.Context, userID string) ([]model.FraudEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, user_id, reasons, created_at
			FROM fraud_entries
			WHERE user_id = ?
			ORDER BY created_at DESC, id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query fraud entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.FraudEntry
	for rows.Next() {
		var entry model.FraudEntry
		var reasons string
		if err := rows.Scan(&entry.ID, &entry.SubmissionID, &entry.UserID, &reasons, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan fraud entry: %w", err)
		}
		if err := json.Unmarshal([]byte(reasons), &entry.Reasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasons: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fraud entries: %w", err)
	}

	return entries, nil
}
