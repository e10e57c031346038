package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/przemek890/Praychain/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAmount ensures a token amount is strictly positive.
func validateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidAmount, amount)
	}
	return nil
}

// validateVerdict validates a verification verdict before persisting it.
func validateVerdict(v *model.VerificationVerdict) error {
	if v == nil {
		return fmt.Errorf("%w: verdict", ErrNilParameter)
	}
	if v.SubmissionID == "" {
		return fmt.Errorf("%w: missing submission ID", ErrInvalidVerdict)
	}
	if v.ChallengeSimilarity < 0 || v.ChallengeSimilarity > 1 {
		return fmt.Errorf("%w: challenge similarity must be between 0 and 1", ErrInvalidVerdict)
	}
	return nil
}

// validateFraudEntry validates a fraud entry before persisting it.
func validateFraudEntry(e *model.FraudEntry) error {
	if e == nil {
		return fmt.Errorf("%w: fraud entry", ErrNilParameter)
	}
	if e.SubmissionID == "" {
		return fmt.Errorf("%w: missing submission ID", ErrInvalidVerdict)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidVerdict)
	}
	return nil
}
