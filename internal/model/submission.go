// Package model contains the core domain types for the verification and
// reward pipeline. Types here are pure values with no infrastructure imports.
package model

import (
	"fmt"
	"strings"
)

// Submission is one verification attempt: two recorded clips, their
// transcriptions, and the texts they are checked against. Immutable once
// built; ID is the idempotency key for the ledger award.
type Submission struct {
	ID                 string
	UserID             string
	DevotionalAudioRef string
	ChallengeAudioRef  string
	DevotionalText     string
	ChallengeText      string
	ReferenceText      string
	ExpectedChallenge  string
}

// Validate checks that every input required before any classifier runs is
// present. Transcribed texts may legitimately be empty (no speech detected),
// so they are not checked here.
func (s *Submission) Validate() error {
	missing := make([]string, 0, 4)
	if strings.TrimSpace(s.ID) == "" {
		missing = append(missing, "submission id")
	}
	if strings.TrimSpace(s.UserID) == "" {
		missing = append(missing, "user id")
	}
	if strings.TrimSpace(s.DevotionalAudioRef) == "" {
		missing = append(missing, "devotional audio")
	}
	if strings.TrimSpace(s.ChallengeAudioRef) == "" {
		missing = append(missing, "challenge audio")
	}
	if strings.TrimSpace(s.ReferenceText) == "" {
		missing = append(missing, "reference text")
	}
	if strings.TrimSpace(s.ExpectedChallenge) == "" {
		missing = append(missing, "challenge phrase")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing input: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Source returns the ledger transaction source tag for this submission.
func (s *Submission) Source() string {
	return "prayer:" + s.ID
}
