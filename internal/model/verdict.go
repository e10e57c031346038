package model

import "time"

// Well-known failure reasons attached to a VerificationVerdict. These are the
// strings surfaced to the caller; acoustic thresholds are never leaked.
const (
	ReasonNoSpeech        = "no speech detected"
	ReasonChallengeFailed = "challenge text mismatch"
	ReasonNotHuman        = "non-human voice"
	ReasonSpeakerMismatch = "speaker mismatch"
	ReasonDetectorDown    = "voice analysis unavailable"
)

// VerificationVerdict is the combined result of the gating classifiers for a
// single submission. It is produced once, never mutated, and persisted for
// audit even when the submission is rejected.
type VerificationVerdict struct {
	SubmissionID        string
	ChallengeSimilarity float64
	ChallengePassed     bool
	IsHuman             bool
	HumanConfidence     float64
	VoiceMatch          bool
	VoiceSimilarity     float64
	FailureReasons      []string
	CreatedAt           time.Time
}

// Passed reports whether every gating check succeeded.
func (v *VerificationVerdict) Passed() bool {
	return v.ChallengePassed && v.IsHuman && v.VoiceMatch
}

// FraudEntry is an append-only record of a rejected submission, kept for
// later audit and ban decisions.
type FraudEntry struct {
	ID           string
	SubmissionID string
	UserID       string
	Reasons      []string
	CreatedAt    time.Time
}
