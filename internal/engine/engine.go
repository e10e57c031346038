// Package engine orchestrates the verification-and-reward pipeline: gating
// classifiers, quality scoring, the reward formula, and the ledger commit.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/przemek890/Praychain/internal/antispoof"
	"github.com/przemek890/Praychain/internal/captcha"
	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/metrics"
	"github.com/przemek890/Praychain/internal/model"
	"github.com/przemek890/Praychain/internal/quality"
	"github.com/przemek890/Praychain/internal/reward"
	"github.com/przemek890/Praychain/internal/service"
	"github.com/przemek890/Praychain/internal/speaker"
)

// Mode controls whether the gating classifiers run.
type Mode string

const (
	// ModeEnabled runs every gating check. The only legal mode in production.
	ModeEnabled Mode = "enabled"

	// ModeDisabled skips gating and scores every submission. Development only.
	ModeDisabled Mode = "disabled"
)

// SpoofDetector classifies one audio clip as human or synthetic.
type SpoofDetector interface {
	Detect(ctx context.Context, audioRef string) (antispoof.Verdict, error)
}

// SpeakerVerifier decides whether two clips come from the same speaker.
type SpeakerVerifier interface {
	Verify(ctx context.Context, audioRefA, audioRefB string) (speaker.Result, error)
}

// Config holds configuration for the verification engine.
type Config struct {
	Mode        Mode
	Environment string
}

// Engine runs the full pipeline for one submission at a time. Safe for
// concurrent use; all state lives in the injected services.
type Engine struct {
	matcher  *captcha.Matcher
	detector SpoofDetector
	verifier SpeakerVerifier
	analyzer service.EmotionAnalyzer
	storage  service.Storage
	logger   *slog.Logger
	mode     Mode
}

// Result is the outcome of a verification attempt. Metrics, Reward, and
// LedgerTx are nil when gating rejected the submission.
type Result struct {
	Verdict   *model.VerificationVerdict
	Metrics   *model.QualityMetrics
	Reward    *model.RewardBreakdown
	LedgerTx  *model.LedgerTransaction
	Duplicate bool
}

// Awarded reports whether the submission earned a ledger transaction.
func (r *Result) Awarded() bool {
	return r.LedgerTx != nil
}

// New creates a verification engine. Disabled mode is refused outside
// development environments.
func New(cfg Config, matcher *captcha.Matcher, detector SpoofDetector, verifier SpeakerVerifier,
	analyzer service.EmotionAnalyzer, storage service.Storage, logger *slog.Logger) (*Engine, error) {
	if matcher == nil || detector == nil || verifier == nil || analyzer == nil || storage == nil {
		return nil, fmt.Errorf("%w: engine requires all services", common.ErrInvalidConfig)
	}

	switch cfg.Mode {
	case "", ModeEnabled:
		cfg.Mode = ModeEnabled
	case ModeDisabled:
		if cfg.Environment != "development" {
			return nil, fmt.Errorf("%w: verification cannot be disabled in %q", common.ErrInvalidConfig, cfg.Environment)
		}
	default:
		return nil, fmt.Errorf("%w: unknown verification mode %q", common.ErrInvalidConfig, cfg.Mode)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		matcher:  matcher,
		detector: detector,
		verifier: verifier,
		analyzer: analyzer,
		storage:  storage,
		logger:   logger,
		mode:     cfg.Mode,
	}, nil
}

// VerifyAndReward runs the pipeline for one submission. Gating failures are
// normal outcomes returned as data; an error means the submission was
// malformed or a backing store failed. The ledger commit is the last step, so
// a cancellation mid-pipeline leaves no partial mutation behind.
func (e *Engine) VerifyAndReward(ctx context.Context, sub model.Submission) (*Result, error) {
	if err := sub.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMissingInput, err)
	}

	verdict, err := e.gate(ctx, &sub)
	if err != nil {
		return nil, err
	}

	if err := e.storage.SaveVerdict(ctx, verdict); err != nil {
		return nil, fmt.Errorf("failed to persist verdict: %w", err)
	}

	if !verdict.Passed() {
		return e.reject(ctx, &sub, verdict)
	}

	qm, err := e.score(ctx, &sub)
	if err != nil {
		return nil, err
	}

	breakdown := reward.Calculate(*qm)

	txn, duplicate, err := e.storage.Award(ctx, sub.UserID, sub.ID, breakdown.TokensEarned,
		&breakdown, "devotional reading reward")
	if err != nil {
		return nil, fmt.Errorf("failed to commit award: %w", err)
	}

	if duplicate {
		e.logger.Info("duplicate award request",
			"submission_id", sub.ID,
			"user_id", sub.UserID,
			"transaction_id", txn.ID)
	} else {
		metrics.VerificationsTotal.WithLabelValues("awarded").Inc()
		metrics.TokensAwardedTotal.Add(float64(breakdown.TokensEarned))
		e.logger.Info("submission awarded",
			"submission_id", sub.ID,
			"user_id", sub.UserID,
			"tokens", breakdown.TokensEarned,
			"penalty", breakdown.PenaltyApplied)
	}

	return &Result{
		Verdict:   verdict,
		Metrics:   qm,
		Reward:    &breakdown,
		LedgerTx:  txn,
		Duplicate: duplicate,
	}, nil
}

// gate runs the gating classifiers and assembles the verdict. Detector and
// verifier failures fail closed; only context cancellation aborts.
func (e *Engine) gate(ctx context.Context, sub *model.Submission) (*model.VerificationVerdict, error) {
	verdict := &model.VerificationVerdict{SubmissionID: sub.ID}

	if e.mode == ModeDisabled {
		match := e.matcher.Match(sub.ChallengeText, sub.ExpectedChallenge)
		verdict.ChallengeSimilarity = match.Similarity
		verdict.ChallengePassed = true
		verdict.IsHuman = true
		verdict.HumanConfidence = 1
		verdict.VoiceMatch = true
		verdict.VoiceSimilarity = 1
		e.logger.Warn("verification disabled, gating skipped", "submission_id", sub.ID)
		return verdict, nil
	}

	match := e.matcher.Match(sub.ChallengeText, sub.ExpectedChallenge)
	verdict.ChallengeSimilarity = match.Similarity
	verdict.ChallengePassed = match.Passed
	if match.Reason != "" {
		verdict.FailureReasons = append(verdict.FailureReasons, match.Reason)
	}

	spoof, err := e.detector.Detect(ctx, sub.ChallengeAudioRef)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		verdict.FailureReasons = append(verdict.FailureReasons, model.ReasonDetectorDown)
		e.logger.Warn("spoof detection failed closed",
			"submission_id", sub.ID, "error", err)
	}
	verdict.IsHuman = spoof.IsHuman
	verdict.HumanConfidence = spoof.HumanConfidence
	if err == nil && !spoof.IsHuman {
		verdict.FailureReasons = append(verdict.FailureReasons, model.ReasonNotHuman)
	}

	// Skip the expensive speaker check when the spoof check already failed.
	if spoof.IsHuman {
		voice, verr := e.verifier.Verify(ctx, sub.DevotionalAudioRef, sub.ChallengeAudioRef)
		if verr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			verdict.FailureReasons = append(verdict.FailureReasons, model.ReasonDetectorDown)
			e.logger.Warn("speaker verification failed closed",
				"submission_id", sub.ID, "error", verr)
		} else {
			verdict.VoiceMatch = voice.Match
			verdict.VoiceSimilarity = voice.Similarity
			if !voice.Match {
				verdict.FailureReasons = append(verdict.FailureReasons, model.ReasonSpeakerMismatch)
			}
		}
	}

	return verdict, nil
}

// reject records the fraud entry for a gated-out submission and returns the
// zero-reward result.
func (e *Engine) reject(ctx context.Context, sub *model.Submission, verdict *model.VerificationVerdict) (*Result, error) {
	entry := &model.FraudEntry{
		ID:           uuid.NewString(),
		SubmissionID: sub.ID,
		UserID:       sub.UserID,
		Reasons:      verdict.FailureReasons,
	}
	if err := e.storage.SaveFraudEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to log fraud entry: %w", err)
	}

	metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
	for _, reason := range verdict.FailureReasons {
		metrics.FraudTotal.WithLabelValues(reason).Inc()
	}

	e.logger.Info("submission rejected",
		"submission_id", sub.ID,
		"user_id", sub.UserID,
		"reasons", verdict.FailureReasons)

	return &Result{Verdict: verdict}, nil
}

// score runs the quality scorer over the devotional reading. The emotion
// distribution is required; sentiment is recorded when available but its
// failure does not block the award.
func (e *Engine) score(ctx context.Context, sub *model.Submission) (*model.QualityMetrics, error) {
	emotions, err := e.analyzer.Emotions(ctx, sub.DevotionalText)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: emotion analysis: %v", common.ErrInferenceFailed, err)
	}

	qm := quality.Score(sub.DevotionalText, sub.ReferenceText, emotions)

	if label, score, serr := e.analyzer.Sentiment(ctx, sub.DevotionalText); serr == nil {
		qm.Sentiment = label
		qm.SentimentScore = score
	} else {
		e.logger.Warn("sentiment analysis skipped",
			"submission_id", sub.ID, "error", serr)
	}

	return &qm, nil
}
