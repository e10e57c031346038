package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/przemek890/Praychain/internal/antispoof"
	"github.com/przemek890/Praychain/internal/captcha"
	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/model"
	"github.com/przemek890/Praychain/internal/service"
	"github.com/przemek890/Praychain/internal/speaker"
	"github.com/przemek890/Praychain/internal/testutil"
)

type mockDetector struct {
	verdict antispoof.Verdict
	err     error
	calls   int
}

func (m *mockDetector) Detect(_ context.Context, _ string) (antispoof.Verdict, error) {
	m.calls++
	if m.err != nil {
		return antispoof.Verdict{IsHuman: false, AIScore: 1}, m.err
	}
	return m.verdict, nil
}

type mockVerifier struct {
	result speaker.Result
	err    error
	calls  int
}

func (m *mockVerifier) Verify(_ context.Context, _, _ string) (speaker.Result, error) {
	m.calls++
	if m.err != nil {
		return speaker.Result{}, m.err
	}
	return m.result, nil
}

type mockAnalyzer struct {
	emotions map[string]float64
	err      error
}

func (m *mockAnalyzer) Emotions(_ context.Context, _ string) (map[string]float64, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.emotions, nil
}

func (m *mockAnalyzer) Sentiment(_ context.Context, _ string) (string, float64, error) {
	if m.err != nil {
		return "", 0, m.err
	}
	return "positive", 0.9, nil
}

type fixture struct {
	engine   *Engine
	detector *mockDetector
	verifier *mockVerifier
	analyzer *mockAnalyzer
	storage  service.Storage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	matcher, err := captcha.NewMatcher(0.7)
	require.NoError(t, err)

	f := &fixture{
		detector: &mockDetector{verdict: antispoof.Verdict{IsHuman: true, HumanConfidence: 0.75}},
		verifier: &mockVerifier{result: speaker.Result{Similarity: 0.9, Match: true}},
		analyzer: &mockAnalyzer{emotions: map[string]float64{"joy": 0.5, "neutral": 0.5}},
		storage:  testutil.NewTestStorage(t),
	}

	f.engine, err = New(Config{Mode: ModeEnabled}, matcher, f.detector, f.verifier,
		f.analyzer, f.storage, slog.Default())
	require.NoError(t, err)
	return f
}

func validSubmission() model.Submission {
	return model.Submission{
		ID:                 "sub-1",
		UserID:             "user-1",
		DevotionalAudioRef: "devotional.wav",
		ChallengeAudioRef:  "challenge.wav",
		DevotionalText:     "blessed are the peacemakers for they shall be called children of god",
		ChallengeText:      "grace and peace be multiplied",
		ReferenceText:      "blessed are the peacemakers for they shall be called children of god",
		ExpectedChallenge:  "grace and peace be multiplied",
	}
}

func TestVerifyAndReward_HappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.VerifyAndReward(ctx, validSubmission())
	require.NoError(t, err)

	require.True(t, res.Awarded())
	assert.True(t, res.Verdict.Passed())
	assert.Equal(t, 1.0, res.Verdict.ChallengeSimilarity)
	assert.Empty(t, res.Verdict.FailureReasons)

	require.NotNil(t, res.Metrics)
	assert.InDelta(t, 1.0, res.Metrics.TextAccuracy, 1e-9)
	assert.Equal(t, "positive", res.Metrics.Sentiment)

	require.NotNil(t, res.Reward)
	assert.Greater(t, res.Reward.TokensEarned, int64(0))
	assert.Equal(t, res.Reward.TokensEarned, res.LedgerTx.Amount)

	acct, err := f.storage.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, res.Reward.TokensEarned, acct.CurrentBalance)

	entries, err := f.storage.GetFraudEntries(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVerifyAndReward_ChallengeMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := validSubmission()
	sub.ChallengeText = "completely unrelated words entirely"

	res, err := f.engine.VerifyAndReward(ctx, sub)
	require.NoError(t, err, "gating failures are outcomes, not errors")

	assert.False(t, res.Awarded())
	assert.Nil(t, res.Reward)
	assert.Nil(t, res.Metrics)
	assert.Contains(t, res.Verdict.FailureReasons, model.ReasonChallengeFailed)

	_, err = f.storage.GetAccount(ctx, "user-1")
	require.ErrorIs(t, err, common.ErrNotFound, "no ledger write for a rejected submission")

	entries, err := f.storage.GetFraudEntries(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sub-1", entries[0].SubmissionID)
}

func TestVerifyAndReward_EmptyChallengeReportsNoSpeech(t *testing.T) {
	f := newFixture(t)

	sub := validSubmission()
	sub.ChallengeText = ""

	res, err := f.engine.VerifyAndReward(context.Background(), sub)
	require.NoError(t, err)

	assert.False(t, res.Awarded())
	assert.Equal(t, 0.0, res.Verdict.ChallengeSimilarity)
	assert.Contains(t, res.Verdict.FailureReasons, model.ReasonNoSpeech)
}

func TestVerifyAndReward_SyntheticVoiceSkipsSpeakerCheck(t *testing.T) {
	f := newFixture(t)
	f.detector.verdict = antispoof.Verdict{IsHuman: false, AIScore: 0.75}

	res, err := f.engine.VerifyAndReward(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.False(t, res.Awarded())
	assert.Contains(t, res.Verdict.FailureReasons, model.ReasonNotHuman)
	assert.Equal(t, 0, f.verifier.calls, "speaker check must be skipped for synthetic voices")
}

func TestVerifyAndReward_DetectorFailureFailsClosed(t *testing.T) {
	f := newFixture(t)
	f.detector.err = common.ErrDetectorUnavailable

	res, err := f.engine.VerifyAndReward(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.False(t, res.Awarded())
	assert.False(t, res.Verdict.IsHuman)
	assert.Contains(t, res.Verdict.FailureReasons, model.ReasonDetectorDown)
}

func TestVerifyAndReward_SpeakerMismatch(t *testing.T) {
	f := newFixture(t)
	f.verifier.result = speaker.Result{Similarity: 0.1, Match: false}

	res, err := f.engine.VerifyAndReward(context.Background(), validSubmission())
	require.NoError(t, err)

	assert.False(t, res.Awarded())
	assert.Contains(t, res.Verdict.FailureReasons, model.ReasonSpeakerMismatch)
}

func TestVerifyAndReward_EmotionFailureAbortsBeforeAward(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = errors.New("inference service down")

	_, err := f.engine.VerifyAndReward(context.Background(), validSubmission())
	require.Error(t, err)

	_, err = f.storage.GetAccount(context.Background(), "user-1")
	require.ErrorIs(t, err, common.ErrNotFound, "no partial ledger mutation on abort")
}

func TestVerifyAndReward_IdempotentPerSubmission(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.VerifyAndReward(ctx, validSubmission())
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	second, err := f.engine.VerifyAndReward(ctx, validSubmission())
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.LedgerTx.ID, second.LedgerTx.ID)

	acct, err := f.storage.GetAccount(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, first.Reward.TokensEarned, acct.CurrentBalance, "replay must not credit twice")
}

func TestVerifyAndReward_MissingInput(t *testing.T) {
	f := newFixture(t)

	sub := validSubmission()
	sub.ChallengeAudioRef = ""

	_, err := f.engine.VerifyAndReward(context.Background(), sub)
	require.ErrorIs(t, err, common.ErrMissingInput)
}

func TestVerifyAndReward_CancellationLeavesNoLedgerWrite(t *testing.T) {
	f := newFixture(t)
	f.analyzer.err = context.Canceled

	_, err := f.engine.VerifyAndReward(context.Background(), validSubmission())
	require.ErrorIs(t, err, context.Canceled)

	_, err = f.storage.GetAccount(context.Background(), "user-1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestNew_DisabledModeRequiresDevelopment(t *testing.T) {
	matcher, err := captcha.NewMatcher(0.7)
	require.NoError(t, err)

	store := testutil.NewTestStorage(t)
	detector := &mockDetector{}
	verifier := &mockVerifier{}
	analyzer := &mockAnalyzer{emotions: map[string]float64{"neutral": 1}}

	_, err = New(Config{Mode: ModeDisabled, Environment: "production"},
		matcher, detector, verifier, analyzer, store, nil)
	require.ErrorIs(t, err, common.ErrInvalidConfig)

	_, err = New(Config{Mode: ModeDisabled, Environment: "development"},
		matcher, detector, verifier, analyzer, store, nil)
	require.NoError(t, err)
}

func TestVerifyAndReward_DisabledModeSkipsGating(t *testing.T) {
	matcher, err := captcha.NewMatcher(0.7)
	require.NoError(t, err)

	f := &fixture{
		detector: &mockDetector{},
		verifier: &mockVerifier{},
		analyzer: &mockAnalyzer{emotions: map[string]float64{"neutral": 1}},
		storage:  testutil.NewTestStorage(t),
	}
	f.engine, err = New(Config{Mode: ModeDisabled, Environment: "development"},
		matcher, f.detector, f.verifier, f.analyzer, f.storage, nil)
	require.NoError(t, err)

	sub := validSubmission()
	sub.ChallengeText = "totally wrong answer"

	res, err := f.engine.VerifyAndReward(context.Background(), sub)
	require.NoError(t, err)

	assert.True(t, res.Awarded())
	assert.Equal(t, 0, f.detector.calls)
	assert.Equal(t, 0, f.verifier.calls)
}
