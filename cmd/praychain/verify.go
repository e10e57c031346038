package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/przemek890/Praychain/internal/engine"
	"github.com/przemek890/Praychain/internal/model"
)

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a devotional reading and award tokens",
		Long: `Run the full verification pipeline for one submission: challenge phrase
matching, synthetic-voice detection, speaker verification, quality scoring,
and the ledger award. A rejected submission earns nothing and is recorded in
the fraud log.`,
		RunE: runVerify,
	}

	cmd.Flags().String("user", "", "user id")
	cmd.Flags().String("submission", "", "submission id (defaults to a new id; reuse an id to retry safely)")
	cmd.Flags().String("devotional-audio", "", "path to the devotional reading WAV")
	cmd.Flags().String("challenge-audio", "", "path to the spoken challenge WAV")
	cmd.Flags().String("devotional-text", "", "transcription of the devotional reading")
	cmd.Flags().String("challenge-text", "", "transcription of the spoken challenge")
	cmd.Flags().String("reference-text", "", "the devotional text the user was asked to read")
	cmd.Flags().String("challenge-phrase", "", "the challenge phrase the user was asked to speak")

	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("devotional-audio")
	_ = cmd.MarkFlagRequired("challenge-audio")
	_ = cmd.MarkFlagRequired("reference-text")
	_ = cmd.MarkFlagRequired("challenge-phrase")

	return cmd
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := buildEngine(store)
	if err != nil {
		return err
	}

	sub := submissionFromFlags(cmd)
	res, err := eng.VerifyAndReward(ctx, sub)
	if err != nil {
		return err
	}

	printResult(sub, res)
	return nil
}

func submissionFromFlags(cmd *cobra.Command) model.Submission {
	id, _ := cmd.Flags().GetString("submission")
	if id == "" {
		id = uuid.NewString()
	}

	userID, _ := cmd.Flags().GetString("user")
	devotionalAudio, _ := cmd.Flags().GetString("devotional-audio")
	challengeAudio, _ := cmd.Flags().GetString("challenge-audio")
	devotionalText, _ := cmd.Flags().GetString("devotional-text")
	challengeText, _ := cmd.Flags().GetString("challenge-text")
	referenceText, _ := cmd.Flags().GetString("reference-text")
	challengePhrase, _ := cmd.Flags().GetString("challenge-phrase")

	return model.Submission{
		ID:                 id,
		UserID:             userID,
		DevotionalAudioRef: devotionalAudio,
		ChallengeAudioRef:  challengeAudio,
		DevotionalText:     devotionalText,
		ChallengeText:      challengeText,
		ReferenceText:      referenceText,
		ExpectedChallenge:  challengePhrase,
	}
}

func printResult(sub model.Submission, res *engine.Result) {
	fmt.Printf("Submission: %s\n", sub.ID)
	fmt.Printf("Challenge:  similarity %.2f, passed %v\n",
		res.Verdict.ChallengeSimilarity, res.Verdict.ChallengePassed)
	fmt.Printf("Voice:      human %v (confidence %.2f), speaker match %v (similarity %.2f)\n",
		res.Verdict.IsHuman, res.Verdict.HumanConfidence,
		res.Verdict.VoiceMatch, res.Verdict.VoiceSimilarity)

	if !res.Awarded() {
		fmt.Printf("❌ Rejected: %s\n", strings.Join(res.Verdict.FailureReasons, "; "))
		return
	}

	fmt.Printf("Quality:    accuracy %.2f, stability %.2f, fluency %.2f, focus %.2f\n",
		res.Metrics.TextAccuracy, res.Metrics.EmotionalStability,
		res.Metrics.SpeechFluency, res.Metrics.FocusScore)
	if res.Metrics.Sentiment != "" {
		fmt.Printf("Sentiment:  %s (%.2f), dominant emotion %s\n",
			res.Metrics.Sentiment, res.Metrics.SentimentScore, res.Metrics.DominantEmotion)
	}
	if res.Reward.PenaltyApplied {
		fmt.Println("⚠️  Low-accuracy penalty applied")
	}
	if res.Duplicate {
		fmt.Printf("🔁 Already awarded: transaction %s for %d tokens\n",
			res.LedgerTx.ID, res.LedgerTx.Amount)
		return
	}
	fmt.Printf("✅ Awarded %d tokens (transaction %s, settlement %s)\n",
		res.Reward.TokensEarned, res.LedgerTx.ID, res.LedgerTx.SettlementStatus)
}
