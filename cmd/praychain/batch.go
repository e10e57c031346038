package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/przemek890/Praychain/internal/model"
)

// batchSubmission is one entry in a batch manifest file.
type batchSubmission struct {
	ID                string `json:"id"`
	UserID            string `json:"user_id"`
	DevotionalAudio   string `json:"devotional_audio"`
	ChallengeAudio    string `json:"challenge_audio"`
	DevotionalText    string `json:"devotional_text"`
	ChallengeText     string `json:"challenge_text"`
	ReferenceText     string `json:"reference_text"`
	ExpectedChallenge string `json:"expected_challenge"`
}

func batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.json>",
		Short: "Verify a batch of submissions from a manifest file",
		Long: `Run the verification pipeline for every submission listed in a JSON
manifest. Submissions are processed sequentially; the shared inference rate
limit makes parallel verification pointless. A failing submission does not
stop the batch.`,
		Args: cobra.ExactArgs(1),
		RunE: runBatch,
	}

	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address while the batch runs (e.g. :9090)")

	return cmd
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	var entries []batchSubmission
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to parse manifest: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("manifest contains no submissions")
	}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", serveErr)
			}
		}()
		defer func() { _ = srv.Close() }()
		slog.Info("serving metrics", "addr", addr)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	eng, err := buildEngine(store)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Verifying submissions..."))

	var awarded, rejected, failed int
	var tokens int64
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		res, verr := eng.VerifyAndReward(ctx, model.Submission{
			ID:                 entry.ID,
			UserID:             entry.UserID,
			DevotionalAudioRef: entry.DevotionalAudio,
			ChallengeAudioRef:  entry.ChallengeAudio,
			DevotionalText:     entry.DevotionalText,
			ChallengeText:      entry.ChallengeText,
			ReferenceText:      entry.ReferenceText,
			ExpectedChallenge:  entry.ExpectedChallenge,
		})
		switch {
		case verr != nil:
			failed++
			slog.Error("submission failed", "submission_id", entry.ID, "error", verr)
		case res.Awarded():
			awarded++
			if !res.Duplicate {
				tokens += res.Reward.TokensEarned
			}
		default:
			rejected++
		}
		_ = bar.Add(1)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Printf("Batch complete: %d awarded (%d tokens), %d rejected, %d failed\n",
		awarded, tokens, rejected, failed)
	return nil
}
