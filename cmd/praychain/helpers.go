package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/przemek890/Praychain/internal/antispoof"
	"github.com/przemek890/Praychain/internal/captcha"
	"github.com/przemek890/Praychain/internal/common"
	"github.com/przemek890/Praychain/internal/engine"
	"github.com/przemek890/Praychain/internal/inference"
	"github.com/przemek890/Praychain/internal/service"
	"github.com/przemek890/Praychain/internal/speaker"
	"github.com/przemek890/Praychain/internal/storage"
)

// expandPath expands a leading tilde and environment variables.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	return os.ExpandEnv(path)
}

// initStorage opens and migrates the ledger database.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "$HOME/.local/share/praychain/praychain.db"
	}
	dbPath = expandPath(dbPath)

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// requiredThreshold reads a threshold that has no sane default and must be
// calibrated per deployment.
func requiredThreshold(key string) (float64, error) {
	if !viper.IsSet(key) {
		return 0, fmt.Errorf("%w: %s must be configured", common.ErrMissingConfig, key)
	}
	return viper.GetFloat64(key), nil
}

// antispoofConfig starts from the detector defaults and applies any
// antispoof.* overrides. Unlike the challenge and speaker thresholds these
// have sane defaults, so every key is optional.
func antispoofConfig() antispoof.Config {
	cfg := antispoof.DefaultConfig()
	if viper.IsSet("antispoof.frame_size") {
		cfg.FrameSize = viper.GetInt("antispoof.frame_size")
	}
	if viper.IsSet("antispoof.hop_size") {
		cfg.HopSize = viper.GetInt("antispoof.hop_size")
	}
	if viper.IsSet("antispoof.pitch_stability_hz") {
		cfg.PitchStabilityHz = viper.GetFloat64("antispoof.pitch_stability_hz")
	}
	if viper.IsSet("antispoof.flatness_ceiling") {
		cfg.FlatnessCeiling = viper.GetFloat64("antispoof.flatness_ceiling")
	}
	if viper.IsSet("antispoof.zcr_stability") {
		cfg.ZCRStability = viper.GetFloat64("antispoof.zcr_stability")
	}
	if viper.IsSet("antispoof.contrast_floor_db") {
		cfg.ContrastFloorDB = viper.GetFloat64("antispoof.contrast_floor_db")
	}
	if viper.IsSet("antispoof.min_voiced_frames") {
		cfg.MinVoicedFrames = viper.GetInt("antispoof.min_voiced_frames")
	}
	return cfg
}

// buildEngine wires the full verification pipeline from configuration.
func buildEngine(store service.Storage) (*engine.Engine, error) {
	challengeThreshold, err := requiredThreshold("challenge.threshold")
	if err != nil {
		return nil, err
	}
	matcher, err := captcha.NewMatcher(challengeThreshold)
	if err != nil {
		return nil, err
	}

	speakerThreshold, err := requiredThreshold("speaker.threshold")
	if err != nil {
		return nil, err
	}
	encoder, err := speaker.NewHTTPEncoder(speaker.EncoderConfig{
		BaseURL: viper.GetString("speaker.encoder_url"),
		Timeout: viper.GetDuration("speaker.timeout"),
	})
	if err != nil {
		return nil, err
	}
	verifier, err := speaker.NewVerifier(encoder, speakerThreshold)
	if err != nil {
		return nil, err
	}

	detector := antispoof.NewDetector(antispoofConfig())

	inferenceURL := viper.GetString("inference.base_url")
	if inferenceURL == "" {
		inferenceURL = "https://api-inference.huggingface.co"
	}
	analyzer, err := inference.NewClient(inference.Config{
		BaseURL:        inferenceURL,
		APIKey:         viper.GetString("inference.api_key"),
		EmotionModel:   viper.GetString("inference.emotion_model"),
		SentimentModel: viper.GetString("inference.sentiment_model"),
		MinInterval:    viper.GetDuration("inference.min_interval"),
		Timeout:        viper.GetDuration("inference.timeout"),
	})
	if err != nil {
		return nil, err
	}

	environment := viper.GetString("environment")
	if environment == "" {
		environment = "production"
	}

	return engine.New(engine.Config{
		Mode:        engine.Mode(viper.GetString("verification.mode")),
		Environment: environment,
	}, matcher, detector, verifier, analyzer, store, slog.Default())
}
