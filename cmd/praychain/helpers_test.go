package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/przemek890/Praychain/internal/antispoof"
)

func TestAntispoofConfig(t *testing.T) {
	t.Run("defaults when nothing configured", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		assert.Equal(t, antispoof.DefaultConfig(), antispoofConfig())
	})

	t.Run("overrides applied", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		viper.Set("antispoof.pitch_stability_hz", 8.0)
		viper.Set("antispoof.contrast_floor_db", 15.0)
		viper.Set("antispoof.min_voiced_frames", 10)

		cfg := antispoofConfig()
		assert.Equal(t, 8.0, cfg.PitchStabilityHz)
		assert.Equal(t, 15.0, cfg.ContrastFloorDB)
		assert.Equal(t, 10, cfg.MinVoicedFrames)

		// Untouched keys keep their defaults.
		defaults := antispoof.DefaultConfig()
		assert.Equal(t, defaults.FlatnessCeiling, cfg.FlatnessCeiling)
		assert.Equal(t, defaults.ZCRStability, cfg.ZCRStability)
		assert.Equal(t, defaults.FrameSize, cfg.FrameSize)
	})
}
