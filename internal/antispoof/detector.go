// Package antispoof classifies an audio sample as human or synthetic speech
// using a heuristic ensemble of four independent acoustic signals. It is not
// a trained model: each signal casts a binary "looks synthetic" vote and the
// majority decides. On any internal failure the detector fails closed and
// reports a non-human verdict.
package antispoof

import (
	"context"
	"fmt"

	"github.com/przemek890/Praychain/internal/audio"
	"github.com/przemek890/Praychain/internal/common"
)

// Config holds the four vote thresholds plus framing parameters. The
// thresholds are heuristics calibrated against 16kHz speech recordings;
// tune them together with the sample rate of the capture pipeline.
type Config struct {
	FrameSize int
	HopSize   int

	// PitchStabilityHz: human pitch wanders; an f0 standard deviation below
	// this many Hz across voiced frames votes synthetic.
	PitchStabilityHz float64

	// FlatnessCeiling: mean spectral flatness above this votes synthetic
	// (vocoder output tends toward noise-like flat spectra between harmonics).
	FlatnessCeiling float64

	// ZCRStability: a frame-wise zero-crossing-rate standard deviation below
	// this votes synthetic.
	ZCRStability float64

	// ContrastFloorDB: mean spectral contrast below this many dB votes
	// synthetic (natural speech keeps strong peak/valley structure).
	ContrastFloorDB float64

	// MinVoicedFrames: with fewer voiced frames than this no pitch variance
	// can be established, which also votes synthetic.
	MinVoicedFrames int
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		FrameSize:        1024,
		HopSize:          512,
		PitchStabilityHz: 12.0,
		FlatnessCeiling:  0.35,
		ZCRStability:     0.008,
		ContrastFloorDB:  12.0,
		MinVoicedFrames:  5,
	}
}

// Verdict is the detector's decision for one clip.
type Verdict struct {
	IsHuman         bool
	HumanConfidence float64
	AIScore         float64
	SyntheticVotes  int
	Features        *Features
}

// Detector runs the acoustic ensemble over decoded audio.
type Detector struct {
	cfg Config
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultConfig().FrameSize
	}
	if cfg.HopSize <= 0 {
		cfg.HopSize = cfg.FrameSize / 2
	}
	return &Detector{cfg: cfg}
}

// Detect decodes the clip and classifies it. Decode or analysis failures
// never pass the check: the returned verdict is non-human and the error
// explains why, wrapped in common.ErrDetectorUnavailable.
func (d *Detector) Detect(ctx context.Context, audioRef string) (Verdict, error) {
	failed := Verdict{IsHuman: false, HumanConfidence: 0, AIScore: 1}

	if err := ctx.Err(); err != nil {
		return failed, fmt.Errorf("%w: %v", common.ErrDetectorUnavailable, err)
	}

	clip, err := audio.Decode(audioRef)
	if err != nil {
		return failed, fmt.Errorf("%w: %v", common.ErrDetectorUnavailable, err)
	}
	if len(clip.Samples) < d.cfg.FrameSize {
		return failed, fmt.Errorf("%w: clip too short for analysis (%d samples)",
			common.ErrDetectorUnavailable, len(clip.Samples))
	}

	features := newExtractor(d.cfg.FrameSize, d.cfg.HopSize).extract(clip.Samples, clip.SampleRate)
	return d.classify(features), nil
}

// classify turns extracted features into the ensemble verdict.
func (d *Detector) classify(f *Features) Verdict {
	votes := d.syntheticVotes(f)
	aiScore := float64(votes) / 4.0

	return Verdict{
		IsHuman:         aiScore < 0.5,
		HumanConfidence: 1 - aiScore,
		AIScore:         aiScore,
		SyntheticVotes:  votes,
		Features:        f,
	}
}

// syntheticVotes counts how many of the four signals look synthetic.
func (d *Detector) syntheticVotes(f *Features) int {
	votes := 0
	if f.VoicedFrameCount < d.cfg.MinVoicedFrames || f.PitchStdDevHz < d.cfg.PitchStabilityHz {
		votes++
	}
	if f.MeanFlatness > d.cfg.FlatnessCeiling {
		votes++
	}
	if f.ZCRStdDev < d.cfg.ZCRStability {
		votes++
	}
	if f.MeanContrastDB < d.cfg.ContrastFloorDB {
		votes++
	}
	return votes
}
