// Package reward converts quality metrics into a token amount. The formula is
// deterministic and side-effect free; persistence and gating live elsewhere.
package reward

import (
	"math"

	"github.com/przemek890/Praychain/internal/model"
)

// Point weights for the reward formula. Together they sum to the maximum
// award of 100 tokens.
const (
	AccuracyWeight  = 50.0
	StabilityWeight = 25.0
	FluencyWeight   = 15.0
	FocusWeight     = 10.0

	// Readings with accuracy below this threshold lose PenaltyTokens.
	LowAccuracyThreshold = 0.3
	PenaltyTokens        = 20.0

	MaxTokens = 100
)

// Calculate converts quality metrics into a token award with its breakdown.
// The result is always in [0, MaxTokens].
func Calculate(m model.QualityMetrics) model.RewardBreakdown {
	b := model.RewardBreakdown{
		AccuracyPoints:  m.TextAccuracy * AccuracyWeight,
		StabilityPoints: m.EmotionalStability * StabilityWeight,
		FluencyPoints:   m.SpeechFluency * FluencyWeight,
		FocusPoints:     m.FocusScore * FocusWeight,
	}

	raw := b.AccuracyPoints + b.StabilityPoints + b.FluencyPoints + b.FocusPoints
	if m.TextAccuracy < LowAccuracyThreshold {
		b.PenaltyApplied = true
		raw -= PenaltyTokens
	}

	b.TokensEarned = int64(math.Round(math.Max(0, math.Min(MaxTokens, raw))))
	return b
}
