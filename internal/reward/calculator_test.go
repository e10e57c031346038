package reward

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/przemek890/Praychain/internal/model"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name        string
		metrics     model.QualityMetrics
		wantTokens  int64
		wantPenalty bool
	}{
		{
			name: "perfect reading earns the maximum",
			metrics: model.QualityMetrics{
				TextAccuracy:       1.0,
				EmotionalStability: 1.0,
				SpeechFluency:      1.0,
				FocusScore:         1.0,
			},
			wantTokens: 100,
		},
		{
			name: "weighted sum of partial scores",
			metrics: model.QualityMetrics{
				TextAccuracy:       0.9,
				EmotionalStability: 0.8,
				SpeechFluency:      0.7,
				FocusScore:         0.85,
			},
			// 45 + 20 + 10.5 + 8.5
			wantTokens: 84,
		},
		{
			name: "low accuracy takes the penalty",
			metrics: model.QualityMetrics{
				TextAccuracy:       0.2,
				EmotionalStability: 0.8,
				SpeechFluency:      0.7,
				FocusScore:         0.85,
			},
			// 10 + 20 + 10.5 + 8.5 - 20
			wantTokens:  29,
			wantPenalty: true,
		},
		{
			name: "penalty floors at zero",
			metrics: model.QualityMetrics{
				TextAccuracy:       0.1,
				EmotionalStability: 0.1,
				SpeechFluency:      0.1,
				FocusScore:         0.1,
			},
			wantTokens:  0,
			wantPenalty: true,
		},
		{
			name:       "zero metrics earn nothing",
			metrics:    model.QualityMetrics{},
			wantTokens: 0,
			// Zero accuracy is below the threshold too.
			wantPenalty: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Calculate(tt.metrics)
			assert.Equal(t, tt.wantTokens, b.TokensEarned)
			assert.Equal(t, tt.wantPenalty, b.PenaltyApplied)
		})
	}
}

func TestCalculate_BreakdownComponents(t *testing.T) {
	b := Calculate(model.QualityMetrics{
		TextAccuracy:       0.5,
		EmotionalStability: 0.5,
		SpeechFluency:      0.5,
		FocusScore:         0.5,
	})

	assert.InDelta(t, 25.0, b.AccuracyPoints, 1e-9)
	assert.InDelta(t, 12.5, b.StabilityPoints, 1e-9)
	assert.InDelta(t, 7.5, b.FluencyPoints, 1e-9)
	assert.InDelta(t, 5.0, b.FocusPoints, 1e-9)
	assert.False(t, b.PenaltyApplied)
	assert.Equal(t, int64(50), b.TokensEarned)
}

func TestCalculate_MonotoneInEachMetric(t *testing.T) {
	base := model.QualityMetrics{
		TextAccuracy:       0.5,
		EmotionalStability: 0.5,
		SpeechFluency:      0.5,
		FocusScore:         0.5,
	}
	baseTokens := Calculate(base).TokensEarned

	bump := func(mutate func(*model.QualityMetrics)) int64 {
		m := base
		mutate(&m)
		return Calculate(m).TokensEarned
	}

	assert.GreaterOrEqual(t, bump(func(m *model.QualityMetrics) { m.TextAccuracy = 0.9 }), baseTokens)
	assert.GreaterOrEqual(t, bump(func(m *model.QualityMetrics) { m.EmotionalStability = 0.9 }), baseTokens)
	assert.GreaterOrEqual(t, bump(func(m *model.QualityMetrics) { m.SpeechFluency = 0.9 }), baseTokens)
	assert.GreaterOrEqual(t, bump(func(m *model.QualityMetrics) { m.FocusScore = 0.9 }), baseTokens)
}

func TestCalculate_NeverExceedsBounds(t *testing.T) {
	for _, acc := range []float64{0, 0.25, 0.5, 0.75, 1} {
		for _, rest := range []float64{0, 0.5, 1} {
			b := Calculate(model.QualityMetrics{
				TextAccuracy:       acc,
				EmotionalStability: rest,
				SpeechFluency:      rest,
				FocusScore:         rest,
			})
			assert.GreaterOrEqual(t, b.TokensEarned, int64(0))
			assert.LessOrEqual(t, b.TokensEarned, int64(MaxTokens))
		}
	}
}
