// Package quality rates a devotional reading. Every function here is pure:
// identical inputs always produce identical scores, with no I/O and no
// hidden state, so the whole package is unit-testable in isolation.
package quality

import (
	"math"
	"strings"

	"github.com/przemek890/Praychain/internal/captcha"
	"github.com/przemek890/Praychain/internal/model"
)

// Weights for the text-accuracy blend and the focus aggregate. Product
// decisions, kept as named constants for tuning.
const (
	similarityWeight = 0.7
	coverageWeight   = 0.3

	focusAccuracyWeight  = 0.4
	focusStabilityWeight = 0.4
	focusFluencyWeight   = 0.2

	// Each filler-word occurrence costs five times its share of the word count.
	fillerPenaltyFactor = 5.0

	// A single dominant emotion halves stability at most.
	dominanceWeight = 0.5
)

// stopwords are excluded from keyword coverage.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {},
	"in": {}, "on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

// fillers are the disfluencies that reduce the fluency score.
var fillers = []string{"um", "uh", "er", "hmm", "like", "you know", "eee", "yyy", "mmm", "ah"}

// Score computes the full quality metrics for a reading.
func Score(transcribed, reference string, emotions map[string]float64) model.QualityMetrics {
	accuracy := TextAccuracy(transcribed, reference)
	stability, dominant := EmotionalStability(emotions)
	fluency := SpeechFluency(transcribed)

	return model.QualityMetrics{
		TextAccuracy:       accuracy,
		EmotionalStability: stability,
		SpeechFluency:      fluency,
		FocusScore:         FocusScore(accuracy, stability, fluency),
		DominantEmotion:    dominant,
	}
}

// TextAccuracy blends whole-string similarity with keyword coverage of the
// reference text (stopwords excluded).
func TextAccuracy(transcribed, reference string) float64 {
	trans := captcha.Normalize(transcribed)
	ref := captcha.Normalize(reference)
	if trans == "" || ref == "" {
		return 0
	}

	similarity := captcha.Similarity(trans, ref)

	refKeywords := keywords(ref)
	coverage := 1.0
	if len(refKeywords) > 0 {
		transKeywords := keywords(trans)
		hits := 0
		for w := range refKeywords {
			if _, ok := transKeywords[w]; ok {
				hits++
			}
		}
		coverage = float64(hits) / float64(len(refKeywords))
	}

	return round2(similarity*similarityWeight + coverage*coverageWeight)
}

// EmotionalStability is the inverse of emotional extremeness: the more a
// single emotion dominates the distribution, the lower the score. An empty
// distribution scores neutral 0.5.
func EmotionalStability(emotions map[string]float64) (float64, string) {
	if len(emotions) == 0 {
		return 0.5, "neutral"
	}

	maxScore := 0.0
	dominant := "neutral"
	for label, score := range emotions {
		if score > maxScore || (score == maxScore && label < dominant) {
			maxScore = score
			dominant = label
		}
	}

	return clamp01(1.0 - maxScore*dominanceWeight), dominant
}

// SpeechFluency penalizes filler words: five occurrences in a hundred words
// already drop the score to 0.75.
func SpeechFluency(text string) float64 {
	norm := captcha.Normalize(text)
	if norm == "" {
		return 0
	}

	words := strings.Fields(norm)
	padded := " " + norm + " "
	fillerCount := 0
	for _, f := range fillers {
		fillerCount += strings.Count(padded, " "+f+" ")
	}

	ratio := float64(fillerCount) / float64(len(words))
	return round2(math.Max(0, 1.0-ratio*fillerPenaltyFactor))
}

// FocusScore aggregates accuracy, stability, and fluency into one number.
func FocusScore(accuracy, stability, fluency float64) float64 {
	return round2(accuracy*focusAccuracyWeight + stability*focusStabilityWeight + fluency*focusFluencyWeight)
}

func keywords(normalized string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(normalized) {
		if _, skip := stopwords[w]; !skip {
			out[w] = struct{}{}
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
