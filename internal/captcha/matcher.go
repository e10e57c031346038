// Package captcha matches transcribed challenge speech against the expected
// spoken phrase. The comparison is a character-level edit-distance ratio over
// normalized text; it has no side effects.
package captcha

import (
	"fmt"
	"strings"

	"github.com/przemek890/Praychain/internal/model"
)

// Matcher scores challenge transcriptions against the expected phrase.
// The pass threshold is deployment-specific (observed configurations range
// from 0.5 to 0.85) and must be supplied explicitly.
type Matcher struct {
	threshold float64
}

// Result is the outcome of a challenge comparison.
type Result struct {
	Similarity float64
	Passed     bool
	Reason     string
}

// NewMatcher creates a challenge matcher with the given pass threshold.
func NewMatcher(threshold float64) (*Matcher, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("challenge threshold must be in (0,1), got %v", threshold)
	}
	return &Matcher{threshold: threshold}, nil
}

// Match compares the transcribed challenge text to the expected phrase.
// Empty or whitespace-only transcriptions score 0 with an explicit
// "no speech detected" reason instead of a raw similarity.
func (m *Matcher) Match(transcribed, expected string) Result {
	trans := Normalize(transcribed)
	ref := Normalize(expected)

	if trans == "" {
		return Result{Similarity: 0, Passed: false, Reason: model.ReasonNoSpeech}
	}

	sim := Similarity(trans, ref)
	res := Result{Similarity: sim, Passed: sim >= m.threshold}
	if !res.Passed {
		res.Reason = model.ReasonChallengeFailed
	}
	return res
}

// Threshold returns the configured pass threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Normalize lowercases and collapses all whitespace runs to single spaces.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity computes 1 - levenshtein(a,b)/max(len(a),len(b)) over runes.
// It is shared with the quality scorer's text-accuracy blend.
func Similarity(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 && len(rb) == 0 {
		return 1.0
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(longest)
}

// levenshtein computes the edit distance between two rune slices using a
// single-row dynamic programming table.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		cur := i
		diag := prev[0]
		prev[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			best := diag + cost
			if prev[j]+1 < best {
				best = prev[j] + 1
			}
			if cur+1 < best {
				best = cur + 1
			}
			diag = prev[j]
			prev[j] = best
			cur = best
		}
	}

	return prev[len(b)]
}
