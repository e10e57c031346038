package model

// QualityMetrics rates a devotional reading. Every score is in [0,1] and is a
// pure function of the transcribed text, the reference text, and the emotion
// distribution reported by the inference service.
type QualityMetrics struct {
	TextAccuracy       float64
	EmotionalStability float64
	SpeechFluency      float64
	FocusScore         float64

	// Extras recorded for history; they do not feed the reward formula.
	DominantEmotion string
	Sentiment       string
	SentimentScore  float64
}

// IsFocused reports whether the reading counts as focused. Used only for
// display; the reward formula consumes the raw focus score.
func (m QualityMetrics) IsFocused() bool {
	return m.FocusScore > 0.6
}
