package antispoof

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// Pitch search range for adult speech.
	minPitchHz = 50.0
	maxPitchHz = 400.0

	// Normalized autocorrelation peak required to call a frame voiced.
	voicingThreshold = 0.5

	// Minimum frame energy before pitch tracking is attempted.
	energyFloor = 1e-4

	// Number of sub-bands used for spectral contrast.
	contrastBands = 6

	eps = 1e-10
)

// Features are the per-clip acoustic statistics feeding the synthetic-voice
// vote. All values are aggregates over analysis frames.
type Features struct {
	PitchStdDevHz    float64
	MeanFlatness     float64
	ZCRStdDev        float64
	MeanContrastDB   float64
	VoicedFrameCount int
	FrameCount       int
}

// extractor computes frame-level acoustic features for one clip.
type extractor struct {
	frameSize int
	hopSize   int
	fft       *fourier.FFT
	window    []float64
}

func newExtractor(frameSize, hopSize int) *extractor {
	return &extractor{
		frameSize: frameSize,
		hopSize:   hopSize,
		fft:       fourier.NewFFT(frameSize),
		window:    hannWindow(frameSize),
	}
}

// extract walks the clip frame by frame and aggregates the four signals.
func (e *extractor) extract(samples []float64, sampleRate int) *Features {
	var (
		pitches    []float64
		zcrs       []float64
		flatnesses []float64
		contrasts  []float64
	)

	windowed := make([]float64, e.frameSize)
	for start := 0; start+e.frameSize <= len(samples); start += e.hopSize {
		frame := samples[start : start+e.frameSize]

		zcrs = append(zcrs, zeroCrossingRate(frame))

		// Pitch runs on the raw frame; the spectrum on the windowed one.
		if f0, voiced := framePitch(frame, sampleRate); voiced {
			pitches = append(pitches, f0)
		}

		floats.MulTo(windowed, frame, e.window)
		spectrum := e.magnitudeSpectrum(windowed)
		flatnesses = append(flatnesses, spectralFlatness(spectrum))
		contrasts = append(contrasts, spectralContrast(spectrum))
	}

	f := &Features{
		FrameCount:       len(zcrs),
		VoicedFrameCount: len(pitches),
	}
	if len(pitches) > 1 {
		f.PitchStdDevHz = stat.StdDev(pitches, nil)
	}
	if len(zcrs) > 1 {
		f.ZCRStdDev = stat.StdDev(zcrs, nil)
	}
	if len(flatnesses) > 0 {
		f.MeanFlatness = stat.Mean(flatnesses, nil)
	}
	if len(contrasts) > 0 {
		f.MeanContrastDB = stat.Mean(contrasts, nil)
	}
	return f
}

// magnitudeSpectrum returns |FFT| for the positive-frequency bins, DC excluded.
func (e *extractor) magnitudeSpectrum(frame []float64) []float64 {
	coeffs := e.fft.Coefficients(nil, frame)
	mags := make([]float64, len(coeffs)-1)
	for i := 1; i < len(coeffs); i++ {
		mags[i-1] = cmplxAbs(coeffs[i])
	}
	return mags
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// zeroCrossingRate counts sign changes per sample.
func zeroCrossingRate(frame []float64) float64 {
	if len(frame) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(frame); i++ {
		if (frame[i-1] >= 0) != (frame[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(frame)-1)
}

// spectralFlatness is the geometric mean over the arithmetic mean of the
// magnitude spectrum. White noise approaches 1, a pure tone approaches 0.
func spectralFlatness(mags []float64) float64 {
	if len(mags) == 0 {
		return 0
	}
	var logSum, sum float64
	for _, m := range mags {
		logSum += math.Log(m + eps)
		sum += m
	}
	geo := math.Exp(logSum / float64(len(mags)))
	arith := sum/float64(len(mags)) + eps
	return geo / arith
}

// spectralContrast averages, across sub-bands, the dB gap between the top and
// bottom quintiles of each band's magnitudes.
func spectralContrast(mags []float64) float64 {
	if len(mags) < contrastBands*5 {
		return 0
	}
	bandSize := len(mags) / contrastBands
	var total float64
	for b := 0; b < contrastBands; b++ {
		band := make([]float64, bandSize)
		copy(band, mags[b*bandSize:(b+1)*bandSize])
		sort.Float64s(band)

		q := bandSize / 5
		if q == 0 {
			q = 1
		}
		valley := stat.Mean(band[:q], nil)
		peak := stat.Mean(band[bandSize-q:], nil)
		total += 20 * math.Log10((peak+eps)/(valley+eps))
	}
	return total / contrastBands
}

// framePitch estimates the fundamental frequency of one frame via normalized
// autocorrelation. Low-energy or aperiodic frames report voiced=false.
func framePitch(frame []float64, sampleRate int) (float64, bool) {
	n := len(frame)
	if n == 0 || sampleRate <= 0 {
		return 0, false
	}

	r0 := floats.Dot(frame, frame)
	if r0/float64(n) < energyFloor {
		return 0, false
	}

	minLag := int(float64(sampleRate) / maxPitchHz)
	maxLag := int(float64(sampleRate) / minPitchHz)
	if maxLag >= n {
		maxLag = n - 1
	}
	if minLag < 1 || minLag >= maxLag {
		return 0, false
	}

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := floats.Dot(frame[:n-lag], frame[lag:])
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}

	if bestLag == 0 || bestCorr/r0 < voicingThreshold {
		return 0, false
	}
	return float64(sampleRate) / float64(bestLag), true
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
