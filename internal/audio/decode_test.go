package audio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a 16-bit PCM WAV file with the given mono samples.
func writeWAV(t *testing.T, path string, samples []float64, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s * 32767)
	}
	buf := &gaudio.IntBuffer{
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
}

func TestDecode_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tone.wav")

	// 100ms of a 440Hz tone at 16kHz
	sampleRate := 16000
	n := sampleRate / 10
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate))
	}
	writeWAV(t, path, samples, sampleRate)

	clip, err := Decode(path)
	require.NoError(t, err)
	assert.Equal(t, sampleRate, clip.SampleRate)
	assert.Len(t, clip.Samples, n)
	assert.InDelta(t, 0.1, clip.Duration(), 0.001)

	// Samples should survive quantization within 16-bit precision.
	for i := 0; i < n; i += 100 {
		assert.InDelta(t, samples[i], clip.Samples[i], 0.001)
	}
}

func TestDecode_MissingFile(t *testing.T) {
	_, err := Decode(filepath.Join(t.TempDir(), "nope.wav"))
	require.Error(t, err)
}

func TestDecode_NotAWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.wav")
	require.NoError(t, os.WriteFile(path, []byte("this is not audio"), 0o600))

	_, err := Decode(path)
	require.Error(t, err)
}
