package audio

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

var (
	ErrUnsupportedWAV = errors.New("unsupported wav format")
	ErrInvalidWAV     = errors.New("invalid wav file")
)

type Metrics struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// Gate decides whether a recording is quiet enough to skip inference.
type Gate struct {
	ThresholdDBFS float64
}

func (g Gate) Silent(m Metrics) bool {
	if m.Samples == 0 {
		return true
	}

	if math.IsInf(m.RMSdBFS, -1) && math.IsInf(m.PeakdBFS, -1) {
		return true
	}

	peakGate := g.ThresholdDBFS + 6
	return m.RMSdBFS <= g.ThresholdDBFS && m.PeakdBFS <= peakGate
}

func MeasurePCM16(pcm []byte) Metrics {
	return measure(decodePCM16(pcm), BitsPerSample)
}

// AnalyzeWAV measures an integer PCM WAV file on disk.
func AnalyzeWAV(path string) (Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metrics{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Metrics{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != 1 {
		return Metrics{}, ErrUnsupportedWAV
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Metrics{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	switch dec.BitDepth {
	case 8, 16, 24, 32:
	default:
		return Metrics{}, ErrUnsupportedWAV
	}

	return measure(buf.Data, int(dec.BitDepth)), nil
}

func measure(samples []int, bitDepth int) Metrics {
	if len(samples) == 0 {
		return Metrics{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	fullScale := math.Ldexp(1, bitDepth-1)

	var peak, sumSquares float64
	for _, raw := range samples {
		var value float64
		if bitDepth == 8 {
			value = (float64(raw) - 128) / 128
		} else {
			value = float64(raw) / fullScale
		}

		abs := math.Abs(value)
		if abs > peak {
			peak = abs
		}
		sumSquares += value * value
	}

	rms := math.Sqrt(sumSquares / float64(len(samples)))
	return Metrics{
		RMSdBFS:  amplitudeToDBFS(rms),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  int64(len(samples)),
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
