package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

var ErrMisalignedPCM = errors.New("pcm payload not aligned to 16-bit samples")

// Join concatenates capture fragments in order.
func Join(fragments [][]byte) []byte {
	size := 0
	for _, fragment := range fragments {
		size += len(fragment)
	}

	out := make([]byte, 0, size)
	for _, fragment := range fragments {
		out = append(out, fragment...)
	}
	return out
}

// PCMDuration reports the playback length of s16le mono PCM at SampleRate.
func PCMDuration(pcm []byte) time.Duration {
	samples := len(pcm) / (BitsPerSample / 8) / Channels
	return time.Duration(samples) * time.Second / SampleRate
}

// EncodeWAV writes s16le mono PCM as a 16 kHz WAV stream.
func EncodeWAV(w io.WriteSeeker, pcm []byte) error {
	if len(pcm)%2 != 0 {
		return ErrMisalignedPCM
	}

	buffer := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           decodePCM16(pcm),
		SourceBitDepth: BitsPerSample,
	}

	enc := wav.NewEncoder(w, SampleRate, BitsPerSample, Channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// Level is the linear RMS of a fragment in [0,1], used for metering.
func Level(pcm []byte) float64 {
	metrics := MeasurePCM16(pcm)
	if metrics.Samples == 0 || math.IsInf(metrics.RMSdBFS, -1) {
		return 0
	}
	return math.Pow(10, metrics.RMSdBFS/20)
}

func decodePCM16(pcm []byte) []int {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	return samples
}
