package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
)

// MaxDuration is the hard ceiling on a single recording.
const MaxDuration = 5 * time.Minute

var (
	ErrAlreadyRecording   = errors.New("already recording")
	ErrCaptureUnavailable = errors.New("audio capture unavailable")
	ErrNotRecording       = errors.New("not recording")
)

type StopReason int

const (
	// StopCeiling means MaxDuration elapsed.
	StopCeiling StopReason = iota
	// StopStreamEnded means the device stopped delivering audio.
	StopStreamEnded
)

func (r StopReason) String() string {
	switch r {
	case StopCeiling:
		return "ceiling"
	case StopStreamEnded:
		return "stream_ended"
	default:
		return "unknown"
	}
}

// Event is delivered to the sink passed to Start.
type Event interface {
	recorderEvent()
}

type FragmentReceived struct {
	Data []byte
}

// Stopped reports that capture halted without a Stop call. The buffered
// audio is still retrievable through Stop.
type Stopped struct {
	Reason StopReason
	Err    error
}

func (FragmentReceived) recorderEvent() {}
func (Stopped) recorderEvent()          {}

// EncodedAudio is a finished recording. Path is a 16 kHz mono WAV file
// owned by the caller.
type EncodedAudio struct {
	Path      string
	PCM       []byte
	Fragments int
	Duration  time.Duration
}

type RecorderConfig struct {
	Source    Source
	OutputDir string
	Clock     Clock
	Logger    *zap.Logger
}

// Recorder drives one capture at a time. The device is released on every
// path out of a recording: Stop, the duration ceiling, or the stream ending.
type Recorder struct {
	source    Source
	outputDir string
	clock     Clock
	logger    *zap.Logger

	mu        sync.Mutex
	gen       uint64
	active    bool
	halted    bool
	stream    Stream
	timer     Timer
	stopping  chan struct{}
	fragments [][]byte
	startedAt time.Time
}

func NewRecorder(cfg RecorderConfig) *Recorder {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	outputDir := cfg.OutputDir
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	return &Recorder{source: cfg.Source, outputDir: outputDir, clock: clock, logger: logger}
}

func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Start acquires the device and begins buffering fragments. sink receives
// every fragment and a Stopped event if capture halts on its own; it must
// not call back into the Recorder.
func (r *Recorder) Start(ctx context.Context, sink func(Event)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active {
		return ErrAlreadyRecording
	}
	if r.source == nil {
		return fmt.Errorf("%w: no capture source configured", ErrCaptureUnavailable)
	}

	stream, err := r.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCaptureUnavailable, err)
	}

	r.gen++
	gen := r.gen
	r.active = true
	r.halted = false
	r.stream = stream
	r.fragments = nil
	r.startedAt = r.clock.Now()
	r.stopping = make(chan struct{})
	r.timer = r.clock.AfterFunc(MaxDuration, func() {
		r.halt(gen, Stopped{Reason: StopCeiling}, sink)
	})

	go r.pump(gen, stream, r.stopping, sink)

	r.logger.Debug("recording started")
	return nil
}

func (r *Recorder) pump(gen uint64, stream Stream, stopping <-chan struct{}, sink func(Event)) {
	for {
		select {
		case <-stopping:
			return
		case fragment, ok := <-stream.Fragments():
			if !ok {
				r.halt(gen, Stopped{Reason: StopStreamEnded, Err: stream.Err()}, sink)
				return
			}

			r.mu.Lock()
			if r.gen != gen || r.halted || !r.active {
				r.mu.Unlock()
				return
			}
			r.fragments = append(r.fragments, fragment)
			r.mu.Unlock()

			sink(FragmentReceived{Data: fragment})
		}
	}
}

// halt releases the device but keeps the buffer for Stop.
func (r *Recorder) halt(gen uint64, event Stopped, sink func(Event)) {
	r.mu.Lock()
	if r.gen != gen || !r.active || r.halted {
		r.mu.Unlock()
		return
	}
	r.halted = true
	stream := r.stream
	r.timer.Stop()
	close(r.stopping)
	r.mu.Unlock()

	if err := stream.Close(); err != nil {
		r.logger.Debug("failed to close capture stream", zap.Error(err))
	}
	r.logger.Debug("recording halted", zap.Stringer("reason", event.Reason), zap.Error(event.Err))
	sink(event)
}

// Stop ends the recording and encodes the buffered audio. It is valid
// after the recorder halted itself.
func (r *Recorder) Stop() (EncodedAudio, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return EncodedAudio{}, ErrNotRecording
	}
	wasHalted := r.halted
	stream := r.stream
	fragments := r.fragments
	startedAt := r.startedAt

	r.gen++
	r.active = false
	r.halted = false
	r.stream = nil
	r.fragments = nil
	r.timer.Stop()
	if !wasHalted {
		close(r.stopping)
	}
	r.mu.Unlock()

	if !wasHalted {
		if err := stream.Close(); err != nil {
			r.logger.Debug("failed to close capture stream", zap.Error(err))
		}
	}

	pcm := audio.Join(fragments)
	path, err := r.writeWAV(startedAt, pcm)
	if err != nil {
		return EncodedAudio{}, err
	}

	encoded := EncodedAudio{
		Path:      path,
		PCM:       pcm,
		Fragments: len(fragments),
		Duration:  audio.PCMDuration(pcm),
	}
	r.logger.Debug("recording stopped",
		zap.Int("fragments", encoded.Fragments),
		zap.Duration("duration", encoded.Duration),
		zap.String("path", path),
	)
	return encoded, nil
}

func (r *Recorder) writeWAV(startedAt time.Time, pcm []byte) (string, error) {
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create recordings directory: %w", err)
	}

	file, err := os.CreateTemp(r.outputDir, "recording-"+startedAt.Format("20060102-150405")+"-*.wav")
	if err != nil {
		return "", fmt.Errorf("create recording file: %w", err)
	}
	path := file.Name()

	if err := audio.EncodeWAV(file, pcm); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("encode recording: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close recording file: %w", err)
	}
	return path, nil
}
