package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
)

// DefaultFragmentDuration is how much audio each fragment carries.
const DefaultFragmentDuration = 100 * time.Millisecond

const stopGracePeriod = 2 * time.Second

// Source acquires the capture device.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream yields PCM fragments until closed or the device goes away. The
// fragment channel is closed when capture ends; Err then reports why.
type Stream interface {
	Fragments() <-chan []byte
	Err() error
	Close() error
}

// CommandSource runs a backend's capture command per recording.
type CommandSource struct {
	Backend          Backend
	Config           Config
	FragmentDuration time.Duration
}

func NewSource(preferred string, cfg Config) (*CommandSource, error) {
	backend, err := NewBackend(preferred)
	if err != nil {
		return nil, err
	}
	return &CommandSource{Backend: backend, Config: cfg}, nil
}

func (s *CommandSource) Open(ctx context.Context) (Stream, error) {
	if !s.Backend.Available() {
		return nil, fmt.Errorf("%s: backend is not available", s.Backend.Name())
	}

	name, args := s.Backend.CaptureCommand(s.Config)
	chunk := fragmentBytes(s.FragmentDuration, s.Config)

	logger := s.Config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("starting capture", zap.String("backend", s.Backend.Name()), zap.Strings("args", args))

	return startCommandStream(ctx, name, args, chunk, logger)
}

func fragmentBytes(d time.Duration, cfg Config) int {
	if d <= 0 {
		d = DefaultFragmentDuration
	}
	frameBytes := defaultChannels(cfg.Channels) * (audio.BitsPerSample / 8)
	frames := int(d * time.Duration(defaultSampleRate(cfg.SampleRate)) / time.Second)
	if frames < 1 {
		frames = 1
	}
	return frames * frameBytes
}

type commandStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    *bytes.Buffer
	fragments chan []byte
	closing   chan struct{}
	done      chan struct{}
	logger    *zap.Logger

	closeOnce sync.Once
	mu        sync.Mutex
	stopped   bool
	err       error
}

func startCommandStream(ctx context.Context, name string, args []string, chunk int, logger *zap.Logger) (*commandStream, error) {
	cmd := exec.Command(name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	s := &commandStream{
		cmd:       cmd,
		stdout:    stdout,
		stderr:    stderr,
		fragments: make(chan []byte, 16),
		closing:   make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger,
	}
	go s.pump(chunk)
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

func (s *commandStream) Fragments() <-chan []byte {
	return s.fragments
}

func (s *commandStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops the capture process and waits for it to exit.
func (s *commandStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()

		close(s.closing)
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Signal(os.Interrupt)
		}

		select {
		case <-s.done:
		case <-time.After(stopGracePeriod):
			s.logger.Debug("capture process ignored interrupt; killing")
			_ = s.cmd.Process.Kill()
			<-s.done
		}
	})
	return nil
}

func (s *commandStream) pump(chunk int) {
	defer close(s.done)
	defer close(s.fragments)

	for {
		buf := make([]byte, chunk)
		n, err := io.ReadFull(s.stdout, buf)
		n -= n % 2
		if n > 0 {
			select {
			case s.fragments <- buf[:n]:
			case <-s.closing:
				s.drain()
				s.finish(nil)
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				s.finish(fmt.Errorf("read capture output: %w", err))
				return
			}
			s.finish(nil)
			return
		}
	}
}

func (s *commandStream) drain() {
	_, _ = io.Copy(io.Discard, s.stdout)
}

func (s *commandStream) finish(readErr error) {
	waitErr := s.cmd.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		if waitErr != nil {
			s.logger.Debug("capture process exited after stop signal", zap.Error(waitErr))
		}
		return
	}

	switch {
	case readErr != nil:
		s.err = readErr
	case waitErr != nil:
		detail := strings.TrimSpace(s.stderr.String())
		if detail != "" {
			s.err = fmt.Errorf("capture process failed: %w (%s)", waitErr, detail)
		} else {
			s.err = fmt.Errorf("capture process failed: %w", waitErr)
		}
	default:
		s.err = errors.New("capture process exited unexpectedly")
	}
}
