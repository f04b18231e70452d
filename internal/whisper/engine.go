package whisper

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
)

type Task string

const (
	TaskTranscribe Task = "transcribe"
)

const (
	DefaultChunkLengthSeconds  = 30
	DefaultStrideLengthSeconds = 5
)

var ErrClosed = errors.New("inference capability closed")

// Options are per-call inference parameters. An empty Language lets the
// model detect the spoken language.
type Options struct {
	Language            string
	Task                Task
	ChunkLengthSeconds  int
	StrideLengthSeconds int
	ReturnTimestamps    bool
}

// TranscribeOptions builds the options used for every recording: "auto" maps
// to detection, anything else is passed through verbatim.
func TranscribeOptions(language string) Options {
	lang := strings.TrimSpace(language)
	if strings.EqualFold(lang, "auto") {
		lang = ""
	}
	return Options{
		Language:            lang,
		Task:                TaskTranscribe,
		ChunkLengthSeconds:  DefaultChunkLengthSeconds,
		StrideLengthSeconds: DefaultStrideLengthSeconds,
		ReturnTimestamps:    false,
	}
}

type Result struct {
	Text string
}

type TranscriptionRequest struct {
	AudioPath string
	ModelPath string
	Options   Options
}

type Engine interface {
	Transcribe(ctx context.Context, req TranscriptionRequest) (Result, error)
}

// Capability is a loaded model ready for inference.
type Capability interface {
	Model() string
	Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error)
	Close() error
}

type modelCapability struct {
	id        string
	modelPath string
	engine    Engine
	closed    atomic.Bool
}

func NewCapability(id, modelPath string, engine Engine) Capability {
	return &modelCapability{id: id, modelPath: modelPath, engine: engine}
}

func (c *modelCapability) Model() string {
	return c.id
}

func (c *modelCapability) Transcribe(ctx context.Context, audioPath string, opts Options) (Result, error) {
	if c.closed.Load() {
		return Result{}, ErrClosed
	}

	return c.engine.Transcribe(ctx, TranscriptionRequest{
		AudioPath: audioPath,
		ModelPath: c.modelPath,
		Options:   opts,
	})
}

// Close invalidates the handle for new calls. A transcription already
// running finishes on its own context.
func (c *modelCapability) Close() error {
	c.closed.Store(true)
	return nil
}
