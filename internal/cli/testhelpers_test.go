package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/loader"
	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/whisper"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// isolateUserDirs points every per-user directory at a temp dir.
func isolateUserDirs(t *testing.T) {
	t.Helper()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, "config"))
}

// tonePCM returns a 440 Hz sine at the capture sample rate.
func tonePCM(samples int, amplitude float64) []byte {
	out := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude * math.Sin(2*math.Pi*440*float64(i)/audio.SampleRate)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}

func writeWAV(t *testing.T, path string, pcm []byte) {
	t.Helper()

	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.EncodeWAV(file, pcm))
	require.NoError(t, file.Close())
}

type stubEngine struct {
	text string
	err  error

	mu       sync.Mutex
	requests []whisper.TranscriptionRequest
}

func (e *stubEngine) Transcribe(_ context.Context, req whisper.TranscriptionRequest) (whisper.Result, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	e.mu.Unlock()
	if e.err != nil {
		return whisper.Result{}, e.err
	}
	return whisper.Result{Text: e.text}, nil
}

func (e *stubEngine) Requests() []whisper.TranscriptionRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]whisper.TranscriptionRequest(nil), e.requests...)
}

// stubLoader resolves every load immediately against one engine.
type stubLoader struct {
	engine *stubEngine
	err    error

	mu    sync.Mutex
	sizes []string
}

func (l *stubLoader) Load(_ context.Context, size string, onProgress func(int)) (whisper.Capability, error) {
	l.mu.Lock()
	l.sizes = append(l.sizes, size)
	l.mu.Unlock()

	if l.err != nil {
		return nil, &loader.ModelLoadError{Size: size, Err: l.err}
	}
	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return whisper.NewCapability("ggml-"+size, "/models/ggml-"+size+".bin", l.engine), nil
}

func (l *stubLoader) Sizes() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.sizes...)
}

type fakeCopier struct {
	err error

	mu     sync.Mutex
	values []string
}

func (c *fakeCopier) CopyText(_ context.Context, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, value)
	return c.err
}

func (c *fakeCopier) Values() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.values...)
}

// countingRecorder counts fragments the recorder has buffered.
type countingRecorder struct {
	*record.Recorder
	fragments atomic.Int64
}

func (r *countingRecorder) Start(ctx context.Context, sink func(record.Event)) error {
	return r.Recorder.Start(ctx, func(ev record.Event) {
		if _, ok := ev.(record.FragmentReceived); ok {
			r.fragments.Add(1)
		}
		sink(ev)
	})
}
