package session

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/whisper"
)

const waitTimeout = 2 * time.Second

type loadResult struct {
	capability whisper.Capability
	err        error
}

type loadCall struct {
	size     string
	progress func(int)
	result   chan loadResult
}

func (c *loadCall) succeed(capability whisper.Capability) {
	c.result <- loadResult{capability: capability}
}

func (c *loadCall) fail(err error) {
	c.result <- loadResult{err: err}
}

// fakeLoader blocks every Load until the test resolves the call.
type fakeLoader struct {
	calls chan *loadCall
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{calls: make(chan *loadCall, 16)}
}

func (l *fakeLoader) Load(ctx context.Context, size string, onProgress func(int)) (whisper.Capability, error) {
	call := &loadCall{size: size, progress: onProgress, result: make(chan loadResult, 1)}
	l.calls <- call
	select {
	case r := <-call.result:
		return r.capability, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *fakeLoader) next(t *testing.T) *loadCall {
	t.Helper()
	select {
	case call := <-l.calls:
		return call
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for a model load")
		return nil
	}
}

func (l *fakeLoader) pending() int {
	return len(l.calls)
}

type transcribeCall struct {
	path string
	wav  []byte
	opts whisper.Options
}

type fakeCapability struct {
	id      string
	text    string
	err     error
	release chan struct{}

	mu     sync.Mutex
	calls  []transcribeCall
	closed bool
}

func newFakeCapability(id, text string) *fakeCapability {
	return &fakeCapability{id: id, text: text}
}

// hold makes Transcribe block until unblock is called.
func (f *fakeCapability) hold() *fakeCapability {
	f.release = make(chan struct{})
	return f
}

func (f *fakeCapability) unblock() {
	close(f.release)
}

func (f *fakeCapability) Model() string {
	return f.id
}

func (f *fakeCapability) Transcribe(ctx context.Context, audioPath string, opts whisper.Options) (whisper.Result, error) {
	wav, _ := os.ReadFile(audioPath)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return whisper.Result{}, whisper.ErrClosed
	}
	f.calls = append(f.calls, transcribeCall{path: audioPath, wav: wav, opts: opts})
	f.mu.Unlock()

	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return whisper.Result{}, ctx.Err()
		}
	}
	if f.err != nil {
		return whisper.Result{}, f.err
	}
	return whisper.Result{Text: f.text}, nil
}

func (f *fakeCapability) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeCapability) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeCapability) Calls() []transcribeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]transcribeCall(nil), f.calls...)
}

type fakeCopier struct {
	mu    sync.Mutex
	err   error
	texts []string
}

func (f *fakeCopier) CopyText(_ context.Context, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, value)
	return f.err
}

func (f *fakeCopier) Texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type harness struct {
	c      *Controller
	loader *fakeLoader
	source *record.FakeSource
	clock  *record.FakeClock
	copier *fakeCopier
	dir    string
}

func newHarness(t *testing.T, opts ...func(*Config)) *harness {
	t.Helper()

	h := &harness{
		loader: newFakeLoader(),
		source: &record.FakeSource{},
		clock:  record.NewFakeClock(time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)),
		copier: &fakeCopier{},
		dir:    t.TempDir(),
	}
	recorder := record.NewRecorder(record.RecorderConfig{Source: h.source, OutputDir: h.dir, Clock: h.clock})

	cfg := Config{
		Loader:    h.loader,
		Recorder:  recorder,
		Clipboard: h.copier,
		Now:       h.clock.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.c = New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.c.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.c.Done()
	})
	h.waitFor(t, func(s Snapshot) bool { return s.Version > 0 })
	return h
}

func (h *harness) waitState(t *testing.T, state State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.c.Snapshot().State == state
	}, waitTimeout, 2*time.Millisecond, "want state %s, have %s", state, h.c.Snapshot().State)
	return h.c.Snapshot()
}

func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return cond(h.c.Snapshot())
	}, waitTimeout, 2*time.Millisecond)
	return h.c.Snapshot()
}

// dispatch sends ev and waits until the loop has reduced it.
func (h *harness) dispatch(t *testing.T, ev Event) Snapshot {
	t.Helper()
	before := h.c.Snapshot().Version
	h.c.Dispatch(ev)
	return h.waitFor(t, func(s Snapshot) bool { return s.Version > before })
}

func (h *harness) loadModel(t *testing.T, size string, capability whisper.Capability) {
	t.Helper()
	h.c.Dispatch(LoadModel{Size: size})
	call := h.loader.next(t)
	require.Equal(t, size, call.size)
	call.succeed(capability)
	h.waitFor(t, func(s Snapshot) bool { return s.State == StateReady && s.LoadedModel == size })
}

func (h *harness) startRecording(t *testing.T) *record.FakeStream {
	t.Helper()
	opened := h.source.Opened()
	h.c.Dispatch(StartRecording{})
	h.waitState(t, StateRecording)
	require.Equal(t, opened+1, h.source.Opened())
	return h.source.Last()
}

func (h *harness) pushFragments(t *testing.T, stream *record.FakeStream, fragments ...[]byte) {
	t.Helper()
	want := h.c.Snapshot().Fragments + len(fragments)
	for _, fragment := range fragments {
		require.True(t, stream.Push(fragment))
	}
	h.waitFor(t, func(s Snapshot) bool { return s.Fragments == want })
}

func (h *harness) recordings(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}

func tone(samples int, amplitude int16) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := amplitude
		if i%2 == 1 {
			v = -amplitude
		}
		pcm[2*i] = byte(uint16(v))
		pcm[2*i+1] = byte(uint16(v) >> 8)
	}
	return pcm
}

func encodeWAV(t *testing.T, pcm []byte) []byte {
	t.Helper()
	path := t.TempDir() + "/expected.wav"
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, audio.EncodeWAV(file, pcm))
	require.NoError(t, file.Close())
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return content
}
