// Package session owns the recording and transcription lifecycle. All state
// lives in one Controller whose Run loop reduces events one at a time;
// capability calls run in goroutines and report back as events.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/whisper"
)

const eventBuffer = 256

type ModelLoader interface {
	Load(ctx context.Context, size string, onProgress func(percent int)) (whisper.Capability, error)
}

type Recorder interface {
	Start(ctx context.Context, sink func(record.Event)) error
	Stop() (record.EncodedAudio, error)
}

type Config struct {
	Loader    ModelLoader
	Recorder  Recorder
	Clipboard clipboard.Copier
	// Model is preselected but not loaded until a LoadModel event.
	Model    string
	Language string
	// SilenceGate skips inference for near-silent recordings when set.
	SilenceGate *audio.Gate
	Now         func() time.Time
	Logger      *zap.Logger
}

type Controller struct {
	loader   ModelLoader
	recorder Recorder
	copier   clipboard.Copier
	gate     *audio.Gate
	now      func() time.Time
	logger   *zap.Logger

	events  chan Event
	updates chan Snapshot
	done    chan struct{}
	ctx     context.Context

	mu        sync.RWMutex
	published Snapshot

	// Fields below are touched only by the Run goroutine.
	state       State
	model       string
	language    string
	handle      whisper.Capability
	handleSize  string
	loadGen     uint64
	progress    int
	session     *Session
	displayText string
	message     string
	notice      string
	lastErr     error
	level       float64
	version     uint64
}

func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	model := cfg.Model
	if model == "" {
		model = whisper.DefaultModel
	}
	language := normalizeLanguage(cfg.Language)

	c := &Controller{
		loader:   cfg.Loader,
		recorder: cfg.Recorder,
		copier:   cfg.Clipboard,
		gate:     cfg.SilenceGate,
		now:      now,
		logger:   logger,
		events:   make(chan Event, eventBuffer),
		updates:  make(chan Snapshot, 1),
		done:     make(chan struct{}),
		ctx:      context.Background(),
		state:    StateIdle,
		model:    model,
		language: language,
	}
	c.published = c.snapshot()
	return c
}

// Dispatch queues a user event. It is safe from any goroutine and a no-op
// once Run has returned.
func (c *Controller) Dispatch(ev Event) {
	c.post(ev)
}

func (c *Controller) post(ev Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

// Snapshot returns the state published after the last reduced event.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

// Updates delivers the latest snapshot; intermediate ones may be skipped.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Done is closed when Run returns.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run reduces events until ctx ends. An active recording is stopped and
// discarded and the model handle closed on the way out.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer close(c.done)
	defer c.shutdown()

	c.publish()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-c.events:
			c.reduce(ev)
			c.publish()
		}
	}
}

func (c *Controller) reduce(ev Event) {
	switch ev := ev.(type) {
	case LoadModel:
		c.notice = ""
		c.onLoadModel(ev.Size)
	case StartRecording:
		c.notice = ""
		c.onStartRecording()
	case StopRecording:
		c.notice = ""
		c.onStopRecording()
	case ToggleRecording:
		c.notice = ""
		if c.state == StateRecording {
			c.onStopRecording()
		} else {
			c.onStartRecording()
		}
	case SetLanguage:
		c.language = normalizeLanguage(ev.Language)
		c.logger.Debug("language selected", zap.String("language", c.language))
	case CopyResult:
		c.notice = ""
		c.onCopy()
	case loadProgress:
		c.onLoadProgress(ev)
	case loadFinished:
		c.onLoadFinished(ev)
	case recorderEvent:
		c.onRecorderEvent(ev)
	case transcriptionFinished:
		c.onTranscriptionFinished(ev)
	case copyFinished:
		c.onCopyFinished(ev)
	default:
		c.logger.Warn("ignoring unknown event", zap.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (c *Controller) onLoadModel(size string) {
	size = strings.ToLower(strings.TrimSpace(size))
	if _, ok := whisper.LookupModel(size); !ok {
		c.reject(fmt.Sprintf("Unknown model size %q", size))
		return
	}
	if c.state == StateRecording || c.state == StateProcessing {
		c.reject("Model selection is disabled while " + c.state.String())
		return
	}

	c.discardHandle()
	c.loadGen++
	gen := c.loadGen
	c.model = size
	c.progress = 0
	c.setState(StateLoadingModel)
	c.logger.Info("loading model", zap.String("model", size), zap.Uint64("generation", gen))

	ctx := c.ctx
	go func() {
		capability, err := c.loader.Load(ctx, size, func(percent int) {
			c.post(loadProgress{gen: gen, percent: percent})
		})
		c.post(loadFinished{gen: gen, size: size, capability: capability, err: err})
	}()
}

func (c *Controller) onLoadProgress(ev loadProgress) {
	if ev.gen != c.loadGen || c.state != StateLoadingModel {
		return
	}
	percent := min(max(ev.percent, 0), 100)
	if percent > c.progress {
		c.progress = percent
	}
}

func (c *Controller) onLoadFinished(ev loadFinished) {
	if ev.gen != c.loadGen || c.state != StateLoadingModel {
		c.logger.Debug("discarding stale model load", zap.String("model", ev.size), zap.Uint64("generation", ev.gen))
		if ev.capability != nil {
			_ = ev.capability.Close()
		}
		return
	}

	if ev.err != nil {
		if ev.capability != nil {
			_ = ev.capability.Close()
		}
		c.fail(ev.err)
		c.logger.Error("model load failed", zap.String("model", ev.size), zap.Error(ev.err))
		return
	}

	c.handle = ev.capability
	c.handleSize = ev.size
	c.progress = 100
	c.setState(StateReady)
	c.logger.Info("model loaded", zap.String("model", ev.size), zap.String("id", ev.capability.Model()))
}

func (c *Controller) onStartRecording() {
	switch c.state {
	case StateRecording:
		c.reject("Already recording")
		return
	case StateProcessing:
		c.reject("Still transcribing the last recording")
		return
	case StateLoadingModel:
		c.reject("Model not loaded yet")
		return
	}

	if c.handle == nil {
		c.reject(UserMessage(ErrModelNotLoaded))
		return
	}

	id := uuid.NewString()
	session := &Session{ID: id, StartedAt: c.now()}
	sink := func(ev record.Event) {
		c.post(recorderEvent{sessionID: id, ev: ev})
	}

	if err := c.recorder.Start(c.ctx, sink); err != nil {
		c.session = nil
		c.fail(err)
		c.logger.Error("failed to start recording", zap.Error(err))
		return
	}

	c.session = session
	c.level = 0
	c.setState(StateRecording)
	c.logger.Info("recording started", zap.String("session", id))
}

func (c *Controller) onStopRecording() {
	if c.state != StateRecording {
		c.reject("Not recording")
		return
	}
	c.finishRecording("manual")
}

func (c *Controller) onRecorderEvent(ev recorderEvent) {
	if c.session == nil || c.session.ID != ev.sessionID || c.state != StateRecording {
		return
	}

	switch event := ev.ev.(type) {
	case record.FragmentReceived:
		c.session.Fragments = append(c.session.Fragments, event.Data)
		c.level = audio.Level(event.Data)
	case record.Stopped:
		if event.Reason == record.StopStreamEnded && event.Err != nil {
			c.abortRecording(fmt.Errorf("%w: %v", record.ErrCaptureUnavailable, event.Err))
			return
		}
		c.finishRecording(event.Reason.String())
	}
}

// abortRecording releases the device and drops the audio.
func (c *Controller) abortRecording(err error) {
	if encoded, stopErr := c.recorder.Stop(); stopErr == nil {
		c.removeRecording(encoded.Path)
	}
	c.fail(err)
	c.logger.Error("recording failed", zap.Error(err))
}

func (c *Controller) finishRecording(reason string) {
	encoded, err := c.recorder.Stop()
	if err != nil {
		c.fail(fmt.Errorf("%w: %v", record.ErrCaptureUnavailable, err))
		c.logger.Error("failed to finish recording", zap.Error(err))
		return
	}

	c.setState(StateProcessing)
	c.logger.Info("recording stopped",
		zap.String("reason", reason),
		zap.Int("fragments", encoded.Fragments),
		zap.Duration("duration", encoded.Duration),
	)

	if c.gate != nil {
		metrics := audio.MeasurePCM16(encoded.PCM)
		if c.gate.Silent(metrics) {
			c.logger.Info("skipping transcription for silent recording",
				zap.Float64("rms_dbfs", metrics.RMSdBFS),
				zap.Float64("peak_dbfs", metrics.PeakdBFS),
			)
			c.removeRecording(encoded.Path)
			c.showResult("")
			return
		}
	}

	sessionID := c.session.ID
	gen := c.loadGen
	capability := c.handle
	opts := whisper.TranscribeOptions(c.language)
	ctx := c.ctx
	go func() {
		result, err := capability.Transcribe(ctx, encoded.Path, opts)
		c.removeRecording(encoded.Path)
		c.post(transcriptionFinished{sessionID: sessionID, gen: gen, text: result.Text, err: err})
	}()
}

func (c *Controller) onTranscriptionFinished(ev transcriptionFinished) {
	if c.session == nil || c.session.ID != ev.sessionID || ev.gen != c.loadGen || c.state != StateProcessing {
		c.logger.Debug("discarding stale transcription", zap.String("session", ev.sessionID))
		return
	}

	if ev.err != nil {
		c.session.ResultText = nil
		c.fail(&TranscriptionError{Err: ev.err})
		c.logger.Error("transcription failed", zap.Error(ev.err))
		return
	}

	c.showResult(CleanTranscript(ev.text))
}

func (c *Controller) showResult(text string) {
	c.session.ResultText = &text
	c.displayText = text
	if text == "" {
		c.notice = NoSpeechHint()
	}
	c.setState(StateDisplayingResult)
	c.logger.Info("transcription ready", zap.Int("chars", len(text)))
}

func (c *Controller) onCopy() {
	text := strings.TrimSpace(c.displayText)
	if text == "" {
		c.notice = "Nothing to copy"
		return
	}
	if c.copier == nil {
		c.notice = UserMessage(&ClipboardError{Err: clipboard.ErrUnavailable})
		return
	}

	ctx := c.ctx
	go func() {
		c.post(copyFinished{err: c.copier.CopyText(ctx, text)})
	}()
}

func (c *Controller) onCopyFinished(ev copyFinished) {
	if ev.err != nil {
		err := &ClipboardError{Err: ev.err}
		c.notice = UserMessage(err)
		c.logger.Warn("copy failed", zap.Error(ev.err))
		return
	}
	c.notice = "Copied to clipboard"
}

func (c *Controller) reject(notice string) {
	c.notice = notice
	c.logger.Debug("event rejected", zap.String("state", c.state.String()), zap.String("reason", notice))
}

func (c *Controller) fail(err error) {
	c.lastErr = err
	c.message = UserMessage(err)
	c.setState(StateError)
}

func (c *Controller) setState(next State) {
	if next != StateError {
		c.message = ""
		c.lastErr = nil
	}
	if c.state != next {
		c.logger.Debug("state change", zap.Stringer("from", c.state), zap.Stringer("to", next))
	}
	c.state = next
}

func (c *Controller) discardHandle() {
	if c.handle == nil {
		return
	}
	if err := c.handle.Close(); err != nil {
		c.logger.Warn("failed to close model", zap.Error(err))
	}
	c.handle = nil
	c.handleSize = ""
}

func (c *Controller) removeRecording(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		c.logger.Warn("failed to remove recording", zap.String("path", path), zap.Error(err))
	}
}

func (c *Controller) shutdown() {
	if c.state == StateRecording {
		if encoded, err := c.recorder.Stop(); err == nil {
			c.removeRecording(encoded.Path)
		}
	}
	c.discardHandle()
}

func (c *Controller) snapshot() Snapshot {
	snap := Snapshot{
		Version:         c.version,
		State:           c.state,
		Model:           c.model,
		LoadedModel:     c.handleSize,
		Language:        c.language,
		ProgressPercent: c.progress,
		Level:           c.level,
		DisplayText:     c.displayText,
		Message:         c.message,
		Notice:          c.notice,
		Err:             c.lastErr,
	}
	if c.session != nil {
		snap.SessionID = c.session.ID
		snap.StartedAt = c.session.StartedAt
		snap.Fragments = len(c.session.Fragments)
		snap.ResultText = c.session.ResultText
	}
	return snap
}

func (c *Controller) publish() {
	c.version++
	snap := c.snapshot()

	c.mu.Lock()
	c.published = snap
	c.mu.Unlock()

	select {
	case c.updates <- snap:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- snap:
		default:
		}
	}
}

func normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return DefaultLanguage
	}
	return language
}
