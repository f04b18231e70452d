package whisper

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveModelDefaultNamedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	resolved, err := ResolveModel("", modelDir)
	require.NoError(t, err)
	require.Equal(t, DefaultModel, resolved.Name)
	require.Equal(t, "ggml-base", resolved.ID)
	require.Equal(t, filepath.Join(modelDir, "ggml-base.bin"), resolved.Path)
	require.True(t, resolved.NeedsDownload)
	require.False(t, resolved.IsCustomPath)
}

func TestResolveModelExistingNamedModel(t *testing.T) {
	t.Parallel()

	modelDir := t.TempDir()
	modelPath := filepath.Join(modelDir, "ggml-tiny.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("ok"), 0o644))

	resolved, err := ResolveModel("tiny", modelDir)
	require.NoError(t, err)
	require.Equal(t, "tiny", resolved.Name)
	require.Equal(t, modelPath, resolved.Path)
	require.False(t, resolved.NeedsDownload)
}

func TestResolveModelCustomPath(t *testing.T) {
	t.Parallel()

	custom := filepath.Join(t.TempDir(), "custom.bin")
	require.NoError(t, os.WriteFile(custom, []byte("x"), 0o644))

	resolved, err := ResolveModel(custom, t.TempDir())
	require.NoError(t, err)
	require.True(t, resolved.IsCustomPath)
	require.Equal(t, custom, resolved.Path)
	require.Equal(t, "custom", resolved.ID)
}

func TestResolveModelUnknownModel(t *testing.T) {
	t.Parallel()

	_, err := ResolveModel("large-v3", t.TempDir())
	require.ErrorContains(t, err, "known models: tiny, base, small")
}

func TestRegistryCoversSelectorSizes(t *testing.T) {
	t.Parallel()

	for _, name := range Sizes {
		model, ok := LookupModel(name)
		require.True(t, ok)
		require.Equal(t, "ggml-"+name, model.ID)
		require.Lenf(t, model.SHA256, 64, "model %s should have pinned sha256", name)
	}
}

func TestNextSizeCycles(t *testing.T) {
	t.Parallel()

	require.Equal(t, "base", NextSize("tiny"))
	require.Equal(t, "small", NextSize("base"))
	require.Equal(t, "tiny", NextSize("small"))
	require.Equal(t, "tiny", NextSize("bogus"))
}

func TestTranscribeOptionsMapsAutoToDetection(t *testing.T) {
	t.Parallel()

	opts := TranscribeOptions("auto")
	require.Empty(t, opts.Language)
	require.Equal(t, TaskTranscribe, opts.Task)
	require.Equal(t, 30, opts.ChunkLengthSeconds)
	require.Equal(t, 5, opts.StrideLengthSeconds)
	require.False(t, opts.ReturnTimestamps)

	require.Equal(t, "fr", TranscribeOptions("fr").Language)
}

type recordingEngine struct {
	requests []TranscriptionRequest
}

func (e *recordingEngine) Transcribe(_ context.Context, req TranscriptionRequest) (Result, error) {
	e.requests = append(e.requests, req)
	return Result{Text: "ok"}, nil
}

func TestCapabilityRefusesAfterClose(t *testing.T) {
	t.Parallel()

	engine := &recordingEngine{}
	capability := NewCapability("ggml-tiny", "/models/ggml-tiny.bin", engine)
	require.Equal(t, "ggml-tiny", capability.Model())

	result, err := capability.Transcribe(context.Background(), "/tmp/a.wav", TranscribeOptions("de"))
	require.NoError(t, err)
	require.Equal(t, "ok", result.Text)
	require.Equal(t, "/models/ggml-tiny.bin", engine.requests[0].ModelPath)
	require.Equal(t, "de", engine.requests[0].Options.Language)

	require.NoError(t, capability.Close())
	_, err = capability.Transcribe(context.Background(), "/tmp/a.wav", TranscribeOptions("de"))
	require.ErrorIs(t, err, ErrClosed)
	require.Len(t, engine.requests, 1)
}
