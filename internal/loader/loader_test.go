package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fmueller/voxnote/internal/download"
	"github.com/fmueller/voxnote/internal/whisper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopEngine struct{}

func (nopEngine) Transcribe(context.Context, whisper.TranscriptionRequest) (whisper.Result, error) {
	return whisper.Result{Text: "ok"}, nil
}

func newTestLoader(t *testing.T, dl func(context.Context, download.Options) error) (*Loader, string) {
	t.Helper()

	dir := t.TempDir()
	return New(Config{
		ModelDir:     dir,
		AutoDownload: true,
		NoProgress:   true,
		NewEngine:    func(*zap.Logger) (whisper.Engine, error) { return nopEngine{}, nil },
		Download:     dl,
	}), dir
}

func TestLoadDownloadsMissingModelAndReportsProgress(t *testing.T) {
	t.Parallel()

	loader, dir := newTestLoader(t, func(_ context.Context, opts download.Options) error {
		opts.Progress(0)
		opts.Progress(40)
		opts.Progress(80)
		return os.WriteFile(opts.Destination, []byte("model"), 0o644)
	})

	var seen []int
	capability, err := loader.Load(context.Background(), "base", func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	require.Equal(t, "ggml-base", capability.Model())
	require.Equal(t, []int{0, 40, 80, 100}, seen)
	require.FileExists(t, filepath.Join(dir, "ggml-base.bin"))
}

func TestLoadSkipsDownloadWhenPresent(t *testing.T) {
	t.Parallel()

	called := false
	loader, dir := newTestLoader(t, func(context.Context, download.Options) error {
		called = true
		return nil
	})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-tiny.bin"), []byte("model"), 0o644))

	var seen []int
	capability, err := loader.Load(context.Background(), "tiny", func(p int) { seen = append(seen, p) })
	require.NoError(t, err)
	require.NotNil(t, capability)
	require.False(t, called)
	require.Equal(t, []int{100}, seen)
}

func TestLoadWrapsDownloadFailure(t *testing.T) {
	t.Parallel()

	network := errors.New("connection reset")
	loader, _ := newTestLoader(t, func(context.Context, download.Options) error { return network })

	capability, err := loader.Load(context.Background(), "small", nil)
	require.Nil(t, capability)

	var loadErr *ModelLoadError
	require.ErrorAs(t, err, &loadErr)
	require.Equal(t, "small", loadErr.Size)
	require.ErrorIs(t, err, network)
}

func TestLoadRejectsUnknownSize(t *testing.T) {
	t.Parallel()

	loader, _ := newTestLoader(t, nil)
	_, err := loader.Load(context.Background(), "medium", nil)

	var loadErr *ModelLoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadRespectsAutoDownloadDisabled(t *testing.T) {
	t.Parallel()

	loader, _ := newTestLoader(t, nil)
	loader.cfg.AutoDownload = false

	_, err := loader.Load(context.Background(), "tiny", nil)
	require.ErrorIs(t, err, ErrAutoDownloadDisabled)
}

func TestLoadSurfacesEngineInitFailure(t *testing.T) {
	t.Parallel()

	loader, dir := newTestLoader(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ggml-tiny.bin"), []byte("model"), 0o644))
	loader.cfg.NewEngine = func(*zap.Logger) (whisper.Engine, error) {
		return nil, errors.New("bundled whisper engine not found")
	}

	capability, err := loader.Load(context.Background(), "tiny", nil)
	require.Nil(t, capability)
	require.ErrorContains(t, err, "bundled whisper engine not found")
}
