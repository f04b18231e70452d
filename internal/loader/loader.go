// Package loader turns a model size into a ready inference capability,
// downloading the model on first use.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fmueller/voxnote/internal/download"
	"github.com/fmueller/voxnote/internal/whisper"
	"go.uber.org/zap"
)

var ErrAutoDownloadDisabled = errors.New("model is missing and auto-download is disabled")

// ModelLoadError reports a failed fetch or initialization for one size.
type ModelLoadError struct {
	Size string
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("load model %q: %v", e.Size, e.Err)
}

func (e *ModelLoadError) Unwrap() error {
	return e.Err
}

type EngineFactory func(logger *zap.Logger) (whisper.Engine, error)

type Config struct {
	ModelDir     string
	AutoDownload bool
	// NoProgress disables the terminal download bar. The TUI sets it.
	NoProgress bool
	NewEngine  EngineFactory
	Download   func(ctx context.Context, opts download.Options) error
	Logger     *zap.Logger
}

type Loader struct {
	cfg Config
}

func New(cfg Config) *Loader {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.NewEngine == nil {
		cfg.NewEngine = func(logger *zap.Logger) (whisper.Engine, error) {
			return whisper.NewBundledEngine(logger)
		}
	}
	if cfg.Download == nil {
		cfg.Download = download.DownloadFile
	}
	return &Loader{cfg: cfg}
}

// Load resolves size, fetches the model if needed and binds it to an engine.
// onProgress sees non-decreasing values ending at 100 on success. On error no
// capability is returned.
func (l *Loader) Load(ctx context.Context, size string, onProgress func(percent int)) (whisper.Capability, error) {
	if onProgress == nil {
		onProgress = func(int) {}
	}
	logger := l.cfg.Logger.With(zap.String("model", size))

	if _, ok := whisper.LookupModel(size); !ok {
		return nil, &ModelLoadError{Size: size, Err: fmt.Errorf("unknown model size (expected one of %v)", whisper.Sizes)}
	}

	if err := os.MkdirAll(l.cfg.ModelDir, 0o755); err != nil {
		return nil, &ModelLoadError{Size: size, Err: fmt.Errorf("create model directory %s: %w", l.cfg.ModelDir, err)}
	}

	resolved, err := whisper.ResolveModel(size, l.cfg.ModelDir)
	if err != nil {
		return nil, &ModelLoadError{Size: size, Err: err}
	}

	if resolved.NeedsDownload {
		if !l.cfg.AutoDownload {
			return nil, &ModelLoadError{Size: size, Err: fmt.Errorf("%w: run `voxnote setup --model %s`", ErrAutoDownloadDisabled, resolved.Name)}
		}

		logger.Info("model not found, downloading", zap.String("destination", resolved.Path))
		if err := l.cfg.Download(ctx, download.Options{
			URL:            resolved.URL,
			Destination:    resolved.Path,
			ExpectedSHA256: resolved.SHA256,
			NoProgress:     l.cfg.NoProgress,
			Progress:       onProgress,
			Logger:         logger,
		}); err != nil {
			return nil, &ModelLoadError{Size: size, Err: fmt.Errorf("download: %w", err)}
		}
	}

	engine, err := l.cfg.NewEngine(logger)
	if err != nil {
		return nil, &ModelLoadError{Size: size, Err: err}
	}

	onProgress(100)
	logger.Info("model ready", zap.String("id", resolved.ID), zap.String("path", resolved.Path))
	return whisper.NewCapability(resolved.ID, resolved.Path, engine), nil
}
