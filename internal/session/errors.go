package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/loader"
	"github.com/fmueller/voxnote/internal/record"
)

var ErrModelNotLoaded = errors.New("model not loaded")

type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

// ClipboardError never changes state; it only produces a notice.
type ClipboardError struct {
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("copy to clipboard failed: %v", e.Err)
}

func (e *ClipboardError) Unwrap() error {
	return e.Err
}

// UserMessage maps an error to the one-line text shown in the status area.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var loadErr *loader.ModelLoadError
	var transcriptionErr *TranscriptionError
	var clipboardErr *ClipboardError

	switch {
	case errors.As(err, &loadErr):
		if errors.Is(err, loader.ErrAutoDownloadDisabled) {
			return fmt.Sprintf("Failed to load model %s: not downloaded (run `voxnote setup --model %s`)", loadErr.Size, loadErr.Size)
		}
		return fmt.Sprintf("Failed to load model %s: %s", loadErr.Size, cause(loadErr.Err))
	case errors.Is(err, record.ErrCaptureUnavailable):
		detail := strings.TrimPrefix(cause(err), record.ErrCaptureUnavailable.Error()+": ")
		return "Microphone unavailable: " + detail
	case errors.As(err, &transcriptionErr):
		return "Transcription failed: " + cause(transcriptionErr.Err)
	case errors.As(err, &clipboardErr):
		if errors.Is(err, clipboard.ErrUnavailable) {
			return "Clipboard unavailable: install wl-copy, xclip, or xsel"
		}
		return "Copy failed: " + cause(clipboardErr.Err)
	case errors.Is(err, ErrModelNotLoaded):
		return "Model not loaded"
	default:
		return cause(err)
	}
}

func cause(err error) string {
	if err == nil {
		return "unknown error"
	}
	msg := strings.TrimSpace(err.Error())
	if line, _, ok := strings.Cut(msg, "\n"); ok {
		msg = line
	}
	return msg
}
