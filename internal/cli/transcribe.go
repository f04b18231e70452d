package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/fmueller/voxnote/internal/whisper"
)

func newTranscribeCmd(app *appState) *cobra.Command {
	var copyToClipboard bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe an audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			transcript, err := app.transcribeFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), transcript)
			if strings.TrimSpace(transcript) == "" {
				app.log().Warn(session.NoSpeechHint())
				return nil
			}
			if !copyToClipboard {
				return nil
			}

			if err := app.clipboard().CopyText(cmd.Context(), transcript); err != nil {
				return &session.ClipboardError{Err: err}
			}
			app.log().Info("transcript copied to clipboard")
			return nil
		},
	}

	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Copy transcript to clipboard")
	return cmd
}

// transcribeFile runs the silence gate and one inference pass. Blank results
// come back as the empty string.
func (a *appState) transcribeFile(ctx context.Context, audioPath string) (string, error) {
	audioPath = filepath.Clean(audioPath)
	if _, err := os.Stat(audioPath); err != nil {
		return "", fmt.Errorf("audio file not found: %w", err)
	}

	if a.silentWAV(audioPath) {
		return "", nil
	}

	modelLoader, err := a.newLoader(false)
	if err != nil {
		return "", err
	}
	capability, err := modelLoader.Load(ctx, a.model, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := capability.Close(); err != nil {
			a.log().Debug("failed to release model", zap.Error(err))
		}
	}()

	a.log().Info("transcribing...", zap.String("audio", audioPath), zap.String("model", capability.Model()), zap.String("language", a.language))
	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	started := time.Now()

	result, err := capability.Transcribe(ctx, audioPath, whisper.TranscribeOptions(a.language))
	stopSpinner()
	if err != nil {
		a.log().Warn("transcription failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return "", &session.TranscriptionError{Err: err}
	}
	a.log().Info("transcription finished", zap.Duration("elapsed", time.Since(started)))

	return session.CleanTranscript(result.Text), nil
}

func (a *appState) silentWAV(audioPath string) bool {
	if !a.silenceGate || !strings.EqualFold(filepath.Ext(audioPath), ".wav") {
		return false
	}

	metrics, err := audio.AnalyzeWAV(audioPath)
	if err != nil {
		a.log().Warn("silence gate analysis failed; continuing transcription", zap.Error(err), zap.String("audio", audioPath))
		return false
	}

	gate := audio.Gate{ThresholdDBFS: a.silenceDBFS}
	if !gate.Silent(metrics) {
		return false
	}

	a.log().Info(
		"audio considered silent; skipping transcription",
		zap.String("audio", audioPath),
		zap.Float64("rms_dbfs", metrics.RMSdBFS),
		zap.Float64("peak_dbfs", metrics.PeakdBFS),
		zap.Float64("threshold_dbfs", a.silenceDBFS),
	)
	return true
}
