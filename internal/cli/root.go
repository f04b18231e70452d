package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/voxnote/internal/audio"
	"github.com/fmueller/voxnote/internal/clipboard"
	"github.com/fmueller/voxnote/internal/loader"
	"github.com/fmueller/voxnote/internal/logging"
	"github.com/fmueller/voxnote/internal/platform"
	"github.com/fmueller/voxnote/internal/prefs"
	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/session"
	"github.com/fmueller/voxnote/internal/tui"
	"github.com/fmueller/voxnote/internal/version"
	"github.com/fmueller/voxnote/internal/whisper"
)

type appState struct {
	verbose      bool
	jsonLogs     bool
	noProgress   bool
	logFile      string
	model        string
	modelDir     string
	language     string
	autoDownload bool
	backend      string
	input        string
	inputFormat  string
	silenceGate  bool
	silenceDBFS  float64

	logger *zap.Logger
	in     io.Reader

	loaderFn   func() (session.ModelLoader, error)
	recorderFn func() (session.Recorder, error)
	copier     clipboard.Copier
	promptFn   func(out io.Writer, message string) error
	uiFn       func(ctx context.Context, ctrl tui.Controller, themes tui.ThemeStore) error
}

func NewRootCmd() *cobra.Command {
	app := &appState{
		model:        whisper.DefaultModel,
		language:     session.DefaultLanguage,
		autoDownload: true,
		backend:      "auto",
		silenceGate:  true,
		silenceDBFS:  -65,
		in:           os.Stdin,
	}

	cmd := &cobra.Command{
		Use:           "voxnote",
		Short:         "Record voice notes and transcribe them with a local whisper model",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.Current().Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initLogger(!cmd.HasParent())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = app.log().Sync()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runTUI(cmd.Context())
		},
	}

	cmd.SetVersionTemplate("{{.Name}} v{{.Version}}\n")

	bindLoggingFlags(cmd, app)
	bindModelFlags(cmd, app)
	bindRecordingFlags(cmd, app)
	bindSilenceFlags(cmd, app)

	cmd.AddCommand(newRecordCmd(app))
	cmd.AddCommand(newTranscribeCmd(app))
	cmd.AddCommand(newDevicesCmd(app))
	cmd.AddCommand(newSetupCmd(app))
	cmd.AddCommand(newThemeCmd(app))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func bindLoggingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.verbose, "verbose", app.verbose, "Enable verbose logs")
	flags.BoolVar(&app.jsonLogs, "json", app.jsonLogs, "Enable JSON logging")
	flags.BoolVar(&app.noProgress, "no-progress", app.noProgress, "Disable progress indicators")
	flags.StringVar(&app.logFile, "log-file", app.logFile, "Write logs to this file (the interactive UI defaults to the data directory)")
}

func bindModelFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.model, "model", app.model, "Model size: tiny|base|small")
	flags.StringVar(&app.modelDir, "model-dir", app.modelDir, "Directory where models are stored")
	flags.StringVar(&app.language, "language", app.language, "Transcription language: auto|en|es|fr|de")
	flags.BoolVar(&app.autoDownload, "auto-download", app.autoDownload, "Automatically download missing models")
}

func bindRecordingFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&app.backend, "backend", app.backend, "Recording backend: auto|pw-record|arecord|ffmpeg")
	flags.StringVar(&app.input, "input", app.input, "Input device (run \"voxnote devices\" to list); e.g. node-ID (pw-record), hw:1,0 (arecord), :1 (ffmpeg)")
	flags.StringVar(&app.inputFormat, "input-format", app.inputFormat, "Input format for ffmpeg backend (pulse|alsa)")
}

func bindSilenceFlags(cmd *cobra.Command, app *appState) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&app.silenceGate, "silence-gate", app.silenceGate, "Detect near-silent audio and skip transcription")
	flags.Float64Var(&app.silenceDBFS, "silence-threshold-dbfs", app.silenceDBFS, "Silence gate threshold in dBFS")
}

// initLogger sends interactive UI logs to a file since the alternate screen
// owns the terminal.
func (a *appState) initLogger(interactive bool) error {
	file := a.logFile
	if file == "" && interactive {
		dirs, err := platform.ResolveDirs()
		if err != nil {
			return err
		}
		file = dirs.LogFile()
	}

	logger, err := logging.New(logging.Options{Verbose: a.verbose, JSON: a.jsonLogs, File: file})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	return nil
}

func (a *appState) runTUI(ctx context.Context) error {
	ctrl, err := a.newController()
	if err != nil {
		return err
	}
	themes, err := a.themeStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		<-ctrl.Done()
	}()
	go func() {
		_ = ctrl.Run(ctx)
	}()

	ctrl.Dispatch(session.LoadModel{Size: a.model})
	a.log().Info("interactive session started", zap.String("model", a.model), zap.String("language", a.language))

	ui := a.uiFn
	if ui == nil {
		ui = tui.Run
	}
	if err := ui(ctx, ctrl, themes); err != nil && ctx.Err() == nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}

func (a *appState) newController() (*session.Controller, error) {
	modelLoader, err := a.newLoader(true)
	if err != nil {
		return nil, err
	}
	recorder, err := a.newRecorder()
	if err != nil {
		return nil, err
	}

	var gate *audio.Gate
	if a.silenceGate {
		gate = &audio.Gate{ThresholdDBFS: a.silenceDBFS}
	}

	return session.New(session.Config{
		Loader:      modelLoader,
		Recorder:    recorder,
		Clipboard:   a.clipboard(),
		Model:       a.model,
		Language:    a.language,
		SilenceGate: gate,
		Logger:      a.log(),
	}), nil
}

// newLoader builds the model loader. quiet suppresses the download bar for
// callers that render load progress themselves.
func (a *appState) newLoader(quiet bool) (session.ModelLoader, error) {
	if a.loaderFn != nil {
		return a.loaderFn()
	}

	modelDir, err := platform.ResolveModelDir(a.modelDir)
	if err != nil {
		return nil, err
	}
	return loader.New(loader.Config{
		ModelDir:     modelDir,
		AutoDownload: a.autoDownload,
		NoProgress:   quiet || !a.progressEnabled(),
		Logger:       a.log(),
	}), nil
}

func (a *appState) newRecorder() (session.Recorder, error) {
	if a.recorderFn != nil {
		return a.recorderFn()
	}

	dirs, err := platform.ResolveDirs()
	if err != nil {
		return nil, err
	}

	var source record.Source
	cmdSource, err := record.NewSource(a.backend, record.Config{
		SampleRate: audio.SampleRate,
		Channels:   audio.Channels,
		Input:      a.input,
		Format:     a.inputFormat,
		Logger:     a.log(),
	})
	if err != nil {
		// Surfaced as a capture failure on the first recording attempt.
		a.log().Warn("no capture backend available", zap.String("backend", a.backend), zap.Error(err))
		source = unavailableSource{err: err}
	} else {
		source = cmdSource
	}

	return record.NewRecorder(record.RecorderConfig{
		Source:    source,
		OutputDir: dirs.Recordings(),
		Logger:    a.log(),
	}), nil
}

type unavailableSource struct {
	err error
}

func (s unavailableSource) Open(context.Context) (record.Stream, error) {
	return nil, s.err
}

func (a *appState) clipboard() clipboard.Copier {
	if a.copier != nil {
		return a.copier
	}
	return clipboard.NewSystem(a.log())
}

func (a *appState) themeStore() (*prefs.Preferences, error) {
	dirs, err := platform.ResolveDirs()
	if err != nil {
		return nil, err
	}
	return prefs.New(prefs.NewFileStore(dirs.Preferences()), a.log()), nil
}

func (a *appState) log() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger
}

func (a *appState) progressEnabled() bool {
	if a.noProgress {
		return false
	}
	return term.IsTerminal(int(os.Stderr.Fd()))
}
