package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/session"
)

var errInteractiveRequiresTTY = errors.New("interactive recording requires a terminal on stdin; use \"voxnote transcribe\" for audio files")

func newRecordCmd(app *appState) *cobra.Command {
	var copyResult bool

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a voice note in line mode and print the transcript",
		Long: "Record a voice note without the full-screen interface. Press Enter to start\n" +
			"and again to stop; recordings stop on their own after " + record.MaxDuration.String() + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.runLineMode(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), copyResult)
		},
	}

	cmd.Flags().BoolVar(&copyResult, "copy", false, "Copy the transcript to the clipboard")
	return cmd
}

// stateError reports a controller error state with its status message.
type stateError struct {
	message string
	err     error
}

func (e *stateError) Error() string {
	return e.message
}

func (e *stateError) Unwrap() error {
	return e.err
}

func errorFromSnapshot(snap session.Snapshot) error {
	message := snap.Message
	if message == "" {
		message = "voxnote stopped in an error state"
	}
	return &stateError{message: message, err: snap.Err}
}

// runLineMode drives one record, stop and transcribe cycle through the
// session controller.
func (a *appState) runLineMode(ctx context.Context, stdout, stderr io.Writer, copyResult bool) error {
	ctrl, err := a.newController()
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
	setLoad, stopLoad := startPercentProgress(a.progressEnabled(), "Loading model "+a.model)
	snap, err := awaitSnapshot(ctx, ctrl, func(s session.Snapshot) bool {
		setLoad(s.ProgressPercent)
		return s.State == session.StateReady || s.State == session.StateError
	})
	stopLoad()
	if err != nil {
		return err
	}
	if snap.State == session.StateError {
		return errorFromSnapshot(snap)
	}

	if err := a.prompt(stderr, "Press Enter to start recording."); err != nil {
		return err
	}

	ctrl.Dispatch(session.StartRecording{})
	snap, err = awaitSnapshot(ctx, ctrl, func(s session.Snapshot) bool {
		return s.State == session.StateRecording || s.State == session.StateError
	})
	if err != nil {
		return err
	}
	if snap.State == session.StateError {
		return errorFromSnapshot(snap)
	}
	a.log().Info("recording started", zap.String("session", snap.SessionID))

	stopRecording := startDurationProgress(a.progressEnabled(), "Recording", record.MaxDuration)
	pressed := make(chan error, 1)
	go func() {
		pressed <- a.prompt(stderr, "Recording... press Enter to stop.")
	}()

	for snap.State == session.StateRecording {
		select {
		case <-ctx.Done():
			stopRecording()
			return ctx.Err()
		case err := <-pressed:
			pressed = nil
			if err != nil {
				stopRecording()
				return err
			}
			ctrl.Dispatch(session.StopRecording{})
		case snap = <-ctrl.Updates():
		}
	}
	stopRecording()
	if snap.State == session.StateError {
		return errorFromSnapshot(snap)
	}

	stopSpinner := startSpinner(a.progressEnabled(), "Transcribing")
	snap, err = awaitSnapshot(ctx, ctrl, func(s session.Snapshot) bool {
		return s.State == session.StateDisplayingResult || s.State == session.StateError
	})
	stopSpinner()
	if err != nil {
		return err
	}
	if snap.State == session.StateError {
		return errorFromSnapshot(snap)
	}

	var transcript string
	if snap.ResultText != nil {
		transcript = *snap.ResultText
	}
	fmt.Fprintln(stdout, transcript)

	if strings.TrimSpace(transcript) == "" {
		a.log().Warn(session.NoSpeechHint())
		return nil
	}
	if !copyResult {
		return nil
	}

	ctrl.Dispatch(session.CopyResult{})
	snap, err = awaitSnapshot(ctx, ctrl, func(s session.Snapshot) bool {
		return s.Notice != ""
	})
	if err != nil {
		return err
	}
	if snap.Notice != "Copied to clipboard" {
		a.log().Warn("transcript left on stdout", zap.String("reason", snap.Notice))
		return nil
	}
	a.log().Info("transcript copied to clipboard")
	return nil
}

// awaitSnapshot returns the first published snapshot that satisfies done.
func awaitSnapshot(ctx context.Context, ctrl *session.Controller, done func(session.Snapshot) bool) (session.Snapshot, error) {
	snap := ctrl.Snapshot()
	for !done(snap) {
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case snap = <-ctrl.Updates():
		}
	}
	return snap, nil
}

func (a *appState) prompt(out io.Writer, message string) error {
	if a.promptFn != nil {
		return a.promptFn(out, message)
	}
	in := a.in
	if in == nil {
		in = os.Stdin
	}
	return waitForEnter(in, out, message)
}

func waitForEnter(in io.Reader, out io.Writer, message string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return errInteractiveRequiresTTY
	}

	if message != "" {
		if _, err := fmt.Fprintln(out, message); err != nil {
			return err
		}
	}

	_, err := bufio.NewReader(in).ReadString('\n')
	return err
}
