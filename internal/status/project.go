// Package status derives everything a display surface shows from a
// controller snapshot. It keeps no state of its own.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/session"
)

type Kind int

const (
	KindInfo Kind = iota
	KindBusy
	KindRecording
	KindSuccess
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindBusy:
		return "busy"
	case KindRecording:
		return "recording"
	case KindSuccess:
		return "success"
	case KindError:
		return "error"
	default:
		return "info"
	}
}

type Display struct {
	StatusText      string
	Kind            Kind
	ProgressVisible bool
	ProgressPercent int

	RecordLabel        string
	RecordEnabled      bool
	ModelSelectEnabled bool
	CopyEnabled        bool

	Model    string
	Language string
	Notice   string
	Result   string
}

// Project maps a snapshot to display values. now only feeds the elapsed
// recording time.
func Project(s session.Snapshot, now time.Time) Display {
	d := Display{
		RecordLabel:        "Record",
		RecordEnabled:      s.HasModel(),
		ModelSelectEnabled: true,
		CopyEnabled:        strings.TrimSpace(s.DisplayText) != "",
		Model:              s.Model,
		Language:           s.Language,
		Notice:             s.Notice,
		Result:             s.DisplayText,
	}

	switch s.State {
	case session.StateIdle:
		d.StatusText = "Select a model to begin"
		d.Kind = KindInfo
	case session.StateLoadingModel:
		d.StatusText = fmt.Sprintf("Loading model %s... %d%%", s.Model, s.ProgressPercent)
		d.Kind = KindBusy
		d.ProgressVisible = true
		d.ProgressPercent = s.ProgressPercent
		d.RecordEnabled = false
	case session.StateReady:
		d.StatusText = fmt.Sprintf("Ready (%s)", s.LoadedModel)
		d.Kind = KindInfo
	case session.StateRecording:
		d.StatusText = fmt.Sprintf("Recording %s / %s", Clock(s.Elapsed(now)), Clock(record.MaxDuration))
		d.Kind = KindRecording
		d.RecordLabel = "Stop"
		d.RecordEnabled = true
		d.ModelSelectEnabled = false
	case session.StateProcessing:
		d.StatusText = "Transcribing..."
		d.Kind = KindBusy
		d.RecordEnabled = false
		d.ModelSelectEnabled = false
	case session.StateDisplayingResult:
		d.StatusText = "Transcription complete"
		if s.ResultText != nil && *s.ResultText == "" {
			d.StatusText = "No speech detected"
		}
		d.Kind = KindSuccess
	case session.StateError:
		d.StatusText = s.Message
		if d.StatusText == "" {
			d.StatusText = "Something went wrong"
		}
		d.Kind = KindError
	}

	return d
}

// Clock formats a duration as m:ss.
func Clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
