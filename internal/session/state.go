package session

import "time"

type State int

const (
	StateIdle State = iota
	StateLoadingModel
	StateReady
	StateRecording
	StateProcessing
	StateDisplayingResult
	StateError
)

var AllStates = []State{
	StateIdle,
	StateLoadingModel,
	StateReady,
	StateRecording,
	StateProcessing,
	StateDisplayingResult,
	StateError,
}

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingModel:
		return "loading_model"
	case StateReady:
		return "ready"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	case StateDisplayingResult:
		return "displaying_result"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Languages offered by the interactive selectors. Any other whisper
// language code is accepted too.
var Languages = []string{"auto", "en", "es", "fr", "de"}

const DefaultLanguage = "auto"

// NextLanguage cycles through Languages.
func NextLanguage(current string) string {
	for i, lang := range Languages {
		if lang == current {
			return Languages[(i+1)%len(Languages)]
		}
	}
	return Languages[0]
}

// Session is one recording-through-display cycle.
type Session struct {
	ID         string
	StartedAt  time.Time
	Fragments  [][]byte
	ResultText *string
}

// Snapshot is an immutable view of the controller published after every
// reduced event.
type Snapshot struct {
	Version uint64
	State   State
	// Model is the selected size; LoadedModel is the size of the current
	// handle, empty when none is loaded.
	Model           string
	LoadedModel     string
	Language        string
	ProgressPercent int

	SessionID string
	StartedAt time.Time
	Fragments int
	// Level is the linear RMS of the newest fragment.
	Level float64

	// ResultText belongs to the current session and is nil until it
	// transcribes successfully. DisplayText keeps the last result visible
	// across new recordings.
	ResultText  *string
	DisplayText string

	// Message explains the error state. Notice is a side notification that
	// does not change state.
	Message string
	Notice  string
	Err     error
}

// HasModel reports whether a capability is loaded.
func (s Snapshot) HasModel() bool {
	return s.LoadedModel != ""
}

// Elapsed is the recording time so far, zero outside a recording.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.State != StateRecording || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}
