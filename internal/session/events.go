package session

import (
	"github.com/fmueller/voxnote/internal/record"
	"github.com/fmueller/voxnote/internal/whisper"
)

// Event is anything the controller loop reduces. Only the exported user
// events can be built outside this package.
type Event interface {
	event()
}

type LoadModel struct {
	Size string
}

type StartRecording struct{}

type StopRecording struct{}

type SetLanguage struct {
	Language string
}

type CopyResult struct{}

// ToggleRecording starts or stops depending on the current state.
type ToggleRecording struct{}

func (LoadModel) event()       {}
func (StartRecording) event()  {}
func (StopRecording) event()   {}
func (SetLanguage) event()     {}
func (CopyResult) event()      {}
func (ToggleRecording) event() {}

type loadProgress struct {
	gen     uint64
	percent int
}

type loadFinished struct {
	gen        uint64
	size       string
	capability whisper.Capability
	err        error
}

type recorderEvent struct {
	sessionID string
	ev        record.Event
}

type transcriptionFinished struct {
	sessionID string
	gen       uint64
	text      string
	err       error
}

type copyFinished struct {
	err error
}

func (loadProgress) event()          {}
func (loadFinished) event()          {}
func (recorderEvent) event()         {}
func (transcriptionFinished) event() {}
func (copyFinished) event()          {}
