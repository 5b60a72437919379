package workflow

import (
	"fmt"

	"github.com/joseph-ayodele/finreport/internal/common"
)

// State is a dashboard workflow state.
type State int

const (
	Idle State = iota
	FileSelected
	Uploading
	Uploaded
	Generating
	Navigated
)

var stateNames = [...]string{"idle", "file_selected", "uploading", "uploaded", "generating", "navigated"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Event drives the workflow from one state to the next.
type Event int

const (
	SelectValid Event = iota
	UploadStarted
	UploadSucceeded
	UploadFailed
	GenerateStarted
	GenerateSucceeded
	GenerateFailed
	Reset
)

var eventNames = [...]string{
	"select_valid", "upload_started", "upload_succeeded", "upload_failed",
	"generate_started", "generate_succeeded", "generate_failed", "reset",
}

func (e Event) String() string {
	if e < 0 || int(e) >= len(eventNames) {
		return fmt.Sprintf("event(%d)", int(e))
	}
	return eventNames[e]
}

// ErrInvalidTransition is returned for an event the current state does not accept.
var ErrInvalidTransition = common.NewAppError("INVALID_TRANSITION", "event not allowed in current state", common.ErrConflict)

type edge struct {
	from State
	on   Event
}

var transitions = map[edge]State{
	{Idle, SelectValid}:             FileSelected,
	{FileSelected, SelectValid}:     FileSelected,
	{FileSelected, UploadStarted}:   Uploading,
	{Uploading, UploadSucceeded}:    Uploaded,
	{Uploading, UploadFailed}:       FileSelected,
	{Uploaded, GenerateStarted}:     Generating,
	{Generating, GenerateSucceeded}: Navigated,
	{Generating, GenerateFailed}:    Uploaded,
}

// Transition returns the state reached from s on e. Reset leads to Idle from
// anywhere; unlisted pairs return ErrInvalidTransition and leave s as is.
func Transition(s State, e Event) (State, error) {
	if e == Reset {
		return Idle, nil
	}
	if next, ok := transitions[edge{s, e}]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}

// CanGenerate reports whether the generate trigger is available in s.
func CanGenerate(s State) bool { return s == Uploaded }

// CanUpload reports whether the upload trigger is available in s.
func CanUpload(s State) bool { return s == FileSelected }
