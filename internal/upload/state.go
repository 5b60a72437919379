package upload

import (
	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/storage"
)

// State is a snapshot of the upload lifecycle.
type State struct {
	Status       constants.UploadStatus
	Percent      int
	ReferenceURL string
	Message      string
}

// StatusText is the user-visible line for the state.
func (s State) StatusText() string {
	switch s.Status {
	case constants.UploadInProgress:
		return constants.StatusTextUploading
	case constants.UploadSucceeded:
		return constants.StatusTextUploadOK
	case constants.UploadFailed:
		return constants.StatusTextUploadFailed
	default:
		return ""
	}
}

// Event is one item of an upload stream: either a progress percentage or,
// last, the terminal outcome.
type Event struct {
	Percent  int
	Terminal bool
	State    State
	Stored   *storage.Stored // set on success
	Err      error           // set on failure
}

var (
	// ErrUploadInFlight is returned when Upload is called while a transfer is running.
	ErrUploadInFlight = common.NewAppError("UPLOAD_IN_FLIGHT", "an upload is already in progress", common.ErrConflict)
	// ErrAlreadyUploaded is returned once a reference URL has been issued for the session.
	ErrAlreadyUploaded = common.NewAppError("ALREADY_UPLOADED", "the document has already been uploaded", common.ErrConflict)
)

// TransferError wraps a storage failure; Error() is safe to show to users.
type TransferError struct {
	Cause error
}

func (e *TransferError) Error() string { return constants.StatusTextUploadFailed }

func (e *TransferError) Unwrap() error { return e.Cause }
