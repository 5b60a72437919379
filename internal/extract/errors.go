package extract

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/finreport/internal/common"
)

// ErrExtractionInFlight is returned when an extraction is requested while another is pending.
var ErrExtractionInFlight = common.NewAppError("EXTRACTION_IN_FLIGHT", "an extraction is already in progress", common.ErrConflict)

// StatusError reports a non-2xx answer from the extraction service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("extraction service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("extraction service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) Is(target error) bool {
	return target == common.ErrUnavailable
}

// MalformedResponseError reports a 2xx answer whose body is not a usable JSON object.
type MalformedResponseError struct {
	Cause   error
	Excerpt string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Cause)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Cause
}

func (e *MalformedResponseError) Is(target error) bool {
	return target == common.ErrUnavailable
}

// IsStatusError reports whether err came from a non-success status.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}

// IsMalformed reports whether err came from an unparsable response body.
func IsMalformed(err error) bool {
	var me *MalformedResponseError
	return errors.As(err, &me)
}

func excerpt(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
