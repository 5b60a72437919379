package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/constants"
)

// ExtractJob is one call to the extraction service for a document.
type ExtractJob struct {
	ID           uuid.UUID           `json:"id"`
	DocumentID   uuid.UUID           `json:"document_id"`
	ReferenceURL string              `json:"reference_url"`
	Status       constants.JobStatus `json:"status"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	ErrorKind    *string             `json:"error_kind,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	HTTPStatus   *int                `json:"http_status,omitempty"`
	ResultJSON   json.RawMessage     `json:"result_json,omitempty"`
	Periods      int                 `json:"periods"`
}
