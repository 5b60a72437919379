package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is an uploaded financial report.
type Document struct {
	ID           uuid.UUID `json:"id"`
	SessionID    string    `json:"session_id"`
	Filename     string    `json:"filename"`
	MediaType    string    `json:"media_type"`
	SizeBytes    int64     `json:"size_bytes"`
	ContentHash  []byte    `json:"content_hash"`
	ReferenceURL string    `json:"reference_url"`
	UploadedAt   time.Time `json:"uploaded_at"`
}
