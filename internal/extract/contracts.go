package extract

import "context"

// Request is the body sent to the extraction service.
type Request struct {
	PDFURL string `json:"pdf_url"`
}

// Extractor turns a stored document reference into an extraction result.
type Extractor interface {
	Extract(ctx context.Context, referenceURL string) (Result, error)
}
