package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/entity"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/intake"
	"github.com/joseph-ayodele/finreport/internal/storage"
)

// Recorder stores workflow milestones as document and extract_job rows.
type Recorder struct {
	Docs   DocumentRepository
	Jobs   ExtractJobRepository
	logger *slog.Logger
}

func NewRecorder(docs DocumentRepository, jobs ExtractJobRepository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{Docs: docs, Jobs: jobs, logger: logger}
}

func (r *Recorder) DocumentUploaded(ctx context.Context, sessionID string, f intake.File, st storage.Stored) (string, error) {
	doc, err := r.Docs.Create(ctx, entity.Document{
		SessionID:    sessionID,
		Filename:     f.Name,
		MediaType:    f.MediaType,
		SizeBytes:    st.Size,
		ContentHash:  st.SHA256,
		ReferenceURL: st.URL,
		UploadedAt:   st.UploadedAt,
	})
	if err != nil {
		return "", err
	}
	return doc.ID.String(), nil
}

func (r *Recorder) ExtractionStarted(ctx context.Context, docID, referenceURL string) (string, error) {
	id, err := uuid.Parse(docID)
	if err != nil {
		return "", fmt.Errorf("document id: %w", err)
	}
	job, err := r.Jobs.Start(ctx, id, referenceURL)
	if err != nil {
		return "", err
	}
	return job.ID.String(), nil
}

func (r *Recorder) ExtractionFinished(ctx context.Context, jobID string, res extract.Result, cause error) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("job id: %w", err)
	}
	if cause != nil {
		return r.Jobs.FinishFailure(ctx, id, ClassifyFailure(cause))
	}
	raw, err := json.Marshal(map[string]any(res))
	if err != nil {
		return r.Jobs.FinishFailure(ctx, id, JobFailure{Kind: "encode", Message: err.Error()})
	}
	return r.Jobs.FinishSuccess(ctx, id, raw, len(res))
}

// ClassifyFailure maps an extraction error onto a stored failure record.
func ClassifyFailure(err error) JobFailure {
	var se *extract.StatusError
	var me *extract.MalformedResponseError
	switch {
	case errors.As(err, &se):
		return JobFailure{Kind: "status", Message: se.Error(), HTTPStatus: se.StatusCode}
	case errors.As(err, &me):
		return JobFailure{Kind: "malformed", Message: me.Error()}
	case errors.Is(err, common.ErrUnavailable):
		return JobFailure{Kind: "transport", Message: err.Error()}
	default:
		return JobFailure{Kind: "encode", Message: err.Error()}
	}
}
