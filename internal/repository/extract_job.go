package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/entity"
)

const extractJobTable = "extract_job"

var extractJobColumns = []string{
	"id", "document_id", "reference_url", "status", "started_at", "finished_at",
	"error_kind", "error_message", "http_status", "result_json", "periods",
}

// JobFailure describes why an extraction did not produce a result.
type JobFailure struct {
	Kind       string // "status", "malformed", "transport", "encode"
	Message    string
	HTTPStatus int // 0 when no response status applies
}

type ExtractJobRepository interface {
	Start(ctx context.Context, documentID uuid.UUID, referenceURL string) (*entity.ExtractJob, error)
	FinishSuccess(ctx context.Context, jobID uuid.UUID, result json.RawMessage, periods int) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, failure JobFailure) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]entity.ExtractJob, error)
	ListRecent(ctx context.Context, limit int) ([]entity.ExtractJob, error)
}

type extractJobRepo struct {
	db  *DB
	log *slog.Logger
}

func NewExtractJobRepository(db *DB, log *slog.Logger) ExtractJobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &extractJobRepo{db: db, log: log}
}

func (r *extractJobRepo) Start(ctx context.Context, documentID uuid.UUID, referenceURL string) (*entity.ExtractJob, error) {
	job := entity.ExtractJob{
		ID:           uuid.New(),
		DocumentID:   documentID,
		ReferenceURL: referenceURL,
		Status:       constants.JobStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	q, args := r.db.builder().Insert(extractJobTable).
		Columns("id", "document_id", "reference_url", "status", "started_at", "periods").
		Values(job.ID, job.DocumentID, job.ReferenceURL, string(job.Status), job.StartedAt, 0).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.log.Error("extract_job start failed", "document_id", documentID, "err", err)
		return nil, err
	}
	r.log.Info("extract_job started", "job_id", job.ID, "document_id", documentID)
	return &job, nil
}

func (r *extractJobRepo) FinishSuccess(ctx context.Context, jobID uuid.UUID, result json.RawMessage, periods int) error {
	q, args := r.db.builder().Update(extractJobTable).
		Set("status", string(constants.JobStatusOK)).
		Set("finished_at", time.Now().UTC()).
		Set("result_json", string(result)).
		Set("periods", periods).
		Where(entsql.EQ("id", jobID)).
		Query()
	if err := r.update(ctx, q, args); err != nil {
		r.log.Error("extract_job finish(OK) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Info("extract_job finished (OK)", "job_id", jobID, "periods", periods)
	return nil
}

func (r *extractJobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, failure JobFailure) error {
	upd := r.db.builder().Update(extractJobTable).
		Set("status", string(constants.JobStatusFailed)).
		Set("finished_at", time.Now().UTC()).
		Set("error_kind", failure.Kind).
		Set("error_message", failure.Message)
	if failure.HTTPStatus != 0 {
		upd = upd.Set("http_status", failure.HTTPStatus)
	}
	q, args := upd.Where(entsql.EQ("id", jobID)).Query()
	if err := r.update(ctx, q, args); err != nil {
		r.log.Error("extract_job finish(FAILED) failed", "job_id", jobID, "err", err)
		return err
	}
	r.log.Warn("extract_job finished (FAILED)", "job_id", jobID, "kind", failure.Kind, "error", failure.Message)
	return nil
}

func (r *extractJobRepo) update(ctx context.Context, q string, args []any) error {
	res, err := r.db.exec(ctx, q, args)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *extractJobRepo) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.ExtractJob, error) {
	jobs, err := r.selectJobs(ctx, entsql.EQ("id", jobID), 1)
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, ErrNotFound
	}
	return &jobs[0], nil
}

func (r *extractJobRepo) ListByDocument(ctx context.Context, documentID uuid.UUID, limit int) ([]entity.ExtractJob, error) {
	return r.selectJobs(ctx, entsql.EQ("document_id", documentID), limit)
}

func (r *extractJobRepo) ListRecent(ctx context.Context, limit int) ([]entity.ExtractJob, error) {
	return r.selectJobs(ctx, nil, limit)
}

func (r *extractJobRepo) selectJobs(ctx context.Context, p *entsql.Predicate, limit int) ([]entity.ExtractJob, error) {
	if limit <= 0 {
		limit = 50
	}
	sel := r.db.builder().Select(extractJobColumns...).From(entsql.Table(extractJobTable))
	if p != nil {
		sel = sel.Where(p)
	}
	q, args := sel.OrderBy(entsql.Desc("started_at")).Limit(limit).Query()

	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		r.log.Error("extract_job query failed", "err", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.ExtractJob
	for rows.Next() {
		var (
			j          entity.ExtractJob
			status     string
			finishedAt sql.NullTime
			kind, msg  sql.NullString
			httpStatus sql.NullInt64
			result     sql.NullString
		)
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.ReferenceURL, &status, &j.StartedAt, &finishedAt,
			&kind, &msg, &httpStatus, &result, &j.Periods); err != nil {
			return nil, err
		}
		j.Status = constants.JobStatus(status)
		if finishedAt.Valid {
			t := finishedAt.Time
			j.FinishedAt = &t
		}
		if kind.Valid {
			j.ErrorKind = &kind.String
		}
		if msg.Valid {
			j.ErrorMessage = &msg.String
		}
		if httpStatus.Valid {
			n := int(httpStatus.Int64)
			j.HTTPStatus = &n
		}
		if result.Valid && result.String != "" {
			j.ResultJSON = json.RawMessage(result.String)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
