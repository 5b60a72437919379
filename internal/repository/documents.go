package repository

import (
	"context"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/internal/entity"
)

const documentTable = "document"

var documentColumns = []string{
	"id", "session_id", "filename", "media_type", "size_bytes", "content_hash", "reference_url", "uploaded_at",
}

type DocumentRepository interface {
	Create(ctx context.Context, doc entity.Document) (*entity.Document, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.Document, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Document, error)
}

type documentRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewDocumentRepository(db *DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) Create(ctx context.Context, doc entity.Document) (*entity.Document, error) {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	doc.UploadedAt = doc.UploadedAt.UTC()

	q, args := r.db.builder().Insert(documentTable).
		Columns(documentColumns...).
		Values(doc.ID, doc.SessionID, doc.Filename, doc.MediaType, doc.SizeBytes, doc.ContentHash, doc.ReferenceURL, doc.UploadedAt).
		Query()
	if _, err := r.db.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create document", "filename", doc.Filename, "reference_url", doc.ReferenceURL, "error", err)
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	return r.one(ctx, entsql.EQ("id", id))
}

func (r *documentRepo) GetByHash(ctx context.Context, hash []byte) (*entity.Document, error) {
	return r.one(ctx, entsql.EQ("content_hash", hash))
}

func (r *documentRepo) ListRecent(ctx context.Context, limit int) ([]entity.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	q, args := r.db.builder().Select(documentColumns...).
		From(entsql.Table(documentTable)).
		OrderBy(entsql.Desc("uploaded_at")).
		Limit(limit).
		Query()
	return r.list(ctx, q, args)
}

func (r *documentRepo) one(ctx context.Context, p *entsql.Predicate) (*entity.Document, error) {
	q, args := r.db.builder().Select(documentColumns...).
		From(entsql.Table(documentTable)).
		Where(p).
		OrderBy(entsql.Desc("uploaded_at")).
		Limit(1).
		Query()
	docs, err := r.list(ctx, q, args)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ErrNotFound
	}
	return &docs[0], nil
}

func (r *documentRepo) list(ctx context.Context, q string, args []any) ([]entity.Document, error) {
	rows, err := r.db.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to query documents", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []entity.Document
	for rows.Next() {
		var d entity.Document
		if err := rows.Scan(&d.ID, &d.SessionID, &d.Filename, &d.MediaType, &d.SizeBytes, &d.ContentHash, &d.ReferenceURL, &d.UploadedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
