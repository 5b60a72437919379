package storage

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/constants"
)

// LocalStore writes documents under a directory and serves them back from
// <baseURL>/files/<id>.pdf.
type LocalStore struct {
	Dir     string
	BaseURL string
	logger  *slog.Logger
}

func NewLocalStore(dir, baseURL string, logger *slog.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{Dir: dir, BaseURL: strings.TrimRight(baseURL, "/"), logger: logger}, nil
}

// Put streams obj.Body into a new file, reporting progress by bytes written.
// The file becomes visible under its final name only after a complete write.
func (s *LocalStore) Put(ctx context.Context, obj Object, progress chan<- int) (Stored, error) {
	id := uuid.New().String()
	start := time.Now()

	tmp, err := os.CreateTemp(s.Dir, ".upload-*")
	if err != nil {
		return Stored{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op after a successful rename
		_ = os.Remove(tmpName)
	}()

	h := sha256.New()
	pr := &progressReader{ctx: ctx, r: obj.Body, total: obj.Size, out: progress}
	n, err := io.Copy(io.MultiWriter(tmp, h), pr)
	if cerr := tmp.Close(); err == nil && cerr != nil {
		err = cerr
	}
	if err != nil {
		s.logger.Error("storage.put_failed", "id", id, "name", obj.Name, "error", err)
		return Stored{}, fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmpName, s.path(id)); err != nil {
		return Stored{}, fmt.Errorf("finalize document: %w", err)
	}

	out := Stored{
		ID:         id,
		URL:        fmt.Sprintf("%s/files/%s.%s", s.BaseURL, id, constants.ExtPDF),
		SHA256:     h.Sum(nil),
		Size:       n,
		UploadedAt: time.Now().UTC(),
	}
	s.logger.Info("storage.put_ok", "id", id, "name", obj.Name, "bytes", n, "elapsed_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Open returns the stored document with the given id.
func (s *LocalStore) Open(id string) (*os.File, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	f, err := os.Open(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStore) path(id string) string {
	return filepath.Join(s.Dir, id+"."+constants.ExtPDF)
}

// progressReader reports the share of total consumed so far. A percentage is
// sent only when it grows, so the stream is non-decreasing by construction.
type progressReader struct {
	ctx   context.Context
	r     io.Reader
	total int64
	read  int64
	last  int
	out   chan<- int
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.out != nil && p.total > 0 && n > 0 {
		pct := int(p.read * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		if pct > p.last {
			p.last = pct
			select {
			case p.out <- pct:
			case <-p.ctx.Done():
				return n, p.ctx.Err()
			}
		}
	}
	return n, err
}
