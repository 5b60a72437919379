// Package ingest discovers report PDFs on the local filesystem for batch
// processing.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/entity"
	"github.com/joseph-ayodele/finreport/internal/intake"
)

// ErrDuplicate marks a file whose content was already seen.
var ErrDuplicate = common.NewAppError("DUPLICATE", "document already processed", common.ErrConflict)

// HashLookup finds a previously stored document by content hash. It returns
// an error matching common.ErrNotFound when there is none.
type HashLookup interface {
	GetByHash(ctx context.Context, hash []byte) (*entity.Document, error)
}

// Candidate is a validated PDF ready for upload.
type Candidate struct {
	Path    string
	File    intake.File
	HashHex string
}

// Result is the per-file outcome of a directory scan.
type Result struct {
	Path      string
	Candidate *Candidate
	Duplicate bool
	Err       string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned    uint32
	Matched    uint32
	Accepted   uint32
	Duplicates uint32
	Rejected   uint32
}

// Scanner loads PDFs through the same rules the dashboard intake applies.
type Scanner struct {
	MaxBytes   int64
	SkipHidden bool
	Seen       HashLookup // optional
	logger     *slog.Logger

	mu     sync.Mutex
	hashes map[string]struct{}
}

func NewScanner(maxBytes int64, seen HashLookup, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scanner{
		MaxBytes:   maxBytes,
		SkipHidden: true,
		Seen:       seen,
		logger:     logger,
		hashes:     make(map[string]struct{}),
	}
}

// Load reads and validates one file. Content already returned by this
// Scanner, or already stored according to Seen, yields ErrDuplicate.
func (s *Scanner) Load(ctx context.Context, path string) (Candidate, error) {
	f, err := intake.FromPath(path)
	if err != nil {
		return Candidate{}, err
	}
	d, err := intake.NewController(s.MaxBytes, s.logger).Select(f)
	if d != intake.Accepted {
		if err == nil {
			err = common.NewAppError("EMPTY_FILE", "file is empty", common.ErrInvalidInput)
		}
		return Candidate{}, err
	}

	sum := sha256.Sum256(f.Data)
	hx := hex.EncodeToString(sum[:])

	s.mu.Lock()
	_, dup := s.hashes[hx]
	s.hashes[hx] = struct{}{}
	s.mu.Unlock()
	if dup {
		return Candidate{}, ErrDuplicate
	}
	if s.Seen != nil {
		doc, err := s.Seen.GetByHash(ctx, sum[:])
		switch {
		case err == nil:
			s.logger.Info("ingest.already_stored", "path", path, "document_id", doc.ID)
			return Candidate{}, ErrDuplicate
		case !errors.Is(err, common.ErrNotFound):
			return Candidate{}, fmt.Errorf("lookup %s: %w", path, err)
		}
	}
	return Candidate{Path: path, File: f, HashHex: hx}, nil
}

// ScanDirectory walks root and loads every .pdf file below it.
func (s *Scanner) ScanDirectory(ctx context.Context, root string) ([]Result, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []Result
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			stats.Rejected++
			return nil
		}
		if s.SkipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !IsPDFPath(path) {
			return nil
		}
		stats.Matched++

		c, err := s.Load(ctx, path)
		switch {
		case errors.Is(err, ErrDuplicate):
			results = append(results, Result{Path: path, Duplicate: true})
			stats.Duplicates++
		case err != nil:
			results = append(results, Result{Path: path, Err: common.FirstMessage(err)})
			stats.Rejected++
		default:
			results = append(results, Result{Path: path, Candidate: &c})
			stats.Accepted++
		}
		return nil
	})
	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	s.logger.Info("ingest.scan_done", "root", root,
		"scanned", stats.Scanned, "matched", stats.Matched, "accepted", stats.Accepted,
		"duplicates", stats.Duplicates, "rejected", stats.Rejected)
	return results, stats, nil
}

// IsPDFPath reports whether path has a .pdf extension.
func IsPDFPath(path string) bool {
	return constants.NormalizeExt(filepath.Ext(path)) == constants.ExtPDF
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
