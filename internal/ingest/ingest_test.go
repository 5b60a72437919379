package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/entity"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type knownHashes map[[32]byte]bool

func (k knownHashes) GetByHash(_ context.Context, hash []byte) (*entity.Document, error) {
	var key [32]byte
	copy(key[:], hash)
	if k[key] {
		return &entity.Document{ID: uuid.New(), ContentHash: hash}, nil
	}
	return nil, common.ErrNotFound
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanDirectory(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "q1.pdf"), "%PDF-1.7 first quarter")
	writeFile(t, filepath.Join(root, "copy-of-q1.PDF"), "%PDF-1.7 first quarter")
	writeFile(t, filepath.Join(root, "fake.pdf"), "just some text")
	writeFile(t, filepath.Join(root, "notes.txt"), "%PDF-1.7 not by extension")
	writeFile(t, filepath.Join(root, ".trash", "old.pdf"), "%PDF-1.7 hidden")
	writeFile(t, filepath.Join(root, "sub", "q2.pdf"), "%PDF-1.7 second quarter")
	writeFile(t, filepath.Join(root, "sub", "stored.pdf"), "%PDF-1.7 stored earlier")

	seen := knownHashes{sha256.Sum256([]byte("%PDF-1.7 stored earlier")): true}
	s := NewScanner(1<<20, seen, quiet())

	results, stats, err := s.ScanDirectory(context.Background(), root)
	if err != nil {
		t.Fatalf("ScanDirectory: %v", err)
	}
	if stats.Matched != 5 || stats.Accepted != 2 || stats.Duplicates != 2 || stats.Rejected != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var accepted []string
	for _, r := range results {
		if r.Candidate != nil {
			accepted = append(accepted, filepath.Base(r.Path))
			if r.Candidate.File.MediaType != "application/pdf" || len(r.Candidate.HashHex) != 64 {
				t.Errorf("candidate = %+v", r.Candidate)
			}
		}
		if filepath.Base(r.Path) == "fake.pdf" && r.Err != "Only PDF files are allowed!" {
			t.Errorf("fake.pdf err = %q", r.Err)
		}
	}
	sort.Strings(accepted)
	// copy-of-q1.PDF sorts first in the walk, so it is the accepted twin
	if len(accepted) != 2 || accepted[1] != "q2.pdf" {
		t.Fatalf("accepted = %v", accepted)
	}
}

func TestLoadRejectsOversize(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "big.pdf")
	writeFile(t, path, "%PDF-1.7 "+string(bytes.Repeat([]byte("x"), 64)))

	_, err := NewScanner(16, nil, quiet()).Load(context.Background(), path)
	if !errors.Is(err, common.ErrValidation) {
		t.Fatalf("Load oversize err = %v, want validation error", err)
	}
}

func TestScanDirectoryRequiresRoot(t *testing.T) {
	t.Parallel()

	if _, _, err := NewScanner(1<<20, nil, nil).ScanDirectory(context.Background(), " "); err == nil {
		t.Fatal("want error for empty root")
	}
}

func TestWatchEmitsNewPDFs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	existing := filepath.Join(root, "existing.pdf")
	writeFile(t, existing, "%PDF-1.7 existing")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{root}, InitialScan: true, Debounce: 20 * time.Millisecond, Logger: quiet()})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	next := func() string {
		t.Helper()
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for watch event")
			return ""
		}
	}

	if got := next(); got != existing {
		t.Fatalf("initial event = %q, want %q", got, existing)
	}

	writeFile(t, filepath.Join(root, "ignored.txt"), "nope")
	added := filepath.Join(root, "added.pdf")
	writeFile(t, added, "%PDF-1.7 added")
	if got := next(); got != added {
		t.Fatalf("event = %q, want %q", got, added)
	}

	cancel()
	for range events {
	}
}
