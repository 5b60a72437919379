package intake

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
)

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF\n")

func newController() *Controller {
	return NewController(1<<20, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSelectRejectsNonPDFWithoutMutation(t *testing.T) {
	t.Parallel()

	for _, mt := range []string{"image/png", "text/plain", "application/x-pdf", "", "application/json"} {
		mt := mt
		t.Run(mt, func(t *testing.T) {
			t.Parallel()
			c := newController()
			first := File{Name: "q1.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes}
			if d, err := c.Select(first); d != Accepted || err != nil {
				t.Fatalf("first select = %v, %v", d, err)
			}

			d, err := c.Select(File{Name: "x", MediaType: mt, Data: []byte("data")})
			if d != Rejected {
				t.Fatalf("decision = %v, want rejected", d)
			}
			if !errors.Is(err, common.ErrValidation) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if msg := common.FirstMessage(err); msg != constants.StatusTextOnlyPDF {
				t.Fatalf("message = %q", msg)
			}
			got, ok := c.Selected()
			if !ok || got.Name != "q1.pdf" {
				t.Fatalf("selection changed to %+v", got)
			}
		})
	}
}

func TestSelectNormalizesMediaType(t *testing.T) {
	t.Parallel()

	c := newController()
	d, err := c.Select(File{Name: "a.pdf", MediaType: "Application/PDF; charset=binary", Data: pdfBytes})
	if d != Accepted || err != nil {
		t.Fatalf("select = %v, %v", d, err)
	}
	f, _ := c.Selected()
	if f.MediaType != constants.MediaTypePDF {
		t.Fatalf("media type = %q", f.MediaType)
	}
}

func TestSelectReplacesPrevious(t *testing.T) {
	t.Parallel()

	c := newController()
	_, _ = c.Select(File{Name: "a.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes})
	_, _ = c.Select(File{Name: "b.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes})
	f, ok := c.Selected()
	if !ok || f.Name != "b.pdf" {
		t.Fatalf("selected = %+v", f)
	}
}

func TestSelectLockedIsIgnored(t *testing.T) {
	t.Parallel()

	c := newController()
	_, _ = c.Select(File{Name: "a.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes})
	c.Lock()

	for _, f := range []File{
		{Name: "b.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes},
		{Name: "c.png", MediaType: "image/png", Data: []byte{1}},
	} {
		d, err := c.Select(f)
		if d != Ignored || err != nil {
			t.Fatalf("select %s while locked = %v, %v", f.Name, d, err)
		}
	}
	if f, _ := c.Selected(); f.Name != "a.pdf" {
		t.Fatalf("selection changed to %q", f.Name)
	}

	c.Reset()
	if c.Locked() {
		t.Fatal("reset kept the lock")
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("reset kept the selection")
	}
}

func TestSelectEmptyAndOversized(t *testing.T) {
	t.Parallel()

	c := NewController(8, nil)
	if d, err := c.Select(File{}); d != Ignored || err != nil {
		t.Fatalf("empty select = %v, %v", d, err)
	}
	d, err := c.Select(File{Name: "big.pdf", MediaType: constants.MediaTypePDF, Data: pdfBytes})
	if d != Rejected || !errors.Is(err, common.ErrValidation) {
		t.Fatalf("oversized select = %v, %v", d, err)
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("oversized file was kept")
	}
}

func TestDragHover(t *testing.T) {
	t.Parallel()

	c := newController()
	c.DragEnter()
	if !c.Hovering() {
		t.Fatal("expected hovering after DragEnter")
	}
	c.DragLeave()
	if c.Hovering() {
		t.Fatal("expected no hover after DragLeave")
	}
	c.DragEnter()
	_, _ = c.Select(File{Name: "x.txt", MediaType: "text/plain", Data: []byte("x")})
	if c.Hovering() {
		t.Fatal("a drop must clear the hover")
	}
}

func TestFromPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(path, pdfBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	f, err := FromPath(path)
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if f.Name != "report.pdf" || f.MediaType != constants.MediaTypePDF {
		t.Fatalf("file = %+v", f)
	}
	if _, err := FromPath(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
