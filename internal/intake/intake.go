package intake

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
)

// File is a candidate document chosen through a picker or a drop.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// Size returns the payload length in bytes.
func (f File) Size() int64 { return int64(len(f.Data)) }

// Empty reports whether nothing was actually chosen (a cancelled picker).
func (f File) Empty() bool { return f.Name == "" && len(f.Data) == 0 }

// Decision is the outcome of a Select call.
type Decision int

const (
	Ignored Decision = iota
	Accepted
	Rejected
)

func (d Decision) String() string {
	switch d {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// Controller holds at most one selected file and the drag-hover flag.
// It is not safe for concurrent use; callers serialize access.
type Controller struct {
	maxBytes int64
	logger   *slog.Logger

	selected *File
	hovering bool
	locked   bool
}

func NewController(maxBytes int64, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBytes <= 0 {
		maxBytes = constants.MaxUploadBytesDefault
	}
	return &Controller{maxBytes: maxBytes, logger: logger}
}

// Select validates f and, when it is a PDF, replaces the current selection.
// A rejected candidate leaves every piece of state untouched and returns a
// validation error carrying the user-visible notice. After Lock, Select is
// a no-op.
func (c *Controller) Select(f File) (Decision, error) {
	// a drop always ends the hover, whatever it carried
	c.hovering = false

	if c.locked {
		c.logger.Debug("intake.select_ignored", "reason", "locked", "name", f.Name)
		return Ignored, nil
	}
	if f.Empty() {
		return Ignored, nil
	}

	v := common.NewValidator().
		Field("media_type", f.MediaType, common.PDFMediaType).
		Field("file", f.Data, common.Required, common.MaxBytes(c.maxBytes))
	if err := v.Error(); err != nil {
		c.logger.Info("intake.select_rejected", "name", f.Name, "media_type", f.MediaType, "size", f.Size(), "reason", v.ErrorMessage())
		return Rejected, err
	}

	f.MediaType = constants.MediaTypePDF
	c.selected = &f
	c.logger.Info("intake.select_accepted", "name", f.Name, "size", f.Size())
	return Accepted, nil
}

// Selected returns the current file, if any.
func (c *Controller) Selected() (File, bool) {
	if c.selected == nil {
		return File{}, false
	}
	return *c.selected, true
}

func (c *Controller) DragEnter() { c.hovering = true }

func (c *Controller) DragLeave() { c.hovering = false }

func (c *Controller) Hovering() bool { return c.hovering }

// Lock freezes the selection once its upload succeeded.
func (c *Controller) Lock() { c.locked = true }

func (c *Controller) Locked() bool { return c.locked }

// Reset clears the selection, the hover flag and the lock.
func (c *Controller) Reset() {
	c.selected = nil
	c.hovering = false
	c.locked = false
}

// FromPath reads a file from disk and sniffs its media type from content,
// the way a browser would fill in File.type for a picked document.
func FromPath(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read %s: %w", path, err)
	}
	return File{Name: filepath.Base(path), MediaType: http.DetectContentType(data), Data: data}, nil
}
