package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/joseph-ayodele/finreport/internal/common"
)

// Object is a document handed to a Store.
type Object struct {
	Name      string
	MediaType string
	Size      int64
	Body      io.Reader
}

// Stored describes a document once it has been written.
type Stored struct {
	ID         string
	URL        string // stable, publicly dereferenceable reference URL
	SHA256     []byte
	Size       int64
	UploadedAt time.Time
}

// Store receives documents and hands back a reference URL. Implementations
// send non-decreasing percentages on progress while the body is consumed and
// must not close the channel.
type Store interface {
	Put(ctx context.Context, obj Object, progress chan<- int) (Stored, error)
}

// ErrNotFound is returned when a stored document does not exist.
var ErrNotFound = fmt.Errorf("storage: object %w", common.ErrNotFound)
