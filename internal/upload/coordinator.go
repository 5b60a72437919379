package upload

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/intake"
	"github.com/joseph-ayodele/finreport/internal/storage"
)

// streamBuffer holds every event one upload can produce (0..100 plus the
// terminal one), so the transfer never waits on a slow or absent reader.
const streamBuffer = 102

// Coordinator drives one document at a time into a storage.Store.
type Coordinator struct {
	store   storage.Store
	timeout time.Duration
	logger  *slog.Logger

	mu    sync.Mutex
	state State
}

func NewCoordinator(store storage.Store, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   store,
		timeout: timeout,
		logger:  logger,
		state:   State{Status: constants.UploadNotStarted},
	}
}

// State returns the current snapshot.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reset returns to NotStarted. It is refused while a transfer runs.
func (c *Coordinator) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status == constants.UploadInProgress {
		return ErrUploadInFlight
	}
	c.state = State{Status: constants.UploadNotStarted}
	return nil
}

// Upload starts transferring f and returns its event stream. Percentages
// arrive in non-decreasing order starting at 0; on success 100 is always
// delivered before the terminal event. The channel is closed after the
// terminal event. The transfer runs detached from ctx cancellation.
func (c *Coordinator) Upload(ctx context.Context, f intake.File) (<-chan Event, error) {
	c.mu.Lock()
	switch c.state.Status {
	case constants.UploadInProgress:
		c.mu.Unlock()
		return nil, ErrUploadInFlight
	case constants.UploadSucceeded:
		c.mu.Unlock()
		return nil, ErrAlreadyUploaded
	}
	c.state = State{Status: constants.UploadInProgress}
	c.mu.Unlock()

	events := make(chan Event, streamBuffer)
	events <- Event{Percent: 0, State: c.State()}

	go c.run(ctx, f, events)
	return events, nil
}

func (c *Coordinator) run(ctx context.Context, f intake.File, events chan<- Event) {
	defer close(events)

	dctx, cancel := common.Detached(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	sid := common.SessionIDFromContext(ctx)
	c.logger.Info("upload.start", "session_id", sid, "name", f.Name, "size", f.Size())

	progress := make(chan int)
	type result struct {
		stored storage.Stored
		err    error
	}
	done := make(chan result, 1)
	go func() {
		st, err := c.store.Put(dctx, storage.Object{
			Name:      f.Name,
			MediaType: f.MediaType,
			Size:      f.Size(),
			Body:      bytes.NewReader(f.Data),
		}, progress)
		done <- result{st, err}
	}()

	var res result
loop:
	for {
		select {
		case p := <-progress:
			if pct, ok := c.advance(p); ok {
				events <- Event{Percent: pct, State: c.State()}
			}
		case res = <-done:
			break loop
		}
	}

	if res.err == nil && res.stored.URL == "" {
		res.err = errors.New("store returned an empty reference url")
	}
	if res.err != nil {
		st := c.finish(State{Status: constants.UploadFailed, Message: constants.StatusTextUploadFailed})
		c.logger.Error("upload.failed", "session_id", sid, "name", f.Name, "error", res.err, "elapsed_ms", time.Since(start).Milliseconds())
		events <- Event{Percent: st.Percent, Terminal: true, State: st, Err: &TransferError{Cause: res.err}}
		return
	}

	if pct, ok := c.advance(100); ok {
		events <- Event{Percent: pct, State: c.State()}
	}
	st := c.finish(State{Status: constants.UploadSucceeded, Percent: 100, ReferenceURL: res.stored.URL, Message: constants.StatusTextUploadOK})
	c.logger.Info("upload.ok", "session_id", sid, "reference_url", st.ReferenceURL, "bytes", res.stored.Size, "elapsed_ms", time.Since(start).Milliseconds())
	stored := res.stored
	events <- Event{Percent: 100, Terminal: true, State: st, Stored: &stored}
}

// advance applies p if it moves progress forward, clamped to [0,100].
func (c *Coordinator) advance(p int) (int, bool) {
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Status != constants.UploadInProgress || p <= c.state.Percent {
		return c.state.Percent, false
	}
	c.state.Percent = p
	return p, true
}

func (c *Coordinator) finish(st State) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if st.Status == constants.UploadFailed {
		st.Percent = c.state.Percent
	}
	c.state = st
	return st
}
