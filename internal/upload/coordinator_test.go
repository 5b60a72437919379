package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/intake"
	"github.com/joseph-ayodele/finreport/internal/storage"
)

// fakeStore replays a scripted progress sequence, then returns url or err.
type fakeStore struct {
	steps []int
	url   string
	err   error
	gate  chan struct{}
}

func (s *fakeStore) Put(ctx context.Context, obj storage.Object, progress chan<- int) (storage.Stored, error) {
	_, _ = io.Copy(io.Discard, obj.Body)
	for _, p := range s.steps {
		progress <- p
	}
	if s.gate != nil {
		<-s.gate
	}
	if s.err != nil {
		return storage.Stored{}, s.err
	}
	return storage.Stored{ID: "doc", URL: s.url, Size: obj.Size}, nil
}

var pdf = intake.File{Name: "q1.pdf", MediaType: constants.MediaTypePDF, Data: []byte("%PDF-1.7")}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-timeout:
			t.Fatal("stream did not close")
		}
	}
}

func TestUploadProgressIsMonotonic(t *testing.T) {
	t.Parallel()

	// out-of-order and out-of-range reports must not move progress backwards
	store := &fakeStore{steps: []int{10, 5, 40, 40, 130, 90}, url: "http://files.local/files/a.pdf"}
	c := NewCoordinator(store, time.Second, quiet())

	ch, err := c.Upload(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	evs := drain(t, ch)

	if evs[0].Percent != 0 || evs[0].Terminal {
		t.Fatalf("first event = %+v, want progress 0", evs[0])
	}
	last := -1
	for _, ev := range evs {
		if ev.Percent < last {
			t.Fatalf("progress went from %d to %d", last, ev.Percent)
		}
		last = ev.Percent
	}
	term := evs[len(evs)-1]
	if !term.Terminal || term.State.Status != constants.UploadSucceeded {
		t.Fatalf("terminal = %+v", term)
	}
	if prev := evs[len(evs)-2]; prev.Percent != 100 || prev.Terminal {
		t.Fatalf("event before terminal = %+v, want progress 100", prev)
	}
	for _, ev := range evs[:len(evs)-1] {
		if ev.Terminal {
			t.Fatal("terminal event before the end of the stream")
		}
	}
	if got := c.State(); got.ReferenceURL != store.url || got.StatusText() != constants.StatusTextUploadOK {
		t.Fatalf("state = %+v", got)
	}
}

func TestUploadFailureAllowsRetry(t *testing.T) {
	t.Parallel()

	store := &fakeStore{steps: []int{30}, err: errors.New("bucket unreachable")}
	c := NewCoordinator(store, time.Second, quiet())

	ch, err := c.Upload(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	evs := drain(t, ch)
	term := evs[len(evs)-1]
	var te *TransferError
	if !errors.As(term.Err, &te) {
		t.Fatalf("terminal err = %v, want *TransferError", term.Err)
	}
	if te.Error() != constants.StatusTextUploadFailed {
		t.Fatalf("message = %q", te.Error())
	}
	if st := c.State(); st.Status != constants.UploadFailed || st.Percent != 30 {
		t.Fatalf("state = %+v", st)
	}

	store.err = nil
	store.url = "http://files.local/files/b.pdf"
	ch, err = c.Upload(context.Background(), pdf)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	evs = drain(t, ch)
	if evs[0].Percent != 0 {
		t.Fatalf("retry did not restart at 0: %+v", evs[0])
	}
	if st := c.State(); st.Status != constants.UploadSucceeded {
		t.Fatalf("state after retry = %+v", st)
	}
}

func TestUploadGuards(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	store := &fakeStore{url: "http://files.local/files/a.pdf", gate: gate}
	c := NewCoordinator(store, time.Second, quiet())

	ch, err := c.Upload(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := c.Upload(context.Background(), pdf); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("second Upload err = %v", err)
	}
	if err := c.Reset(); !errors.Is(err, ErrUploadInFlight) {
		t.Fatalf("Reset in flight err = %v", err)
	}
	close(gate)
	drain(t, ch)

	if _, err := c.Upload(context.Background(), pdf); !errors.Is(err, ErrAlreadyUploaded) {
		t.Fatalf("Upload after success err = %v", err)
	}
	if common.HTTPStatus(ErrAlreadyUploaded) != 409 {
		t.Fatal("already-uploaded should map to conflict")
	}
	if err := c.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if st := c.State(); st.Status != constants.UploadNotStarted {
		t.Fatalf("state after reset = %+v", st)
	}
}

func TestUploadSurvivesCallerCancellation(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	store := &fakeStore{url: "http://files.local/files/a.pdf", gate: gate}
	c := NewCoordinator(store, time.Second, quiet())

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := c.Upload(ctx, pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	cancel()
	close(gate)
	evs := drain(t, ch)
	if term := evs[len(evs)-1]; term.State.Status != constants.UploadSucceeded {
		t.Fatalf("terminal = %+v", term)
	}
}

func TestUploadWithLocalStore(t *testing.T) {
	t.Parallel()

	store, err := storage.NewLocalStore(t.TempDir(), "http://files.local", quiet())
	if err != nil {
		t.Fatal(err)
	}
	c := NewCoordinator(store, time.Second, quiet())
	ch, err := c.Upload(context.Background(), pdf)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	evs := drain(t, ch)
	term := evs[len(evs)-1]
	if term.Stored == nil || term.Stored.URL != term.State.ReferenceURL {
		t.Fatalf("terminal = %+v", term)
	}
}
