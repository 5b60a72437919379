package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/intake"
	"github.com/joseph-ayodele/finreport/internal/storage"
	"github.com/joseph-ayodele/finreport/internal/transport"
	"github.com/joseph-ayodele/finreport/internal/upload"
)

// Recorder persists workflow milestones. Failures are logged and never
// change the outcome of the operation being recorded.
type Recorder interface {
	DocumentUploaded(ctx context.Context, sessionID string, f intake.File, st storage.Stored) (docID string, err error)
	ExtractionStarted(ctx context.Context, docID, referenceURL string) (jobID string, err error)
	ExtractionFinished(ctx context.Context, jobID string, res extract.Result, cause error) error
}

// Deps are the collaborators of a Session.
type Deps struct {
	Store         storage.Store
	Extractor     extract.Extractor
	Navigator     transport.Navigator
	Recorder      Recorder // optional
	ChartURL      string   // address of the chart view
	MaxBytes      int64
	UploadTimeout time.Duration
	Logger        *slog.Logger
}

// Snapshot is what the dashboard renders.
type Snapshot struct {
	ID           string `json:"id"`
	State        string `json:"state"`
	StatusText   string `json:"statusText"`
	FileName     string `json:"fileName,omitempty"`
	Percent      int    `json:"percent"`
	ReferenceURL string `json:"referenceUrl,omitempty"`
	DocumentID   string `json:"documentId,omitempty"`
	Hovering     bool   `json:"hovering"`
	CanUpload    bool   `json:"canUpload"`
	CanGenerate  bool   `json:"canGenerate"`
	Loading      bool   `json:"loading"`
	Target       string `json:"target,omitempty"`
}

// Session runs one dashboard workflow: select, upload, generate.
// At most one upload and one extraction run at a time; the guard is the
// session state itself, checked and advanced under mu.
type Session struct {
	id       string
	deps     Deps
	logger   *slog.Logger
	intake   *intake.Controller
	uploader *upload.Coordinator

	mu          sync.Mutex
	state       State
	docID       string
	target      string
	generateErr bool
}

func NewSession(id string, deps Deps) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)
	return &Session{
		id:       id,
		deps:     deps,
		logger:   logger,
		intake:   intake.NewController(deps.MaxBytes, logger),
		uploader: upload.NewCoordinator(deps.Store, deps.UploadTimeout, logger),
	}
}

func (s *Session) ID() string { return s.id }

// State returns the current workflow state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Select offers a candidate file. Non-PDF candidates are rejected without
// touching any state. While an upload runs or after it succeeded, Select is
// ignored.
func (s *Session) Select(f intake.File) (intake.Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Uploading, Uploaded, Generating, Navigated:
		s.intake.DragLeave()
		return intake.Ignored, nil
	}

	d, err := s.intake.Select(f)
	if d != intake.Accepted {
		return d, err
	}
	next, err := Transition(s.state, SelectValid)
	if err != nil {
		return intake.Ignored, err
	}
	// a new file discards everything downstream of the previous one
	_ = s.uploader.Reset()
	s.state = next
	s.docID = ""
	s.target = ""
	s.generateErr = false
	return d, nil
}

func (s *Session) DragEnter() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intake.DragEnter()
}

func (s *Session) DragLeave() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intake.DragLeave()
}

// Upload starts transferring the selected file and returns its event stream.
// The session reaches Uploaded or falls back to FileSelected before the
// terminal event is delivered.
func (s *Session) Upload(ctx context.Context) (<-chan upload.Event, error) {
	s.mu.Lock()
	if s.state == Uploading {
		s.mu.Unlock()
		return nil, upload.ErrUploadInFlight
	}
	f, ok := s.intake.Selected()
	if !ok {
		s.mu.Unlock()
		return nil, common.NewAppError("NO_FILE", "select a PDF file first", common.ErrInvalidInput)
	}
	next, err := Transition(s.state, UploadStarted)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	prev := s.state
	s.state = next
	s.mu.Unlock()

	ctx = common.WithSessionID(ctx, s.id)
	in, err := s.uploader.Upload(ctx, f)
	if err != nil {
		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()
		return nil, err
	}

	out := make(chan upload.Event, cap(in))
	go func() {
		defer close(out)
		for ev := range in {
			if ev.Terminal {
				s.finishUpload(ctx, f, ev)
			}
			out <- ev
		}
	}()
	return out, nil
}

func (s *Session) finishUpload(ctx context.Context, f intake.File, ev upload.Event) {
	s.mu.Lock()
	on := UploadFailed
	if ev.Err == nil {
		on = UploadSucceeded
	}
	next, err := Transition(s.state, on)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("workflow.upload_transition", "error", err)
		return
	}
	s.state = next
	if on == UploadSucceeded {
		s.intake.Lock()
	}
	s.mu.Unlock()

	if on != UploadSucceeded || ev.Stored == nil || s.deps.Recorder == nil {
		return
	}
	rctx, cancel := common.Detached(ctx, 10*time.Second)
	defer cancel()
	docID, err := s.deps.Recorder.DocumentUploaded(rctx, s.id, f, *ev.Stored)
	if err != nil {
		s.logger.Warn("workflow.record_document_failed", "error", err)
		return
	}
	s.mu.Lock()
	s.docID = docID
	s.mu.Unlock()
}

// Generate runs the extraction on the uploaded document and returns the
// chart view address carrying the result. On failure the session returns to
// Uploaded and the same reference URL is used by the next attempt.
func (s *Session) Generate(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.state == Generating {
		s.mu.Unlock()
		return "", extract.ErrExtractionInFlight
	}
	next, err := Transition(s.state, GenerateStarted)
	if err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.state = next
	s.generateErr = false
	ref := s.uploader.State().ReferenceURL
	docID := s.docID
	s.mu.Unlock()

	ctx = common.WithSessionID(ctx, s.id)
	start := time.Now()
	s.logger.Info("workflow.generate_start", "reference_url", ref)

	jobID := s.recordStart(ctx, docID, ref)

	res, err := s.deps.Extractor.Extract(ctx, ref)
	var target string
	if err == nil {
		target, err = s.deps.Navigator.Target(s.deps.ChartURL, res)
	}
	s.recordFinish(ctx, jobID, res, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.state, _ = Transition(s.state, GenerateFailed)
		s.generateErr = true
		s.logger.Error("workflow.generate_failed",
			"reference_url", ref,
			"status_error", extract.IsStatusError(err),
			"malformed", extract.IsMalformed(err),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", err
	}
	s.state, _ = Transition(s.state, GenerateSucceeded)
	s.target = target
	s.logger.Info("workflow.generate_ok", "periods", len(res), "elapsed_ms", time.Since(start).Milliseconds())
	return target, nil
}

func (s *Session) recordStart(ctx context.Context, docID, ref string) string {
	if s.deps.Recorder == nil || docID == "" {
		return ""
	}
	jobID, err := s.deps.Recorder.ExtractionStarted(ctx, docID, ref)
	if err != nil {
		s.logger.Warn("workflow.record_job_failed", "error", err)
		return ""
	}
	return jobID
}

func (s *Session) recordFinish(ctx context.Context, jobID string, res extract.Result, cause error) {
	if s.deps.Recorder == nil || jobID == "" {
		return
	}
	rctx, cancel := common.Detached(ctx, 10*time.Second)
	defer cancel()
	if err := s.deps.Recorder.ExtractionFinished(rctx, jobID, res, cause); err != nil {
		s.logger.Warn("workflow.record_job_finish_failed", "job_id", jobID, "error", err)
	}
}

// Reset starts over, like reloading the dashboard. It is refused while an
// upload or extraction is running.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Uploading || s.state == Generating {
		return common.NewAppError("BUSY", "an operation is in progress", common.ErrConflict)
	}
	if err := s.uploader.Reset(); err != nil {
		return err
	}
	s.intake.Reset()
	s.state, _ = Transition(s.state, Reset)
	s.docID = ""
	s.target = ""
	s.generateErr = false
	return nil
}

// Snapshot returns a consistent view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	up := s.uploader.State()
	snap := Snapshot{
		ID:           s.id,
		State:        s.state.String(),
		Percent:      up.Percent,
		ReferenceURL: up.ReferenceURL,
		DocumentID:   s.docID,
		Hovering:     s.intake.Hovering(),
		CanUpload:    CanUpload(s.state),
		CanGenerate:  CanGenerate(s.state),
		Loading:      s.state == Generating,
		Target:       s.target,
	}
	if f, ok := s.intake.Selected(); ok {
		snap.FileName = f.Name
	}
	switch {
	case s.state == Generating:
		snap.StatusText = constants.StatusTextGenerating
	case s.state == Uploaded && s.generateErr:
		snap.StatusText = constants.StatusTextGenerateError
	default:
		snap.StatusText = up.StatusText()
	}
	return snap
}

// IsBusy reports whether err came from an in-flight guard.
func IsBusy(err error) bool {
	return errors.Is(err, upload.ErrUploadInFlight) || errors.Is(err, extract.ErrExtractionInFlight)
}
