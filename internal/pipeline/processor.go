// Package pipeline processes report PDFs without a dashboard: store, extract,
// normalize, then write the chart renderings next to each other on disk.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joseph-ayodele/finreport/constants"
	"github.com/joseph-ayodele/finreport/internal/async"
	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/export"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/ingest"
	"github.com/joseph-ayodele/finreport/internal/storage"
	"github.com/joseph-ayodele/finreport/internal/upload"
	"github.com/joseph-ayodele/finreport/internal/workflow"
)

const batchSessionID = "batch"

type Config struct {
	OutDir     string
	Normalizer chart.Normalizer
	Formatter  chart.Formatter
}

// Deps are the collaborators of a Processor. Each extractor serves one
// document at a time, so len(Extractors) bounds concurrent extractions.
type Deps struct {
	Store      storage.Store
	Scanner    *ingest.Scanner
	Extractors []extract.Extractor
	Recorder   workflow.Recorder // optional
	Exporter   *export.Service
	Logger     *slog.Logger
}

// Outcome describes one processed document.
type Outcome struct {
	Path         string
	ReferenceURL string
	DocumentID   string
	Periods      int
	Result       extract.Result
	Artifacts    []string
	Err          error
}

type Processor struct {
	deps   Deps
	cfg    Config
	pool   chan extract.Extractor
	logger *slog.Logger

	mu       sync.Mutex
	outcomes []Outcome
}

func NewProcessor(deps Deps, cfg Config) (*Processor, error) {
	if deps.Store == nil || deps.Scanner == nil {
		return nil, errors.New("pipeline: store and scanner are required")
	}
	if len(deps.Extractors) == 0 {
		return nil, errors.New("pipeline: at least one extractor is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Exporter == nil {
		deps.Exporter = export.NewService(nil, deps.Logger)
	}
	if cfg.Normalizer == (chart.Normalizer{}) {
		cfg.Normalizer = chart.DefaultNormalizer
	}
	if cfg.Formatter == (chart.Formatter{}) {
		cfg.Formatter = chart.NewFormatter("")
	}
	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create out dir: %w", err)
	}

	pool := make(chan extract.Extractor, len(deps.Extractors))
	for _, x := range deps.Extractors {
		pool <- x
	}
	return &Processor{deps: deps, cfg: cfg, pool: pool, logger: deps.Logger}, nil
}

// Capacity is the number of documents that can be extracted at once.
func (p *Processor) Capacity() int { return cap(p.pool) }

// Process implements async.Processor: it loads job.Path and runs it.
// Duplicates are skipped without error.
func (p *Processor) Process(ctx context.Context, job async.Job) error {
	c, err := p.deps.Scanner.Load(ctx, job.Path)
	if errors.Is(err, ingest.ErrDuplicate) {
		p.logger.Info("pipeline.skip_duplicate", "job_id", job.ID, "path", job.Path)
		return nil
	}
	if err != nil {
		p.record(Outcome{Path: job.Path, Err: err})
		return err
	}
	_, err = p.Run(ctx, c)
	return err
}

// Run stores, extracts and renders one candidate.
func (p *Processor) Run(ctx context.Context, c ingest.Candidate) (Outcome, error) {
	start := time.Now()
	out := Outcome{Path: c.Path}
	logger := p.logger.With("path", c.Path)

	st, err := p.put(ctx, c)
	if err != nil {
		out.Err = err
		p.record(out)
		return out, err
	}
	out.ReferenceURL = st.URL
	out.DocumentID = p.recordDocument(ctx, c, st)

	res, err := p.extract(ctx, out.DocumentID, st.URL)
	if err != nil {
		out.Err = err
		p.record(out)
		logger.Error("pipeline.extract_failed", "reference_url", st.URL, "error", err)
		return out, err
	}
	out.Periods = len(res)
	out.Result = res

	charts := p.cfg.Normalizer.Normalize(res)
	out.Artifacts, err = p.render(charts, c.Path)
	if err != nil {
		out.Err = err
		p.record(out)
		return out, err
	}

	p.record(out)
	logger.Info("pipeline.done",
		"reference_url", st.URL,
		"periods", out.Periods,
		"artifacts", len(out.Artifacts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (p *Processor) put(ctx context.Context, c ingest.Candidate) (storage.Stored, error) {
	// room for every distinct percentage, so the store never blocks on us
	progress := make(chan int, 101)
	st, err := p.deps.Store.Put(ctx, storage.Object{
		Name:      c.File.Name,
		MediaType: c.File.MediaType,
		Size:      c.File.Size(),
		Body:      bytes.NewReader(c.File.Data),
	}, progress)
	if err != nil {
		p.logger.Error("pipeline.upload_failed", "path", c.Path, "error", err)
		return storage.Stored{}, &upload.TransferError{Cause: err}
	}
	return st, nil
}

func (p *Processor) extract(ctx context.Context, docID, ref string) (extract.Result, error) {
	var x extract.Extractor
	select {
	case x = <-p.pool:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.pool <- x }()

	jobID := ""
	if p.deps.Recorder != nil && docID != "" {
		id, err := p.deps.Recorder.ExtractionStarted(ctx, docID, ref)
		if err != nil {
			p.logger.Warn("pipeline.record_job_failed", "error", err)
		}
		jobID = id
	}

	res, err := x.Extract(ctx, ref)

	if jobID != "" {
		rctx, cancel := common.Detached(ctx, 10*time.Second)
		defer cancel()
		if rerr := p.deps.Recorder.ExtractionFinished(rctx, jobID, res, err); rerr != nil {
			p.logger.Warn("pipeline.record_job_finish_failed", "job_id", jobID, "error", rerr)
		}
	}
	return res, err
}

func (p *Processor) recordDocument(ctx context.Context, c ingest.Candidate, st storage.Stored) string {
	if p.deps.Recorder == nil {
		return ""
	}
	id, err := p.deps.Recorder.DocumentUploaded(ctx, batchSessionID, c.File, st)
	if err != nil {
		p.logger.Warn("pipeline.record_document_failed", "path", c.Path, "error", err)
		return ""
	}
	return id
}

// render writes <stem>.<period>.png for both periods and <stem>.xlsx.
func (p *Processor) render(charts chart.Charts, src string) ([]string, error) {
	stem := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	var files []string

	for _, period := range constants.Periods {
		var buf bytes.Buffer
		if err := p.cfg.Formatter.RenderPNG(&buf, charts, period); err != nil {
			return files, fmt.Errorf("render %s: %w", period, err)
		}
		name := filepath.Join(p.cfg.OutDir, fmt.Sprintf("%s.%s.png", stem, period))
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return files, err
		}
		files = append(files, name)
	}

	data, err := p.deps.Exporter.ChartsXLSX(charts, p.cfg.Formatter)
	if err != nil {
		return files, err
	}
	name := filepath.Join(p.cfg.OutDir, stem+".xlsx")
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return files, err
	}
	return append(files, name), nil
}

func (p *Processor) record(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outcomes = append(p.outcomes, o)
}

// Outcomes returns everything processed so far, in completion order.
func (p *Processor) Outcomes() []Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Outcome(nil), p.outcomes...)
}
