package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/subcommands"

	"github.com/joseph-ayodele/finreport/internal/async"
	"github.com/joseph-ayodele/finreport/internal/ingest"
	"github.com/joseph-ayodele/finreport/internal/pipeline"
)

type runCmd struct {
	inmem bool
	out   string
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "upload one PDF, extract it and print the chart address" }
func (*runCmd) Usage() string {
	return `chartctl run [-inmem] [-out <dir>] <report.pdf>

  Stores the PDF under STORAGE_DIR (served by finreportd at PUBLIC_BASE_URL),
  asks EXTRACTION_URL for its figures, writes the PNG and XLSX renderings
  to -out and prints the chart view address.
`
}

func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.inmem, "inmem", false, "use an in-memory SQLite database")
	f.StringVar(&c.out, "out", "out", "directory for rendered charts")
}

func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, c.inmem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	proc, err := e.processor(c.out, 1)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	cand, err := ingest.NewScanner(e.cfg.Storage.MaxUploadBytes, e.docs, e.logger).Load(ctx, f.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	ctx, cancel := context.WithTimeout(ctx, timeout(e.cfg.Extraction.Timeout))
	defer cancel()
	o, err := proc.Run(ctx, cand)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	printOutcome(e, o)
	return subcommands.ExitSuccess
}

func printOutcome(e *env, o pipeline.Outcome) {
	fmt.Printf("%s\n  reference: %s\n  periods:   %d\n", o.Path, o.ReferenceURL, o.Periods)
	for _, a := range o.Artifacts {
		fmt.Printf("  wrote:     %s\n", a)
	}
	if link := e.chartLink(o); link != "" {
		fmt.Printf("  chart:     %s\n", link)
	}
}

type batchCmd struct {
	inmem   bool
	dir     string
	out     string
	workers int
}

func (*batchCmd) Name() string     { return "batch" }
func (*batchCmd) Synopsis() string { return "extract and render every PDF under a directory" }
func (*batchCmd) Usage() string {
	return `chartctl batch -dir <dir> [-out <dir>] [-workers n] [-inmem]

  Scans -dir for PDFs, skips files whose content was processed before and
  runs the others through the extraction pipeline n at a time.
`
}

func (c *batchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.inmem, "inmem", false, "use an in-memory SQLite database")
	f.StringVar(&c.dir, "dir", "", "directory to scan (required)")
	f.StringVar(&c.out, "out", "out", "directory for rendered charts")
	f.IntVar(&c.workers, "workers", 4, "documents processed concurrently")
}

func (c *batchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.dir == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	e, err := openEnv(ctx, c.inmem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	proc, err := e.processor(c.out, c.workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}

	results, stats, err := ingest.NewScanner(e.cfg.Storage.MaxUploadBytes, e.docs, e.logger).ScanDirectory(ctx, c.dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	candidates := make(map[string]ingest.Candidate, len(results))
	for _, r := range results {
		switch {
		case r.Candidate != nil:
			candidates[r.Path] = *r.Candidate
		case r.Duplicate:
			fmt.Printf("skip %s: already processed\n", r.Path)
		default:
			fmt.Printf("skip %s: %s\n", r.Path, r.Err)
		}
	}

	// candidates are already loaded, so jobs run them directly
	run := async.ProcessorFunc(func(ctx context.Context, job async.Job) error {
		_, err := proc.Run(ctx, candidates[job.Path])
		return err
	})
	q := async.NewQueue(run, e.logger,
		async.WithWorkers(proc.Capacity()),
		async.WithProcessTimeout(timeout(e.cfg.Extraction.Timeout)),
	)
	for path := range candidates {
		if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			break
		}
	}
	q.Shutdown(context.Background())

	outcomes := proc.Outcomes()
	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Printf("FAIL %s: %v\n", o.Path, o.Err)
			continue
		}
		printOutcome(e, o)
	}
	fmt.Printf("\nscanned %d, matched %d, processed %d, failed %d, duplicates %d, rejected %d\n",
		stats.Scanned, stats.Matched, len(outcomes)-failed, failed, stats.Duplicates, stats.Rejected)
	if failed > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type watchCmd struct {
	inmem    bool
	dir      string
	out      string
	workers  int
	existing bool
	debounce time.Duration
}

func (*watchCmd) Name() string     { return "watch" }
func (*watchCmd) Synopsis() string { return "process PDFs as they appear in a directory" }
func (*watchCmd) Usage() string {
	return `chartctl watch -dir <dir> [-out <dir>] [-workers n] [-existing] [-debounce d]

  Watches -dir recursively and runs every new or rewritten PDF through the
  extraction pipeline until interrupted.
`
}

func (c *watchCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.inmem, "inmem", false, "use an in-memory SQLite database")
	f.StringVar(&c.dir, "dir", "", "directory to watch (required)")
	f.StringVar(&c.out, "out", "out", "directory for rendered charts")
	f.IntVar(&c.workers, "workers", 2, "documents processed concurrently")
	f.BoolVar(&c.existing, "existing", false, "also process PDFs already present")
	f.DurationVar(&c.debounce, "debounce", 500*time.Millisecond, "quiet period before a written file is picked up")
}

func (c *watchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.dir == "" {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := openEnv(ctx, c.inmem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer e.close()

	proc, err := e.processor(c.out, c.workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	q := async.NewQueue(proc, e.logger,
		async.WithWorkers(proc.Capacity()),
		async.WithProcessTimeout(timeout(e.cfg.Extraction.Timeout)),
	)

	paths, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:       []string{c.dir},
		InitialScan: c.existing,
		Debounce:    c.debounce,
		Logger:      e.logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	e.logger.Info("watching", "dir", c.dir, "workers", proc.Capacity())

	for paths != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			if err := q.Enqueue(ctx, async.Job{Path: p}); err != nil {
				e.logger.Warn("enqueue failed", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			e.logger.Warn("watch error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout(e.cfg.Extraction.Timeout))
	defer cancel()
	q.Shutdown(shutdownCtx)
	return subcommands.ExitSuccess
}
