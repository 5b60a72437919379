package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/extract"
	"github.com/joseph-ayodele/finreport/internal/ingest"
	"github.com/joseph-ayodele/finreport/internal/pipeline"
	repo "github.com/joseph-ayodele/finreport/internal/repository"
	"github.com/joseph-ayodele/finreport/internal/storage"
	"github.com/joseph-ayodele/finreport/internal/transport"
)

// env is what the extraction subcommands share: configuration, the
// database, the document store and the navigator used to print chart links.
type env struct {
	cfg    *common.Config
	logger *slog.Logger
	db     *repo.DB
	docs   repo.DocumentRepository
	jobs   repo.ExtractJobRepository
	store  *storage.LocalStore
	nav    transport.Navigator
}

func openEnv(ctx context.Context, inmem bool) (*env, error) {
	cfg := common.LoadConfig()
	if inmem {
		cfg.Database.Driver, cfg.Database.DSN = repo.DriverSQLite, ":memory:"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	db, err := repo.Open(ctx, repo.Config{
		Driver:           cfg.Database.Driver,
		DSN:              cfg.Database.DSN,
		MaxConns:         cfg.Database.MaxConns,
		MinConns:         cfg.Database.MinConns,
		MaxConnLifetime:  cfg.Database.MaxConnLifetime,
		MaxConnIdleTime:  cfg.Database.MaxConnIdleTime,
		DialTimeout:      cfg.Database.DialTimeout,
		StatementTimeout: cfg.Database.StatementTimeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Server.PublicBaseURL, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	kind := cfg.Chart.Transport
	if kind == "handoff" {
		// tokens would die with this process
		logger.Warn("handoff transport is server-only, printing query links instead")
		kind = "query"
	}
	nav, err := transport.New(kind, 0, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &env{
		cfg:    cfg,
		logger: logger,
		db:     db,
		docs:   repo.NewDocumentRepository(db, logger),
		jobs:   repo.NewExtractJobRepository(db, logger),
		store:  store,
		nav:    nav,
	}, nil
}

func (e *env) close() { e.db.Close() }

// processor builds a pipeline with n extraction clients writing into out.
func (e *env) processor(out string, n int) (*pipeline.Processor, error) {
	if n < 1 {
		n = 1
	}
	extractors := make([]extract.Extractor, 0, n)
	for i := 0; i < n; i++ {
		c, err := extract.NewClient(extract.Config{
			Endpoint:    e.cfg.Extraction.Endpoint,
			Timeout:     e.cfg.Extraction.Timeout,
			LenientJSON: e.cfg.Extraction.LenientJSON,
			MaxPeriods:  e.cfg.Extraction.MaxPeriods,
		}, e.logger)
		if err != nil {
			return nil, err
		}
		extractors = append(extractors, c)
	}
	return pipeline.NewProcessor(pipeline.Deps{
		Store:      e.store,
		Scanner:    ingest.NewScanner(e.cfg.Storage.MaxUploadBytes, e.docs, e.logger),
		Extractors: extractors,
		Recorder:   repo.NewRecorder(e.docs, e.jobs, e.logger),
		Logger:     e.logger,
	}, pipeline.Config{
		OutDir: out,
		Normalizer: chart.Normalizer{
			PeriodALabel: e.cfg.Chart.PeriodALabel,
			PeriodBLabel: e.cfg.Chart.PeriodBLabel,
		},
		Formatter: chart.NewFormatter(e.cfg.Chart.Currency),
	})
}

// chartLink is the chart view address for o, or "" when it cannot be built.
func (e *env) chartLink(o pipeline.Outcome) string {
	link, err := e.nav.Target(e.cfg.Server.PublicBaseURL+e.cfg.Chart.ChartPath, o.Result)
	if err != nil {
		e.logger.Warn("chart link failed", "path", o.Path, "error", err)
		return ""
	}
	return link
}

func timeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 3 * time.Minute
	}
	return d + time.Minute
}
