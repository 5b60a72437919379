package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/finreport/internal/chart"
	"github.com/joseph-ayodele/finreport/internal/common"
	"github.com/joseph-ayodele/finreport/internal/export"
	"github.com/joseph-ayodele/finreport/internal/extract"
	repo "github.com/joseph-ayodele/finreport/internal/repository"
	"github.com/joseph-ayodele/finreport/internal/server"
	"github.com/joseph-ayodele/finreport/internal/storage"
	"github.com/joseph-ayodele/finreport/internal/transport"
	"github.com/joseph-ayodele/finreport/internal/workflow"
)

const sessionIdleTimeout = 2 * time.Hour

func main() {
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if !cfg.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if err := db.Migrate(ctx); err != nil {
		logger.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	docs := repo.NewDocumentRepository(db, logger)
	jobs := repo.NewExtractJobRepository(db, logger)

	store, err := storage.NewLocalStore(cfg.Storage.Dir, cfg.Server.PublicBaseURL, logger)
	if err != nil {
		logger.Error("failed to prepare storage", "error", err, "dir", cfg.Storage.Dir)
		os.Exit(1)
	}
	extractCfg := extract.Config{
		Endpoint:    cfg.Extraction.Endpoint,
		Timeout:     cfg.Extraction.Timeout,
		LenientJSON: cfg.Extraction.LenientJSON,
		MaxPeriods:  cfg.Extraction.MaxPeriods,
	}
	// fail fast on a bad extraction config; sessions build their own clients
	if _, err := extract.NewClient(extractCfg, logger); err != nil {
		logger.Error("failed to create extraction client", "error", err)
		os.Exit(1)
	}
	nav, err := transport.New(cfg.Chart.Transport, cfg.Chart.HandoffTTL, logger)
	if err != nil {
		logger.Error("failed to create transport", "error", err)
		os.Exit(1)
	}

	srv := server.New(server.Options{
		Sessions: workflow.Deps{
			Store:         store,
			Navigator:     nav,
			Recorder:      repo.NewRecorder(docs, jobs, logger),
			ChartURL:      cfg.Server.PublicBaseURL + cfg.Chart.ChartPath,
			MaxBytes:      cfg.Storage.MaxUploadBytes,
			UploadTimeout: cfg.Storage.UploadTimeout,
			Logger:        logger,
		},
		NewExtractor: func() (extract.Extractor, error) {
			return extract.NewClient(extractCfg, logger)
		},
		ChartPath: cfg.Chart.ChartPath,
		Normalizer: chart.Normalizer{
			PeriodALabel: cfg.Chart.PeriodALabel,
			PeriodBLabel: cfg.Chart.PeriodBLabel,
		},
		Formatter: chart.NewFormatter(cfg.Chart.Currency),
		Exporter:  export.NewService(jobs, logger),
		Files:     store,
		Jobs:      jobs,
		Health:    func(ctx context.Context) error { return db.HealthCheck(ctx, time.Second) },
		APIToken:  cfg.Server.APIToken,
		Logger:    logger,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health for orchestrators
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
		}
	}()
	go func() {
		logger.Info("finreportd listening", "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr, "transport", cfg.Chart.Transport)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			stop()
		}
	}()
	go sweepSessions(ctx, srv.Sessions(), logger)
	go watchDatabase(ctx, db, healthServer, logger)

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
}

func sweepSessions(ctx context.Context, reg *server.Registry, logger *slog.Logger) {
	t := time.NewTicker(10 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := reg.Sweep(sessionIdleTimeout); n > 0 {
				logger.Info("sessions swept", "removed", n, "live", reg.Len())
			}
		}
	}
}

// watchDatabase mirrors database reachability into the gRPC health status.
func watchDatabase(ctx context.Context, db *repo.DB, hs *health.Server, logger *slog.Logger) {
	t := time.NewTicker(30 * time.Second)
	defer t.Stop()
	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			err := db.HealthCheck(ctx, 2*time.Second)
			if ok := err == nil; ok != serving {
				serving = ok
				status := grpc_health_v1.HealthCheckResponse_SERVING
				if !ok {
					status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
					logger.Warn("database unreachable", "error", err)
				}
				hs.SetServingStatus("", status)
			}
		}
	}
}
