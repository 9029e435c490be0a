package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/deepesh-sr/Trustplay/internal/config"
	"github.com/deepesh-sr/Trustplay/internal/engine"
	"github.com/deepesh-sr/Trustplay/internal/events"
	"github.com/deepesh-sr/Trustplay/internal/server"
	"github.com/deepesh-sr/Trustplay/internal/store"
	"github.com/deepesh-sr/Trustplay/internal/store/postgres"
	"github.com/deepesh-sr/Trustplay/internal/store/sqlite"
	tpsync "github.com/deepesh-sr/Trustplay/internal/sync"
	"github.com/deepesh-sr/Trustplay/internal/telemetry"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the Trustplay gRPC and HTTP servers",
	Args:              cobra.NoArgs,
	GroupID:           "system",
	PersistentPreRunE: skipClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
			logger.Info(fmt.Sprintf(format, v...))
		})); err != nil {
			logger.Warn("setting GOMAXPROCS", "err", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// newLogger builds the process logger from the log settings.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openStore opens the configured backend. Postgres runs migrations.
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		return postgres.New(cfg.DatabaseURL)
	case config.StoreSQLite:
		return sqlite.New(cfg.DataDir, logger)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("events disabled (TRUSTPLAY_NATS_URL not set)")
		return &events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("events enabled", "nats_url", cfg.NATSURL)
	return pub, nil
}

// syncDestinations builds the snapshot targets. A destination that fails to
// initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []tpsync.Destination {
	var dests []tpsync.Destination
	if cfg.Sync.S3Bucket != "" {
		d, err := tpsync.NewS3Destination(ctx, cfg.Sync.S3Bucket, cfg.Sync.S3Prefix, cfg.Sync.S3Region, cfg.Sync.S3Endpoint)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync S3 destination enabled", "bucket", cfg.Sync.S3Bucket, "prefix", cfg.Sync.S3Prefix)
		}
	}
	if cfg.Sync.GitRepo != "" {
		dests = append(dests, tpsync.NewGitDestination(cfg.Sync.GitRepo, cfg.Sync.GitFile, cfg.Sync.GitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.Sync.GitRepo, "file", cfg.Sync.GitFile)
	}
	return dests
}

// serve runs every listener until ctx is done or one of them fails, then
// shuts all of them down.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	tp, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter: cfg.Tracing.Exporter,
		Endpoint: cfg.Tracing.OTLPEndpoint,
		Version:  version,
		Writer:   os.Stderr,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Error("error flushing traces", "err", err)
		}
	}()

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}
	}()

	pub, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	eng := engine.New(st,
		engine.WithLogger(logger),
		engine.WithMetrics(engine.NewMetrics(reg)),
		engine.WithPolicy(engine.Policy{
			GateRoomStatus:  cfg.Policy.GateRoomStatus,
			EnforceDeadline: cfg.Policy.EnforceDeadline,
		}),
	)
	srv := server.New(eng, pub, logger)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}
	grpcServer := srv.NewGRPCServer(cfg.AuthToken)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("gRPC server listening", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	if cfg.SyncEnabled() {
		if dests := syncDestinations(gctx, cfg, logger); len(dests) > 0 {
			scheduler := tpsync.NewScheduler(st, dests, cfg.Sync.Interval, logger)
			g.Go(func() error {
				logger.Info("sync scheduler started", "interval", cfg.Sync.Interval)
				return scheduler.Run(gctx)
			})
		}
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		grpcServer.GracefulStop()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := httpServer.Shutdown(sctx)
		if metricsServer != nil {
			err = errors.Join(err, metricsServer.Shutdown(sctx))
		}
		return err
	})

	logger.Info("trustplay server started",
		"version", version,
		"store", cfg.Store,
		"grpc_addr", cfg.GRPCAddr,
		"http_addr", cfg.HTTPAddr,
	)
	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
