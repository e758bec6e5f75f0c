package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jmylchreest/youcube/internal/config"
	internalhttp "github.com/jmylchreest/youcube/internal/http"
	"github.com/jmylchreest/youcube/internal/http/handlers"
	"github.com/jmylchreest/youcube/internal/media"
	"github.com/jmylchreest/youcube/internal/scheduler"
	"github.com/jmylchreest/youcube/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the youcube server",
	Long: `Start the youcube HTTP server.

The server provides:
- The websocket client channel at / and /ws
- Cached artifacts at /data/{file}
- REST API for cache lookups and one-shot resolution under /api/v1
- Prometheus metrics at /metrics
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "Host to bind to (overrides server.host)")
	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides server.port)")
	serveCmd.Flags().String("data-dir", "", "Artifact directory (overrides storage.data_dir)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := appConfig
	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host, _ = flags.GetString("host")
	}
	if flags.Changed("port") {
		cfg.Server.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir, _ = flags.GetString("data-dir")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating flags: %w", err)
	}

	logger := slog.Default()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	sched, err := newScheduler(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	health := handlers.NewHealthHandler(version.Version).WithDataDir(a.cache.Dir())
	for name, path := range a.binaries {
		health.WithBinary(name, path)
	}
	maxDims := media.Dimensions{Width: cfg.Transcode.MaxWidth, Height: cfg.Transcode.MaxHeight}

	server.Mount(
		health,
		handlers.NewCacheHandler(a.cache, maxDims),
		handlers.NewResolveHandler(a.resolver),
		handlers.NewWebSocketHandler(a.resolver).
			WithLogger(logger).
			WithMetrics(a.metrics).
			WithBaseContext(gctx),
	)
	server.Handle("/metrics", a.metrics.Handler())

	logger.Info("starting youcube server",
		slog.String("address", cfg.Server.Address()),
		slog.String("data_dir", a.cache.Dir()),
		slog.String("version", version.Version),
	)

	g.Go(func() error {
		return server.ListenAndServe(gctx)
	})
	g.Go(func() error {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		<-gctx.Done()
		sched.Stop()
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("youcube server stopped")
	return nil
}

// newScheduler registers the maintenance jobs and runs scratch cleanup once before
// the server accepts requests. Startup cleanup runs even when the periodic job is
// disabled.
func newScheduler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler().WithLogger(logger)
	cleanup := scheduler.NewScratchCleanupJob(logger, cfg.Cleanup.Schedule, cfg.Storage.ScratchRoot(), cfg.Storage.TempMaxAge)

	if !cfg.Cleanup.Enabled {
		if err := cleanup.Run(ctx); err != nil {
			logger.Warn("failed to clean orphaned scratch directories", slog.String("error", err.Error()))
		}
		return sched, nil
	}

	if err := sched.Add(cleanup); err != nil {
		return nil, fmt.Errorf("scheduling scratch cleanup: %w", err)
	}
	if next, err := sched.ParseCron(cleanup.Schedule); err == nil {
		logger.Debug("scratch cleanup scheduled", slog.Time("next_run", next))
	}
	if err := sched.RunNow(ctx, scheduler.ScratchCleanupJob); err != nil {
		logger.Warn("failed to clean orphaned scratch directories", slog.String("error", err.Error()))
	}
	return sched, nil
}
