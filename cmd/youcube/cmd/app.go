package cmd

import (
	"fmt"
	"log/slog"

	"github.com/jmylchreest/youcube/internal/config"
	"github.com/jmylchreest/youcube/internal/extractor"
	"github.com/jmylchreest/youcube/internal/metrics"
	"github.com/jmylchreest/youcube/internal/resolver"
	"github.com/jmylchreest/youcube/internal/storage"
	"github.com/jmylchreest/youcube/internal/transcode"
	"github.com/jmylchreest/youcube/internal/util"
)

// Environment variables consulted when a binary path is not configured.
const (
	envFFmpegPath   = "YOUCUBE_FFMPEG_PATH"
	envSanjuuniPath = "YOUCUBE_SANJUUNI_PATH"
	envYTDLPPath    = "YOUCUBE_YTDLP_PATH"
)

// app holds the components shared by the serve and resolve commands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	cache    *storage.Cache
	metrics  *metrics.Metrics
	resolver *resolver.Resolver
	// binaries maps tool names to resolved paths; empty when not found.
	binaries map[string]string
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	cache, err := storage.NewCache(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("initializing artifact cache: %w", err)
	}
	cache.WithLogger(logger)
	if err := cache.EnsureDataDirectory(); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// Missing binaries fall back to their bare names and surface as launch
	// failures on first use; health reports them as missing.
	binaries := make(map[string]string)
	locate := func(configured, name, envVar string) string {
		path, err := util.BinaryOrName(configured, name, envVar)
		if err != nil {
			logger.Warn("binary not found", slog.String("binary", name), slog.String("error", err.Error()))
			binaries[name] = ""
			return path
		}
		binaries[name] = path
		return path
	}

	ffmpeg := locate(cfg.Transcode.FFmpegPath, "ffmpeg", envFFmpegPath)
	sanjuuni := locate(cfg.Transcode.SanjuuniPath, "sanjuuni", envSanjuuniPath)
	ytdlp := locate(cfg.Extractor.BinaryPath, "yt-dlp", envYTDLPPath)

	m := metrics.New()
	res := resolver.New(
		resolver.NewConfig(cfg, ffmpeg, sanjuuni),
		extractor.New(cfg.Extractor, ytdlp).WithLogger(logger),
		transcode.NewRunner().WithLogger(logger),
		cache,
	).WithLogger(logger).WithMetrics(m)

	return &app{
		cfg:      cfg,
		logger:   logger,
		cache:    cache,
		metrics:  m,
		resolver: res,
		binaries: binaries,
	}, nil
}
