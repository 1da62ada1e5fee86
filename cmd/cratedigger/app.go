package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ewilliams-labs/cratedigger/internal/acquire"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/binary"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/ffmpeg"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/mp3"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/sqlite"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/youtube"
	"github.com/ewilliams-labs/cratedigger/internal/adapters/ytdlp"
	"github.com/ewilliams-labs/cratedigger/internal/config"
	"github.com/ewilliams-labs/cratedigger/internal/core/ports"
	"github.com/ewilliams-labs/cratedigger/internal/core/services"
	"github.com/ewilliams-labs/cratedigger/internal/features"
	"github.com/ewilliams-labs/cratedigger/internal/resolver"
	"github.com/ewilliams-labs/cratedigger/internal/retry"
	"github.com/ewilliams-labs/cratedigger/internal/worker"
)

var errNoCredentials = errors.New("no video search credentials: set youtube.api_key or YOUTUBE_API_KEY")

// app is the wired analysis pipeline shared by serve and analyze.
type app struct {
	store   *sqlite.Adapter
	pool    *worker.Pool
	jobs    *services.JobService
	library *services.LibraryService
}

// newApp opens the database and wires every pipeline stage. The caller owns
// the returned app and must call close.
func newApp(ctx context.Context, cfg *config.Config, notifier ports.ProgressNotifier, logger *slog.Logger) (*app, error) {
	search := youtube.NewClient(cfg.YouTube.APIKey,
		youtube.WithBaseURL(cfg.YouTube.BaseURL),
		youtube.WithAccessToken(ctx, cfg.YouTube.AccessToken),
		youtube.WithRetryPolicy(cfg.NetworkPolicy()),
		youtube.WithLogger(logger),
	)

	var fetcher ports.SampleFetcher
	if f, err := ytdlp.New(ytdlp.Config{
		Path:        cfg.Media.YtDlpPath,
		CookiesPath: cfg.Media.CookiesPath,
		Timeout:     cfg.FetchTimeout(),
	}, logger); err != nil {
		fetcher = missingTool{err: err}
	} else {
		fetcher = f
	}
	decoder := newDecoder(cfg, logger)

	store, err := sqlite.NewAdapter(cfg.Paths.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	pipeline := services.Pipeline{
		Resolver: resolver.New(search, resolver.Config{
			MaxResults:     cfg.YouTube.MaxResults,
			DurationBucket: cfg.YouTube.DurationBucket,
			MinScore:       cfg.YouTube.MinScore,
		}, logger),
		Acquirer: acquire.New(fetcher, decoder, acquire.Config{
			WindowOffset:  cfg.Analysis.WindowOffset,
			WindowSeconds: cfg.Analysis.WindowSeconds,
			Retry:         cfg.NetworkPolicy(),
		}, logger),
		Extractor: features.NewExtractor(logger),
	}
	stores := services.Stores{Catalog: store, Jobs: store, Results: store, Library: store}
	orchestrator := services.NewOrchestrator(pipeline, stores, notifier, services.OrchestratorConfig{
		TrackDelay: cfg.TrackDelay(),
		Persist:    cfg.PersistPolicy(),
	}, logger)

	pool := worker.NewPool(orchestrator, cfg.Queue.Size, logger)
	return &app{
		store:   store,
		pool:    pool,
		jobs:    services.NewJobService(store, store, pool, logger),
		library: services.NewLibraryService(store, store, logger),
	}, nil
}

func (a *app) close() error {
	a.pool.Stop()
	return a.store.Close()
}

func newDecoder(cfg *config.Config, logger *slog.Logger) ports.PCMDecoder {
	if cfg.Media.Decoder == config.DecoderMP3 {
		return mp3.Decoder{}
	}
	d, err := ffmpeg.New(cfg.Media.FFmpegPath, cfg.DecodeTimeout(), logger)
	if err != nil {
		return missingTool{err: err}
	}
	return d
}

// missingTool stands in for an external binary that could not be found, so
// the server still starts and each track fails with the lookup error.
type missingTool struct {
	err error
}

func (m missingTool) FetchSample(context.Context, ports.SampleRequest) ([]byte, error) {
	return nil, retry.Permanent(m.err)
}

func (m missingTool) Decode(context.Context, []byte) ([]byte, error) {
	return nil, m.err
}

// checkDependencies logs the external tool versions. Missing tools only warn;
// every track will then fail at the stage that needs them.
func checkDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) {
	tools := []struct {
		name, path, flag string
	}{
		{name: "yt-dlp", path: cfg.Media.YtDlpPath, flag: "--version"},
	}
	if cfg.Media.Decoder != config.DecoderMP3 {
		tools = append(tools, struct{ name, path, flag string }{name: "ffmpeg", path: cfg.Media.FFmpegPath, flag: "-version"})
	}
	for _, tool := range tools {
		bin, err := binary.Resolve(tool.path, tool.name)
		if err != nil {
			logger.Warn("dependency missing", "tool", tool.name, "error", err)
			continue
		}
		version, err := binary.Version(ctx, bin, tool.flag)
		if err != nil {
			logger.Warn("dependency version check failed", "tool", tool.name, "error", err)
			continue
		}
		logger.Info("dependency found", "tool", tool.name, "path", bin, "version", version)
	}
	if !cfg.HasYouTubeCredentials() {
		logger.Warn("video search is not configured", "error", errNoCredentials)
	}
}
