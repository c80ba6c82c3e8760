package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bnema/vodpipe/config"
	"github.com/bnema/vodpipe/internal/adapter/converter/ffmpeg"
	HTTPAdapter "github.com/bnema/vodpipe/internal/adapter/http"
	sqlitestore "github.com/bnema/vodpipe/internal/adapter/storage/sqlite"
	"github.com/bnema/vodpipe/internal/domain"
	"github.com/bnema/vodpipe/internal/infrastructure/logger"
	"github.com/bnema/vodpipe/internal/service"
	"github.com/bnema/vodpipe/internal/streaming"
)

func main() {
	if err := run(); err != nil {
		logger.Error.Printf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	preset, err := domain.ParsePreset(cfg.DefaultQuality)
	if err != nil {
		return fmt.Errorf("invalid DEFAULT_QUALITY: %w", err)
	}

	logger.Info.Printf("starting vodpipe on port %d, preset=%s, encoder=%s", cfg.Port, preset, cfg.FFmpegEncoder)

	if err := os.MkdirAll(cfg.TranscodedPath, 0o755); err != nil {
		return fmt.Errorf("failed to create transcoded directory: %w", err)
	}

	store, err := sqlitestore.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	defer func() { _ = store.Close() }()

	converter, err := ffmpeg.NewConverter(ffmpeg.Config{
		FFmpegPath:   cfg.FFmpegPath,
		FFprobePath:  cfg.FFprobePath,
		Encoder:      cfg.FFmpegEncoder,
		ProbeTimeout: cfg.ProbeTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create converter: %w", err)
	}

	jobStore := sqlitestore.NewJobStore(store)
	catalog := sqlitestore.NewCatalog(store)
	eventBus := service.NewEventBus()

	workerPool := service.NewWorkerPool(jobStore, catalog, converter, eventBus, service.WorkerConfig{
		OutputDir:    cfg.TranscodedPath,
		PollInterval: cfg.JobPollInterval,
		MaxRetries:   cfg.JobMaxRetries,
		Concurrency:  cfg.JobConcurrent,
		Preset:       preset,
		HLSEnabled:   cfg.HLSEnabled,
	})
	reaper := service.NewReaper(jobStore, workerPool, service.ReaperConfig{
		StaleAfter: cfg.StaleJobAge,
		Retention:  cfg.JobRetention,
		Interval:   cfg.CleanupInterval,
		StartDelay: cfg.CleanupStartDelay,
	})
	playbackSvc := service.NewPlaybackService(catalog, jobStore, cfg.TranscodedPath)
	intakeSvc := service.NewIntakeService(workerPool, jobStore, catalog, converter)

	server := HTTPAdapter.NewServer(workerPool, playbackSvc, intakeSvc, eventBus,
		streaming.NewStreamer(cfg.TranscodedPath), store)

	// WriteTimeout stays unset: streams and SSE run for as long as the client
	// watches. Their contexts end when shutdown begins.
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Minute,
		IdleTimeout:       120 * time.Second,
	}
	httpServer.RegisterOnShutdown(cancelBase)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	g := new(errgroup.Group)
	g.Go(func() error { return workerPool.Start(workerCtx) })
	g.Go(func() error { return reaper.Start(workerCtx) })

	serveErr := make(chan error, 1)
	go func() {
		logger.Info.Printf("server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info.Printf("received shutdown signal")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	// HTTP first, then the background loops.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error.Printf("http shutdown error: %v", err)
	}

	// Running encodes are aborted; their rows are requeued on next start.
	workerCancel()
	if err := g.Wait(); err != nil {
		logger.Error.Printf("background loop error: %v", err)
	}
	converter.KillAll()

	logger.Info.Printf("shutdown complete")
	return runErr
}
