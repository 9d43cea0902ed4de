package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/httpapi"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/media"
	"github.com/MimeLyc/bilingual-sub-merger/internal/persistence"
	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

const (
	shutdownTimeout = 10 * time.Second
	// extracted streams untouched for this long are dropped on startup
	streamCacheMaxAge = 30 * 24 * time.Hour
)

type serveOptions struct {
	configFile string
	envFile    string
	addr       string
	logLevel   string
}

type mergeScheduler interface {
	Schedule(ctx context.Context) error
}

type cronEngine interface {
	Start()
	Stop() context.Context
}

type httpServer interface {
	ListenAndServe(addr string) error
	Shutdown(ctx context.Context) error
}

func newServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled library merges",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flag := cmd.Flag("log-level"); flag != nil {
				opts.logLevel = flag.Value.String()
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configFile, "config", "c", "", "TOML configuration file")
	cmd.Flags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading the configuration")
	cmd.Flags().StringVar(&opts.addr, "addr", "", "HTTP listen address")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.envFile == "" {
		opts.envFile = ".env"
	}
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}
	if opts.configFile != "" {
		if err := os.Setenv("CONFIG_FILE", opts.configFile); err != nil {
			return err
		}
	}

	settingsPath := config.RuntimeSettingsFilePath()
	cfgOpts := make([]config.Option, 0, 2)
	if settings, err := config.LoadRuntimeSettingsFile(settingsPath); err == nil {
		cfgOpts = append(cfgOpts, config.WithRuntimeSettings(settings))
	} else if !errors.Is(err, fs.ErrNotExist) {
		log.Warn("Ignoring runtime settings %s: %v", settingsPath, err)
	}
	if opts.addr != "" {
		cfgOpts = append(cfgOpts, func(c *config.Config) { c.HTTP.Addr = opts.addr })
	}

	cfg, err := config.NewFromEnv(cfgOpts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.logLevel != "" {
		cfg.System.LogLevel = opts.logLevel
	}

	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := os.MkdirAll(cfg.System.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", cfg.LockPath(), err)
	}
	if !locked {
		return fmt.Errorf("another server already uses %s", cfg.System.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	store, err := persistence.NewSQLiteStore(cfg.DBPath())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if removed, err := store.DeleteStaleStreamCache(ctx, time.Now().Add(-streamCacheMaxAge)); err != nil {
		log.Warn("Failed to prune stream cache: %v", err)
	} else if removed > 0 {
		log.Info("Pruned %d stale cached streams", removed)
	}

	ff := newFFmpeg(cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	if err := ff.CheckTools(); err != nil {
		log.Warn("Media tools unavailable, built-in streams cannot be merged: %v", err)
	}

	sortBy, sortDirection := parseSort(cfg.Media.SortBy, cfg.Media.SortDirection)
	scanner := library.NewScanner(
		library.SourcesFromDirs(cfg.Media.MediaPaths()),
		library.WithStreamProber(ff),
		library.WithSort(sortBy, sortDirection),
		library.WithLanguageDetection(cfg.Media.DetectLanguages),
		library.WithCacheTTL(cfg.Media.ScanCacheTTL),
	)

	queue := jobs.NewQueue(cfg.System.JobWorkers, store)
	merger := service.NewMerger(ff, service.WithStreamCache(store))
	engine := cron.New()
	scheduler := service.NewScheduler(cfg.Merge, scanner, queue, engine)
	queue.Start(merger.JobExecutor(scheduler.Settings))
	defer queue.Stop()

	serverOpts := []httpapi.Option{
		httpapi.WithUI(cfg.HTTP.UIStaticDir, cfg.HTTP.UIEnabled),
		httpapi.WithScanRunner(scheduler),
	}
	settingsStore, err := config.NewRuntimeSettingsStore(settingsPath, cfg.RuntimeSettings())
	if err != nil {
		log.Warn("Runtime settings are read-only: %v", err)
	} else {
		settingsStore.OnUpdate(func(next config.RuntimeSettings) {
			by, direction := parseSort(next.SortBy, next.SortDirection)
			scanner.UpdateSort(by, direction)
		})
		serverOpts = append(serverOpts,
			httpapi.WithRuntimeSettingsStore(settingsStore),
			httpapi.WithRuntimeSettingsApplier(scheduler.ApplyRuntimeSettings),
		)
	}
	server := httpapi.NewServer(scanner, queue, serverOpts...)

	return runWithComponents(ctx, cfg, scheduler, engine, server)
}

// runWithComponents schedules merges and serves HTTP until ctx is done.
func runWithComponents(ctx context.Context, cfg *config.Config, scheduler mergeScheduler, engine cronEngine, server httpServer) error {
	if err := scheduler.Schedule(ctx); err != nil {
		return fmt.Errorf("schedule merges: %w", err)
	}
	engine.Start()
	defer engine.Stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening on %s", cfg.HTTP.Addr)
		errCh <- server.ListenAndServe(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func setupLogging(cfg *config.Config) (func(), error) {
	level := log.ParseLevel(cfg.System.LogLevel)
	if cfg.System.LogFile == "" {
		log.InitLogger(level)
		return func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(cfg.System.LogFile, level)
	if err != nil {
		return nil, err
	}
	log.SetLogger(fileLogger.Logger)
	return func() { _ = fileLogger.Close() }, nil
}

func newFFmpeg(ffmpegPath, ffprobePath string) *media.FFmpeg {
	opts := make([]media.Option, 0, 2)
	if ffmpegPath != "" {
		opts = append(opts, media.WithFFmpegPath(ffmpegPath))
	}
	if ffprobePath != "" {
		opts = append(opts, media.WithFFprobePath(ffprobePath))
	}
	return media.NewFFmpeg(opts...)
}

func parseSort(by, direction string) (library.SortBy, library.SortDirection) {
	sortBy, err := library.ParseSortBy(by)
	if err != nil {
		log.Warn("%v, sorting by name", err)
		sortBy = library.SortByName
	}
	sortDirection, err := library.ParseSortDirection(direction)
	if err != nil {
		log.Warn("%v, sorting ascending", err)
		sortDirection = library.SortAscending
	}
	return sortBy, sortDirection
}
