package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AkatukiSora/mapassist/internal/application"
	"github.com/AkatukiSora/mapassist/internal/applog"
	"github.com/AkatukiSora/mapassist/internal/config"
	"github.com/AkatukiSora/mapassist/internal/feed"
	"github.com/AkatukiSora/mapassist/internal/gamestate"
	"github.com/AkatukiSora/mapassist/internal/mapapi"
	"github.com/AkatukiSora/mapassist/internal/mapcache"
	"github.com/AkatukiSora/mapassist/internal/persistence"
	"github.com/AkatukiSora/mapassist/internal/procmem"
	"github.com/AkatukiSora/mapassist/internal/watcher"
)

var (
	version   = "dev"
	commit    = "local"
	buildDate = "unknown"
)

const shutdownTimeout = 5 * time.Second

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("mapassist %s (%s, built %s)\n", version, commit, buildDate)
		return
	}

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mapassist: %v\n", err)
		os.Exit(2)
	}
	applog.Init(*debug || settings.Debug)
	slog.Info("mapassist starting", "version", version, "commit", commit, "endpoint", settings.APIEndpoint)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings); err != nil {
		slog.Error("mapassist stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, settings config.Settings) error {
	offsets := config.DefaultOffsets()
	if settings.OffsetsFile != "" {
		loaded, err := config.LoadOffsets(settings.OffsetsFile)
		if err != nil {
			return err
		}
		offsets = loaded
	}
	extractor := gamestate.New(procmem.System, settings.ProcessName, offsets)

	if settings.OffsetsFile != "" {
		// Errors are logged by the watcher; the last good offsets stay in use.
		w, err := watcher.NewOffsetsWatcher(settings.OffsetsFile, watcher.WatcherConfig{
			OnChange: extractor.SetOffsets,
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()
	}

	opts := mapcache.Options{
		ClearOnAreaChange: settings.ClearPrefetchedOnAreaChange,
		Prefetch:          settings.Prefetch(),
	}
	if settings.ArchivePath != "" {
		repo, err := openArchive(ctx, settings)
		if err != nil {
			// The map service alone is enough to keep going.
			slog.Warn("area archive unavailable", "path", settings.ArchivePath, "error", err)
		} else {
			defer repo.Close()
			opts.Archive = repo
		}
	}

	client := mapapi.NewClient(settings.APIEndpoint, nil)
	svc := application.NewService(extractor, application.NewCacheFactory(client, opts), application.Config{
		Interval:           settings.UpdateInterval,
		HiddenAreas:        settings.Hidden(),
		ToggleViaInGameMap: settings.ToggleViaInGameMap,
	})

	srv := &http.Server{
		Addr:              settings.FeedAddr,
		Handler:           feed.NewServer(svc).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	ctx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("feed listening", "addr", settings.FeedAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancelLoop()
		}
		close(serveErr)
	}()

	loopErr := svc.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("feed shutdown", "error", err)
	}
	if err := <-serveErr; err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	return loopErr
}

// openArchive opens the on-disk area archive and drops entries older than
// the configured retention.
func openArchive(ctx context.Context, settings config.Settings) (*persistence.SQLiteRepository, error) {
	repo, err := persistence.NewSQLiteRepository(settings.ArchivePath)
	if err != nil {
		return nil, err
	}
	if settings.ArchiveRetention > 0 {
		n, err := repo.PurgeBefore(ctx, time.Now().Add(-settings.ArchiveRetention))
		if err != nil {
			slog.Warn("archive purge failed", "error", err)
		} else if n > 0 {
			slog.Info("archive purged", "areas", n, "retention", settings.ArchiveRetention)
		}
	}
	return repo, nil
}
