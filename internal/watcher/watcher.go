package watcher

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AkatukiSora/mapassist/internal/config"
)

// OffsetsWatcher reloads the offsets file whenever it changes on disk
type OffsetsWatcher struct {
	Path     string
	watcher  *fsnotify.Watcher
	done     chan struct{}
	mu       sync.Mutex
	stopOnce sync.Once
	interval time.Duration

	cleanPath string
	lastRaw   []byte
	onChange  func(config.Offsets)
	onError   func(err error)
}

type WatcherConfig struct {
	OnChange func(config.Offsets)
	OnError  func(err error)
	// PollInterval is the fallback re-read period. Zero means 2s.
	PollInterval time.Duration
}

// NewOffsetsWatcher creates a watcher for the given offsets file path
func NewOffsetsWatcher(path string, cfg WatcherConfig) (*OffsetsWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	return &OffsetsWatcher{
		Path:      path,
		watcher:   w,
		done:      make(chan struct{}),
		interval:  interval,
		cleanPath: filepath.Clean(path),
		onChange:  cfg.OnChange,
		onError:   cfg.OnError,
	}, nil
}

// Start records the current file content and begins watching for changes.
// The initial content is not reported; callers load it themselves.
func (ow *OffsetsWatcher) Start() error {
	slog.Info("offsets watcher starting", "path", ow.Path)
	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	dir := filepath.Dir(ow.Path)
	if err := ow.watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}

	if raw, err := os.ReadFile(ow.Path); err == nil {
		ow.mu.Lock()
		ow.lastRaw = raw
		ow.mu.Unlock()
	}

	go ow.watchLoop()
	return nil
}

// Stop stops the watcher
func (ow *OffsetsWatcher) Stop() {
	ow.stopOnce.Do(func() {
		slog.Info("offsets watcher stopped", "path", ow.Path)
		close(ow.done)
		_ = ow.watcher.Close()
	})
}

func (ow *OffsetsWatcher) watchLoop() {
	ticker := time.NewTicker(ow.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ow.done:
			return
		case event, ok := <-ow.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != ow.cleanPath {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				ow.reload()
			}
		case err, ok := <-ow.watcher.Errors:
			if !ok {
				return
			}
			ow.reportError(err)
		case <-ticker.C:
			// Periodic poll as fallback
			ow.reload()
		}
	}
}

// reload re-reads the file and reports it when the content changed. A file
// that is briefly missing mid-replace is not an error.
func (ow *OffsetsWatcher) reload() {
	raw, err := os.ReadFile(ow.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			ow.reportError(err)
		}
		return
	}

	ow.mu.Lock()
	unchanged := bytes.Equal(raw, ow.lastRaw)
	if !unchanged {
		ow.lastRaw = raw
	}
	ow.mu.Unlock()
	if unchanged {
		return
	}

	offsets, err := config.ParseOffsets(raw)
	if err != nil {
		ow.reportError(fmt.Errorf("reload %s: %w", ow.Path, err))
		return
	}
	slog.Info("offsets reloaded", "path", ow.Path)
	if ow.onChange != nil {
		ow.onChange(offsets)
	}
}

func (ow *OffsetsWatcher) reportError(err error) {
	slog.Warn("offsets watcher error", "path", ow.Path, "error", err)
	if ow.onError != nil {
		ow.onError(err)
	}
}
