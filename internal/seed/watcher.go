package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"wpx-extend/internal/logger"
)

// DefaultDebounce is how long the watcher waits after the last change
// before importing.
const DefaultDebounce = 300 * time.Millisecond

// Watcher re-imports a seed file or directory whenever it changes.
type Watcher struct {
	path     string
	importer *Importer
	debounce time.Duration
	log      zerolog.Logger

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewWatcher(path string, im *Importer, log zerolog.Logger) *Watcher {
	return &Watcher{
		path:     filepath.Clean(path),
		importer: im,
		debounce: DefaultDebounce,
		log:      logger.Component(log, "seed-watcher"),
	}
}

// Start imports once and then watches for changes until ctx is done or
// Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.importer.ImportFile(ctx, w.path); err != nil {
		return fmt.Errorf("initial seed import failed: %w", err)
	}

	info, err := os.Stat(w.path)
	if err != nil {
		return err
	}
	dir := w.path
	if !info.IsDir() {
		dir = filepath.Dir(w.path)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.watchLoop(watchCtx)
	w.log.Info().Str("path", w.path).Msg("watching seed files")
	return nil
}

// Stop ends the watch loop and waits for it to exit.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.watcher != nil {
		_ = w.watcher.Close()
	}
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer w.wg.Done()
	debounce := time.NewTimer(time.Hour)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watcher error")
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			pending = true
			debounce.Reset(w.debounce)
		case <-debounce.C:
			if pending {
				if _, err := w.importer.ImportFile(ctx, w.path); err != nil {
					w.log.Error().Err(err).Msg("seed import failed after file changes")
				}
				pending = false
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == w.path {
		return true
	}
	return filepath.Dir(name) == w.path && IsSeedFile(name)
}
