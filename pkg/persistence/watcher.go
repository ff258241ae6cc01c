package persistence

import (
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/airmcp-com/mcp-standards-sub000/internal/observability"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce coalesces the bursts produced by tmp-file-and-rename saves.
const DefaultDebounce = 250 * time.Millisecond

// Watcher calls onChange after the snapshot file changes. It watches the
// parent directory so atomic renames are seen.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   string
	logger   zerolog.Logger
	onChange func()
	debounce time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	stopCh chan struct{}
	once   sync.Once
}

// NewWatcher starts watching path. A non-positive debounce uses
// DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, logger zerolog.Logger, onChange func()) (*Watcher, error) {
	if path == "" {
		return nil, errors.New("snapshot path is required")
	}
	if onChange == nil {
		return nil, errors.New("onChange callback is required")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsw,
		target:   abs,
		logger:   logger,
		onChange: onChange,
		debounce: debounce,
		stopCh:   make(chan struct{}),
	}

	go w.run()

	return w, nil
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.once.Do(func() {
		close(w.stopCh)
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) != w.target {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Snapshot change detected")

				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			observability.RecordSnapshotChange(false)
			w.logger.Error().Err(err).Msg("Snapshot watcher error")

		case <-w.stopCh:
			return
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case <-w.stopCh:
			return
		default:
		}
		observability.RecordSnapshotChange(true)
		w.onChange()
	})
}
