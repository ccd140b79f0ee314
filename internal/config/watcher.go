package config

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/supercheck/core/internal/logging"
	"github.com/supercheck/core/internal/xerrors"
)

var log = logging.Named("config.watcher")

// ReloadCallback is invoked after a config file change has been debounced
// and the config re-read. Components register one to pick up new alert
// thresholds, notifier targets, or capacity limits without a restart.
type ReloadCallback func(*Config)

// Watcher watches a config file for changes and reloads it with LoadFromFile, debouncing
// rapid successive writes (editors that save via a temp-file-then-rename
// dance can fire several fsnotify events for one logical edit).
type Watcher struct {
	watcher         *fsnotify.Watcher
	configPath      string
	callbacks       []ReloadCallback
	debouncePeriod  time.Duration
	debounceTimer   *time.Timer
	mu              sync.Mutex
	isOwnWrite      bool
	isOwnWriteMutex sync.Mutex
	done            chan struct{}
}

// NewWatcher creates a Watcher for configPath. Start must be called to begin
// watching.
func NewWatcher(configPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Wrap(err, "failed to create fsnotify watcher")
	}

	dir := filepath.Dir(configPath)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, xerrors.Wrapf(err, "failed to watch config directory %s", dir)
	}

	return &Watcher{
		watcher:        fsw,
		configPath:     configPath,
		debouncePeriod: 500 * time.Millisecond,
		done:           make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after every successful reload.
func (w *Watcher) OnReload(cb ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

// MarkOwnWrite tells the watcher to ignore the next filesystem event for the
// config file, so a config-writing API call doesn't trigger a self-reload
// loop.
func (w *Watcher) MarkOwnWrite() {
	w.isOwnWriteMutex.Lock()
	defer w.isOwnWriteMutex.Unlock()
	w.isOwnWrite = true
}

// Start begins the watch loop in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.done)
	w.watcher.Close()
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warnw("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Base(event.Name) != filepath.Base(w.configPath) {
		return
	}
	if isBackupFile(event.Name) {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	w.isOwnWriteMutex.Lock()
	if w.isOwnWrite {
		w.isOwnWrite = false
		w.isOwnWriteMutex.Unlock()
		return
	}
	w.isOwnWriteMutex.Unlock()

	w.scheduleReload()
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.reload)
}

func (w *Watcher) reload() {
	Reset()
	cfg, err := LoadFromFile(w.configPath)
	if err != nil {
		log.Warnw("config reload failed, keeping previous config", "error", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Warnw("reloaded config failed validation, keeping previous config", "error", err)
		return
	}

	log.Infow("config reloaded", "path", w.configPath)

	w.mu.Lock()
	callbacks := append([]ReloadCallback(nil), w.callbacks...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func isBackupFile(path string) bool {
	for _, suffix := range []string{".back1", ".back2", ".back3", "~"} {
		if strings.HasSuffix(path, suffix) {
			return true
		}
	}
	return false
}
