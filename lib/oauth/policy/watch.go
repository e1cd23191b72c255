package policy

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a policy file into a Store whenever the file changes.
//
// If the new file cannot be loaded, the previous Policy is kept.
type Watcher struct {
	store    *Store
	path     string
	base     *Config
	log      logger.Logger
	debounce time.Duration
	onReload func(*Policy, error)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type WatchModifier func(*Watcher)

// WithDebounce configures how long to wait for further changes before reloading.
func WithDebounce(d time.Duration) WatchModifier {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithBase merges the file with the supplied Config, typically from flags.
func WithBase(base *Config) WatchModifier {
	return func(w *Watcher) {
		w.base = base
	}
}

func WithLogger(log logger.Logger) WatchModifier {
	return func(w *Watcher) {
		w.log = log
	}
}

// WithReloadCallback invokes fn after each reload attempt.
func WithReloadCallback(fn func(*Policy, error)) WatchModifier {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// Watch starts watching path. Stop it with Close or by canceling ctx.
//
// The directory is watched rather than the file, as most editors and config
// management systems replace files with a rename.
func Watch(ctx context.Context, store *Store, path string, mods ...WatchModifier) (*Watcher, error) {
	w := &Watcher{
		store:    store,
		path:     filepath.Clean(path),
		base:     &Config{},
		log:      logger.Nil,
		debounce: 500 * time.Millisecond,
		onReload: func(*Policy, error) {},
	}
	for _, mod := range mods {
		mod(w)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return nil, err
	}
	w.watcher = watcher

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			w.Reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Errorf("policy watcher for %s - %s", w.path, err)
		}
	}
}

// Reload loads the file immediately.
func (w *Watcher) Reload() {
	config, err := LoadFile(w.path)
	var p *Policy
	if err == nil {
		p, err = w.base.Merge(config).Policy(w.log)
	}
	if err != nil {
		w.log.Errorf("could not reload policy, keeping the current one - %s", err)
		w.onReload(nil, err)
		return
	}

	w.store.Replace(p)
	w.log.Infof("policy reloaded from %s - %s", w.path, p)
	w.onReload(p, nil)
}

// Close stops the watcher, waiting for the background goroutine to exit.
func (w *Watcher) Close() error {
	w.cancel()
	w.wg.Wait()
	return w.watcher.Close()
}
