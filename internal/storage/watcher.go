package storage

import (
	"context"
	"jobstreak/internal/providers"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher signals when the storage file changes on disk. It watches the parent
// directory because atomic renames replace the file's inode.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   providers.Logger
	watcher  *fsnotify.Watcher
	changes  chan struct{}
}

func NewWatcher(path string, logger providers.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		path:     filepath.Clean(path),
		debounce: defaultDebounce,
		logger:   logger,
		watcher:  fw,
		changes:  make(chan struct{}, 1),
	}, nil
}

func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Run forwards debounced change signals until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warnf(providers.TypeStorage, "storage watcher: %v", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	name := filepath.Clean(ev.Name)
	if name != w.path && name != w.path+"-wal" {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
