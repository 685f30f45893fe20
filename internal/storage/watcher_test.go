package storage

import (
	"context"
	"jobstreak/internal/testutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_SignalsOnWrite(t *testing.T) {
	fs := newFileStorage(t)
	w, err := NewWatcher(fs.Path(), &testutil.MockLogger{})
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, fs.Set(ctx, KeyStats, []byte(`{"streak":1}`)))

	select {
	case <-w.Changes():
	case <-time.After(2 * time.Second):
		t.Fatal("expected a change signal")
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(filepath.Join(dir, "state.db"), &testutil.MockLogger{})
	require.NoError(t, err)

	assert.False(t, w.relevant(fsEvent(filepath.Join(dir, "other.db"))))
	assert.True(t, w.relevant(fsEvent(filepath.Join(dir, "state.db"))))
	assert.True(t, w.relevant(fsEvent(filepath.Join(dir, "state.db-wal"))))
	_ = w.watcher.Close()
}

func fsEvent(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}
