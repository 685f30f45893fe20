package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStorage keeps the whole key space in one compressed JSON document. Every operation
// holds an in-process mutex and an advisory file lock, so readers never see a torn write
// and Update is atomic across processes sharing the same path.
type FileStorage struct {
	path        string
	compressor  Compressor
	lock        *flock.Flock
	lockTimeout time.Duration
	mu          sync.Mutex
}

func NewFileStorage(path string, compressor Compressor, lockTimeout time.Duration) *FileStorage {
	return &FileStorage{
		path:        path,
		compressor:  compressor,
		lock:        flock.New(path + ".lock"),
		lockTimeout: lockTimeout,
	}
}

func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		value []byte
		ok    bool
	)
	err := f.withLock(ctx, false, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		raw, found := doc[key]
		if found && !isNull(raw) {
			value, ok = []byte(raw), true
		}
		return nil
	})
	return value, ok, err
}

func (f *FileStorage) Set(ctx context.Context, key string, value []byte) error {
	return f.Update(ctx, key, func([]byte, bool) ([]byte, error) {
		return value, nil
	})
}

func (f *FileStorage) Remove(ctx context.Context, keys ...string) error {
	return f.withLock(ctx, true, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		changed := false
		for _, k := range keys {
			if _, ok := doc[k]; ok {
				delete(doc, k)
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return f.save(doc)
	})
}

func (f *FileStorage) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return f.withLock(ctx, true, func() error {
		doc, err := f.load()
		if err != nil {
			return err
		}
		current, ok := doc[key]
		if ok && isNull(current) {
			current, ok = nil, false
		}
		next, err := fn([]byte(current), ok)
		if errors.Is(err, ErrSkipWrite) {
			return nil
		}
		if err != nil {
			return err
		}
		if next == nil {
			if !ok {
				return nil
			}
			delete(doc, key)
		} else {
			if !json.Valid(next) {
				return fmt.Errorf("value for %q is not valid JSON", key)
			}
			doc[key] = json.RawMessage(next)
		}
		return f.save(doc)
	})
}

func (f *FileStorage) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compressor.Close()
	return f.lock.Close()
}

func (f *FileStorage) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return err
	}

	lockCtx, cancel := context.WithTimeout(ctx, f.lockTimeout)
	defer cancel()

	var (
		locked bool
		err    error
	)
	if exclusive {
		locked, err = f.lock.TryLockContext(lockCtx, lockRetryDelay)
	} else {
		locked, err = f.lock.TryRLockContext(lockCtx, lockRetryDelay)
	}
	if err != nil || !locked {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s", ErrLocked, f.path)
	}
	defer func() { _ = f.lock.Unlock() }()

	return fn()
}

func (f *FileStorage) load() (map[string]json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return doc, nil
		}
		return nil, err
	}
	if len(data) == 0 {
		return doc, nil
	}

	plain, err := f.compressor.Decompress(data)
	if err != nil {
		// Older installs and hand-edited files hold the document uncompressed.
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) == 0 || trimmed[0] != '{' {
			return nil, fmt.Errorf("decode %s: %w", f.path, err)
		}
		plain = trimmed
	}
	if err := json.Unmarshal(plain, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return doc, nil
}

func (f *FileStorage) save(doc map[string]json.RawMessage) error {
	jsonData, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	data, err := f.compressor.Compress(jsonData)
	if err != nil {
		return err
	}

	tmpFile := f.path + ".tmp"
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	if _, err = file.Write(data); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, f.path)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
