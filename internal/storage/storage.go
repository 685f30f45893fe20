// Package storage provides the local persistent key-value substrate shared by every
// process of one installation. Values are opaque bytes (JSON documents); the last
// writer wins, and Update offers a locked read-modify-write for callers that must
// not lose a concurrent writer's changes.
package storage

import (
	"context"
	"errors"
	"fmt"
	"jobstreak/internal/providers"
	"jobstreak/internal/structures"
	"time"
)

const (
	KeyUser                = "user"
	KeyStats               = "stats"
	KeyPendingSync         = "pendingSync"
	KeyPendingSyncResolved = "pendingSyncResolved"
)

var (
	ErrLocked    = errors.New("storage is locked by another process")
	ErrSkipWrite = errors.New("skip write")
)

// UpdateFunc receives the current value (ok=false when absent) and returns the value to
// store. Returning a nil slice removes the key; returning ErrSkipWrite leaves it untouched.
type UpdateFunc func(current []byte, ok bool) ([]byte, error)

type LocalStorage interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, keys ...string) error
	Update(ctx context.Context, key string, fn UpdateFunc) error
	Path() string
	Close() error
}

const defaultLockTimeout = 5 * time.Second

func NewLocalStorage(conf *structures.Config, logger providers.Logger) (LocalStorage, error) {
	timeout := conf.Storage.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	switch conf.Storage.Driver {
	case "", "file":
		compressor, err := NewZstdCompressor()
		if err != nil {
			return nil, err
		}
		logger.Infof(providers.TypeStorage, "Using file storage at %s", conf.Storage.Path)
		return NewFileStorage(conf.Storage.Path, compressor, timeout), nil
	case "sqlite":
		logger.Infof(providers.TypeStorage, "Using sqlite storage at %s", conf.Storage.Path)
		return NewSQLiteStorage(conf.Storage.Path, timeout)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", conf.Storage.Driver)
	}
}
