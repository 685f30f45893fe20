// Package remote is the boundary to the remote document store: users/{userId}
// documents with get/set/update/merge and a server-assigned timestamp sentinel.
package remote

import (
	"context"
	"errors"
	"jobstreak/internal/models"
	"time"
)

var (
	ErrNotFound     = errors.New("remote document not found")
	ErrNotInitiated = errors.New("remote target not initialized")
)

// Document is a JSON object written to a target. Top-level values equal to
// ServerTimestamp are replaced by the target's clock at write time.
type Document map[string]any

type serverTimestamp struct{}

// ServerTimestamp asks the target to fill in its own current time.
var ServerTimestamp = serverTimestamp{}

type Target interface {
	Name() string
	Init(ctx context.Context) error
	Get(ctx context.Context, userID string) ([]byte, bool, error)
	// Set replaces the whole document.
	Set(ctx context.Context, userID string, doc Document) error
	// Update patches top-level fields of an existing document.
	Update(ctx context.Context, userID string, fields Document) error
	// Merge patches top-level fields, creating the document if needed.
	Merge(ctx context.Context, userID string, fields Document) error
}

// FriendsSource is implemented by targets that know the social graph.
type FriendsSource interface {
	Friends(ctx context.Context, userID string) ([]models.FriendStreak, error)
}

// splitServerTimestamps returns a copy of doc without sentinel values and the keys
// that held them.
func splitServerTimestamps(doc Document) (Document, []string) {
	plain := make(Document, len(doc))
	var keys []string
	for k, v := range doc {
		if _, ok := v.(serverTimestamp); ok {
			keys = append(keys, k)
			continue
		}
		plain[k] = v
	}
	return plain, keys
}

// resolveServerTimestamps replaces sentinels with fn(key) in a copy of doc.
func resolveServerTimestamps(doc Document, fn func() any) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		if _, ok := v.(serverTimestamp); ok {
			out[k] = fn()
			continue
		}
		out[k] = v
	}
	return out
}

func unixMillis(t time.Time) int64 {
	return t.UnixMilli()
}
