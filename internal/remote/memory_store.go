package remote

import (
	"context"
	"jobstreak/internal/models"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// MemoryStore is an in-process Target used for local runs and tests. Failures can be
// injected per operation.
type MemoryStore struct {
	mu      sync.Mutex
	docs    map[string]Document
	friends map[string][]string
	now     func() time.Time

	InitErr  error
	GetErr   error
	WriteErr error
	Inits    int
	Writes   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:    make(map[string]Document),
		friends: make(map[string][]string),
		now:     time.Now,
	}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Init(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Inits++
	return m.InitErr
}

func (m *MemoryStore) Get(_ context.Context, userID string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	doc, ok := m.docs[userID]
	if !ok {
		return nil, false, nil
	}
	data, err := json.Marshal(doc)
	return data, err == nil, err
}

func (m *MemoryStore) Set(_ context.Context, userID string, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	normalized, err := m.normalize(doc)
	if err != nil {
		return err
	}
	m.docs[userID] = normalized
	m.Writes++
	return nil
}

func (m *MemoryStore) Update(_ context.Context, userID string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if _, ok := m.docs[userID]; !ok {
		return ErrNotFound
	}
	return m.patch(userID, fields)
}

func (m *MemoryStore) Merge(_ context.Context, userID string, fields Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	if _, ok := m.docs[userID]; !ok {
		m.docs[userID] = Document{}
	}
	return m.patch(userID, fields)
}

func (m *MemoryStore) patch(userID string, fields Document) error {
	normalized, err := m.normalize(fields)
	if err != nil {
		return err
	}
	for k, v := range normalized {
		m.docs[userID][k] = v
	}
	m.Writes++
	return nil
}

// normalize resolves sentinels and round-trips through JSON so stored values look
// exactly like what a real store would hand back.
func (m *MemoryStore) normalize(doc Document) (Document, error) {
	now := unixMillis(m.now())
	resolved := resolveServerTimestamps(doc, func() any { return now })
	data, err := json.Marshal(resolved)
	if err != nil {
		return nil, err
	}
	var out Document
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PutRaw stores raw JSON verbatim, for seeding legacy layouts.
func (m *MemoryStore) PutRaw(userID string, raw []byte) error {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[userID] = doc
	return nil
}

func (m *MemoryStore) AddFriend(userID, friendID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.Contains(m.friends[userID], friendID) {
		m.friends[userID] = append(m.friends[userID], friendID)
	}
}

func (m *MemoryStore) Friends(_ context.Context, userID string) ([]models.FriendStreak, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	var out []models.FriendStreak
	for _, id := range m.friends[userID] {
		doc, ok := m.docs[id]
		if !ok {
			continue
		}
		data, err := json.Marshal(doc)
		if err != nil {
			continue
		}
		if fs, ok := friendFromDocument(id, data); ok {
			out = append(out, fs)
		}
	}
	sortFriends(out)
	return out, nil
}

func friendFromDocument(id string, raw []byte) (models.FriendStreak, bool) {
	doc, _, err := models.DecodeRemoteDocument(raw)
	if err != nil {
		return models.FriendStreak{}, false
	}
	return models.FriendStreak{
		UserID:      id,
		DisplayName: doc.DisplayName,
		PhotoURL:    doc.PhotoURL,
		Streak:      doc.Stats.Streak,
		TodayCount:  doc.Stats.TodayCount,
		LastUpdated: doc.LastUpdated,
	}, true
}

func sortFriends(fs []models.FriendStreak) {
	slices.SortStableFunc(fs, func(a, b models.FriendStreak) int {
		if a.Streak != b.Streak {
			return b.Streak - a.Streak
		}
		return b.TodayCount - a.TodayCount
	})
}
