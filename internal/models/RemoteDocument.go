package models

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cast"
)

// RemoteStats is the "stats" sub-document stored under users/{userId}.
type RemoteStats struct {
	Streak      int         `json:"streak"`
	TodayCount  int         `json:"todayCount"`
	AppliedJobs []JobRecord `json:"appliedJobs"`
}

// RemoteDocument is the canonical remote representation of one user.
type RemoteDocument struct {
	UserID      string      `json:"userId"`
	LastUpdated Day         `json:"lastUpdated"`
	Stats       RemoteStats `json:"stats"`
	Timestamp   time.Time   `json:"_timestamp"`
	CreatedAt   time.Time   `json:"createdAt"`
	DisplayName string      `json:"displayName"`
	Email       string      `json:"email"`
	PhotoURL    string      `json:"photoURL"`
}

func (d *RemoteDocument) Snapshot() *StatsSnapshot {
	s := &StatsSnapshot{
		UserID:      d.UserID,
		TodayCount:  d.Stats.TodayCount,
		Streak:      d.Stats.Streak,
		LastUpdated: d.LastUpdated,
		AppliedJobs: make([]JobRecord, len(d.Stats.AppliedJobs)),
	}
	copy(s.AppliedJobs, d.Stats.AppliedJobs)
	s.Sanitize()
	return s
}

// DecodeRemoteDocument parses a stored document and upgrades older layouts to the
// canonical one. migrated reports whether anything had to be rewritten.
//
// Known layouts:
//   - canonical: top-level lastUpdated/userId, counters under "stats"
//   - v1: everything (including lastUpdated and userId) nested under "stats"
//   - v0: flat document with counters at the top level
func DecodeRemoteDocument(raw []byte) (*RemoteDocument, bool, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if fields == nil {
		return nil, false, fmt.Errorf("%w: empty document", ErrInvalidPayload)
	}

	migrated := false
	doc := &RemoteDocument{
		UserID:      cast.ToString(fields["userId"]),
		DisplayName: cast.ToString(fields["displayName"]),
		Email:       cast.ToString(fields["email"]),
		PhotoURL:    cast.ToString(fields["photoURL"]),
		Timestamp:   toTime(fields["_timestamp"]),
		CreatedAt:   toTime(fields["createdAt"]),
	}

	stats, ok := fields["stats"].(map[string]any)
	if !ok {
		// v0: counters live at the top level
		stats = fields
		migrated = true
	}

	if v, ok := fields["lastUpdated"]; ok {
		doc.LastUpdated = toDay(v, &migrated)
	} else if v, ok := stats["lastUpdated"]; ok {
		doc.LastUpdated = toDay(v, &migrated)
		migrated = true
	} else {
		migrated = true
	}

	if doc.UserID == "" {
		if uid := cast.ToString(stats["userId"]); uid != "" {
			doc.UserID = uid
			migrated = true
		}
	}

	doc.Stats.Streak = toCount(stats["streak"], &migrated)
	doc.Stats.TodayCount = toCount(stats["todayCount"], &migrated)
	doc.Stats.AppliedJobs = toJobs(stats["appliedJobs"], &migrated)

	return doc, migrated, nil
}

func toCount(v any, migrated *bool) int {
	switch n := v.(type) {
	case nil:
		*migrated = true
		return 0
	case float64:
		if n < 0 {
			*migrated = true
			return 0
		}
		return int(n)
	}
	i, err := cast.ToIntE(v)
	*migrated = true
	if err != nil || i < 0 {
		return 0
	}
	return i
}

func toDay(v any, migrated *bool) Day {
	s := cast.ToString(v)
	d, err := ParseDay(s)
	if err != nil {
		*migrated = true
		return Day{}
	}
	if len(s) != len(dayLayout) {
		*migrated = true
	}
	return d
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case float64:
		// RTDB server values are milliseconds since epoch
		return time.UnixMilli(int64(t)).UTC()
	}
	ts, err := cast.ToTimeE(v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func toJobs(v any, migrated *bool) []JobRecord {
	items, ok := v.([]any)
	if !ok {
		*migrated = true
		return []JobRecord{}
	}
	jobs := make([]JobRecord, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok || cast.ToString(m["url"]) == "" {
			*migrated = true
			continue
		}
		if ms, ok := m["timestamp"].(float64); ok {
			m["timestamp"] = time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano)
			*migrated = true
		}
		if _, ok := m["date"]; !ok && m["timestamp"] != nil {
			m["date"] = m["timestamp"]
			*migrated = true
		}
		raw, err := json.Marshal(m)
		if err != nil {
			*migrated = true
			continue
		}
		var job JobRecord
		if err := json.Unmarshal(raw, &job); err != nil {
			*migrated = true
			job = JobRecord{
				URL:     cast.ToString(m["url"]),
				Title:   cast.ToString(m["title"]),
				Company: cast.ToString(m["company"]),
			}
		}
		jobs = append(jobs, job)
	}
	return jobs
}
