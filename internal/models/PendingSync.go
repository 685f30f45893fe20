package models

import "time"

// PendingSync is the single durable record of a sync that must be retried.
type PendingSync struct {
	UserID    string         `json:"userId"`
	Timestamp int64          `json:"timestamp"`
	Stats     *StatsSnapshot `json:"stats,omitempty"`
}

func (p *PendingSync) CreatedAt() time.Time {
	return time.UnixMilli(p.Timestamp)
}

// Age reports how long the record has been waiting relative to now.
func (p *PendingSync) Age(now time.Time) time.Duration {
	return now.Sub(p.CreatedAt())
}
