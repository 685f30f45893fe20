package models

import (
	"fmt"
	"time"
)

// JobRecord is one tracked application.
type JobRecord struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Date        Day       `json:"date"`
	Timestamp   time.Time `json:"timestamp"`
	LastTracked bool      `json:"lastTracked"`
}

// StatsSnapshot is the complete stats structure of one user and the unit of
// persistence and of remote merge. AppliedJobs is ordered most recent first.
type StatsSnapshot struct {
	UserID      string      `json:"userId"`
	TodayCount  int         `json:"todayCount"`
	Streak      int         `json:"streak"`
	LastUpdated Day         `json:"lastUpdated"`
	AppliedJobs []JobRecord `json:"appliedJobs"`
	// StreakCreditedOn is the day the daily goal crossing last credited the streak.
	StreakCreditedOn Day `json:"streakCreditedOn,omitzero"`
}

func NewDefaultSnapshot(userID string, today Day) *StatsSnapshot {
	return &StatsSnapshot{
		UserID:      userID,
		LastUpdated: today,
		AppliedJobs: []JobRecord{},
	}
}

func (s *StatsSnapshot) Clone() *StatsSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.AppliedJobs = make([]JobRecord, len(s.AppliedJobs))
	copy(c.AppliedJobs, s.AppliedJobs)
	return &c
}

// LastTrackedJob returns the index of the record flagged lastTracked, or -1.
func (s *StatsSnapshot) LastTrackedJob() int {
	for i := range s.AppliedJobs {
		if s.AppliedJobs[i].LastTracked {
			return i
		}
	}
	return -1
}

// IsTracked reports whether url is the current lastTracked record.
func (s *StatsSnapshot) IsTracked(url string) bool {
	idx := s.LastTrackedJob()
	return idx >= 0 && s.AppliedJobs[idx].URL == url
}

func (s *StatsSnapshot) ClearLastTracked() {
	for i := range s.AppliedJobs {
		s.AppliedJobs[i].LastTracked = false
	}
}

// NormalizeLastTracked keeps the first lastTracked flag and clears the rest.
func (s *StatsSnapshot) NormalizeLastTracked() {
	seen := false
	for i := range s.AppliedJobs {
		if !s.AppliedJobs[i].LastTracked {
			continue
		}
		if seen {
			s.AppliedJobs[i].LastTracked = false
		}
		seen = true
	}
}

// Sanitize repairs values a concurrent or legacy writer may have left inconsistent.
func (s *StatsSnapshot) Sanitize() {
	if s.AppliedJobs == nil {
		s.AppliedJobs = []JobRecord{}
	}
	if s.TodayCount < 0 {
		s.TodayCount = 0
	}
	if s.Streak < 0 {
		s.Streak = 0
	}
	s.NormalizeLastTracked()
}

// Validate checks the invariants a snapshot must hold before it is persisted.
func (s *StatsSnapshot) Validate() error {
	switch {
	case s.UserID == "":
		return fmt.Errorf("%w: stats without userId", ErrInvalidPayload)
	case s.TodayCount < 0 || s.Streak < 0:
		return fmt.Errorf("%w: negative counter", ErrInvalidPayload)
	}
	flagged := 0
	for _, j := range s.AppliedJobs {
		if j.LastTracked {
			flagged++
		}
	}
	if flagged > 1 {
		return fmt.Errorf("%w: %d records flagged lastTracked", ErrInvalidPayload, flagged)
	}
	return nil
}
