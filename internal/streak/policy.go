// Package streak holds the pure day-rollover and tracking rules applied to a
// StatsSnapshot. Nothing here performs I/O; callers load, mutate and persist.
package streak

import (
	"jobstreak/internal/models"
	"time"
)

// DailyGoal is the number of tracked applications that qualifies a day for the streak.
const DailyGoal = 20

type TrackResult int

const (
	Tracked TrackResult = iota
	AlreadyTracked
)

type UntrackResult int

const (
	Untracked UntrackResult = iota
	NothingToRemove
)

// ApplyRollover evaluates the day boundary between s.LastUpdated and today. It is a
// no-op when LastUpdated already equals today. Rollover clears the lastTracked marker,
// so undo never reaches across days.
func ApplyRollover(s *models.StatsSnapshot, today models.Day) (*models.StatsSnapshot, bool) {
	if s.LastUpdated.Equal(today) {
		return s, false
	}
	out := s.Clone()

	diffDays := models.DaysBetween(out.LastUpdated, today)
	switch {
	case out.LastUpdated.IsZero() || diffDays > 1 || out.TodayCount < DailyGoal:
		out.Streak = 0
	case out.TodayCount >= DailyGoal && diffDays == 1:
		out.Streak++
	}

	out.TodayCount = 0
	out.LastUpdated = today
	out.ClearLastTracked()
	return out, true
}

// Track records job as the most recent application. Tracking the URL that is already
// the lastTracked record is rejected and leaves s untouched.
func Track(s *models.StatsSnapshot, job models.JobRecord, today models.Day) (*models.StatsSnapshot, TrackResult) {
	if s.IsTracked(job.URL) {
		return s, AlreadyTracked
	}
	out := s.Clone()
	out.ClearLastTracked()

	if job.Company == "" {
		job.Company = CompanyFromURL(job.URL)
	}
	if job.Date.IsZero() {
		job.Date = today
	}
	if job.Timestamp.IsZero() {
		job.Timestamp = time.Now().UTC()
	}
	job.LastTracked = true
	out.AppliedJobs = append([]models.JobRecord{job}, out.AppliedJobs...)

	out.TodayCount++
	if out.TodayCount == DailyGoal && !out.StreakCreditedOn.Equal(today) {
		out.Streak++
		out.StreakCreditedOn = today
	}
	return out, Tracked
}

// Untrack removes the lastTracked record when it matches url and decrements the daily
// count. The streak is never decremented.
func Untrack(s *models.StatsSnapshot, url string) (*models.StatsSnapshot, UntrackResult) {
	idx := s.LastTrackedJob()
	if idx < 0 || s.AppliedJobs[idx].URL != url || s.TodayCount == 0 {
		return s, NothingToRemove
	}
	out := s.Clone()
	out.AppliedJobs = append(out.AppliedJobs[:idx], out.AppliedJobs[idx+1:]...)
	out.TodayCount--
	return out, Untracked
}
