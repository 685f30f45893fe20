package remotesync

import (
	"jobstreak/internal/models"
	"jobstreak/internal/remote"
	"slices"
)

// Merge reconciles a local snapshot with the remote one. A remote snapshot whose
// lastUpdated is strictly later wins as is. Otherwise local counters are kept and
// appliedJobs becomes local plus every remote record whose URL local does not have.
func Merge(local, remoteSnap *models.StatsSnapshot) *models.StatsSnapshot {
	switch {
	case remoteSnap == nil:
		return local.Clone()
	case local == nil:
		return remoteSnap.Clone()
	}

	if remoteSnap.LastUpdated.After(local.LastUpdated) {
		out := remoteSnap.Clone()
		if out.UserID == "" {
			out.UserID = local.UserID
		}
		out.Sanitize()
		return out
	}

	out := local.Clone()
	seen := make(map[string]bool, len(out.AppliedJobs)+len(remoteSnap.AppliedJobs))
	for _, j := range out.AppliedJobs {
		seen[j.URL] = true
	}
	for _, j := range remoteSnap.AppliedJobs {
		if seen[j.URL] {
			continue
		}
		seen[j.URL] = true
		j.LastTracked = false
		out.AppliedJobs = append(out.AppliedJobs, j)
	}
	slices.SortStableFunc(out.AppliedJobs, func(a, b models.JobRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	out.Sanitize()
	return out
}

// documentFor is the canonical remote layout of s.
func documentFor(s *models.StatsSnapshot) remote.Document {
	jobs := s.AppliedJobs
	if jobs == nil {
		jobs = []models.JobRecord{}
	}
	return remote.Document{
		"userId":      s.UserID,
		"lastUpdated": s.LastUpdated.String(),
		"stats": map[string]any{
			"streak":      s.Streak,
			"todayCount":  s.TodayCount,
			"appliedJobs": jobs,
		},
		"_timestamp": remote.ServerTimestamp,
	}
}

// newDocumentFor adds the creation-only fields written when a user document is first created.
func newDocumentFor(s *models.StatsSnapshot, u *models.User) remote.Document {
	doc := documentFor(s)
	doc["createdAt"] = remote.ServerTimestamp
	if u != nil {
		doc["displayName"] = u.DisplayName
		doc["email"] = u.Email
		doc["photoURL"] = u.PhotoURL
	}
	return doc
}
