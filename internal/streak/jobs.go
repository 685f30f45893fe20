package streak

import (
	"jobstreak/internal/models"
	"net/url"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CompanyFromURL derives a display name from the page host: "www.acme-corp.com" -> "Acme-corp".
func CompanyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	label, _, _ := strings.Cut(host, ".")
	if label == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r)) + label[size:]
}

// Recent returns up to n records ordered by timestamp, newest first.
func Recent(jobs []models.JobRecord, n int) []models.JobRecord {
	out := slices.Clone(jobs)
	slices.SortStableFunc(out, func(a, b models.JobRecord) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

type DayCount struct {
	Day   models.Day `json:"day"`
	Count int        `json:"count"`
}

// DailyCounts returns one entry per day for the days ending at today, oldest first.
func DailyCounts(jobs []models.JobRecord, today models.Day, days int) []DayCount {
	if days <= 0 {
		return []DayCount{}
	}
	counts := make(map[string]int, days)
	for _, j := range jobs {
		counts[j.Date.String()]++
	}
	out := make([]DayCount, 0, days)
	for i := days - 1; i >= 0; i-- {
		d := today.AddDays(-i)
		out = append(out, DayCount{Day: d, Count: counts[d.String()]})
	}
	return out
}
