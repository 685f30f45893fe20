package streak

import (
	"jobstreak/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanyFromURL(t *testing.T) {
	tests := map[string]string{
		"https://www.acme.com/careers/123":     "Acme",
		"https://boards.greenhouse.io/initech": "Boards",
		"http://globex.co.uk":                  "Globex",
		"not a url":                            "",
		"":                                     "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CompanyFromURL(in), in)
	}
}

func TestRecent_SortsNewestFirstAndLimits(t *testing.T) {
	base := time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)
	jobs := []models.JobRecord{
		{URL: "a", Timestamp: base},
		{URL: "c", Timestamp: base.Add(2 * time.Hour)},
		{URL: "b", Timestamp: base.Add(time.Hour)},
	}

	out := Recent(jobs, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].URL)
	assert.Equal(t, "b", out[1].URL)
	assert.Equal(t, "a", jobs[0].URL, "input must not be reordered")
}

func TestDailyCounts(t *testing.T) {
	today := models.NewDay(2024, time.May, 3)
	jobs := []models.JobRecord{
		{URL: "a", Date: today},
		{URL: "b", Date: today},
		{URL: "c", Date: today.AddDays(-2)},
		{URL: "d", Date: today.AddDays(-10)},
	}

	out := DailyCounts(jobs, today, 3)
	require.Len(t, out, 3)
	assert.Equal(t, "2024-05-01", out[0].Day.String())
	assert.Equal(t, 1, out[0].Count)
	assert.Equal(t, 0, out[1].Count)
	assert.Equal(t, 2, out[2].Count)

	assert.Empty(t, DailyCounts(jobs, today, 0))
}
