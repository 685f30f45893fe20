package models

import (
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDay_JSONRoundtrip(t *testing.T) {
	d := NewDay(2024, time.March, 9)
	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2024-03-09"`, string(data))

	var back Day
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, d.Equal(back))
}

func TestDay_UnmarshalEmptyAndNull(t *testing.T) {
	var d Day
	require.NoError(t, json.Unmarshal([]byte(`""`), &d))
	assert.True(t, d.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	assert.True(t, d.IsZero())
}

func TestParseDay_LegacyTimestamp(t *testing.T) {
	d, err := ParseDay("2024-03-09T22:15:00.000Z")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09", d.String())

	_, err = ParseDay("yesterday")
	assert.Error(t, err)
}

func TestDayOf_UsesLocation(t *testing.T) {
	instant := time.Date(2024, time.March, 9, 23, 30, 0, 0, time.UTC)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-09", DayOf(instant, nil).String())
	assert.Equal(t, "2024-03-10", DayOf(instant, tokyo).String())
}

func TestDaysBetween(t *testing.T) {
	d1 := NewDay(2024, time.February, 28)
	assert.Equal(t, 0, DaysBetween(d1, d1))
	assert.Equal(t, 1, DaysBetween(d1, d1.AddDays(1)))
	assert.Equal(t, 2, DaysBetween(d1, NewDay(2024, time.March, 1)))
	assert.Equal(t, 2, DaysBetween(NewDay(2024, time.March, 1), d1))
}

func TestDay_Ordering(t *testing.T) {
	a := NewDay(2024, time.January, 1)
	b := a.AddDays(1)
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.False(t, a.Equal(b))
}
