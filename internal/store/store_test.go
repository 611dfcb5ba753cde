package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndReadToday(t *testing.T) {
	db := openTestDB(t)

	now := time.Now()
	noon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())
	id, err := db.InsertInterval(&Interval{
		EntryID:     "e1",
		ProjectID:   "p1",
		ProjectName: "Alpha",
		Description: "Writing spec",
		StartTime:   noon,
		EndTime:     noon.Add(30 * time.Minute),
		Billable:    true,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	intervals, err := db.TodayIntervals()
	require.NoError(t, err)
	require.Len(t, intervals, 1)

	iv := intervals[0]
	assert.Equal(t, "e1", iv.EntryID)
	assert.Equal(t, "Alpha", iv.ProjectName)
	assert.Equal(t, "Writing spec", iv.Description)
	assert.True(t, iv.Billable)
	assert.Equal(t, 30, iv.Minutes())
}

func TestTodayExcludesOlderIntervals(t *testing.T) {
	db := openTestDB(t)

	yesterday := time.Now().Add(-26 * time.Hour)
	_, err := db.InsertInterval(&Interval{
		EntryID:   "e-old",
		StartTime: yesterday,
		EndTime:   yesterday.Add(time.Hour),
	})
	require.NoError(t, err)

	intervals, err := db.TodayIntervals()
	require.NoError(t, err)
	assert.Empty(t, intervals)
}

func TestTodayOrderedByStart(t *testing.T) {
	db := openTestDB(t)

	now := time.Now()
	noon := time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, now.Location())
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := db.InsertInterval(&Interval{
			EntryID:   "e",
			StartTime: noon.Add(offset),
			EndTime:   noon.Add(offset + 30*time.Minute),
		})
		require.NoError(t, err)
	}

	intervals, err := db.TodayIntervals()
	require.NoError(t, err)
	require.Len(t, intervals, 3)
	assert.True(t, intervals[0].StartTime.Before(intervals[1].StartTime))
	assert.True(t, intervals[1].StartTime.Before(intervals[2].StartTime))
}
