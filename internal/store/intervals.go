package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Interval struct {
	ID          int
	EntryID     string
	ProjectID   string
	ProjectName string
	Description string
	StartTime   time.Time
	EndTime     time.Time
	Billable    bool
	CreatedAt   time.Time
}

func (iv *Interval) Minutes() int {
	return int(iv.EndTime.Sub(iv.StartTime).Minutes())
}

func (db *DB) InsertInterval(iv *Interval) (int64, error) {
	result, err := db.Exec(
		`INSERT INTO intervals (entry_id, project_id, project_name, description, start_time, end_time, billable)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		iv.EntryID, iv.ProjectID, iv.ProjectName, iv.Description,
		iv.StartTime.UTC().Format(time.RFC3339),
		iv.EndTime.UTC().Format(time.RFC3339),
		iv.Billable,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting interval: %w", err)
	}
	return result.LastInsertId()
}

func (db *DB) TodayIntervals() ([]Interval, error) {
	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	return db.queryIntervals(
		`SELECT id, entry_id, project_id, project_name, description, start_time, end_time, billable, created_at
		 FROM intervals
		 WHERE start_time >= ? AND start_time < ?
		 ORDER BY start_time ASC`,
		startOfDay.UTC().Format(time.RFC3339),
		endOfDay.UTC().Format(time.RFC3339),
	)
}

func (db *DB) queryIntervals(query string, args ...interface{}) ([]Interval, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying intervals: %w", err)
	}
	defer rows.Close()

	var intervals []Interval
	for rows.Next() {
		var iv Interval
		var projectID, projectName, description sql.NullString
		var startStr, endStr, createdStr string

		if err := rows.Scan(
			&iv.ID, &iv.EntryID, &projectID, &projectName, &description,
			&startStr, &endStr, &iv.Billable, &createdStr,
		); err != nil {
			return nil, fmt.Errorf("scanning interval: %w", err)
		}

		iv.ProjectID = projectID.String
		iv.ProjectName = projectName.String
		iv.Description = description.String

		if t, err := time.Parse(time.RFC3339, startStr); err == nil {
			iv.StartTime = t
		}
		if t, err := time.Parse(time.RFC3339, endStr); err == nil {
			iv.EndTime = t
		}
		if t, err := time.Parse(time.RFC3339, createdStr); err == nil {
			iv.CreatedAt = t
		}

		intervals = append(intervals, iv)
	}

	return intervals, rows.Err()
}
