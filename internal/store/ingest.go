package store

import (
	"database/sql"
	"time"
)

// FetchRun records a single source-file or archive fetch for auditing.
type FetchRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	Source        string // "http", "ftp", "dir", "archive"
	Target        string // file path or archive window
	StationID     sql.NullString
	Year          sql.NullInt64
	RecordsParsed sql.NullInt64
	RowsDropped   sql.NullInt64
	Success       bool
	ErrorMessage  sql.NullString
}

// StartFetchRun creates a new fetch run record and returns it.
func (s *Store) StartFetchRun(source, target string, stationID *string, year *int) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		Source:    source,
		Target:    target,
	}
	if stationID != nil {
		run.StationID = sql.NullString{String: *stationID, Valid: true}
	}
	if year != nil {
		run.Year = sql.NullInt64{Int64: int64(*year), Valid: true}
	}

	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, source, target, station_id, year, success)
		VALUES (?, ?, ?, ?, ?, FALSE)
	`, run.StartedAt, run.Source, run.Target, run.StationID, run.Year)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteFetchRun updates the fetch run with results.
func (s *Store) CompleteFetchRun(run *FetchRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			records_parsed = ?,
			rows_dropped = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.RecordsParsed, run.RowsDropped, run.Success, run.ErrorMessage, run.ID)
	return err
}

// FetchHealthSummary represents a daily fetch health summary.
type FetchHealthSummary struct {
	Date         string
	Source       string
	TotalRuns    int
	SuccessRuns  int
	FailedRuns   int
	TotalRecords int64
	TotalDropped int64
}

// GetFetchHealth returns fetch health summaries for the last N days.
func (s *Store) GetFetchHealth(days int) ([]FetchHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			source,
			COUNT(*) as total_runs,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as success_runs,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed_runs,
			COALESCE(SUM(records_parsed), 0) as total_records,
			COALESCE(SUM(rows_dropped), 0) as total_dropped
		FROM fetch_runs
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date, source
		ORDER BY date DESC, source
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchHealthSummary
	for rows.Next() {
		var h FetchHealthSummary
		if err := rows.Scan(&h.Date, &h.Source, &h.TotalRuns,
			&h.SuccessRuns, &h.FailedRuns, &h.TotalRecords, &h.TotalDropped); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}

// GetRecentFetchErrors returns recent failed fetch runs.
func (s *Store) GetRecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, source, target, station_id, year,
			   records_parsed, rows_dropped, success, error_message
		FROM fetch_runs
		WHERE success = FALSE
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.Target,
			&r.StationID, &r.Year, &r.RecordsParsed, &r.RowsDropped, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
