package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

const dateLayout = "2006-01-02"

// BenchmarkFetch describes the cached wide climate series for one location.
type BenchmarkFetch struct {
	SeriesKey string
	Start     time.Time
	End       time.Time
	FetchedAt time.Time
}

// ReplaceBenchmarkSeries swaps the cached series for key in one transaction.
func (s *Store) ReplaceBenchmarkSeries(fetch BenchmarkFetch, days []models.BenchmarkDay) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM benchmark_days WHERE series_key = ?`, fetch.SeriesKey); err != nil {
		return fmt.Errorf("clear benchmark days: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO benchmark_days (series_key, date, temp_high, temp_low, temp_avg)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(series_key, date) DO UPDATE SET
			temp_high = excluded.temp_high,
			temp_low = excluded.temp_low,
			temp_avg = excluded.temp_avg
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range days {
		if _, err := stmt.Exec(fetch.SeriesKey, d.Date.Format(dateLayout), d.TempHigh, d.TempLow, d.TempAvg); err != nil {
			return fmt.Errorf("insert benchmark day %s: %w", d.Date.Format(dateLayout), err)
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO benchmark_fetches (series_key, start_date, end_date, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(series_key) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			fetched_at = excluded.fetched_at
	`, fetch.SeriesKey, fetch.Start.Format(dateLayout), fetch.End.Format(dateLayout), fetch.FetchedAt.UTC()); err != nil {
		return fmt.Errorf("record benchmark fetch: %w", err)
	}

	return tx.Commit()
}

// GetBenchmarkSeries returns the cached fetch metadata and its days ordered by
// date. A nil fetch means nothing is cached for key.
func (s *Store) GetBenchmarkSeries(key string) (*BenchmarkFetch, []models.BenchmarkDay, error) {
	fetch := BenchmarkFetch{SeriesKey: key}
	var start, end string
	err := s.db.QueryRow(`
		SELECT start_date, end_date, fetched_at FROM benchmark_fetches WHERE series_key = ?
	`, key).Scan(&start, &end, &fetch.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if fetch.Start, err = time.Parse(dateLayout, start); err != nil {
		return nil, nil, fmt.Errorf("parse start date: %w", err)
	}
	if fetch.End, err = time.Parse(dateLayout, end); err != nil {
		return nil, nil, fmt.Errorf("parse end date: %w", err)
	}

	rows, err := s.db.Query(`
		SELECT date, temp_high, temp_low, temp_avg
		FROM benchmark_days
		WHERE series_key = ?
		ORDER BY date ASC
	`, key)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var days []models.BenchmarkDay
	for rows.Next() {
		var d models.BenchmarkDay
		var date string
		if err := rows.Scan(&date, &d.TempHigh, &d.TempLow, &d.TempAvg); err != nil {
			return nil, nil, err
		}
		if d.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, nil, fmt.Errorf("parse benchmark date: %w", err)
		}
		days = append(days, d)
	}
	return &fetch, days, rows.Err()
}
