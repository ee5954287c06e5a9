package store

import (
	"database/sql"
	"fmt"
	"time"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens a SQLite database at path and applies pragmas used by every
// caller. The caller still needs to run Migrate.
func Open(path string) (*Store, *sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	return New(db), db, nil
}

// YearProbe is the cached result of checking whether a station published a
// file for a given year.
type YearProbe struct {
	StationID string
	Year      int
	Available bool
	CheckedAt time.Time
}

func (s *Store) UpsertYearProbe(p YearProbe) error {
	_, err := s.db.Exec(`
		INSERT INTO year_probes (station_id, year, available, checked_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(station_id, year) DO UPDATE SET
			available = excluded.available,
			checked_at = excluded.checked_at
	`, p.StationID, p.Year, p.Available, p.CheckedAt.UTC())
	return err
}

func (s *Store) GetYearProbes(stationID string) (map[int]YearProbe, error) {
	rows, err := s.db.Query(`
		SELECT station_id, year, available, checked_at
		FROM year_probes
		WHERE station_id = ?
		ORDER BY year ASC
	`, stationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	probes := make(map[int]YearProbe)
	for rows.Next() {
		var p YearProbe
		if err := rows.Scan(&p.StationID, &p.Year, &p.Available, &p.CheckedAt); err != nil {
			return nil, err
		}
		probes[p.Year] = p
	}
	return probes, rows.Err()
}

func (s *Store) ClearYearProbes() error {
	_, err := s.db.Exec(`DELETE FROM year_probes`)
	return err
}
