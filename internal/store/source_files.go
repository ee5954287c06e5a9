package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// SourceFile is a cached copy of one station's yearly source file.
type SourceFile struct {
	StationID   string
	Year        int
	FetchedAt   time.Time
	Payload     []byte
	PayloadHash string
}

// PutSourceFile stores a compressed copy of a source file, replacing any
// previous copy for the same station and year.
func (s *Store) PutSourceFile(stationID string, year int, payload []byte, fetchedAt time.Time) error {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip: %w", err)
	}

	hash := sha256.Sum256(payload)

	_, err := s.db.Exec(`
		INSERT INTO source_files (station_id, year, fetched_at, payload_compressed, payload_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id, year) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			payload_compressed = excluded.payload_compressed,
			payload_hash = excluded.payload_hash,
			size_bytes = excluded.size_bytes
	`, stationID, year, fetchedAt.UTC(), buf.Bytes(), hex.EncodeToString(hash[:]), len(payload))
	if err != nil {
		return fmt.Errorf("insert source file: %w", err)
	}
	return nil
}

// GetSourceFile returns the cached file for a station and year, or nil if
// nothing is cached.
func (s *Store) GetSourceFile(stationID string, year int) (*SourceFile, error) {
	f := SourceFile{StationID: stationID, Year: year}
	var compressed []byte
	err := s.db.QueryRow(`
		SELECT fetched_at, payload_compressed, payload_hash
		FROM source_files WHERE station_id = ? AND year = ?
	`, stationID, year).Scan(&f.FetchedAt, &compressed, &f.PayloadHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	f.Payload, err = io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress source file: %w", err)
	}
	return &f, nil
}

// SourceFileStats contains storage statistics for cached source files.
type SourceFileStats struct {
	TotalCount      int
	CompressedBytes int64
	RawBytes        int64
	OldestFetchedAt time.Time
	NewestFetchedAt time.Time
	CountByStation  map[string]int
}

func (s *Store) GetSourceFileStats() (*SourceFileStats, error) {
	stats := &SourceFileStats{
		CountByStation: make(map[string]int),
	}

	row := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(LENGTH(payload_compressed)), 0), COALESCE(SUM(size_bytes), 0),
		       MIN(fetched_at), MAX(fetched_at)
		FROM source_files
	`)
	var oldest, newest sql.NullString
	if err := row.Scan(&stats.TotalCount, &stats.CompressedBytes, &stats.RawBytes, &oldest, &newest); err != nil {
		return nil, err
	}
	stats.OldestFetchedAt = parseSQLiteTime(oldest)
	stats.NewestFetchedAt = parseSQLiteTime(newest)

	rows, err := s.db.Query(`SELECT station_id, COUNT(*) FROM source_files GROUP BY station_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var station string
		var count int
		if err := rows.Scan(&station, &count); err != nil {
			return nil, err
		}
		stats.CountByStation[station] = count
	}
	return stats, rows.Err()
}

func (s *Store) ClearSourceFiles() error {
	_, err := s.db.Exec(`DELETE FROM source_files`)
	return err
}

// MIN/MAX over a DATETIME column come back as plain text.
func parseSQLiteTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999-07:00", time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t
		}
	}
	return time.Time{}
}
