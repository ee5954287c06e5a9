// Package source fetches per-station yearly weather files from a base
// location. Files are addressed as {station_id}/weather_{year}.csv.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/lox/stationhistory/internal/metrics"
)

// ErrNotFound is returned when the file for a station and year does not exist.
var ErrNotFound = errors.New("source file not found")

type Source interface {
	Open(ctx context.Context, stationID string, year int) (io.ReadCloser, error)
	Scheme() string
}

// Path returns the file path of a station's yearly file relative to the base.
func Path(stationID string, year int) string {
	return fmt.Sprintf("%s/weather_%d.csv", stationID, year)
}

// New picks a transport for base: http(s) URLs, ftp URLs, or a local directory.
func New(base string, timeout time.Duration) (Source, error) {
	if base == "" {
		return nil, errors.New("source base location is required")
	}

	var src Source
	switch {
	case strings.HasPrefix(base, "http://"), strings.HasPrefix(base, "https://"):
		src = NewHTTP(base, timeout)
	case strings.HasPrefix(base, "ftp://"):
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parse ftp base: %w", err)
		}
		src = NewFTP(u, timeout)
	case strings.HasPrefix(base, "file://"):
		src = NewDir(strings.TrimPrefix(base, "file://"))
	default:
		src = NewDir(base)
	}
	return instrumented{inner: src}, nil
}

type instrumented struct {
	inner Source
}

func (i instrumented) Scheme() string { return i.inner.Scheme() }

func (i instrumented) Open(ctx context.Context, stationID string, year int) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := i.inner.Open(ctx, stationID, year)
	metrics.SourceFetchLatency.WithLabelValues(i.inner.Scheme()).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	metrics.SourceFetchesTotal.WithLabelValues(i.inner.Scheme(), status).Inc()
	return rc, err
}
