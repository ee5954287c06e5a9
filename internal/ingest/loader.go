package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lox/stationhistory/internal/metrics"
	"github.com/lox/stationhistory/internal/models"
	"github.com/lox/stationhistory/internal/source"
	"github.com/lox/stationhistory/internal/store"
)

// YearOutcome reports how loading one yearly file went.
type YearOutcome struct {
	Year         int
	Outcome      models.Outcome
	Records      int
	RowsDropped  int
	LinesSkipped int
	Flags        map[string]int
}

type LoadResult struct {
	Station models.Station
	Records []models.Record
	Years   []YearOutcome
}

// Advisories lists one warning per year that could not be loaded.
func (r LoadResult) Advisories() []models.Advisory {
	var out []models.Advisory
	for _, y := range r.Years {
		if y.Outcome.IsOK() {
			continue
		}
		out = append(out, models.Advisory{
			Level:   "warning",
			Message: fmt.Sprintf("%s: data for %d unavailable: %s", r.Station.Name, y.Year, y.Outcome.Reason),
		})
	}
	return out
}

type Loader struct {
	source source.Source
	store  *store.Store
	loc    *time.Location
}

// NewLoader creates a Loader. st may be nil to skip fetch-run auditing.
func NewLoader(src source.Source, st *store.Store, loc *time.Location) *Loader {
	return &Loader{source: src, store: st, loc: loc}
}

// LoadStation loads every requested year for a station. Years that fail are
// reported in the result and skipped. Records are sorted by local timestamp.
func (l *Loader) LoadStation(ctx context.Context, station models.Station, years []int) LoadResult {
	result := LoadResult{Station: station}

	for _, year := range years {
		parsed, err := l.loadYear(ctx, station, year)
		outcome := YearOutcome{
			Year:         year,
			Outcome:      models.OK(),
			Records:      len(parsed.Records),
			RowsDropped:  parsed.RowsDropped,
			LinesSkipped: parsed.LinesSkipped,
		}
		if err != nil {
			log.Printf("ingest: skipped year %d for %s: %v", year, station.StationID, err)
			outcome.Outcome = models.Unavailable(err.Error())
			outcome.Records = 0
			result.Years = append(result.Years, outcome)
			continue
		}

		outcome.Flags = FlagCounts(parsed.Records)
		for _, f := range SortedFlags(outcome.Flags) {
			log.Printf("ingest: %s %d: %d records flagged %s", station.StationID, year, outcome.Flags[f], f)
		}

		metrics.RecordsIngested.WithLabelValues(station.StationID).Add(float64(len(parsed.Records)))
		if parsed.RowsDropped > 0 {
			metrics.RowsDropped.WithLabelValues(station.StationID, "bad_timestamp").Add(float64(parsed.RowsDropped))
		}
		if parsed.LinesSkipped > 0 {
			metrics.RowsDropped.WithLabelValues(station.StationID, "malformed_line").Add(float64(parsed.LinesSkipped))
		}

		result.Records = append(result.Records, parsed.Records...)
		result.Years = append(result.Years, outcome)
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].TimeLocal.Before(result.Records[j].TimeLocal)
	})
	return result
}

func (l *Loader) loadYear(ctx context.Context, station models.Station, year int) (parsed ParseResult, err error) {
	run := l.startRun(station.StationID, year)
	defer func() {
		l.completeRun(run, parsed, err)
	}()

	rc, err := l.source.Open(ctx, station.StationID, year)
	if err != nil {
		if errors.Is(err, source.ErrNotFound) {
			return parsed, fmt.Errorf("not published: %w", err)
		}
		return parsed, err
	}
	defer rc.Close()

	parsed, err = Parse(rc, station, l.loc)
	if err != nil {
		return ParseResult{}, fmt.Errorf("parse %s: %w", source.Path(station.StationID, year), err)
	}
	return parsed, nil
}

func (l *Loader) startRun(stationID string, year int) *store.FetchRun {
	if l.store == nil {
		return nil
	}
	run, err := l.store.StartFetchRun(l.source.Scheme(), source.Path(stationID, year), &stationID, &year)
	if err != nil {
		log.Printf("ingest: start fetch run: %v", err)
		return nil
	}
	return run
}

func (l *Loader) completeRun(run *store.FetchRun, parsed ParseResult, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	run.RecordsParsed = sql.NullInt64{Int64: int64(len(parsed.Records)), Valid: true}
	run.RowsDropped = sql.NullInt64{Int64: int64(parsed.RowsDropped + parsed.LinesSkipped), Valid: true}
	if err != nil {
		run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
	}
	if err := l.store.CompleteFetchRun(run); err != nil {
		log.Printf("ingest: complete fetch run: %v", err)
	}
}
