// Package dashboard runs the pipeline for one request: discover years, load
// records, aggregate them into days and attach the climate benchmark.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/stationhistory/internal/analysis"
	"github.com/lox/stationhistory/internal/climate"
	"github.com/lox/stationhistory/internal/ingest"
	"github.com/lox/stationhistory/internal/models"
)

// DefaultStations is used when no station directory is configured.
var DefaultStations = []models.Station{
	{StationID: "2308LH047", Name: "Malmån hus"},
	{StationID: "2102LH011", Name: "Malmån sjön"},
}

// ParseStations parses "ID=Name,ID=Name".
func ParseStations(s string) ([]models.Station, error) {
	var out []models.Station
	seen := make(map[string]bool)
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, ok := strings.Cut(part, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid station %q, want ID=Name", part)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate station %q", id)
		}
		seen[id] = true
		out = append(out, models.Station{StationID: id, Name: name})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no stations configured")
	}
	return out, nil
}

type Discoverer interface {
	Discover(ctx context.Context, stationID string) []int
}

type Loader interface {
	LoadStation(ctx context.Context, station models.Station, years []int) ingest.LoadResult
}

type Benchmark interface {
	Get(ctx context.Context) climate.BenchmarkOutcome
}

type Service struct {
	stations   []models.Station
	discoverer Discoverer
	loader     Loader
	benchmark  Benchmark
	loc        *time.Location
	clock      clockwork.Clock
}

func NewService(stations []models.Station, d Discoverer, l Loader, b Benchmark, loc *time.Location, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		stations:   stations,
		discoverer: d,
		loader:     l,
		benchmark:  b,
		loc:        loc,
		clock:      clock,
	}
}

func (s *Service) Stations() []models.Station { return s.stations }

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) Clock() clockwork.Clock { return s.clock }

// Resolve maps station IDs to configured stations. No IDs selects all.
func (s *Service) Resolve(ids []string) ([]models.Station, error) {
	if len(ids) == 0 {
		return s.stations, nil
	}
	byID := make(map[string]models.Station, len(s.stations))
	for _, st := range s.stations {
		byID[st.StationID] = st
	}
	var out []models.Station
	seen := make(map[string]bool)
	for _, id := range ids {
		st, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("unknown station %q", id)
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, st)
		}
	}
	return out, nil
}

// Years returns the available years per station ID.
func (s *Service) Years(ctx context.Context, ids []string) (map[string][]int, error) {
	stations, err := s.Resolve(ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]int, len(stations))
	for _, st := range stations {
		years := s.discoverer.Discover(ctx, st.StationID)
		if years == nil {
			years = []int{}
		}
		out[st.StationID] = years
	}
	return out, nil
}

// Dataset is the loaded state for one selection of stations.
type Dataset struct {
	Stations   []models.Station
	Records    []models.Record
	Daily      []models.DailySummary
	Years      map[string][]ingest.YearOutcome
	Advisories []models.Advisory
}

// Load discovers and loads every selected station and aggregates the result.
// Stations without data are reported as advisories, not errors.
func (s *Service) Load(ctx context.Context, ids []string) (*Dataset, error) {
	stations, err := s.Resolve(ids)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{
		Stations: stations,
		Records:  make([]models.Record, 0),
		Years:    make(map[string][]ingest.YearOutcome, len(stations)),
	}
	for _, st := range stations {
		years := s.discoverer.Discover(ctx, st.StationID)
		if len(years) == 0 {
			ds.Advisories = append(ds.Advisories, models.Advisory{
				Level:   "warning",
				Message: fmt.Sprintf("%s: no yearly files found", st.Name),
			})
			ds.Years[st.StationID] = []ingest.YearOutcome{}
			continue
		}

		res := s.loader.LoadStation(ctx, st, years)
		ds.Records = append(ds.Records, res.Records...)
		ds.Years[st.StationID] = res.Years
		ds.Advisories = append(ds.Advisories, res.Advisories()...)
		if len(res.Records) == 0 {
			ds.Advisories = append(ds.Advisories, models.Advisory{
				Level:   "warning",
				Message: fmt.Sprintf("%s: no records loaded", st.Name),
			})
		}
	}

	ds.Daily = analysis.Aggregate(ds.Records)
	log.Printf("dashboard: loaded %d records into %d days for %d stations",
		len(ds.Records), len(ds.Daily), len(stations))
	return ds, nil
}

type BenchmarkResult struct {
	Period     climate.NormalPeriod
	Days       []models.DailySummary
	Outcome    models.Outcome
	Advisories []models.Advisory
}

// Benchmark joins the month-day climatology of one normal period onto days.
// When the archive is unavailable the days come back without benchmark
// columns.
func (s *Service) Benchmark(ctx context.Context, days []models.DailySummary, periodLabel string) (BenchmarkResult, error) {
	period, err := climate.PeriodByLabel(periodLabel)
	if err != nil {
		return BenchmarkResult{}, err
	}

	wide := s.benchmark.Get(ctx)
	res := BenchmarkResult{Period: period, Outcome: wide.Outcome, Advisories: wide.Advisories}
	if !wide.Outcome.IsOK() {
		res.Days = climate.Merge(days, nil)
		return res, nil
	}

	clim := climate.BuildClimatology(period.Slice(wide.Series))
	res.Days = climate.Merge(days, clim)
	return res, nil
}

type NormalsResult struct {
	Periods    []climate.PeriodAggregate
	Outcome    models.Outcome
	Advisories []models.Advisory
}

// Normals aggregates every normal period from the one wide series.
func (s *Service) Normals(ctx context.Context) NormalsResult {
	wide := s.benchmark.Get(ctx)
	res := NormalsResult{Periods: []climate.PeriodAggregate{}, Outcome: wide.Outcome, Advisories: wide.Advisories}
	if wide.Outcome.IsOK() {
		res.Periods = climate.PeriodAggregates(wide.Series, climate.NormalPeriods)
	}
	return res
}
