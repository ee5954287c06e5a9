package dashboard

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/stationhistory/internal/climate"
	"github.com/lox/stationhistory/internal/ingest"
	"github.com/lox/stationhistory/internal/models"
	"github.com/lox/stationhistory/internal/source"
)

const header = "datum_waarneming_UTC;tijd_waarneming_UTC;battery;dauwpunt;luchtvocht;druk;zoninstraling;temp;natbol\n"

type fakeBenchmark struct {
	out   climate.BenchmarkOutcome
	calls int
}

func (f *fakeBenchmark) Get(ctx context.Context) climate.BenchmarkOutcome {
	f.calls++
	return f.out
}

func val(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

func newTestService(t *testing.T, bench *fakeBenchmark) *Service {
	t.Helper()
	root := t.TempDir()
	write := func(station string, year int, body string) {
		require.NoError(t, os.MkdirAll(filepath.Join(root, station), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(source.Path(station, year))), []byte(header+body), 0o644))
	}
	write("2308LH047", 2025, "15.02.2025;10:00:00;;;;101200;;-3;\n15.02.2025;14:00:00;;;;101400;;1;\n")
	write("2308LH047", 2026, "01.01.2026;10:00:00;;;;;;-8;\n")
	write("2102LH011", 2026, "01.01.2026;10:00:00;;;;;;-6;\n")

	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	src := source.NewDir(root)

	return NewService(
		DefaultStations,
		ingest.NewDiscoverer(src, nil, clock, 2025, time.Hour),
		ingest.NewLoader(src, nil, loc),
		bench,
		loc,
		clock,
	)
}

func TestParseStations(t *testing.T) {
	stations, err := ParseStations("2308LH047=Malmån hus, 2102LH011=Malmån sjön")
	require.NoError(t, err)
	assert.Equal(t, DefaultStations, stations)

	for _, bad := range []string{"", "2308LH047", "=Name", "A=x,A=y"} {
		_, err := ParseStations(bad)
		assert.Error(t, err, bad)
	}
}

func TestService_Years(t *testing.T) {
	svc := newTestService(t, &fakeBenchmark{})

	years, err := svc.Years(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2026}, years["2308LH047"])
	assert.Equal(t, []int{2026}, years["2102LH011"])

	_, err = svc.Years(context.Background(), []string{"nope"})
	assert.Error(t, err)
}

func TestService_Load(t *testing.T) {
	svc := newTestService(t, &fakeBenchmark{})

	ds, err := svc.Load(context.Background(), []string{"2308LH047", "2308LH047"})
	require.NoError(t, err)
	require.Len(t, ds.Stations, 1)
	assert.Len(t, ds.Records, 3)
	require.Len(t, ds.Daily, 2)
	assert.Equal(t, "Malmån hus", ds.Daily[0].StationName)
	assert.InDelta(t, -1.0, ds.Daily[0].TempAvg, 1e-9)
	assert.InDelta(t, 1013.0, ds.Daily[0].PressureAvg.Float64, 1e-9)
	assert.Empty(t, ds.Advisories)

	all, err := svc.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, all.Daily, 3)
	assert.Equal(t, []string{"Malmån hus", "Malmån sjön"}, stationNames(all.Daily))
}

func TestService_LoadNoData(t *testing.T) {
	svc := NewService(
		[]models.Station{{StationID: "EMPTY", Name: "Empty"}},
		ingest.NewDiscoverer(source.NewDir(t.TempDir()), nil, clockwork.NewFakeClock(), 2025, time.Hour),
		ingest.NewLoader(source.NewDir(t.TempDir()), nil, time.UTC),
		&fakeBenchmark{},
		time.UTC,
		nil,
	)

	ds, err := svc.Load(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ds.Records)
	assert.Empty(t, ds.Daily)
	require.Len(t, ds.Advisories, 1)
	assert.Contains(t, ds.Advisories[0].Message, "no yearly files")
}

func TestService_Benchmark(t *testing.T) {
	bench := &fakeBenchmark{out: climate.BenchmarkOutcome{
		Outcome: models.OK(),
		Series: climate.Series{
			{Date: time.Date(2000, 2, 15, 0, 0, 0, 0, time.UTC), TempHigh: val(5), TempLow: val(-1), TempAvg: val(2)},
			{Date: time.Date(2001, 2, 15, 0, 0, 0, 0, time.UTC), TempHigh: val(7), TempLow: val(1), TempAvg: val(4)},
			{Date: time.Date(1970, 2, 15, 0, 0, 0, 0, time.UTC), TempHigh: val(40), TempLow: val(40), TempAvg: val(40)},
		},
	}}
	svc := newTestService(t, bench)

	ds, err := svc.Load(context.Background(), []string{"2308LH047"})
	require.NoError(t, err)

	res, err := svc.Benchmark(context.Background(), ds.Daily, "1995-2024")
	require.NoError(t, err)
	require.True(t, res.Outcome.IsOK())
	assert.InDelta(t, 3.0, res.Days[0].BenchmarkAvg.Float64, 1e-9, "1970 is outside the period")
	assert.False(t, res.Days[1].BenchmarkAvg.Valid)
	assert.False(t, ds.Daily[0].BenchmarkAvg.Valid, "dataset is not mutated")

	_, err = svc.Benchmark(context.Background(), ds.Daily, "1900-1929")
	assert.Error(t, err)
}

func TestService_BenchmarkUnavailable(t *testing.T) {
	bench := &fakeBenchmark{out: climate.BenchmarkOutcome{
		Outcome:    models.Unavailable("status 503"),
		Advisories: []models.Advisory{{Level: "warning", Message: "climate benchmark unavailable: status 503"}},
	}}
	svc := newTestService(t, bench)

	ds, err := svc.Load(context.Background(), nil)
	require.NoError(t, err)

	res, err := svc.Benchmark(context.Background(), ds.Daily, "")
	require.NoError(t, err)
	assert.False(t, res.Outcome.IsOK())
	assert.Len(t, res.Days, len(ds.Daily))
	assert.Len(t, res.Advisories, 1)
	for _, d := range res.Days {
		assert.False(t, d.BenchmarkAvg.Valid)
	}

	normals := svc.Normals(context.Background())
	assert.False(t, normals.Outcome.IsOK())
	assert.Empty(t, normals.Periods)
}

func TestService_NormalsUseOneFetch(t *testing.T) {
	bench := &fakeBenchmark{out: climate.BenchmarkOutcome{
		Outcome: models.OK(),
		Series:  climate.Series{{Date: time.Date(1999, 7, 1, 0, 0, 0, 0, time.UTC), TempAvg: val(17)}},
	}}
	svc := newTestService(t, bench)

	res := svc.Normals(context.Background())
	require.Len(t, res.Periods, len(climate.NormalPeriods))
	assert.Equal(t, 1, bench.calls)
	for _, p := range res.Periods {
		switch p.Label {
		case "1961-1990":
			assert.False(t, p.TempAvg.Valid, p.Label)
		default:
			assert.InDelta(t, 17.0, p.TempAvg.Float64, 1e-9, p.Label)
		}
	}
}

func stationNames(days []models.DailySummary) []string {
	var out []string
	seen := map[string]bool{}
	for _, d := range days {
		if !seen[d.StationName] {
			seen[d.StationName] = true
			out = append(out, d.StationName)
		}
	}
	return out
}
