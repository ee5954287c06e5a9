package ingest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/lox/stationhistory/internal/models"
	"github.com/lox/stationhistory/internal/source"
	"github.com/lox/stationhistory/internal/store"
)

const header = "datum_waarneming_UTC;tijd_waarneming_UTC;battery;dauwpunt;luchtvocht;druk;zoninstraling;temp;natbol\n"

var testStation = models.Station{StationID: "2308LH047", Name: "Malmån hus"}

func stockholm(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Stockholm")
	require.NoError(t, err)
	return loc
}

func TestParse_Basic(t *testing.T) {
	input := header +
		"01.01.2025;00:10:00;3.9;-4.2;88;101325;0;-2.5;-3.0\n" +
		"01.01.2025;00:20:00;3.9;-4.0;87;101300;0;-2.4;-2.9\n"

	res, err := Parse(strings.NewReader(input), testStation, stockholm(t))
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	rec := res.Records[0]
	assert.Equal(t, "2308LH047", rec.StationID)
	assert.Equal(t, "Malmån hus", rec.StationName)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 10, 0, 0, time.UTC), rec.TimeUTC)
	assert.Equal(t, 1, rec.TimeLocal.Hour(), "UTC+1 in winter")
	assert.InDelta(t, 1013.25, rec.Pressure.Float64, 1e-9)
	assert.InDelta(t, -2.5, rec.Temp.Float64, 1e-9)
	assert.InDelta(t, 88, rec.Humidity.Float64, 1e-9)
	assert.InDelta(t, -3.0, rec.WetBulb.Float64, 1e-9)
	assert.Zero(t, res.RowsDropped)
	assert.Zero(t, res.LinesSkipped)
}

func TestParse_BadTimestampDropsRow(t *testing.T) {
	input := header +
		"01.01.2025;00:10:00;;;;;;1.0;\n" +
		"32.01.2025;00:20:00;;;;;;2.0;\n" +
		"not a date;;;;;;;3.0;\n" +
		"01.01.2025;00:30:00;;;;;;4.0;\n"

	res, err := Parse(strings.NewReader(input), testStation, time.UTC)
	require.NoError(t, err)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, 2, res.RowsDropped)
}

func TestParse_NumericCoercion(t *testing.T) {
	input := header +
		"01.01.2025;00:10:00;n/a;;abc;NaN;-;1.5;x\n"

	res, err := Parse(strings.NewReader(input), testStation, time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.False(t, rec.Battery.Valid)
	assert.False(t, rec.DewPoint.Valid)
	assert.False(t, rec.Humidity.Valid)
	assert.False(t, rec.Pressure.Valid)
	assert.False(t, rec.Solar.Valid)
	assert.False(t, rec.WetBulb.Valid)
	assert.True(t, rec.Temp.Valid)
}

func TestParse_MalformedLinesSkipped(t *testing.T) {
	input := header +
		"01.01.2025;00:10:00;;;;;;1.0;;extra;fields\n" +
		"01.01.2025;00:20:00;;;;;;2.0\n"

	res, err := Parse(strings.NewReader(input), testStation, time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, 1, res.LinesSkipped)
	assert.False(t, res.Records[0].WetBulb.Valid, "short rows leave trailing columns missing")
}

func TestParse_MissingColumns(t *testing.T) {
	res, err := Parse(strings.NewReader("datum_waarneming_UTC;tijd_waarneming_UTC;temp\n01.01.2025;00:00:00;5\n"), testStation, time.UTC)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.False(t, res.Records[0].Pressure.Valid)

	_, err = Parse(strings.NewReader("temp;druk\n1;2\n"), testStation, time.UTC)
	assert.ErrorIs(t, err, ErrMissingTimestampColumns)

	_, err = Parse(strings.NewReader(""), testStation, time.UTC)
	assert.ErrorIs(t, err, ErrMissingTimestampColumns)
}

func TestParse_DSTTransition(t *testing.T) {
	loc := stockholm(t)
	// Clocks move from 02:00 CET to 03:00 CEST on 30 March 2025 (01:00 UTC).
	input := header +
		"30.03.2025;00:30:00;;;;;;1;\n" +
		"30.03.2025;01:30:00;;;;;;2;\n"

	res, err := Parse(strings.NewReader(input), testStation, loc)
	require.NoError(t, err)
	require.Len(t, res.Records, 2)

	for _, rec := range res.Records {
		assert.True(t, rec.TimeLocal.Equal(rec.TimeUTC))
	}
	assert.Equal(t, 1, res.Records[0].TimeLocal.Hour())
	assert.Equal(t, 3, res.Records[1].TimeLocal.Hour())
	_, off0 := res.Records[0].TimeLocal.Zone()
	_, off1 := res.Records[1].TimeLocal.Zone()
	assert.Equal(t, 3600, off0)
	assert.Equal(t, 7200, off1)
}

func TestHasTimestampHeader(t *testing.T) {
	assert.True(t, HasTimestampHeader(strings.NewReader(header)))
	assert.True(t, HasTimestampHeader(strings.NewReader("\ufeffdatum_waarneming_UTC;temp")))
	assert.False(t, HasTimestampHeader(strings.NewReader("<html>Not Found</html>\n")))
	assert.False(t, HasTimestampHeader(strings.NewReader("")))
}

func TestValidate(t *testing.T) {
	valid := func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

	tests := []struct {
		name      string
		rec       models.Record
		wantFlags []string
	}{
		{
			name: "valid record - no flags",
			rec: models.Record{
				Temp: valid(12), Humidity: valid(60), Pressure: valid(1013),
				Solar: valid(300), Battery: valid(3.9), DewPoint: valid(4),
			},
			wantFlags: nil,
		},
		{name: "temp too cold", rec: models.Record{Temp: valid(-55)}, wantFlags: []string{FlagTempOutOfRange}},
		{name: "humidity over 100", rec: models.Record{Humidity: valid(104)}, wantFlags: []string{FlagHumidityInvalid}},
		{name: "pressure not divided", rec: models.Record{Pressure: valid(101325)}, wantFlags: []string{FlagPressureOutOfRange}},
		{name: "negative solar", rec: models.Record{Solar: valid(-1)}, wantFlags: []string{FlagSolarNegative}},
		{name: "battery negative", rec: models.Record{Battery: valid(-0.1)}, wantFlags: []string{FlagBatteryInvalid}},
		{
			name:      "dew point above temp",
			rec:       models.Record{Temp: valid(5), DewPoint: valid(6)},
			wantFlags: []string{FlagDewPointAboveTemp},
		},
		{name: "missing values - no flags", rec: models.Record{}, wantFlags: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantFlags, Validate(tt.rec))
		})
	}
}

func writeFile(t *testing.T, root, stationID string, year int, body string) {
	t.Helper()
	dir := filepath.Join(root, stationID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, filepath.FromSlash(source.Path(stationID, year))), []byte(body), 0o644))
}

func setupStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	st := store.New(db)
	require.NoError(t, st.Migrate())
	return st
}

func TestDiscoverer_ProbesAscendingAndCaches(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "S1", 2025, header)
	writeFile(t, root, "S1", 2027, header)
	writeFile(t, root, "S1", 2026, "garbage\n")

	st := setupStore(t)
	clock := clockwork.NewFakeClockAt(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC))
	d := NewDiscoverer(source.NewDir(root), st, clock, 2025, time.Hour)

	assert.Equal(t, []int{2025, 2027}, d.Discover(context.Background(), "S1"))

	// A new file is not seen while the cached probes are fresh.
	writeFile(t, root, "S1", 2026, header)
	assert.Equal(t, []int{2025, 2027}, d.Discover(context.Background(), "S1"))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, []int{2025, 2026, 2027}, d.Discover(context.Background(), "S1"))
}

func TestDiscoverer_NothingAvailable(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	d := NewDiscoverer(source.NewDir(t.TempDir()), nil, clock, 2025, time.Hour)
	assert.Empty(t, d.Discover(context.Background(), "S1"))
}

func TestLoader_LoadStation(t *testing.T) {
	root := t.TempDir()
	// 2026 rows are written out of order within the file.
	writeFile(t, root, testStation.StationID, 2026, header+
		"02.01.2026;12:00:00;;;;;;4;\n"+
		"01.01.2026;12:00:00;;;;;;3;\n")
	writeFile(t, root, testStation.StationID, 2025, header+
		"31.12.2025;23:30:00;;;;;;2;\n"+
		"bad;bad;;;;;;0;\n"+
		"01.06.2025;12:00:00;;;;;;1;\n")

	st := setupStore(t)
	loader := NewLoader(source.NewDir(root), st, stockholm(t))

	res := loader.LoadStation(context.Background(), testStation, []int{2024, 2025, 2026})
	require.Len(t, res.Records, 4)
	for i := 1; i < len(res.Records); i++ {
		assert.False(t, res.Records[i].TimeLocal.Before(res.Records[i-1].TimeLocal), "records sorted by local time")
	}
	assert.InDelta(t, 1.0, res.Records[0].Temp.Float64, 1e-9)
	assert.InDelta(t, 4.0, res.Records[3].Temp.Float64, 1e-9)

	require.Len(t, res.Years, 3)
	assert.False(t, res.Years[0].Outcome.IsOK())
	assert.True(t, res.Years[1].Outcome.IsOK())
	assert.Equal(t, 1, res.Years[1].RowsDropped)
	assert.Len(t, res.Advisories(), 1)
	assert.Contains(t, res.Advisories()[0].Message, "2024")

	errs, err := st.GetRecentFetchErrors(10)
	require.NoError(t, err)
	require.Len(t, errs, 1)
	assert.Equal(t, int64(2024), errs[0].Year.Int64)
}

func TestLoader_NoYears(t *testing.T) {
	loader := NewLoader(source.NewDir(t.TempDir()), nil, time.UTC)
	res := loader.LoadStation(context.Background(), testStation, nil)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Years)
	assert.Empty(t, res.Advisories())
}
