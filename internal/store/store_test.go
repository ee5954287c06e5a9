package store

import (
	"bytes"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/stationhistory/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestYearProbes_UpsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	checked := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, p := range []YearProbe{
		{StationID: "2308LH047", Year: 2025, Available: true, CheckedAt: checked},
		{StationID: "2308LH047", Year: 2026, Available: false, CheckedAt: checked},
		{StationID: "2102LH011", Year: 2025, Available: true, CheckedAt: checked},
	} {
		if err := store.UpsertYearProbe(p); err != nil {
			t.Fatalf("UpsertYearProbe: %v", err)
		}
	}

	probes, err := store.GetYearProbes("2308LH047")
	if err != nil {
		t.Fatalf("GetYearProbes: %v", err)
	}
	if len(probes) != 2 {
		t.Fatalf("len(probes) = %d, want 2", len(probes))
	}
	if !probes[2025].Available {
		t.Error("2025 should be available")
	}
	if probes[2026].Available {
		t.Error("2026 should not be available")
	}
	if !probes[2025].CheckedAt.Equal(checked) {
		t.Errorf("CheckedAt = %v, want %v", probes[2025].CheckedAt, checked)
	}
}

func TestYearProbes_UpsertUpdates(t *testing.T) {
	store := setupTestStore(t)
	first := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := store.UpsertYearProbe(YearProbe{StationID: "S1", Year: 2026, Available: false, CheckedAt: first}); err != nil {
		t.Fatal(err)
	}
	if err := store.UpsertYearProbe(YearProbe{StationID: "S1", Year: 2026, Available: true, CheckedAt: first.Add(time.Hour)}); err != nil {
		t.Fatal(err)
	}

	probes, err := store.GetYearProbes("S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(probes) != 1 {
		t.Fatalf("len(probes) = %d, want 1", len(probes))
	}
	if !probes[2026].Available {
		t.Error("probe should have been updated to available")
	}

	if err := store.ClearYearProbes(); err != nil {
		t.Fatalf("ClearYearProbes: %v", err)
	}
	probes, err = store.GetYearProbes("S1")
	if err != nil {
		t.Fatal(err)
	}
	if len(probes) != 0 {
		t.Errorf("len(probes) = %d after clear, want 0", len(probes))
	}
}

func TestSourceFile_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	payload := []byte("datum_waarneming_UTC;tijd_waarneming_UTC;temp\n01.01.2025;00:00:00;-1.5\n")
	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := store.PutSourceFile("S1", 2025, payload, fetched); err != nil {
		t.Fatalf("PutSourceFile: %v", err)
	}

	f, err := store.GetSourceFile("S1", 2025)
	if err != nil {
		t.Fatalf("GetSourceFile: %v", err)
	}
	if f == nil {
		t.Fatal("GetSourceFile returned nil")
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload = %q, want %q", f.Payload, payload)
	}
	if !f.FetchedAt.Equal(fetched) {
		t.Errorf("FetchedAt = %v, want %v", f.FetchedAt, fetched)
	}
	if f.PayloadHash == "" {
		t.Error("PayloadHash should be set")
	}
}

func TestSourceFile_Missing(t *testing.T) {
	store := setupTestStore(t)

	f, err := store.GetSourceFile("S1", 2025)
	if err != nil {
		t.Fatalf("GetSourceFile: %v", err)
	}
	if f != nil {
		t.Errorf("GetSourceFile = %+v, want nil", f)
	}
}

func TestSourceFile_ReplaceAndStats(t *testing.T) {
	store := setupTestStore(t)
	now := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	if err := store.PutSourceFile("S1", 2025, []byte("old"), now); err != nil {
		t.Fatal(err)
	}
	if err := store.PutSourceFile("S1", 2025, []byte("newer"), now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.PutSourceFile("S2", 2025, []byte("other"), now); err != nil {
		t.Fatal(err)
	}

	f, err := store.GetSourceFile("S1", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if string(f.Payload) != "newer" {
		t.Errorf("Payload = %q, want 'newer'", f.Payload)
	}

	stats, err := store.GetSourceFileStats()
	if err != nil {
		t.Fatalf("GetSourceFileStats: %v", err)
	}
	if stats.TotalCount != 2 {
		t.Errorf("TotalCount = %d, want 2", stats.TotalCount)
	}
	if stats.RawBytes != int64(len("newer")+len("other")) {
		t.Errorf("RawBytes = %d, want %d", stats.RawBytes, len("newer")+len("other"))
	}
	if stats.CountByStation["S1"] != 1 {
		t.Errorf("CountByStation[S1] = %d, want 1", stats.CountByStation["S1"])
	}

	if err := store.ClearSourceFiles(); err != nil {
		t.Fatalf("ClearSourceFiles: %v", err)
	}
	f, err = store.GetSourceFile("S1", 2025)
	if err != nil {
		t.Fatal(err)
	}
	if f != nil {
		t.Error("expected no cached file after clear")
	}
}

func TestFetchRun_StartAndComplete(t *testing.T) {
	store := setupTestStore(t)

	stationID := "2308LH047"
	year := 2025
	run, err := store.StartFetchRun("http", "2308LH047/weather_2025.csv", &stationID, &year)
	if err != nil {
		t.Fatalf("StartFetchRun: %v", err)
	}
	if run.ID == 0 {
		t.Error("run.ID should be set")
	}
	if run.Source != "http" {
		t.Errorf("run.Source = %q, want 'http'", run.Source)
	}

	run.RecordsParsed = sql.NullInt64{Int64: 100, Valid: true}
	run.RowsDropped = sql.NullInt64{Int64: 2, Valid: true}
	run.Success = true

	if err := store.CompleteFetchRun(run); err != nil {
		t.Fatalf("CompleteFetchRun: %v", err)
	}

	health, err := store.GetFetchHealth(1)
	if err != nil {
		t.Fatalf("GetFetchHealth: %v", err)
	}
	if len(health) != 1 {
		t.Fatalf("len(health) = %d, want 1", len(health))
	}
	h := health[0]
	if h.Source != "http" {
		t.Errorf("Source = %q, want 'http'", h.Source)
	}
	if h.SuccessRuns != 1 {
		t.Errorf("SuccessRuns = %d, want 1", h.SuccessRuns)
	}
	if h.TotalRecords != 100 {
		t.Errorf("TotalRecords = %d, want 100", h.TotalRecords)
	}
	if h.TotalDropped != 2 {
		t.Errorf("TotalDropped = %d, want 2", h.TotalDropped)
	}
}

func TestFetchRun_GetRecentErrors(t *testing.T) {
	store := setupTestStore(t)

	ok, err := store.StartFetchRun("archive", "1961-01-01..2024-12-31", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	ok.Success = true
	if err := store.CompleteFetchRun(ok); err != nil {
		t.Fatal(err)
	}

	failed, err := store.StartFetchRun("archive", "1961-01-01..2024-12-31", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	failed.ErrorMessage = sql.NullString{String: "status 503", Valid: true}
	if err := store.CompleteFetchRun(failed); err != nil {
		t.Fatal(err)
	}

	errors, err := store.GetRecentFetchErrors(10)
	if err != nil {
		t.Fatalf("GetRecentFetchErrors: %v", err)
	}
	if len(errors) != 1 {
		t.Fatalf("len(errors) = %d, want 1", len(errors))
	}
	if errors[0].ErrorMessage.String != "status 503" {
		t.Errorf("ErrorMessage = %q, want 'status 503'", errors[0].ErrorMessage.String)
	}
	if errors[0].StationID.Valid {
		t.Error("StationID should be NULL for archive runs")
	}
}

func TestCompleteFetchRun_Nil(t *testing.T) {
	store := setupTestStore(t)
	if err := store.CompleteFetchRun(nil); err != nil {
		t.Errorf("CompleteFetchRun(nil) = %v, want nil", err)
	}
}

func TestBenchmarkSeries_ReplaceAndGet(t *testing.T) {
	store := setupTestStore(t)

	fetch := BenchmarkFetch{
		SeriesKey: "59.3300,18.0700",
		Start:     time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		FetchedAt: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	days := []models.BenchmarkDay{
		{
			Date:     time.Date(1961, 1, 2, 0, 0, 0, 0, time.UTC),
			TempHigh: sql.NullFloat64{Float64: 1.5, Valid: true},
			TempLow:  sql.NullFloat64{Float64: -4, Valid: true},
			TempAvg:  sql.NullFloat64{Float64: -1, Valid: true},
		},
		{
			Date:     time.Date(1961, 1, 1, 0, 0, 0, 0, time.UTC),
			TempHigh: sql.NullFloat64{Float64: 0.5, Valid: true},
		},
	}

	if err := store.ReplaceBenchmarkSeries(fetch, days); err != nil {
		t.Fatalf("ReplaceBenchmarkSeries: %v", err)
	}

	got, gotDays, err := store.GetBenchmarkSeries(fetch.SeriesKey)
	if err != nil {
		t.Fatalf("GetBenchmarkSeries: %v", err)
	}
	if got == nil {
		t.Fatal("GetBenchmarkSeries returned nil fetch")
	}
	if !got.Start.Equal(fetch.Start) || !got.End.Equal(fetch.End) {
		t.Errorf("range = %v..%v, want %v..%v", got.Start, got.End, fetch.Start, fetch.End)
	}
	if !got.FetchedAt.Equal(fetch.FetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", got.FetchedAt, fetch.FetchedAt)
	}
	if len(gotDays) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(gotDays))
	}
	if !gotDays[0].Date.Equal(days[1].Date) {
		t.Errorf("days not ordered by date: first = %v", gotDays[0].Date)
	}
	if gotDays[0].TempLow.Valid {
		t.Error("missing TempLow should stay NULL")
	}
	if gotDays[1].TempAvg.Float64 != -1 {
		t.Errorf("TempAvg = %v, want -1", gotDays[1].TempAvg.Float64)
	}

	// A second replace drops days that are no longer present.
	if err := store.ReplaceBenchmarkSeries(fetch, days[:1]); err != nil {
		t.Fatal(err)
	}
	_, gotDays, err = store.GetBenchmarkSeries(fetch.SeriesKey)
	if err != nil {
		t.Fatal(err)
	}
	if len(gotDays) != 1 {
		t.Errorf("len(days) after replace = %d, want 1", len(gotDays))
	}
}

func TestBenchmarkSeries_Missing(t *testing.T) {
	store := setupTestStore(t)

	fetch, days, err := store.GetBenchmarkSeries("nowhere")
	if err != nil {
		t.Fatalf("GetBenchmarkSeries: %v", err)
	}
	if fetch != nil || days != nil {
		t.Errorf("got %v, %v; want nil, nil", fetch, days)
	}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", version, len(migrations))
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestStore(t)
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}
