package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"github.com/lox/stationhistory/internal/climate"
	"github.com/lox/stationhistory/internal/dashboard"
	"github.com/lox/stationhistory/internal/httputil"
	"github.com/lox/stationhistory/internal/ingest"
	"github.com/lox/stationhistory/internal/source"
	"github.com/lox/stationhistory/internal/store"
)

type Globals struct {
	DB       string `default:"data/stationhistory.db" env:"STATIONHISTORY_DB" help:"Path to SQLite cache database."`
	BaseURL  string `default:"data/stations" env:"STATIONHISTORY_BASE_URL" help:"Station file base: http(s)://, ftp:// or a local directory."`
	Timezone string `default:"Europe/Stockholm" env:"STATIONHISTORY_TIMEZONE" help:"Local timezone for days and ranges."`
	Stations string `default:"2308LH047=Malmån hus,2102LH011=Malmån sjön" env:"STATIONHISTORY_STATIONS" help:"Configured stations as ID=Name pairs."`

	StartYear int `default:"2025" env:"STATIONHISTORY_START_YEAR" help:"First year probed for station files."`

	BenchmarkLat float64 `default:"59.3293" env:"STATIONHISTORY_BENCHMARK_LAT" help:"Latitude of the climate benchmark point."`
	BenchmarkLon float64 `default:"18.0686" env:"STATIONHISTORY_BENCHMARK_LON" help:"Longitude of the climate benchmark point."`
	ArchiveURL   string  `default:"${archive_url}" env:"STATIONHISTORY_ARCHIVE_URL" help:"Climate archive endpoint."`

	HTTPTimeout    time.Duration `default:"30s" env:"STATIONHISTORY_HTTP_TIMEOUT" help:"Timeout for outbound requests."`
	DiscoveryTTL   time.Duration `default:"1h" env:"STATIONHISTORY_DISCOVERY_TTL" help:"How long year probes are trusted."`
	BenchmarkTTL   time.Duration `default:"24h" env:"STATIONHISTORY_BENCHMARK_TTL" help:"How long the climate series is trusted."`
	CurrentYearTTL time.Duration `default:"10m" env:"STATIONHISTORY_CURRENT_YEAR_TTL" help:"How long the current year's file is cached."`
}

type CLI struct {
	Globals `embed:""`

	Serve    ServeCmd    `cmd:"" help:"Run the JSON API server."`
	Years    YearsCmd    `cmd:"" help:"List available years per station."`
	Daily    DailyCmd    `cmd:"" help:"Print daily summaries."`
	Periods  PeriodsCmd  `cmd:"" help:"Find consecutive days matching a condition."`
	Hellmann HellmannCmd `cmd:"" help:"Compute the Hellmann cold sum."`
	Extremes ExtremesCmd `cmd:"" help:"Rank the most extreme days."`
	Rollup   RollupCmd   `cmd:"" help:"Summarize a month or year."`
	Normals  NormalsCmd  `cmd:"" help:"Aggregate every climate normal period."`
	Export   ExportCmd   `cmd:"" help:"Write records, days or periods as CSV."`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: load .env: %v", err)
	}

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("stationhistory"),
		kong.Description("Historical analysis of private weather station files."),
		kong.UsageOnError(),
		kong.Vars{"archive_url": climate.DefaultArchiveURL},
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

// app holds everything a command needs for one run.
type app struct {
	db      *sql.DB
	store   *store.Store
	service *dashboard.Service
}

func (a *app) Close() error {
	return a.db.Close()
}

func (g *Globals) open() (*app, error) {
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", g.Timezone, err)
	}
	stations, err := dashboard.ParseStations(g.Stations)
	if err != nil {
		return nil, fmt.Errorf("parse stations: %w", err)
	}

	if dir := filepath.Dir(g.DB); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	st, db, err := store.Open(g.DB)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	src, err := source.New(g.BaseURL, g.HTTPTimeout)
	if err != nil {
		db.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()
	cached := source.NewCached(src, st, clock, g.CurrentYearTTL)
	archive := climate.NewArchiveClient(g.ArchiveURL, g.BenchmarkLat, g.BenchmarkLon, g.Timezone, httputil.NewClient(g.HTTPTimeout))

	svc := dashboard.NewService(
		stations,
		ingest.NewDiscoverer(cached, st, clock, g.StartYear, g.DiscoveryTTL),
		ingest.NewLoader(cached, st, loc),
		climate.NewWideCache(archive, st, clock, g.BenchmarkTTL, climate.NormalPeriods),
		loc,
		clock,
	)
	return &app{db: db, store: st, service: svc}, nil
}

// run opens the app, hands it to fn and closes it again.
func (g *Globals) run(fn func(ctx context.Context, a *app) error) error {
	a, err := g.open()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalContext()
	defer cancel()
	return fn(ctx, a)
}
