package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lox/stationhistory/internal/analysis"
	"github.com/lox/stationhistory/internal/api"
	"github.com/lox/stationhistory/internal/dashboard"
	"github.com/lox/stationhistory/internal/export"
	"github.com/lox/stationhistory/internal/models"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func printJSON(data any, advisories []models.Advisory) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.Response{Data: data, Advisories: api.AdvisoryViews(advisories)})
}

// Selection picks stations and a search window.
type Selection struct {
	Station []string `short:"s" help:"Station IDs to include (default all)."`
	Window  string   `default:"all" enum:"all,year,month,range" help:"Search window kind."`
	Value   string   `help:"Window value: 2025, 2025-02 or 2025-01-01..2025-01-31."`
}

func (s Selection) load(ctx context.Context, a *app) (*dashboard.Dataset, analysis.Window, []models.DailySummary, error) {
	window, err := analysis.ParseWindow(s.Window, s.Value)
	if err != nil {
		return nil, window, nil, err
	}
	ds, err := a.service.Load(ctx, s.Station)
	if err != nil {
		return nil, window, nil, err
	}
	return ds, window, analysis.SelectWindow(ds.Daily, window), nil
}

type ConditionFlags struct {
	Column    string  `default:"temp_avg" enum:"temp_high,temp_low,temp_avg" help:"Daily column to test."`
	Cmp       string  `default:">=" enum:">=,<=" help:"Comparison."`
	Threshold float64 `default:"15" help:"Threshold in °C."`
	MinDays   int     `default:"3" help:"Minimum run length in days."`
}

func (c ConditionFlags) condition() (analysis.Condition, error) {
	col, err := analysis.ParseColumn(c.Column)
	if err != nil {
		return analysis.Condition{}, err
	}
	cmp, err := analysis.ParseComparison(c.Cmp)
	if err != nil {
		return analysis.Condition{}, err
	}
	if c.MinDays < 1 {
		return analysis.Condition{}, fmt.Errorf("min-days must be at least 1")
	}
	return analysis.Condition{Column: col, Comparison: cmp, Threshold: c.Threshold}, nil
}

func (c ConditionFlags) periods(days []models.DailySummary) ([]models.ConsecutivePeriod, error) {
	cond, err := c.condition()
	if err != nil {
		return nil, err
	}
	return analysis.ConsecutivePeriods(analysis.Filter(days, cond), c.MinDays, cond.Column), nil
}

type ServeCmd struct {
	Addr string `default:":8080" env:"STATIONHISTORY_ADDR" help:"Listen address."`
}

func (c *ServeCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		return api.NewServer(a.service, a.store, c.Addr).Run(ctx)
	})
}

type YearsCmd struct {
	Station []string `short:"s" help:"Station IDs to include (default all)."`
}

func (c *YearsCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		years, err := a.service.Years(ctx, c.Station)
		if err != nil {
			return err
		}
		return printJSON(years, nil)
	})
}

type DailyCmd struct {
	Selection `embed:""`
	Benchmark bool   `help:"Attach the month-day climate benchmark."`
	Normal    string `help:"Normal period label for the benchmark (default latest)."`
}

func (c *DailyCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		ds, _, days, err := c.load(ctx, a)
		if err != nil {
			return err
		}
		advisories := ds.Advisories
		if c.Benchmark {
			res, err := a.service.Benchmark(ctx, days, c.Normal)
			if err != nil {
				return err
			}
			days = res.Days
			advisories = append(advisories, res.Advisories...)
		}
		return printJSON(api.DayViews(days), advisories)
	})
}

type PeriodsCmd struct {
	Selection      `embed:""`
	ConditionFlags `embed:""`
}

func (c *PeriodsCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		ds, _, days, err := c.load(ctx, a)
		if err != nil {
			return err
		}
		periods, err := c.periods(days)
		if err != nil {
			return err
		}
		return printJSON(api.PeriodViews(periods), ds.Advisories)
	})
}

type HellmannCmd struct {
	Selection `embed:""`
}

func (c *HellmannCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		ds, window, days, err := c.load(ctx, a)
		if err != nil {
			return err
		}
		return printJSON(api.NewHellmannView(window, analysis.Hellmann(days)), ds.Advisories)
	})
}

type ExtremesCmd struct {
	Station []string `short:"s" help:"Station IDs to include (default all)."`
	TopN    int      `default:"5" help:"Rows per ranking."`
}

func (c *ExtremesCmd) Run(g *Globals) error {
	if c.TopN < 1 {
		return fmt.Errorf("top-n must be at least 1")
	}
	return g.run(func(ctx context.Context, a *app) error {
		ds, err := a.service.Load(ctx, c.Station)
		if err != nil {
			return err
		}
		return printJSON(api.RankingViews(analysis.Extremes(ds.Daily, c.TopN)), ds.Advisories)
	})
}

type RollupCmd struct {
	Station []string `short:"s" help:"Station IDs to include (default all)."`
	Period  string   `arg:"" optional:"" help:"Month (2025-02) or year (2025). Lists available periods when omitted."`
}

func (c *RollupCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		ds, err := a.service.Load(ctx, c.Station)
		if err != nil {
			return err
		}
		resp := api.RollupResponse{
			Stations:        []api.RollupView{},
			AvailableMonths: api.PeriodLabels(analysis.AvailableMonths(ds.Daily)),
			AvailableYears:  api.PeriodLabels(analysis.AvailableYears(ds.Daily)),
		}
		if c.Period != "" {
			p, err := analysis.ParsePeriod(c.Period)
			if err != nil {
				return err
			}
			resp.Period = p.String()
			resp.Stations = api.RollupViews(analysis.Rollup(ds.Daily, p))
		}
		return printJSON(resp, ds.Advisories)
	})
}

type NormalsCmd struct{}

func (c *NormalsCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		res := a.service.Normals(ctx)
		resp := api.NormalsResponse{
			Status:  string(res.Outcome.Status),
			Reason:  res.Outcome.Reason,
			Periods: api.NormalViews(res.Periods),
		}
		return printJSON(resp, res.Advisories)
	})
}

type ExportCmd struct {
	What           string `arg:"" enum:"records,daily,periods" help:"What to export: records, daily or periods."`
	Selection      `embed:""`
	ConditionFlags `embed:""`
	Range          string `default:"custom" enum:"today,last24h,month,year,custom" help:"Record time range preset."`
	Dates          string `help:"Custom record range: 2025-01-01..2025-01-31."`
}

func (c *ExportCmd) Run(g *Globals) error {
	return g.run(func(ctx context.Context, a *app) error {
		ds, _, days, err := c.load(ctx, a)
		if err != nil {
			return err
		}
		for _, adv := range ds.Advisories {
			fmt.Fprintf(os.Stderr, "%s: %s\n", adv.Level, adv.Message)
		}

		switch c.What {
		case "records":
			tr, err := analysis.ParseTimeRange(c.Range, c.Dates)
			if err != nil {
				return err
			}
			records := analysis.RecordRange(ds.Records, tr, a.service.Clock(), a.service.Location())
			return export.WriteRecords(os.Stdout, records)
		case "periods":
			periods, err := c.periods(days)
			if err != nil {
				return err
			}
			return export.WritePeriods(os.Stdout, periods)
		default:
			return export.WriteDaily(os.Stdout, days)
		}
	})
}
