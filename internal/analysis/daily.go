// Package analysis turns ingested records into daily summaries and derives
// the historical views from them. Every function is pure.
package analysis

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

type dayKey struct {
	station string
	date    time.Time
}

type dayValues struct {
	temps     []float64
	pressures []float64
	humidity  []float64
}

// LocalDate returns the calendar day of t as midnight UTC.
func LocalDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Aggregate groups records by station and local calendar day. Days without a
// valid temperature reading are left out. Output is ordered by station name
// then date.
func Aggregate(records []models.Record) []models.DailySummary {
	groups := make(map[dayKey]*dayValues)
	for _, rec := range records {
		k := dayKey{station: stationName(rec), date: LocalDate(rec.TimeLocal)}
		g, ok := groups[k]
		if !ok {
			g = &dayValues{}
			groups[k] = g
		}
		if rec.Temp.Valid {
			g.temps = append(g.temps, rec.Temp.Float64)
		}
		if rec.Pressure.Valid {
			g.pressures = append(g.pressures, rec.Pressure.Float64)
		}
		if rec.Humidity.Valid {
			g.humidity = append(g.humidity, rec.Humidity.Float64)
		}
	}

	out := make([]models.DailySummary, 0, len(groups))
	for k, g := range groups {
		if len(g.temps) == 0 {
			continue
		}
		mean, low, high := stats(g.temps)
		out = append(out, models.DailySummary{
			StationName: k.station,
			Date:        k.date,
			TempHigh:    high,
			TempLow:     low,
			TempAvg:     mean,
			PressureAvg: nullMean(g.pressures),
			HumidityAvg: nullMean(g.humidity),
		})
	}

	SortDays(out)
	return out
}

// SortDays orders days by station name then date.
func SortDays(days []models.DailySummary) {
	sort.SliceStable(days, func(i, j int) bool {
		if days[i].StationName != days[j].StationName {
			return days[i].StationName < days[j].StationName
		}
		return days[i].Date.Before(days[j].Date)
	})
}

// Stations returns the distinct station names in days, sorted.
func Stations(days []models.DailySummary) []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range days {
		if !seen[d.StationName] {
			seen[d.StationName] = true
			names = append(names, d.StationName)
		}
	}
	sort.Strings(names)
	return names
}

// byStation splits days per station, each slice sorted by date.
func byStation(days []models.DailySummary) map[string][]models.DailySummary {
	out := make(map[string][]models.DailySummary)
	for _, d := range days {
		out[d.StationName] = append(out[d.StationName], d)
	}
	for _, s := range out {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
	}
	return out
}

func stationName(rec models.Record) string {
	if rec.StationName != "" {
		return rec.StationName
	}
	return rec.StationID
}

// stats sums in sorted order so the mean does not depend on input order.
func stats(values []float64) (mean, low, high float64) {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return sum / float64(len(sorted)), sorted[0], sorted[len(sorted)-1]
}

func nullMean(values []float64) sql.NullFloat64 {
	if len(values) == 0 {
		return sql.NullFloat64{}
	}
	mean, _, _ := stats(values)
	return sql.NullFloat64{Float64: mean, Valid: true}
}
