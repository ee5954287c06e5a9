package analysis

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

// Period is a calendar month (Month != 0) or a whole year.
type Period struct {
	Year  int
	Month int
}

func (p Period) String() string {
	if p.Month == 0 {
		return fmt.Sprintf("%d", p.Year)
	}
	return fmt.Sprintf("%d-%02d", p.Year, p.Month)
}

func (p Period) Window() Window {
	if p.Month == 0 {
		return Window{Kind: WindowYear, Year: p.Year}
	}
	return Window{Kind: WindowMonth, Year: p.Year, Month: time.Month(p.Month)}
}

// ParsePeriod accepts "YYYY" or "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	kind := WindowMonth
	if len(s) == 4 {
		kind = WindowYear
	}
	w, err := ParseWindow(string(kind), s)
	if err != nil {
		return Period{}, fmt.Errorf("parse period %q: %w", s, err)
	}
	return Period{Year: w.Year, Month: int(w.Month)}, nil
}

// Rollup summarises the days of one month or year per station: mean of the
// daily means, the highest high and lowest low with their first dates, and
// mean pressure.
func Rollup(days []models.DailySummary, p Period) []models.Rollup {
	selected := SelectWindow(days, p.Window())
	grouped := byStation(selected)

	out := make([]models.Rollup, 0)
	for _, station := range Stations(selected) {
		sd := grouped[station]
		r := models.Rollup{
			StationName: station,
			MaxTemp:     sd[0].TempHigh,
			MaxTempDate: sd[0].Date,
			MinTemp:     sd[0].TempLow,
			MinTempDate: sd[0].Date,
		}
		var sum, pressureSum float64
		var pressureN int
		for _, d := range sd {
			sum += d.TempAvg
			if d.TempHigh > r.MaxTemp {
				r.MaxTemp, r.MaxTempDate = d.TempHigh, d.Date
			}
			if d.TempLow < r.MinTemp {
				r.MinTemp, r.MinTempDate = d.TempLow, d.Date
			}
			if d.PressureAvg.Valid {
				pressureSum += d.PressureAvg.Float64
				pressureN++
			}
		}
		r.AvgTemp = sum / float64(len(sd))
		if pressureN > 0 {
			r.PressureAvg = sql.NullFloat64{Float64: pressureSum / float64(pressureN), Valid: true}
		}
		out = append(out, r)
	}
	return out
}

// AvailableMonths lists the months present in days, newest first.
func AvailableMonths(days []models.DailySummary) []Period {
	seen := make(map[Period]bool)
	for _, d := range days {
		seen[Period{Year: d.Date.Year(), Month: int(d.Date.Month())}] = true
	}
	return sortedPeriods(seen)
}

// AvailableYears lists the years present in days, newest first.
func AvailableYears(days []models.DailySummary) []Period {
	seen := make(map[Period]bool)
	for _, d := range days {
		seen[Period{Year: d.Date.Year()}] = true
	}
	return sortedPeriods(seen)
}

func sortedPeriods(seen map[Period]bool) []Period {
	out := make([]Period, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out
}
