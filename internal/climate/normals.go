package climate

import (
	"database/sql"
	"fmt"
	"time"
)

// NormalPeriod is a labelled 30-year window of whole calendar years.
type NormalPeriod struct {
	Label     string
	StartYear int
	EndYear   int
}

var NormalPeriods = []NormalPeriod{
	{Label: "1961-1990", StartYear: 1961, EndYear: 1990},
	{Label: "1971-2000", StartYear: 1971, EndYear: 2000},
	{Label: "1981-2010", StartYear: 1981, EndYear: 2010},
	{Label: "1991-2020", StartYear: 1991, EndYear: 2020},
	{Label: "1995-2024", StartYear: 1995, EndYear: 2024},
}

// DefaultPeriod is the most recent normal period.
var DefaultPeriod = NormalPeriods[len(NormalPeriods)-1]

func (p NormalPeriod) From() time.Time {
	return time.Date(p.StartYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func (p NormalPeriod) To() time.Time {
	return time.Date(p.EndYear, time.December, 31, 0, 0, 0, 0, time.UTC)
}

// Slice cuts the period out of the wide series.
func (p NormalPeriod) Slice(s Series) Series {
	return Slice(s, p.From(), p.To())
}

func PeriodByLabel(label string) (NormalPeriod, error) {
	if label == "" {
		return DefaultPeriod, nil
	}
	for _, p := range NormalPeriods {
		if p.Label == label {
			return p, nil
		}
	}
	return NormalPeriod{}, fmt.Errorf("unknown normal period %q", label)
}

// WideRange is the single span that covers every period.
func WideRange(periods []NormalPeriod) (from, to time.Time) {
	for i, p := range periods {
		if i == 0 || p.From().Before(from) {
			from = p.From()
		}
		if i == 0 || p.To().After(to) {
			to = p.To()
		}
	}
	return from, to
}

// PeriodAggregate is the scalar mean of each metric over one period.
type PeriodAggregate struct {
	Label    string
	TempHigh sql.NullFloat64
	TempLow  sql.NullFloat64
	TempAvg  sql.NullFloat64
	Days     int
}

func PeriodAggregates(s Series, periods []NormalPeriod) []PeriodAggregate {
	out := make([]PeriodAggregate, 0, len(periods))
	for _, p := range periods {
		var high, low, avg accumulator
		sliced := p.Slice(s)
		for _, d := range sliced {
			high.add(d.TempHigh)
			low.add(d.TempLow)
			avg.add(d.TempAvg)
		}
		out = append(out, PeriodAggregate{
			Label:    p.Label,
			TempHigh: high.mean(),
			TempLow:  low.mean(),
			TempAvg:  avg.mean(),
			Days:     len(sliced),
		})
	}
	return out
}
