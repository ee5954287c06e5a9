package climate

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

// Series is a daily benchmark series ordered by date.
type Series []models.BenchmarkDay

func (s Series) sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Date.Before(s[j].Date) })
}

// Slice returns the days of s within the inclusive date range. s is not
// modified.
func Slice(s Series, from, to time.Time) Series {
	lo := sort.Search(len(s), func(i int) bool { return !s[i].Date.Before(from) })
	hi := sort.Search(len(s), func(i int) bool { return s[i].Date.After(to) })
	if lo >= hi {
		return Series{}
	}
	out := make(Series, hi-lo)
	copy(out, s[lo:hi])
	return out
}

// MonthDay reduces a date to its "MM-DD" key.
func MonthDay(t time.Time) string {
	return t.Format("01-02")
}

// Normal is the climatological mean for one month-day.
type Normal struct {
	TempHigh sql.NullFloat64
	TempLow  sql.NullFloat64
	TempAvg  sql.NullFloat64
	Samples  int
}

// Climatology maps "MM-DD" to the mean over every year present in the
// series. 02-29 is averaged over leap years only.
type Climatology map[string]Normal

type accumulator struct {
	sum float64
	n   int
}

func (a *accumulator) add(v sql.NullFloat64) {
	if v.Valid {
		a.sum += v.Float64
		a.n++
	}
}

func (a accumulator) mean() sql.NullFloat64 {
	if a.n == 0 {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: a.sum / float64(a.n), Valid: true}
}

func BuildClimatology(s Series) Climatology {
	type acc struct {
		high, low, avg accumulator
		samples        int
	}
	byKey := make(map[string]*acc)
	for _, d := range s {
		k := MonthDay(d.Date)
		a, ok := byKey[k]
		if !ok {
			a = &acc{}
			byKey[k] = a
		}
		a.high.add(d.TempHigh)
		a.low.add(d.TempLow)
		a.avg.add(d.TempAvg)
		a.samples++
	}

	clim := make(Climatology, len(byKey))
	for k, a := range byKey {
		clim[k] = Normal{
			TempHigh: a.high.mean(),
			TempLow:  a.low.mean(),
			TempAvg:  a.avg.mean(),
			Samples:  a.samples,
		}
	}
	return clim
}

// Merge returns a copy of days with the benchmark columns filled in from
// clim by month-day. An empty climatology leaves the columns unset.
func Merge(days []models.DailySummary, clim Climatology) []models.DailySummary {
	out := make([]models.DailySummary, len(days))
	copy(out, days)
	if len(clim) == 0 {
		return out
	}
	for i := range out {
		n, ok := clim[MonthDay(out[i].Date)]
		if !ok {
			continue
		}
		out[i].BenchmarkHigh = n.TempHigh
		out[i].BenchmarkLow = n.TempLow
		out[i].BenchmarkAvg = n.TempAvg
	}
	return out
}
