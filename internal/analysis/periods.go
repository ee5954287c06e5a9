package analysis

import (
	"time"

	"github.com/lox/stationhistory/internal/models"
)

// DefaultMinDays is the shortest run reported unless the caller asks otherwise.
const DefaultMinDays = 3

// ConsecutivePeriods finds runs of calendar-consecutive days per station in
// an already filtered day set. A missing calendar day ends a run. Runs shorter
// than minDays are discarded. Output is ordered by station name, then
// chronologically within a station.
func ConsecutivePeriods(filtered []models.DailySummary, minDays int, column Column) []models.ConsecutivePeriod {
	if minDays < 1 {
		minDays = 1
	}

	periods := make([]models.ConsecutivePeriod, 0)
	grouped := byStation(filtered)
	for _, station := range Stations(filtered) {
		for _, run := range splitRuns(grouped[station]) {
			if len(run) < minDays {
				continue
			}
			var sum float64
			for _, d := range run {
				sum += column.Value(d)
			}
			periods = append(periods, models.ConsecutivePeriod{
				StationName: station,
				Start:       run[0].Date,
				End:         run[len(run)-1].Date,
				Days:        len(run),
				Mean:        sum / float64(len(run)),
			})
		}
	}
	return periods
}

// splitRuns assigns each day a run id that increments whenever the gap to
// the previous day is more than one day. days must be sorted by date.
func splitRuns(days []models.DailySummary) [][]models.DailySummary {
	var runs [][]models.DailySummary
	runID := -1
	for i, d := range days {
		if i == 0 || daysBetween(days[i-1].Date, d.Date) > 1 {
			runID++
			runs = append(runs, nil)
		}
		runs[runID] = append(runs[runID], d)
	}
	return runs
}

// daysBetween counts calendar days from a to b. Both are midnight UTC.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
