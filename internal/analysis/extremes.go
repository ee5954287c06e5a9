package analysis

import (
	"database/sql"
	"sort"

	"github.com/lox/stationhistory/internal/models"
)

// DefaultTopN is the number of rows per station in each ranking.
const DefaultTopN = 5

type ranking struct {
	metric     string
	title      string
	value      func(models.DailySummary) float64
	descending bool
	row        func(models.DailySummary) models.ExtremeRecord
}

func nullValue(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }

var rankings = []ranking{
	{
		metric: "highest_max", title: "Highest maximum temperature", descending: true,
		value: func(d models.DailySummary) float64 { return d.TempHigh },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{MaxTemp: nullValue(d.TempHigh)}
		},
	},
	{
		metric: "highest_min", title: "Highest minimum temperature", descending: true,
		value: func(d models.DailySummary) float64 { return d.TempLow },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{MinTemp: nullValue(d.TempLow)}
		},
	},
	{
		metric: "highest_avg", title: "Highest average temperature", descending: true,
		value: func(d models.DailySummary) float64 { return d.TempAvg },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{AvgTemp: nullValue(d.TempAvg)}
		},
	},
	{
		metric: "lowest_min", title: "Lowest minimum temperature",
		value: func(d models.DailySummary) float64 { return d.TempLow },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{MinTemp: nullValue(d.TempLow)}
		},
	},
	{
		metric: "lowest_max", title: "Lowest maximum temperature",
		value: func(d models.DailySummary) float64 { return d.TempHigh },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{MaxTemp: nullValue(d.TempHigh)}
		},
	},
	{
		metric: "lowest_avg", title: "Lowest average temperature",
		value: func(d models.DailySummary) float64 { return d.TempAvg },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{AvgTemp: nullValue(d.TempAvg)}
		},
	},
	{
		metric: "largest_range", title: "Largest daily temperature range", descending: true,
		value: func(d models.DailySummary) float64 { return d.TempHigh - d.TempLow },
		row: func(d models.DailySummary) models.ExtremeRecord {
			return models.ExtremeRecord{
				Range:   nullValue(d.TempHigh - d.TempLow),
				MaxTemp: nullValue(d.TempHigh),
				MinTemp: nullValue(d.TempLow),
			}
		},
	},
}

// Extremes builds the seven rankings over the whole day set. Each ranking
// holds up to topN rows per station, stations ordered by name. Equal values
// keep date order, so the earliest day ranks first.
func Extremes(days []models.DailySummary, topN int) []models.Ranking {
	if topN <= 0 {
		topN = DefaultTopN
	}

	grouped := byStation(days)
	stations := Stations(days)

	out := make([]models.Ranking, 0, len(rankings))
	for _, r := range rankings {
		ranked := models.Ranking{Metric: r.metric, Title: r.title, Rows: make([]models.ExtremeRecord, 0)}
		for _, station := range stations {
			sorted := append([]models.DailySummary(nil), grouped[station]...)
			sort.SliceStable(sorted, func(i, j int) bool {
				if r.descending {
					return r.value(sorted[i]) > r.value(sorted[j])
				}
				return r.value(sorted[i]) < r.value(sorted[j])
			})
			if len(sorted) > topN {
				sorted = sorted[:topN]
			}
			for _, d := range sorted {
				row := r.row(d)
				row.StationName = station
				row.Date = d.Date
				ranked.Rows = append(ranked.Rows, row)
			}
		}
		out = append(out, ranked)
	}
	return out
}

// RankingMetrics lists the ranking keys in output order.
func RankingMetrics() []string {
	out := make([]string, len(rankings))
	for i, r := range rankings {
		out[i] = r.metric
	}
	return out
}
