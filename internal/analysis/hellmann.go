package analysis

import (
	"math"

	"github.com/lox/stationhistory/internal/models"
)

// Hellmann sums |temp_avg| over days with temp_avg <= 0 per station. Stations
// with no frost days are omitted and an empty window yields zero totals.
func Hellmann(days []models.DailySummary) models.HellmannResult {
	result := models.HellmannResult{Stations: make([]models.HellmannStation, 0)}

	grouped := byStation(days)
	for _, station := range Stations(days) {
		hs := models.HellmannStation{StationName: station}
		for _, d := range grouped[station] {
			if d.TempAvg <= 0 {
				hs.Value += math.Abs(d.TempAvg)
				hs.FrostDays++
			}
		}
		if hs.FrostDays == 0 {
			continue
		}
		result.Stations = append(result.Stations, hs)
		result.Total += hs.Value
		result.FrostDays += hs.FrostDays
	}
	return result
}
