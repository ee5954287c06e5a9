package ingest

import (
	"sort"

	"github.com/lox/stationhistory/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagSolarNegative      = "solar_negative"
	FlagBatteryInvalid     = "battery_invalid"
	FlagDewPointAboveTemp  = "dew_point_above_temp"
)

// Validate returns quality flags for a record. Flags are informational and
// never cause a record to be dropped.
func Validate(rec models.Record) []string {
	var flags []string

	if rec.Temp.Valid {
		if rec.Temp.Float64 < -50 || rec.Temp.Float64 > 45 {
			flags = append(flags, FlagTempOutOfRange)
		}
	}

	if rec.Humidity.Valid {
		if rec.Humidity.Float64 < 0 || rec.Humidity.Float64 > 100 {
			flags = append(flags, FlagHumidityInvalid)
		}
	}

	if rec.Pressure.Valid {
		if rec.Pressure.Float64 < 900 || rec.Pressure.Float64 > 1100 {
			flags = append(flags, FlagPressureOutOfRange)
		}
	}

	if rec.Solar.Valid && rec.Solar.Float64 < 0 {
		flags = append(flags, FlagSolarNegative)
	}

	if rec.Battery.Valid {
		if rec.Battery.Float64 < 0 || rec.Battery.Float64 > 15 {
			flags = append(flags, FlagBatteryInvalid)
		}
	}

	// Allow half a degree of sensor disagreement.
	if rec.DewPoint.Valid && rec.Temp.Valid && rec.DewPoint.Float64 > rec.Temp.Float64+0.5 {
		flags = append(flags, FlagDewPointAboveTemp)
	}

	return flags
}

// FlagCounts tallies Validate flags over a record set.
func FlagCounts(records []models.Record) map[string]int {
	counts := make(map[string]int)
	for _, rec := range records {
		for _, f := range Validate(rec) {
			counts[f]++
		}
	}
	return counts
}

// SortedFlags returns the flag names of counts in a stable order.
func SortedFlags(counts map[string]int) []string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
