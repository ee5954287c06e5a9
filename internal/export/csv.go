// Package export writes records and derived tables in the semicolon
// convention of the source files.
package export

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/lox/stationhistory/internal/ingest"
	"github.com/lox/stationhistory/internal/models"
)

const dateLayout = "2006-01-02"

// RecordHeader is the source header followed by the derived columns.
var RecordHeader = []string{
	ingest.ColDate, ingest.ColTime,
	ingest.ColBattery, ingest.ColDewPoint, ingest.ColHumidity, ingest.ColPressure,
	ingest.ColSolar, ingest.ColTemp, ingest.ColWetBulb,
	"station_id", "station_name", "timestamp_local",
}

var DailyHeader = []string{
	"station_name", "date", "temp_high", "temp_low", "temp_avg",
	"pressure_avg", "humidity_avg", "benchmark_avg", "benchmark_high", "benchmark_low",
}

var PeriodHeader = []string{"station_name", "start_date", "end_date", "length_days", "mean_value"}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw
}

// WriteRecords writes records so the output parses back to the same
// records. Pressure is written in source units.
func WriteRecords(w io.Writer, records []models.Record) error {
	cw := newWriter(w)
	if err := cw.Write(RecordHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, r := range records {
		pressure := r.Pressure
		if pressure.Valid {
			pressure.Float64 *= 100
		}
		utc := r.TimeUTC.UTC()
		row := []string{
			utc.Format("02.01.2006"),
			utc.Format("15:04:05"),
			formatNull(r.Battery),
			formatNull(r.DewPoint),
			formatNull(r.Humidity),
			formatNull(pressure),
			formatNull(r.Solar),
			formatNull(r.Temp),
			formatNull(r.WetBulb),
			r.StationID,
			r.StationName,
			r.TimeLocal.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func WriteDaily(w io.Writer, days []models.DailySummary) error {
	cw := newWriter(w)
	if err := cw.Write(DailyHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, d := range days {
		row := []string{
			d.StationName,
			d.Date.Format(dateLayout),
			formatFloat(d.TempHigh),
			formatFloat(d.TempLow),
			formatFloat(d.TempAvg),
			formatNull(d.PressureAvg),
			formatNull(d.HumidityAvg),
			formatNull(d.BenchmarkAvg),
			formatNull(d.BenchmarkHigh),
			formatNull(d.BenchmarkLow),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write day: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func WritePeriods(w io.Writer, periods []models.ConsecutivePeriod) error {
	cw := newWriter(w)
	if err := cw.Write(PeriodHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range periods {
		row := []string{
			p.StationName,
			p.Start.Format(dateLayout),
			p.End.Format(dateLayout),
			strconv.Itoa(p.Days),
			formatFloat(p.Mean),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write period: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNull(v sql.NullFloat64) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}
