package api

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lox/stationhistory/internal/analysis"
	"github.com/lox/stationhistory/internal/climate"
	"github.com/lox/stationhistory/internal/ingest"
	"github.com/lox/stationhistory/internal/models"
)

const dateLayout = "2006-01-02"

// Response wraps every JSON payload with the advisories raised while
// producing it.
type Response struct {
	Data       any            `json:"data"`
	Advisories []AdvisoryView `json:"advisories"`
}

type AdvisoryView struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func AdvisoryViews(in []models.Advisory) []AdvisoryView {
	out := make([]AdvisoryView, 0, len(in))
	for _, a := range in {
		out = append(out, AdvisoryView{Level: a.Level, Message: a.Message})
	}
	return out
}

type StationView struct {
	StationID string `json:"station_id"`
	Name      string `json:"name"`
}

type YearOutcomeView struct {
	Year         int            `json:"year"`
	Status       string         `json:"status"`
	Reason       string         `json:"reason,omitempty"`
	Records      int            `json:"records"`
	RowsDropped  int            `json:"rows_dropped"`
	LinesSkipped int            `json:"lines_skipped"`
	Flags        map[string]int `json:"quality_flags,omitempty"`
}

func YearOutcomeViews(in []ingest.YearOutcome) []YearOutcomeView {
	out := make([]YearOutcomeView, 0, len(in))
	for _, y := range in {
		out = append(out, YearOutcomeView{
			Year:         y.Year,
			Status:       string(y.Outcome.Status),
			Reason:       y.Outcome.Reason,
			Records:      y.Records,
			RowsDropped:  y.RowsDropped,
			LinesSkipped: y.LinesSkipped,
			Flags:        y.Flags,
		})
	}
	return out
}

type RecordView struct {
	StationID   string    `json:"station_id"`
	StationName string    `json:"station_name"`
	TimeUTC     time.Time `json:"timestamp_utc"`
	TimeLocal   time.Time `json:"timestamp_local"`
	Battery     *float64  `json:"battery"`
	DewPoint    *float64  `json:"dew_point"`
	Humidity    *float64  `json:"humidity"`
	Pressure    *float64  `json:"pressure"`
	Solar       *float64  `json:"solar"`
	Temp        *float64  `json:"temp"`
	WetBulb     *float64  `json:"wet_bulb"`
}

func RecordViews(in []models.Record) []RecordView {
	out := make([]RecordView, 0, len(in))
	for _, r := range in {
		out = append(out, RecordView{
			StationID:   r.StationID,
			StationName: r.StationName,
			TimeUTC:     r.TimeUTC,
			TimeLocal:   r.TimeLocal,
			Battery:     ptr(r.Battery),
			DewPoint:    ptr(r.DewPoint),
			Humidity:    ptr(r.Humidity),
			Pressure:    ptr(r.Pressure),
			Solar:       ptr(r.Solar),
			Temp:        ptr(r.Temp),
			WetBulb:     ptr(r.WetBulb),
		})
	}
	return out
}

type DayView struct {
	StationName   string   `json:"station_name"`
	Date          string   `json:"date"`
	TempHigh      float64  `json:"temp_high"`
	TempLow       float64  `json:"temp_low"`
	TempAvg       float64  `json:"temp_avg"`
	PressureAvg   *float64 `json:"pressure_avg"`
	HumidityAvg   *float64 `json:"humidity_avg"`
	BenchmarkAvg  *float64 `json:"benchmark_avg,omitempty"`
	BenchmarkHigh *float64 `json:"benchmark_high,omitempty"`
	BenchmarkLow  *float64 `json:"benchmark_low,omitempty"`
}

func DayViews(in []models.DailySummary) []DayView {
	out := make([]DayView, 0, len(in))
	for _, d := range in {
		out = append(out, DayView{
			StationName:   d.StationName,
			Date:          d.Date.Format(dateLayout),
			TempHigh:      d.TempHigh,
			TempLow:       d.TempLow,
			TempAvg:       d.TempAvg,
			PressureAvg:   ptr(d.PressureAvg),
			HumidityAvg:   ptr(d.HumidityAvg),
			BenchmarkAvg:  ptr(d.BenchmarkAvg),
			BenchmarkHigh: ptr(d.BenchmarkHigh),
			BenchmarkLow:  ptr(d.BenchmarkLow),
		})
	}
	return out
}

type PeriodView struct {
	StationName string  `json:"station_name"`
	Start       string  `json:"start_date"`
	End         string  `json:"end_date"`
	Days        int     `json:"length_days"`
	Mean        float64 `json:"mean_value"`
	MeanDisplay string  `json:"mean_display"`
}

func PeriodViews(in []models.ConsecutivePeriod) []PeriodView {
	out := make([]PeriodView, 0, len(in))
	for _, p := range in {
		out = append(out, PeriodView{
			StationName: p.StationName,
			Start:       p.Start.Format(dateLayout),
			End:         p.End.Format(dateLayout),
			Days:        p.Days,
			Mean:        p.Mean,
			MeanDisplay: formatTemp(p.Mean),
		})
	}
	return out
}

type ExtremeView struct {
	StationName string   `json:"station_name"`
	Date        string   `json:"date"`
	MaxTemp     *float64 `json:"max_temp,omitempty"`
	MinTemp     *float64 `json:"min_temp,omitempty"`
	AvgTemp     *float64 `json:"avg_temp,omitempty"`
	Range       *float64 `json:"range,omitempty"`
}

type RankingView struct {
	Metric string        `json:"metric"`
	Title  string        `json:"title"`
	Rows   []ExtremeView `json:"rows"`
}

func RankingViews(in []models.Ranking) []RankingView {
	out := make([]RankingView, 0, len(in))
	for _, r := range in {
		rv := RankingView{Metric: r.Metric, Title: r.Title, Rows: make([]ExtremeView, 0, len(r.Rows))}
		for _, row := range r.Rows {
			rv.Rows = append(rv.Rows, ExtremeView{
				StationName: row.StationName,
				Date:        row.Date.Format(dateLayout),
				MaxTemp:     ptr(row.MaxTemp),
				MinTemp:     ptr(row.MinTemp),
				AvgTemp:     ptr(row.AvgTemp),
				Range:       ptr(row.Range),
			})
		}
		out = append(out, rv)
	}
	return out
}

type HellmannStationView struct {
	StationName string  `json:"station_name"`
	Value       float64 `json:"hellmann"`
	FrostDays   int     `json:"frost_days"`
}

type HellmannView struct {
	Window    string                `json:"window"`
	Stations  []HellmannStationView `json:"stations"`
	Total     float64               `json:"total"`
	FrostDays int                   `json:"frost_days"`
}

func NewHellmannView(w analysis.Window, in models.HellmannResult) HellmannView {
	v := HellmannView{
		Window:    w.String(),
		Stations:  make([]HellmannStationView, 0, len(in.Stations)),
		Total:     in.Total,
		FrostDays: in.FrostDays,
	}
	for _, s := range in.Stations {
		v.Stations = append(v.Stations, HellmannStationView{StationName: s.StationName, Value: s.Value, FrostDays: s.FrostDays})
	}
	return v
}

type RollupView struct {
	StationName string   `json:"station_name"`
	AvgTemp     float64  `json:"avg_temp"`
	MaxTemp     float64  `json:"max_temp"`
	MaxTempDate string   `json:"max_temp_date"`
	MinTemp     float64  `json:"min_temp"`
	MinTempDate string   `json:"min_temp_date"`
	PressureAvg *float64 `json:"pressure_avg"`
}

type RollupResponse struct {
	Period          string       `json:"period,omitempty"`
	Stations        []RollupView `json:"stations"`
	AvailableMonths []string     `json:"available_months"`
	AvailableYears  []string     `json:"available_years"`
}

func RollupViews(in []models.Rollup) []RollupView {
	out := make([]RollupView, 0, len(in))
	for _, r := range in {
		out = append(out, RollupView{
			StationName: r.StationName,
			AvgTemp:     r.AvgTemp,
			MaxTemp:     r.MaxTemp,
			MaxTempDate: r.MaxTempDate.Format(dateLayout),
			MinTemp:     r.MinTemp,
			MinTempDate: r.MinTempDate.Format(dateLayout),
			PressureAvg: ptr(r.PressureAvg),
		})
	}
	return out
}

func PeriodLabels(in []analysis.Period) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		out = append(out, p.String())
	}
	return out
}

type BenchmarkResponse struct {
	NormalPeriod string    `json:"normal_period"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	Days         []DayView `json:"days"`
}

type NormalView struct {
	Label    string   `json:"label"`
	TempHigh *float64 `json:"temp_high"`
	TempLow  *float64 `json:"temp_low"`
	TempAvg  *float64 `json:"temp_avg"`
	Days     int      `json:"days"`
}

type NormalsResponse struct {
	Status  string       `json:"status"`
	Reason  string       `json:"reason,omitempty"`
	Periods []NormalView `json:"periods"`
}

func NormalViews(in []climate.PeriodAggregate) []NormalView {
	out := make([]NormalView, 0, len(in))
	for _, p := range in {
		out = append(out, NormalView{
			Label:    p.Label,
			TempHigh: ptr(p.TempHigh),
			TempLow:  ptr(p.TempLow),
			TempAvg:  ptr(p.TempAvg),
			Days:     p.Days,
		})
	}
	return out
}

func ptr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func formatTemp(v float64) string {
	return fmt.Sprintf("%.1f °C", v)
}
