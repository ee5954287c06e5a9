package models

import (
	"database/sql"
	"time"
)

type Station struct {
	StationID string
	Name      string
}

// Record is one parsed row of a station's yearly source file.
type Record struct {
	StationID   string
	StationName string
	TimeUTC     time.Time
	TimeLocal   time.Time
	Battery     sql.NullFloat64
	DewPoint    sql.NullFloat64
	Humidity    sql.NullFloat64
	Pressure    sql.NullFloat64 // hPa
	Solar       sql.NullFloat64
	Temp        sql.NullFloat64
	WetBulb     sql.NullFloat64
}

// DailySummary is one (station, local calendar day) aggregate. Date is the
// local calendar day stored as midnight UTC so day arithmetic is DST-free.
type DailySummary struct {
	StationName   string
	Date          time.Time
	TempHigh      float64
	TempLow       float64
	TempAvg       float64
	PressureAvg   sql.NullFloat64
	HumidityAvg   sql.NullFloat64
	BenchmarkAvg  sql.NullFloat64
	BenchmarkHigh sql.NullFloat64
	BenchmarkLow  sql.NullFloat64
}

type ConsecutivePeriod struct {
	StationName string
	Start       time.Time
	End         time.Time
	Days        int
	Mean        float64
}

type ExtremeRecord struct {
	StationName string
	Date        time.Time
	MaxTemp     sql.NullFloat64
	MinTemp     sql.NullFloat64
	AvgTemp     sql.NullFloat64
	Range       sql.NullFloat64
}

type Ranking struct {
	Metric string
	Title  string
	Rows   []ExtremeRecord
}

type HellmannStation struct {
	StationName string
	Value       float64
	FrostDays   int
}

type HellmannResult struct {
	Stations  []HellmannStation
	Total     float64
	FrostDays int
}

type Rollup struct {
	StationName string
	AvgTemp     float64
	MaxTemp     float64
	MaxTempDate time.Time
	MinTemp     float64
	MinTempDate time.Time
	PressureAvg sql.NullFloat64
}

// BenchmarkDay is one day of the external climate archive series.
type BenchmarkDay struct {
	Date     time.Time
	TempHigh sql.NullFloat64
	TempLow  sql.NullFloat64
	TempAvg  sql.NullFloat64
}

type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
)

// Outcome distinguishes "loaded, possibly empty" from "could not be loaded".
type Outcome struct {
	Status Status
	Reason string
}

func OK() Outcome { return Outcome{Status: StatusOK} }

func Unavailable(reason string) Outcome {
	return Outcome{Status: StatusUnavailable, Reason: reason}
}

func (o Outcome) IsOK() bool { return o.Status == StatusOK }

type Advisory struct {
	Level   string // "info", "warning", "error"
	Message string
}
