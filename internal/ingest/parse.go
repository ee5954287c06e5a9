package ingest

import (
	"bufio"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

// Source column names. Export writes the same names back out.
const (
	ColDate     = "datum_waarneming_UTC"
	ColTime     = "tijd_waarneming_UTC"
	ColBattery  = "battery"
	ColDewPoint = "dauwpunt"
	ColHumidity = "luchtvocht"
	ColPressure = "druk"
	ColSolar    = "zoninstraling"
	ColTemp     = "temp"
	ColWetBulb  = "natbol"
)

// TimestampLayout parses the joined date and time columns.
const TimestampLayout = "02.01.2006 15:04:05"

// Pressure is published in hundredths of a hectopascal.
const pressureDivisor = 100.0

// ErrMissingTimestampColumns means a file has no date or time column and
// cannot yield any records.
var ErrMissingTimestampColumns = errors.New("missing timestamp columns")

type ParseResult struct {
	Records      []models.Record
	RowsDropped  int // unparseable timestamp
	LinesSkipped int // malformed line
}

// Parse reads one semicolon-delimited source file. Rows whose timestamp does
// not parse are dropped; numeric values that do not parse become missing.
// Records keep file order.
func Parse(r io.Reader, station models.Station, loc *time.Location) (ParseResult, error) {
	var result ParseResult

	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return result, fmt.Errorf("read header: %w", ErrMissingTimestampColumns)
	}
	if err != nil {
		return result, fmt.Errorf("read header: %w", err)
	}

	cols := indexColumns(header)
	dateIdx, okDate := cols[ColDate]
	timeIdx, okTime := cols[ColTime]
	if !okDate || !okTime {
		return result, ErrMissingTimestampColumns
	}

	field := func(row []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				result.LinesSkipped++
				continue
			}
			return result, fmt.Errorf("read row: %w", err)
		}
		if len(row) > len(header) {
			result.LinesSkipped++
			continue
		}

		var date, clock string
		if dateIdx < len(row) {
			date = strings.TrimSpace(row[dateIdx])
		}
		if timeIdx < len(row) {
			clock = strings.TrimSpace(row[timeIdx])
		}
		ts, err := time.ParseInLocation(TimestampLayout, date+" "+clock, time.UTC)
		if err != nil {
			result.RowsDropped++
			continue
		}

		rec := models.Record{
			StationID:   station.StationID,
			StationName: station.Name,
			TimeUTC:     ts,
			TimeLocal:   ts.In(loc),
			Battery:     parseNumber(field(row, ColBattery)),
			DewPoint:    parseNumber(field(row, ColDewPoint)),
			Humidity:    parseNumber(field(row, ColHumidity)),
			Pressure:    parseNumber(field(row, ColPressure)),
			Solar:       parseNumber(field(row, ColSolar)),
			Temp:        parseNumber(field(row, ColTemp)),
			WetBulb:     parseNumber(field(row, ColWetBulb)),
		}
		if rec.Pressure.Valid {
			rec.Pressure.Float64 /= pressureDivisor
		}
		result.Records = append(result.Records, rec)
	}

	return result, nil
}

// HasTimestampHeader reads only the first line of r and reports whether it
// names the raw date column.
func HasTimestampHeader(r io.Reader) bool {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return false
	}
	_, ok := indexColumns(strings.Split(strings.TrimRight(line, "\r\n"), ";"))[ColDate]
	return ok
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		name = strings.Trim(name, `"`)
		if _, seen := cols[name]; !seen {
			cols[name] = i
		}
	}
	return cols
}

func parseNumber(s string) sql.NullFloat64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullFloat64{}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}
