package analysis

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lox/stationhistory/internal/models"
)

type RangePreset string

const (
	RangeToday   RangePreset = "today"
	RangeLast24h RangePreset = "last24h"
	RangeMonth   RangePreset = "month"
	RangeYear    RangePreset = "year"
	RangeCustom  RangePreset = "custom"
)

// TimeRange selects raw records. From and To are calendar days used only by
// RangeCustom; To is inclusive through 23:59:59.
type TimeRange struct {
	Preset RangePreset
	From   time.Time
	To     time.Time
}

func ParseTimeRange(preset, dates string) (TimeRange, error) {
	switch p := RangePreset(preset); p {
	case "":
		return TimeRange{Preset: RangeToday}, nil
	case RangeToday, RangeLast24h, RangeMonth, RangeYear:
		return TimeRange{Preset: p}, nil
	case RangeCustom:
		if dates == "" {
			return TimeRange{Preset: RangeCustom}, nil
		}
		from, to, err := ParseDateRange(dates)
		if err != nil {
			return TimeRange{}, err
		}
		return TimeRange{Preset: RangeCustom, From: from, To: to}, nil
	}
	return TimeRange{}, fmt.Errorf("unknown time range %q", preset)
}

// Bounds resolves the range to inclusive instants. ok is false for a custom
// range without dates, which selects everything.
func (r TimeRange) Bounds(now time.Time, loc *time.Location) (start, end time.Time, ok bool) {
	now = now.In(loc)
	end = now
	switch r.Preset {
	case RangeToday:
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	case RangeLast24h:
		start = now.Add(-24 * time.Hour)
	case RangeMonth:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
	case RangeYear:
		start = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
	case RangeCustom:
		if r.From.IsZero() {
			return time.Time{}, time.Time{}, false
		}
		to := r.To
		if to.IsZero() {
			to = r.From
		}
		start = time.Date(r.From.Year(), r.From.Month(), r.From.Day(), 0, 0, 0, 0, loc)
		end = time.Date(to.Year(), to.Month(), to.Day(), 23, 59, 59, 0, loc)
	}
	if start.After(end) {
		start, end = end, start
	}
	return start, end, true
}

// RecordRange keeps the records whose timestamp falls inside r.
func RecordRange(records []models.Record, r TimeRange, clock clockwork.Clock, loc *time.Location) []models.Record {
	start, end, ok := r.Bounds(clock.Now(), loc)
	out := make([]models.Record, 0)
	for _, rec := range records {
		if ok && (rec.TimeUTC.Before(start) || rec.TimeUTC.After(end)) {
			continue
		}
		out = append(out, rec)
	}
	return out
}
