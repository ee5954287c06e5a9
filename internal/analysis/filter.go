package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/stationhistory/internal/models"
)

// Column names a temperature column of a daily summary.
type Column string

const (
	ColumnHigh Column = "temp_high"
	ColumnLow  Column = "temp_low"
	ColumnAvg  Column = "temp_avg"
)

func ParseColumn(s string) (Column, error) {
	switch c := Column(s); c {
	case ColumnHigh, ColumnLow, ColumnAvg:
		return c, nil
	}
	return "", fmt.Errorf("unknown column %q", s)
}

func (c Column) Value(d models.DailySummary) float64 {
	switch c {
	case ColumnHigh:
		return d.TempHigh
	case ColumnLow:
		return d.TempLow
	default:
		return d.TempAvg
	}
}

type Comparison string

const (
	AtLeast Comparison = ">="
	AtMost  Comparison = "<="
)

func ParseComparison(s string) (Comparison, error) {
	switch c := Comparison(s); c {
	case AtLeast, AtMost:
		return c, nil
	}
	return "", fmt.Errorf("unknown comparison %q", s)
}

// Condition is a single-day predicate such as "temp_low <= -10".
type Condition struct {
	Column     Column
	Comparison Comparison
	Threshold  float64
}

// DefaultCondition selects days with a mean of at least 15 °C.
var DefaultCondition = Condition{Column: ColumnAvg, Comparison: AtLeast, Threshold: 15}

func (c Condition) Match(d models.DailySummary) bool {
	v := c.Column.Value(d)
	if c.Comparison == AtMost {
		return v <= c.Threshold
	}
	return v >= c.Threshold
}

func (c Condition) String() string {
	return fmt.Sprintf("%s %s %.1f", c.Column, c.Comparison, c.Threshold)
}

// Filter keeps the days matching cond, preserving order.
func Filter(days []models.DailySummary, cond Condition) []models.DailySummary {
	out := make([]models.DailySummary, 0)
	for _, d := range days {
		if cond.Match(d) {
			out = append(out, d)
		}
	}
	return out
}

type WindowKind string

const (
	WindowAll   WindowKind = "all"
	WindowYear  WindowKind = "year"
	WindowMonth WindowKind = "month"
	WindowRange WindowKind = "range"
)

// Window selects a historical search period. From and To are inclusive
// calendar days for WindowRange.
type Window struct {
	Kind  WindowKind
	Year  int
	Month time.Month
	From  time.Time
	To    time.Time
}

// ParseWindow builds a Window from a kind and value: "all", "year" with
// "2025", "month" with "2025-02", or "range" with "2025-01-01..2025-01-31".
func ParseWindow(kind, value string) (Window, error) {
	switch WindowKind(kind) {
	case "", WindowAll:
		return Window{Kind: WindowAll}, nil
	case WindowYear:
		t, err := time.Parse("2006", value)
		if err != nil {
			return Window{}, fmt.Errorf("parse year %q: %w", value, err)
		}
		return Window{Kind: WindowYear, Year: t.Year()}, nil
	case WindowMonth:
		t, err := time.Parse("2006-01", value)
		if err != nil {
			return Window{}, fmt.Errorf("parse month %q: %w", value, err)
		}
		return Window{Kind: WindowMonth, Year: t.Year(), Month: t.Month()}, nil
	case WindowRange:
		from, to, err := ParseDateRange(value)
		if err != nil {
			return Window{}, err
		}
		return Window{Kind: WindowRange, From: from, To: to}, nil
	}
	return Window{}, fmt.Errorf("unknown window %q", kind)
}

// ParseDateRange parses "YYYY-MM-DD..YYYY-MM-DD". Reversed bounds are swapped.
func ParseDateRange(s string) (time.Time, time.Time, error) {
	a, b, ok := strings.Cut(s, "..")
	if !ok {
		b = a
	}
	from, err := time.Parse(dateLayout, a)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse start date %q: %w", a, err)
	}
	to, err := time.Parse(dateLayout, b)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse end date %q: %w", b, err)
	}
	if from.After(to) {
		from, to = to, from
	}
	return from, to, nil
}

func (w Window) Contains(date time.Time) bool {
	switch w.Kind {
	case WindowYear:
		return date.Year() == w.Year
	case WindowMonth:
		return date.Year() == w.Year && date.Month() == w.Month
	case WindowRange:
		return !date.Before(w.From) && !date.After(w.To)
	}
	return true
}

func (w Window) String() string {
	switch w.Kind {
	case WindowYear:
		return fmt.Sprintf("%d", w.Year)
	case WindowMonth:
		return fmt.Sprintf("%d-%02d", w.Year, int(w.Month))
	case WindowRange:
		return w.From.Format(dateLayout) + ".." + w.To.Format(dateLayout)
	}
	return "all"
}

// SelectWindow keeps the days inside w, preserving order.
func SelectWindow(days []models.DailySummary, w Window) []models.DailySummary {
	out := make([]models.DailySummary, 0, len(days))
	for _, d := range days {
		if w.Contains(d.Date) {
			out = append(out, d)
		}
	}
	return out
}

const dateLayout = "2006-01-02"
