package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/stationhistory/internal/analysis"
)

// stationIDs reads ?stations=A,B (or repeated). Empty means every station.
func stationIDs(r *http.Request) []string {
	var ids []string
	for _, v := range r.URL.Query()["stations"] {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// windowParam reads ?window=month&value=2025-02.
func windowParam(r *http.Request) (analysis.Window, error) {
	q := r.URL.Query()
	return analysis.ParseWindow(q.Get("window"), q.Get("value"))
}

// conditionParam reads ?column=temp_low&cmp=<=&threshold=-10, falling back to
// the default condition per field.
func conditionParam(r *http.Request) (analysis.Condition, error) {
	q := r.URL.Query()
	cond := analysis.DefaultCondition

	if v := q.Get("column"); v != "" {
		c, err := analysis.ParseColumn(v)
		if err != nil {
			return cond, err
		}
		cond.Column = c
	}
	if v := q.Get("cmp"); v != "" {
		c, err := analysis.ParseComparison(v)
		if err != nil {
			return cond, err
		}
		cond.Comparison = c
	}
	if v := q.Get("threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cond, fmt.Errorf("parse threshold %q: %w", v, err)
		}
		cond.Threshold = f
	}
	return cond, nil
}

func intParam(r *http.Request, name string, def, min int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: %w", name, v, err)
	}
	if n < min {
		return 0, fmt.Errorf("%s must be at least %d", name, min)
	}
	return n, nil
}

func timeRangeParam(r *http.Request) (analysis.TimeRange, error) {
	q := r.URL.Query()
	return analysis.ParseTimeRange(q.Get("range"), q.Get("dates"))
}
