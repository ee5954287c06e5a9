package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/lox/stationhistory/internal/analysis"
	"github.com/lox/stationhistory/internal/dashboard"
	"github.com/lox/stationhistory/internal/export"
	"github.com/lox/stationhistory/internal/models"
)

func writeJSON(w http.ResponseWriter, data any, advisories []models.Advisory) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(Response{Data: data, Advisories: AdvisoryViews(advisories)}); err != nil {
		log.Printf("api: write response: %v", err)
	}
}

// load runs the pipeline for the requested stations. It writes the error
// response itself and returns nil when the request cannot be served.
func (s *Server) load(w http.ResponseWriter, r *http.Request) *dashboard.Dataset {
	ds, err := s.service.Load(r.Context(), stationIDs(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	return ds
}

// loadWindow loads the dataset and narrows its days to the requested window.
func (s *Server) loadWindow(w http.ResponseWriter, r *http.Request) (*dashboard.Dataset, analysis.Window, []models.DailySummary) {
	window, err := windowParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, window, nil
	}
	ds := s.load(w, r)
	if ds == nil {
		return nil, window, nil
	}
	return ds, window, analysis.SelectWindow(ds.Daily, window)
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations := s.service.Stations()
	out := make([]StationView, 0, len(stations))
	for _, st := range stations {
		out = append(out, StationView{StationID: st.StationID, Name: st.Name})
	}
	writeJSON(w, out, nil)
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.service.Years(r.Context(), stationIDs(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, years, nil)
}

type DailyResponse struct {
	Window string                       `json:"window"`
	Days   []DayView                    `json:"days"`
	Years  map[string][]YearOutcomeView `json:"years"`
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	ds, window, days := s.loadWindow(w, r)
	if ds == nil {
		return
	}

	years := make(map[string][]YearOutcomeView, len(ds.Years))
	for id, outcomes := range ds.Years {
		years[id] = YearOutcomeViews(outcomes)
	}
	writeJSON(w, DailyResponse{Window: window.String(), Days: DayViews(days), Years: years}, ds.Advisories)
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	tr, err := timeRangeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ds := s.load(w, r)
	if ds == nil {
		return
	}
	records := analysis.RecordRange(ds.Records, tr, s.service.Clock(), s.service.Location())
	writeJSON(w, RecordViews(records), ds.Advisories)
}

type SearchResponse struct {
	Window    string    `json:"window"`
	Condition string    `json:"condition"`
	Days      []DayView `json:"days"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	cond, err := conditionParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ds, window, days := s.loadWindow(w, r)
	if ds == nil {
		return
	}
	matched := analysis.Filter(days, cond)
	writeJSON(w, SearchResponse{Window: window.String(), Condition: cond.String(), Days: DayViews(matched)}, ds.Advisories)
}

type PeriodsResponse struct {
	Window    string       `json:"window"`
	Condition string       `json:"condition"`
	MinDays   int          `json:"min_days"`
	Periods   []PeriodView `json:"periods"`
}

// periods resolves the consecutive-period request shared by the JSON and
// CSV endpoints.
func (s *Server) periods(w http.ResponseWriter, r *http.Request) (*dashboard.Dataset, PeriodsResponse, []models.ConsecutivePeriod) {
	cond, err := conditionParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, PeriodsResponse{}, nil
	}
	minDays, err := intParam(r, "min_days", analysis.DefaultMinDays, 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, PeriodsResponse{}, nil
	}
	ds, window, days := s.loadWindow(w, r)
	if ds == nil {
		return nil, PeriodsResponse{}, nil
	}

	periods := analysis.ConsecutivePeriods(analysis.Filter(days, cond), minDays, cond.Column)
	resp := PeriodsResponse{
		Window:    window.String(),
		Condition: cond.String(),
		MinDays:   minDays,
		Periods:   PeriodViews(periods),
	}
	return ds, resp, periods
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	ds, resp, _ := s.periods(w, r)
	if ds == nil {
		return
	}
	writeJSON(w, resp, ds.Advisories)
}

func (s *Server) handleHellmann(w http.ResponseWriter, r *http.Request) {
	ds, window, days := s.loadWindow(w, r)
	if ds == nil {
		return
	}
	writeJSON(w, NewHellmannView(window, analysis.Hellmann(days)), ds.Advisories)
}

func (s *Server) handleExtremes(w http.ResponseWriter, r *http.Request) {
	topN, err := intParam(r, "top_n", analysis.DefaultTopN, 1)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ds := s.load(w, r)
	if ds == nil {
		return
	}
	writeJSON(w, RankingViews(analysis.Extremes(ds.Daily, topN)), ds.Advisories)
}

func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	var period *analysis.Period
	if v := r.URL.Query().Get("period"); v != "" {
		p, err := analysis.ParsePeriod(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		period = &p
	}
	ds := s.load(w, r)
	if ds == nil {
		return
	}

	resp := RollupResponse{
		Stations:        []RollupView{},
		AvailableMonths: PeriodLabels(analysis.AvailableMonths(ds.Daily)),
		AvailableYears:  PeriodLabels(analysis.AvailableYears(ds.Daily)),
	}
	advisories := ds.Advisories
	if period != nil {
		resp.Period = period.String()
		resp.Stations = RollupViews(analysis.Rollup(ds.Daily, *period))
		if len(resp.Stations) == 0 {
			advisories = append(advisories, models.Advisory{
				Level:   "info",
				Message: fmt.Sprintf("no data for %s", period),
			})
		}
	}
	writeJSON(w, resp, advisories)
}

func (s *Server) handleBenchmark(w http.ResponseWriter, r *http.Request) {
	ds, _, days := s.loadWindow(w, r)
	if ds == nil {
		return
	}

	res, err := s.service.Benchmark(r.Context(), days, r.URL.Query().Get("normal"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	resp := BenchmarkResponse{
		NormalPeriod: res.Period.Label,
		Status:       string(res.Outcome.Status),
		Reason:       res.Outcome.Reason,
		Days:         DayViews(res.Days),
	}
	writeJSON(w, resp, append(ds.Advisories, res.Advisories...))
}

func (s *Server) handleNormals(w http.ResponseWriter, r *http.Request) {
	res := s.service.Normals(r.Context())
	resp := NormalsResponse{
		Status:  string(res.Outcome.Status),
		Reason:  res.Outcome.Reason,
		Periods: NormalViews(res.Periods),
	}
	writeJSON(w, resp, res.Advisories)
}

func csvHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

func (s *Server) handleExportRecords(w http.ResponseWriter, r *http.Request) {
	tr, err := timeRangeParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ds := s.load(w, r)
	if ds == nil {
		return
	}
	records := analysis.RecordRange(ds.Records, tr, s.service.Clock(), s.service.Location())

	csvHeaders(w, "records.csv")
	if err := export.WriteRecords(w, records); err != nil {
		log.Printf("api: export records: %v", err)
	}
}

func (s *Server) handleExportDaily(w http.ResponseWriter, r *http.Request) {
	ds, _, days := s.loadWindow(w, r)
	if ds == nil {
		return
	}

	csvHeaders(w, "daily.csv")
	if err := export.WriteDaily(w, days); err != nil {
		log.Printf("api: export daily: %v", err)
	}
}

func (s *Server) handleExportPeriods(w http.ResponseWriter, r *http.Request) {
	ds, _, periods := s.periods(w, r)
	if ds == nil {
		return
	}

	csvHeaders(w, "periods.csv")
	if err := export.WritePeriods(w, periods); err != nil {
		log.Printf("api: export periods: %v", err)
	}
}
