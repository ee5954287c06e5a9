package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/stationhistory/internal/dashboard"
	"github.com/lox/stationhistory/internal/store"
)

type Server struct {
	service *dashboard.Service
	store   *store.Store
	addr    string
}

// NewServer creates the JSON API server. st may be nil, in which case the
// health endpoint reports no cache statistics.
func NewServer(service *dashboard.Service, st *store.Store, addr string) *Server {
	return &Server{
		service: service,
		store:   st,
		addr:    addr,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/stations", s.handleStations)
	mux.HandleFunc("/api/years", s.handleYears)
	mux.HandleFunc("/api/daily", s.handleDaily)
	mux.HandleFunc("/api/records", s.handleRecords)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/periods", s.handlePeriods)
	mux.HandleFunc("/api/hellmann", s.handleHellmann)
	mux.HandleFunc("/api/extremes", s.handleExtremes)
	mux.HandleFunc("/api/rollup", s.handleRollup)
	mux.HandleFunc("/api/benchmark", s.handleBenchmark)
	mux.HandleFunc("/api/normals", s.handleNormals)
	mux.HandleFunc("/api/export/records.csv", s.handleExportRecords)
	mux.HandleFunc("/api/export/daily.csv", s.handleExportDaily)
	mux.HandleFunc("/api/export/periods.csv", s.handleExportPeriods)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on %s", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status        string          `json:"status"`
	SchemaVersion int             `json:"schema_version"`
	CachedFiles   int             `json:"cached_files"`
	Fetches       []FetchHealth   `json:"fetches"`
	RecentErrors  []FetchRunError `json:"recent_errors,omitempty"`
	Errors        []string        `json:"errors,omitempty"`
}

type FetchHealth struct {
	Date        string `json:"date"`
	Source      string `json:"source"`
	TotalRuns   int    `json:"total_runs"`
	FailedRuns  int    `json:"failed_runs"`
	RowsDropped int64  `json:"rows_dropped"`
}

type FetchRunError struct {
	StartedAt time.Time `json:"started_at"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Error     string    `json:"error"`
}

// handleHealth reports "degraded" when the last day saw only failed fetches
// for a source.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{Status: "ok", Fetches: []FetchHealth{}}

	if s.store != nil {
		if v, err := s.store.MigrationVersion(); err != nil {
			health.Errors = append(health.Errors, "migration version: "+err.Error())
		} else {
			health.SchemaVersion = v
		}

		if stats, err := s.store.GetSourceFileStats(); err != nil {
			health.Errors = append(health.Errors, "source file stats: "+err.Error())
		} else {
			health.CachedFiles = stats.TotalCount
		}

		if summaries, err := s.store.GetFetchHealth(1); err != nil {
			health.Errors = append(health.Errors, "fetch health: "+err.Error())
		} else {
			for _, h := range summaries {
				health.Fetches = append(health.Fetches, FetchHealth{
					Date:        h.Date,
					Source:      h.Source,
					TotalRuns:   h.TotalRuns,
					FailedRuns:  h.FailedRuns,
					RowsDropped: h.TotalDropped,
				})
				if h.SuccessRuns == 0 && h.FailedRuns > 0 {
					health.Status = "degraded"
				}
			}
		}

		if runs, err := s.store.GetRecentFetchErrors(5); err != nil {
			health.Errors = append(health.Errors, "recent errors: "+err.Error())
		} else {
			for _, run := range runs {
				health.RecentErrors = append(health.RecentErrors, FetchRunError{
					StartedAt: run.StartedAt,
					Source:    run.Source,
					Target:    run.Target,
					Error:     run.ErrorMessage.String,
				})
			}
		}
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status == "error" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}
