package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"folio/internal/metrics"
	"folio/internal/store"
	"folio/internal/strategy"
)

// JournalServer serves the run journal HTTP API.
type JournalServer struct {
	runs    store.RunStore
	outDir  string // per-run report directories, <outDir>/<id>-<name>/
	presets *strategy.Registry
	metrics *metrics.Metrics // nil disables /metrics
	log     *slog.Logger
}

// NewJournalServer creates a new journal HTTP server.
func NewJournalServer(
	runs store.RunStore,
	outDir string,
	presets *strategy.Registry,
	m *metrics.Metrics,
	log *slog.Logger,
) *JournalServer {
	if log == nil {
		log = slog.Default()
	}
	return &JournalServer{runs: runs, outDir: outDir, presets: presets, metrics: m, log: log}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *JournalServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleRun)
	mux.HandleFunc("GET /api/runs/{id}/fills", s.handleFills)
	mux.HandleFunc("GET /api/runs/{id}/history", s.handleHistory)
	mux.HandleFunc("GET /api/presets", s.handlePresets)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
}

// Handler returns an http.Handler with CORS middleware.
func (s *JournalServer) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// runID parses the {id} path value, writing a 400 when it is malformed.
func runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid run id")
		return 0, false
	}
	return id, true
}

// lookupError maps a journal error to a status code.
func (s *JournalServer) lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.log.Error("journal query failed", "error", err)
	writeError(w, http.StatusInternalServerError, "journal unavailable")
}

func (s *JournalServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	out := make([]RunJSON, len(runs))
	for i, run := range runs {
		out[i] = convertRun(run)
	}
	writeJSON(w, out)
}

func (s *JournalServer) handleRun(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	run, err := s.runs.GetRun(r.Context(), id)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	writeJSON(w, RunDetailJSON{RunJSON: convertRun(*run), Config: run.Config, Report: run.Report})
}

func (s *JournalServer) handleFills(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	if _, err := s.runs.GetRun(r.Context(), id); err != nil {
		s.lookupError(w, err)
		return
	}
	fills, err := s.runs.ListFills(r.Context(), id)
	if err != nil {
		s.lookupError(w, err)
		return
	}
	out := make([]FillJSON, len(fills))
	for i, f := range fills {
		out[i] = convertFill(f)
	}
	writeJSON(w, out)
}

func (s *JournalServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := runID(w, r)
	if !ok {
		return
	}
	path, err := s.historyPath(id)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	rows, err := store.ReadHistory(path)
	if err != nil {
		s.log.Error("reading history", "run", id, "error", err)
		writeError(w, http.StatusInternalServerError, "history unreadable")
		return
	}
	out := make([]HistoryJSON, len(rows))
	for i, h := range rows {
		out[i] = convertHistory(h)
	}
	writeJSON(w, out)
}

// historyPath finds the history file of run id under the output directory.
func (s *JournalServer) historyPath(id int64) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.outDir, strconv.FormatInt(id, 10)+"-*", "history.parquet"))
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if _, err := os.Stat(m); err == nil {
			return m, nil
		}
	}
	return "", errors.New("no history exported for run " + strconv.FormatInt(id, 10))
}

func (s *JournalServer) handlePresets(w http.ResponseWriter, _ *http.Request) {
	out := []PresetJSON{}
	if s.presets != nil {
		for _, name := range s.presets.List() {
			p, _ := s.presets.Get(name)
			out = append(out, convertPreset(p))
		}
	}
	writeJSON(w, out)
}
