package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rahul/autopilot/internal/observability"
	"github.com/rahul/autopilot/internal/plan"
	"github.com/rahul/autopilot/internal/report"
	"github.com/rahul/autopilot/internal/store"
)

const maxBody = 1 << 20

// PlanExecutor runs instructions and ready-made plans. *agent.Orchestrator
// implements it.
type PlanExecutor interface {
	ExecuteTask(ctx context.Context, instruction string, sink observability.Sink) (*report.Report, error)
	ExecutePlan(ctx context.Context, p *plan.TaskPlan, sink observability.Sink) (*report.Report, error)
}

// RunReader exposes run history. *store.RunStore implements it.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*store.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*store.Run, error)
}

// HTTPServer serves the JSON API.
type HTTPServer struct {
	Executor PlanExecutor
	Runs     RunReader
	Logger   *slog.Logger
	srv      *http.Server
}

func NewHTTPServer(addr string, exec PlanExecutor, runs RunReader, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &HTTPServer{
		Executor: exec,
		Runs:     runs,
		Logger:   logger.With("gateway", "http"),
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/execute", s.handleExecute)
	mux.HandleFunc("POST /api/plans/run", s.handleRunPlan)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("HTTP server listening.", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}

type executeRequest struct {
	Instruction string `json:"instruction"`
}

type executeResponse struct {
	Success bool           `json:"success"`
	Result  *report.Report `json:"result"`
	Logs    []string       `json:"logs"`
}

type errorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message,omitempty"`
	Logs    []string `json:"logs,omitempty"`
}

func (s *HTTPServer) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	if req.Instruction == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Instruction is required"})
		return
	}

	rec := observability.NewRecorder()
	rep, err := s.Executor.ExecuteTask(r.Context(), req.Instruction, rec)
	s.respond(w, rep, err, rec)
}

func (s *HTTPServer) handleRunPlan(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid request body", Message: err.Error()})
		return
	}
	p, err := plan.Parse(data, plan.FormatJSON)
	if err == nil {
		err = p.Validate()
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid plan", Message: err.Error()})
		return
	}

	rec := observability.NewRecorder()
	rep, err := s.Executor.ExecutePlan(r.Context(), p, rec)
	s.respond(w, rep, err, rec)
}

func (s *HTTPServer) respond(w http.ResponseWriter, rep *report.Report, err error, rec *observability.Recorder) {
	if err != nil {
		s.Logger.Error("Failed to execute task.", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to execute task",
			Message: err.Error(),
			Logs:    rec.Messages(),
		})
		return
	}
	writeJSON(w, http.StatusOK, executeResponse{Success: true, Result: rep, Logs: rec.Messages()})
}

func (s *HTTPServer) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid limit"})
			return
		}
		limit = n
	}
	runs, err := s.Runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.Logger.Error("Failed to list runs.", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to list runs", Message: err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *HTTPServer) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.Runs.GetRun(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Run not found"})
	case err != nil:
		s.Logger.Error("Failed to load run.", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to load run", Message: err.Error()})
	default:
		writeJSON(w, http.StatusOK, run)
	}
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, observability.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
