/*
handlers.go - HTTP API handlers for the attendance engine

PURPOSE:
  Exposes roster management, asynchronous reconciliation jobs and the
  in-memory session over REST. Handlers parse and validate the request,
  delegate to the store, pipeline or session, and serialize the result.

ENDPOINTS:
  Roster:
    GET    /api/students               List students
    POST   /api/students               Create student
    GET    /api/students/{id}          Get student
    PUT    /api/students/{id}          Update student
    DELETE /api/students/{id}          Delete student
    GET    /api/periods                List periods
    POST   /api/periods                Create period
    GET    /api/periods/{id}           Get period
    PUT    /api/periods/{id}           Update period
    DELETE /api/periods/{id}           Delete period

  Reconciliation:
    POST   /api/reconciliations        Upload "absence" + "access" PDFs (multipart)
    GET    /api/reconciliations        List jobs
    GET    /api/reconciliations/{id}   Poll one job
    GET    /api/runs                   Run history (?limit=)

  Session:
    GET    /api/session                Days reconciled so far
    GET    /api/session/summary        Tally across all days
    GET    /api/session/days/{date}    One day (dd-mm-yyyy)
    DELETE /api/session                Start over

  Ops:
    GET    /api/health                 Store ping + roster counts
    GET    /metrics                    Prometheus

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Duplicate registration id
  - 503: Job queue full, shutting down, or store unreachable
  - 501: Store cannot bulk import
  - 500: Internal errors

  A job whose reports are rejected still answers 202; the failure shows
  up when the job is polled.

SECURITY NOTE:
  No authentication. Single-school tool, meant for a local network.

SEE ALSO:
  - dto.go: Request/response data structures
  - scheduler.go: Job runner
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/warp/attendance-engine/attendance"
	"github.com/warp/attendance-engine/logging"
	"github.com/warp/attendance-engine/pipeline"
	"github.com/warp/attendance-engine/report"
)

// maxUploadBytes bounds one multipart request (both PDFs).
const maxUploadBytes = 32 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the API needs.
type Store interface {
	attendance.RosterStore
	attendance.RunStore
}

// Config holds the handler's dependencies.
type Config struct {
	Store   Store
	Session *attendance.Session
	// Reports writes workbooks after each successful job; nil disables them.
	Reports *report.Writer
	Metrics *Metrics
	Log     zerolog.Logger
	Workers int
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    Store
	Session  *attendance.Session
	Pipeline *pipeline.Pipeline
	Reports  *report.Writer
	Jobs     *JobRunner
	Metrics  *Metrics
	Log      zerolog.Logger

	validate *validator.Validate
}

// NewHandler wires the pipeline and job runner. Call h.Jobs.Start before
// serving and h.Jobs.Stop on shutdown.
func NewHandler(cfg Config) *Handler {
	if cfg.Session == nil {
		cfg.Session = attendance.NewSession()
	}
	h := &Handler{
		Store:    cfg.Store,
		Session:  cfg.Session,
		Pipeline: pipeline.New(cfg.Store, cfg.Session, logging.LineLogger(cfg.Log)),
		Reports:  cfg.Reports,
		Metrics:  cfg.Metrics,
		Log:      cfg.Log,
		validate: validator.New(),
	}
	h.Jobs = NewJobRunner(cfg.Workers, h.process)
	h.Jobs.Metrics = cfg.Metrics
	h.Jobs.Log = cfg.Log
	return h
}

// process runs one uploaded pair through the pipeline and writes reports.
func (h *Handler) process(ctx context.Context, u Upload) (JobResult, error) {
	start := time.Now()
	out, err := h.Pipeline.RunBytes(ctx, u.AbsenceName, u.Absence, u.AccessName, u.Access)
	h.Metrics.ObserveRun(out.Run, out.Result, time.Since(start))

	res := JobResult{RunID: out.Run.ID}
	if err != nil {
		return res, err
	}
	res.Date = out.Result.Label()
	res.Warnings = out.Result.Warnings
	h.Metrics.setSessionDays(h.Session.Len())

	if h.Reports != nil {
		paths, err := h.Reports.Write(out.Result)
		if err != nil {
			return res, fmt.Errorf("reports: %w", err)
		}
		res.Reports = &paths
	}
	h.Log.Info().
		Str("date", res.Date).
		Int("anomalies", len(out.Result.Anomalies)).
		Int("warnings", len(res.Warnings)).
		Msg("reconciled")
	return res, nil
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns every student, ordered by section then name.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}
	if students == nil {
		students = []attendance.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

// GetStudent returns one student by registration id.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s, err := h.Store.GetStudent(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "Student not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// CreateStudent adds a student to the roster.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.RegistrationID == "" {
		writeValidationError(w, errors.New("registration_id is required"), nil)
		return
	}

	s := attendance.Student{RegistrationID: req.RegistrationID, FullName: req.FullName, Section: req.Section}
	if err := h.Store.CreateStudent(r.Context(), s); err != nil {
		writeStoreError(w, "Failed to create student", err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// UpdateStudent replaces a student's name and section.
func (h *Handler) UpdateStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if !h.decode(w, r, &req) {
		return
	}

	s := attendance.Student{RegistrationID: chi.URLParam(r, "id"), FullName: req.FullName, Section: req.Section}
	if err := h.Store.UpdateStudent(r.Context(), s); err != nil {
		writeStoreError(w, "Failed to update student", err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteStudent removes a student.
func (h *Handler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteStudent(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeStoreError(w, "Failed to delete student", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// PERIOD HANDLERS
// =============================================================================

// ListPeriods returns every period, by section, weekday and start.
func (h *Handler) ListPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Store.ListPeriods(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list periods", err)
		return
	}
	dtos := make([]PeriodDTO, len(periods))
	for i, p := range periods {
		dtos[i] = toPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetPeriod returns one period.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	p, err := h.Store.GetPeriod(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get period", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "Period not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(*p))
}

// CreatePeriod schedules a class period.
func (h *Handler) CreatePeriod(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := req.toPeriod(0)
	if err != nil {
		writeValidationError(w, err, nil)
		return
	}
	if err := h.Store.CreatePeriod(r.Context(), &p); err != nil {
		writeStoreError(w, "Failed to create period", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPeriodDTO(p))
}

// UpdatePeriod replaces a period.
func (h *Handler) UpdatePeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	var req PeriodRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := req.toPeriod(id)
	if err != nil {
		writeValidationError(w, err, nil)
		return
	}
	if err := h.Store.UpdatePeriod(r.Context(), p); err != nil {
		writeStoreError(w, "Failed to update period", err)
		return
	}
	writeJSON(w, http.StatusOK, toPeriodDTO(p))
}

// DeletePeriod removes a period.
func (h *Handler) DeletePeriod(w http.ResponseWriter, r *http.Request) {
	id, ok := periodID(w, r)
	if !ok {
		return
	}
	if err := h.Store.DeletePeriod(r.Context(), id); err != nil {
		writeStoreError(w, "Failed to delete period", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func periodID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period id", err)
		return 0, false
	}
	return id, true
}

// =============================================================================
// RECONCILIATION HANDLERS
// =============================================================================

// SubmitReconciliation queues an uploaded pair of PDFs.
// POST /api/reconciliations (multipart: absence, access)
func (h *Handler) SubmitReconciliation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart upload", err)
		return
	}

	var u Upload
	var err error
	if u.AbsenceName, u.Absence, err = formFile(r, "absence"); err != nil {
		writeError(w, http.StatusBadRequest, "Missing absence report", err)
		return
	}
	if u.AccessName, u.Access, err = formFile(r, "access"); err != nil {
		writeError(w, http.StatusBadRequest, "Missing access log", err)
		return
	}

	job, err := h.Jobs.Submit(u)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Cannot accept reconciliation now", err)
		return
	}
	w.Header().Set("Location", "/api/reconciliations/"+job.ID)
	writeJSON(w, http.StatusAccepted, job.DTO())
}

func formFile(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", field, err)
	}
	return hdr.Filename, content, nil
}

// GetJob returns the state of one job.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := h.Jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, job.DTO())
}

// ListJobs returns every kept job, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := h.Jobs.List()
	dtos := make([]JobDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = j.DTO()
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRuns returns run history, newest first.
// GET /api/runs?limit=20
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}
	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []attendance.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// GetSession lists the reconciled days in calendar order.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionDTO{Days: nonNil(h.Session.Labels())})
}

// GetSessionDay returns one reconciled day.
func (h *Handler) GetSessionDay(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "date")
	if _, err := attendance.ParseDateLabel(label); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date (use dd-mm-yyyy)", err)
		return
	}
	day, ok := h.Session.Get(label)
	if !ok {
		writeError(w, http.StatusNotFound, "Day not in session", nil)
		return
	}
	writeJSON(w, http.StatusOK, toDayResultDTO(day))
}

// GetSessionSummary returns the tally summed over every day.
func (h *Handler) GetSessionSummary(w http.ResponseWriter, r *http.Request) {
	entries := h.Session.Summary()
	if entries == nil {
		entries = []attendance.TallyEntry{}
	}
	writeJSON(w, http.StatusOK, SummaryDTO{Days: nonNil(h.Session.Labels()), Entries: entries})
}

// ResetSession forgets every reconciled day. Workbooks on disk are kept.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.Session.Reset()
	h.Metrics.setSessionDays(0)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// HEALTH
// =============================================================================

// Health pings the store and reports roster size. An empty roster is
// reported but is not an error.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dto := HealthDTO{Status: "ok"}

	if p, ok := h.Store.(interface{ Ping(context.Context) error }); ok {
		if err := p.Ping(ctx); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unreachable", err)
			return
		}
	}
	if d, ok := h.Store.(interface{ Driver() string }); ok {
		dto.Driver = d.Driver()
	}

	var err error
	if dto.Students, err = h.Store.CountStudents(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count students", err)
		return
	}
	if dto.Periods, err = h.Store.CountPeriods(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count periods", err)
		return
	}
	if dto.Students == 0 || dto.Periods == 0 {
		dto.Warning = "roster is incomplete; reconciliation will find no matches"
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body and validates it, writing the error response
// itself when it returns false.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeValidationError(w, err, fields)
			return false
		}
		writeValidationError(w, err, nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeValidationError(w http.ResponseWriter, err error, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "Validation failed",
		Details: err.Error(),
		Fields:  fields,
	})
}

// writeStoreError maps roster store errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case attendance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, attendance.ErrDuplicateStudent):
		writeError(w, http.StatusConflict, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
