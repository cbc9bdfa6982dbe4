package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"audio-notes-go/internal/jobs"
	"audio-notes-go/internal/logger"
	"audio-notes-go/internal/pipeline"
	"audio-notes-go/internal/report"
	"audio-notes-go/internal/storage"
	"audio-notes-go/internal/types"
)

// envelope is the response shape every JSON endpoint uses. Artifact downloads
// and the workbook export are served verbatim instead.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server exposes the pipeline over HTTP. It holds no state of its own; every
// request is answered from the registry, the store or the orchestrator.
type Server struct {
	orch      *pipeline.Orchestrator
	registry  *jobs.Registry
	store     *storage.Store
	report    *report.Builder
	log       *logger.Logger
	maxUpload int64
}

func NewServer(orch *pipeline.Orchestrator, registry *jobs.Registry, store *storage.Store, reports *report.Builder, maxUpload int64, log *logger.Logger) *Server {
	return &Server{
		orch:      orch,
		registry:  registry,
		store:     store,
		report:    reports,
		log:       log,
		maxUpload: maxUpload,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /jobs", s.handleCreateJob)
	mux.HandleFunc("GET /jobs", s.handleListJobs)
	mux.HandleFunc("GET /jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /jobs/{id}/artifacts/{stage}", s.handleGetArtifact)
	mux.HandleFunc("POST /jobs/{id}/retry", s.handleRetry)
	mux.HandleFunc("POST /jobs/{id}/cancel", s.handleCancel)
	mux.HandleFunc("DELETE /jobs/{id}", s.handleDeleteJob)
	mux.HandleFunc("GET /report.xlsx", s.handleReport)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.log.WithRequest(r).Info("health check")
	fmt.Fprint(w, "ok")
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "create_job")

	// The store enforces the exact byte limit; this only caps what the
	// multipart parser will buffer. The slack covers form framing.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, reqLog, fmt.Errorf("%w: multipart field %q is required", types.ErrInvalidInput, "file"))
		return
	}
	defer file.Close()

	job, err := s.orch.CreateJob(pipeline.Submission{
		Filename: header.Filename,
		Language: r.FormValue("language"),
		Reader:   file,
	})
	if err != nil {
		s.respondError(w, reqLog, err)
		return
	}

	reqLog.WithField("job_id", job.ID).WithField("filename", job.Filename).Info("upload accepted")
	s.respond(w, reqLog, http.StatusCreated, "job accepted", job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "list_jobs")
	list := s.registry.List()
	s.respond(w, reqLog, http.StatusOK, fmt.Sprintf("%d jobs", len(list)), list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get_job")
	job, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		s.respondError(w, reqLog, err)
		return
	}
	s.respond(w, reqLog, http.StatusOK, string(job.State), job)
}

func (s *Server) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "get_artifact")

	stage, ok := parseStage(r.PathValue("stage"))
	if !ok {
		s.respondError(w, reqLog, fmt.Errorf("%w: unknown artifact %q", types.ErrInvalidInput, r.PathValue("stage")))
		return
	}
	id := r.PathValue("id")
	if _, err := s.registry.Get(id); err != nil {
		s.respondError(w, reqLog, err)
		return
	}

	data, err := s.store.RawArtifact(stage, id)
	if err != nil {
		s.respondError(w, reqLog, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(data); err != nil {
		reqLog.WithError(err).Error("failed to write artifact")
	}
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "retry")

	full, _ := strconv.ParseBool(r.URL.Query().Get("full"))
	job, err := s.orch.Retry(r.PathValue("id"), full)
	if err != nil {
		s.respondError(w, reqLog, err)
		return
	}

	message := "job queued from checkpoint"
	if full {
		message = "job queued for full re-run"
	}
	reqLog.WithField("job_id", job.ID).WithField("full", full).Info("retry accepted")
	s.respond(w, reqLog, http.StatusAccepted, message, job)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "cancel")

	job, err := s.orch.Cancel(r.PathValue("id"))
	if err != nil {
		s.respondError(w, reqLog, err)
		return
	}

	message := "job cancelled"
	if job.State != types.StateCancelled {
		message = "cancellation takes effect at the next stage boundary"
	}
	reqLog.WithField("job_id", job.ID).WithField("state", string(job.State)).Info("cancel accepted")
	s.respond(w, reqLog, http.StatusAccepted, message, job)
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "delete_job")

	id := r.PathValue("id")
	if err := s.orch.Purge(id); err != nil {
		s.respondError(w, reqLog, err)
		return
	}
	reqLog.WithField("job_id", id).Info("job purged")
	s.respond(w, reqLog, http.StatusOK, "job purged", nil)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	reqLog := s.log.WithRequest(r).WithField("handler", "report")

	// Assembled in memory first so an export failure still gets a clean
	// JSON error instead of a half-written workbook.
	var buf bytes.Buffer
	if err := s.report.WriteTo(&buf, s.registry.List()); err != nil {
		s.respondError(w, reqLog, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="audio-notes-report.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		reqLog.WithError(err).Error("failed to write workbook")
	}
}

func parseStage(name string) (types.Stage, bool) {
	for _, stage := range types.Stages {
		if string(stage) == name {
			return stage, true
		}
	}
	return "", false
}

func (s *Server) respond(w http.ResponseWriter, log *logrus.Entry, status int, message string, data any) {
	writeJSON(w, log, status, envelope{Success: true, Message: message, Data: data})
}

func (s *Server) respondError(w http.ResponseWriter, log *logrus.Entry, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
	} else {
		log.WithError(err).Warn("request rejected")
	}
	writeJSON(w, log, status, envelope{Success: false, Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, log *logrus.Entry, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

// statusFor maps the error taxonomy onto HTTP statuses. Specific sentinels
// first, then the class fallback.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, types.ErrJobNotFound), errors.Is(err, fs.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, types.ErrUploadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, types.ErrInvalidInput),
		errors.Is(err, types.ErrInvalidJobID),
		errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrJobBusy),
		errors.Is(err, types.ErrJobExists),
		errors.Is(err, types.ErrInvalidTransition),
		errors.Is(err, types.ErrCorruptArtifact):
		return http.StatusConflict
	case errors.Is(err, types.ErrQueueFull), errors.Is(err, types.ErrPipelineClosed):
		return http.StatusServiceUnavailable
	}
	switch types.Classify(err) {
	case types.ErrorClassInput:
		return http.StatusBadRequest
	case types.ErrorClassTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
