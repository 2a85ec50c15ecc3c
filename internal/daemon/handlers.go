package daemon

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"pipcast/internal/api"
	"pipcast/internal/fileutil"
	"pipcast/internal/geometry"
	"pipcast/internal/logging"
	"pipcast/internal/progress"
	"pipcast/internal/services"
)

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		LockFilePath:  status.LockFilePath,
		ActiveRenders: status.ActiveRenders,
		MaxConcurrent: status.MaxConcurrent,
		Jobs:          status.Jobs,
		Checks:        api.FromChecks(status.Checks),
	})
}

func (s *apiServer) handleProfiles(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.ProfileListResponse{Profiles: api.FromProfiles(geometry.All())})
}

func (s *apiServer) handleJobs(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.JobListResponse{Jobs: s.jobs.List()})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

// handleRender runs a render and replies once every rendition finished.
func (s *apiServer) handleRender(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	defer u.release()

	sink := &progress.LogSink{Logger: s.log()}
	result, err := s.jobs.Render(r.Context(), u.req, sink)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	status := http.StatusOK
	if len(result.Outputs) == 0 {
		status = http.StatusInternalServerError
	}
	s.writeJSON(w, status, api.FromResult(result))
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	u, err := s.readUpload(w, r)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	job, err := s.jobs.Submit(u.req, u.release)
	if err != nil {
		s.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	w.Header().Set("Location", "/api/jobs/"+job.ID)
	s.writeJSON(w, http.StatusAccepted, api.SubmitResponse{ID: job.ID, Status: job.Status})
}

// handleOutput serves a rendered file by its bare name.
func (s *apiServer) handleOutput(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".mp4" {
		s.writeError(w, http.StatusNotFound, "output not found")
		return
	}
	path := filepath.Join(s.cfg.Paths.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.writeError(w, http.StatusNotFound, "output not found")
		return
	}
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeFile(w, r, path)
}

// writeFailure maps an invocation error to a status code and logs server-side faults.
func (s *apiServer) writeFailure(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(s.log(), "render request failed", "render_request_failed",
			logging.Error(err),
			logging.String("error_class", services.Class(err)),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error(), Class: services.Class(err)})
}

func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, fileutil.ErrTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case services.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
