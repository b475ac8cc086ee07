package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/pdfloc/internal/job"
	"github.com/dgallion1/pdfloc/internal/pipeline"
	"github.com/dgallion1/pdfloc/internal/report"
)

const (
	headerAnnotations = "X-Pdfloc-Annotations"
	headerFailed      = "X-Pdfloc-Failed"
)

// handleConvert resolves every job and returns the report in the requested
// format (json by default).
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	format, err := report.ParseFormat(queryOr(r, "format", string(report.FormatJSON)))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := s.readUpload(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	log := s.log.With("filename", u.filename, "jobs", len(u.Results))

	results := u.Results
	if len(u.Jobs) > 0 {
		converted, err := pipeline.Convert(r.Context(), u.data, u.Jobs, s.orchestrator.Options(), log)
		s.record("convert", start, err)
		if err != nil {
			log.Error("conversion failed", "kind", job.Kind(err), "error", err)
			jsonError(w, fmt.Sprintf("%s: %v", job.Kind(err), err), statusFor(err))
			return
		}
		results = u.Merge(converted)
	}

	switch format {
	case report.FormatText:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	case report.FormatDOCX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", strings.TrimSuffix(u.filename, ".pdf")+".docx"))
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set(headerFailed, strconv.Itoa(failed(results)))
	if err := report.Write(w, format, results); err != nil {
		log.Error("write report", "error", err)
	}
}

// handleAnnotate returns the annotated document. mode=update returns only
// the incremental update; the default returns the whole file.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	full, err := fullMode(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	u, err := s.readUpload(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	log := s.log.With("filename", u.filename, "jobs", len(u.Results))

	if len(u.Jobs) == 0 {
		writeEntries(w, http.StatusUnprocessableEntity, u.Results)
		return
	}

	ann, err := pipeline.Annotate(r.Context(), u.data, u.Jobs, s.orchestrator.Options(), log)
	s.record("annotate", start, err)
	if errors.Is(err, pipeline.ErrNothingToAnnotate) {
		writeEntries(w, http.StatusUnprocessableEntity, u.Merge(ann.Results))
		return
	}
	if err != nil {
		log.Error("annotation failed", "kind", job.Kind(err), "error", err)
		jsonError(w, fmt.Sprintf("%s: %v", job.Kind(err), err), statusFor(err))
		return
	}
	results := u.Merge(ann.Results)

	out := ann.Update
	if full {
		out = make([]byte, 0, len(u.data)+len(ann.Update))
		out = append(append(out, u.data...), ann.Update...)
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", u.filename))
	w.Header().Set(headerAnnotations, strconv.Itoa(ann.Written.Annotations))
	w.Header().Set(headerFailed, strconv.Itoa(failed(results)))
	w.Write(out)
}

// handleSubmitJob queues an annotation run and returns its id.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	full, err := fullMode(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	u, err := s.readUpload(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if len(u.Jobs) == 0 {
		writeEntries(w, http.StatusUnprocessableEntity, u.Results)
		return
	}

	j := pipeline.NewJob(u.filename, u.data, u.Jobs, full)
	for _, res := range u.Results {
		if res.Failed() {
			j.AddError(fmt.Sprintf("%s: %s: %v", res.Job.Input, job.Kind(res.Err), res.Err))
		}
	}
	if err := s.orchestrator.Submit(j); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	s.log.Info("job submitted", "job_id", j.ID, "filename", u.filename, "jobs", len(u.Jobs))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{
		"job_id":   j.ID,
		"status":   string(pipeline.StatusQueued),
		"poll_url": fmt.Sprintf("/api/jobs/%s/status", j.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	j := s.orchestrator.GetJob(jobID)
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	j := s.orchestrator.GetJob(jobID)
	if j == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out, ok := j.Output()
	if !ok {
		snap := j.Snapshot()
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", j.Filename))
	w.Write(out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"queue_depth": s.orchestrator.QueueDepth(),
	}
	if s.stats != nil {
		resp["operations"] = s.stats.Snapshot()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) record(op string, start time.Time, err error) {
	if s.stats != nil {
		s.stats.Since(op, start, err)
	}
}

func writeEntries(w http.ResponseWriter, code int, results []job.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error":   pipeline.ErrNothingToAnnotate.Error(),
		"results": report.Entries(results),
	})
}

// statusFor maps document-level failures to a response code. Malformed
// input is the client's fault; anything else is ours.
func statusFor(err error) int {
	switch job.Kind(err) {
	case "internal", "cancelled":
		return http.StatusInternalServerError
	case "timeout":
		return http.StatusGatewayTimeout
	}
	return http.StatusUnprocessableEntity
}

func fullMode(r *http.Request) (bool, error) {
	switch mode := queryOr(r, "mode", "full"); mode {
	case "full":
		return true, nil
	case "update":
		return false, nil
	default:
		return false, fmt.Errorf("unknown mode %q (want full or update)", mode)
	}
}

func queryOr(r *http.Request, key, fallback string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return fallback
}

func failed(results []job.Result) int {
	n := 0
	for _, r := range results {
		if r.Failed() {
			n++
		}
	}
	return n
}
