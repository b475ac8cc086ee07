package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/pdfloc/internal/job"
)

// upload is a parsed conversion request: a document and its jobs.
type upload struct {
	filename string
	data     []byte
	*job.Batch
}

type requestError struct {
	msg  string
	code int
}

func (e *requestError) Error() string { return e.msg }

// readUpload reads the multipart fields "file" and "jobs". Job texts are
// split the same way as a job file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (*upload, error) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, &requestError{"invalid multipart form: " + err.Error(), http.StatusBadRequest}
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, &requestError{"file is required: " + err.Error(), http.StatusBadRequest}
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if ext := filepath.Ext(filename); !strings.EqualFold(ext, ".pdf") && ext != "" {
		return nil, &requestError{fmt.Sprintf("unsupported file type: %s", ext), http.StatusBadRequest}
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, &requestError{"failed to read file", http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, &requestError{fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge}
	}

	var texts []string
	for _, field := range r.MultipartForm.Value["jobs"] {
		sc := job.NewScanner(strings.NewReader(field))
		for sc.Scan() {
			texts = append(texts, sc.Text())
		}
		if err := sc.Err(); err != nil {
			return nil, &requestError{"invalid jobs: " + err.Error(), http.StatusBadRequest}
		}
	}
	if len(texts) == 0 {
		return nil, &requestError{"jobs is required", http.StatusBadRequest}
	}
	return &upload{filename: filename, data: data, Batch: job.ParseBatch(texts)}, nil
}

func writeRequestError(w http.ResponseWriter, err error) {
	var re *requestError
	if errors.As(err, &re) {
		jsonError(w, re.msg, re.code)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "document.pdf"
	}
	return name
}
