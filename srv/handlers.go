package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opd-ai/pdfscorm/convert"
	"github.com/opd-ai/pdfscorm/scorm"
	"github.com/opd-ai/pdfscorm/srv/util"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.templates.ExecuteTemplate(w, "index.html", nil); err != nil {
		util.ErrorLogger.Printf("Template execution error: %v", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
	}
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		http.Error(w, "Failed to parse upload", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		http.Error(w, "A document file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "" || name == "." || name == string(filepath.Separator) {
		http.Error(w, "Invalid document filename", http.StatusBadRequest)
		return
	}
	if !s.registry.Supports(name) {
		http.Error(w, fmt.Sprintf("Unsupported document format: %s", filepath.Ext(name)),
			http.StatusUnsupportedMediaType)
		return
	}

	jobID := uuid.New().String()
	workDir := filepath.Join(s.workRoot, jobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		util.ErrorLogger.Printf("[job %s] creating work dir: %v", jobID, err)
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}

	src := filepath.Join(workDir, name)
	if err := saveUpload(file, src); err != nil {
		util.ErrorLogger.Printf("[job %s] saving upload: %v", jobID, err)
		http.Error(w, "Failed to stage upload", http.StatusInternalServerError)
		return
	}

	job := s.jobs.Create(jobID, workDir)
	w.Header().Set("X-Job-Id", jobID)

	// Conversion runs in the background; clients follow progress over the
	// WebSocket and fetch the result from /files once completed.
	go s.runConversion(job, src)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"jobId":  jobID,
		"status": "started",
	})
}

func (s *Server) runConversion(job *ConversionJob, src string) {
	job.UpdateState(StateConverting)

	produced, err := s.registry.Convert(context.Background(), src, job.WorkDir)
	if err != nil {
		var xerr *convert.ExitError
		if errors.As(err, &xerr) {
			util.ErrorLogger.Printf("[job %s] converter output:\n%s", job.ID, xerr.Output)
		}
		util.ErrorLogger.Printf("[job %s] conversion failed: %v", job.ID, err)
		job.SetError(err)
		job.UpdateState(StateError)
		s.jobs.Finish(job)
		return
	}

	job.SetOutput(filepath.Base(produced))
	job.UpdateState(StateCompleted)
	util.InfoLogger.Printf("[job %s] produced %s", job.ID, produced)
	s.jobs.Finish(job)
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if !isValidJobID(jobID) {
		http.Error(w, "Invalid job ID", http.StatusBadRequest)
		return
	}

	job, ok := s.jobs.Get(jobID)
	if !ok {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	name := filepath.Base(chi.URLParam(r, "name"))
	path := filepath.Join(job.WorkDir, name)
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	http.ServeFile(w, r, path)
	util.InfoLogger.Printf("[job %s] served %s", jobID, name)
}

type packageRequest struct {
	PDFURL string `json:"pdfUrl"`
	scorm.Config
}

func (s *Server) handlePackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid package request", http.StatusBadRequest)
		return
	}
	if err := validateFetchURL(req.PDFURL); err != nil {
		http.Error(w, "A fetchable http(s) pdfUrl is required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", "attachment; filename=scorm-package.zip")

	// The assembler stages everything before streaming, so an error with
	// zero bytes written can still turn into a clean error response.
	cw := &countingWriter{w: w}
	if err := s.assembler.Build(req.PDFURL, req.Config, cw); err != nil {
		util.ErrorLogger.Printf("Package build failed: %v", err)
		if cw.n > 0 {
			return
		}
		w.Header().Del("Content-Disposition")
		var ferr *scorm.FetchError
		switch {
		case errors.As(err, &ferr):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
		return
	}
	util.InfoLogger.Printf("Package streamed for %s (%d bytes)", req.PDFURL, cw.n)
}

// handleProxy fetches a remote document on behalf of the embedded viewer,
// which cannot read cross-origin responses itself.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if err := validateFetchURL(raw); err != nil {
		http.Error(w, "A fetchable http(s) url is required", http.StatusBadRequest)
		return
	}

	resp, err := s.client.Get(raw)
	if err != nil {
		util.ErrorLogger.Printf("Proxy fetch of %s failed: %v", raw, err)
		http.Error(w, "Upstream fetch failed", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		util.ErrorLogger.Printf("Proxy stream of %s failed: %v", raw, err)
	}
}

func isValidJobID(jobID string) bool {
	if jobID == "" {
		return false
	}
	_, err := uuid.Parse(jobID)
	return err == nil
}

func validateFetchURL(raw string) error {
	if raw == "" {
		return errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("unsupported url %q", raw)
	}
	return nil
}

func saveUpload(src io.Reader, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
