package main

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/opd-ai/pdfscorm/convert"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	assetDir := t.TempDir()
	for _, name := range []string{"player.html", "index_lms.html", "pdfviewer.js"} {
		if err := os.WriteFile(filepath.Join(assetDir, name), []byte("asset"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s := NewServer(assetDir, t.TempDir(), "soffice")
	s.assembler.Retention = time.Hour
	return s
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &body, mw.FormDataContentType()
}

func waitForState(t *testing.T, s *Server, jobID string, want JobState) *ConversionJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := s.jobs.Get(jobID); ok && job.GetState() == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached state %s", jobID, want)
	return nil
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q", resp["status"])
	}
}

func TestConvertMarkdownEndToEnd(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, "document", "notes.md", "# Hello\n\nSome text.\n")
	req := httptest.NewRequest("POST", "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	jobID := resp["jobId"]
	if !isValidJobID(jobID) {
		t.Fatalf("jobId = %q, want uuid", jobID)
	}

	job := waitForState(t, s, jobID, StateCompleted)
	if job.GetOutput() != "notes.pdf" {
		t.Fatalf("output = %q, want notes.pdf", job.GetOutput())
	}

	// The produced PDF downloads with an attachment disposition.
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/files/"+jobID+"/notes.pdf", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "notes.pdf") {
		t.Errorf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Error("downloaded file is not a PDF")
	}
}

func TestConvertRejectsUnsupportedFormat(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, "document", "malware.exe", "MZ")
	req := httptest.NewRequest("POST", "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("status = %d, want 415", rec.Code)
	}
}

func TestConvertRequiresDocumentField(t *testing.T) {
	s := newTestServer(t)

	body, contentType := multipartUpload(t, "wrongfield", "notes.md", "# x")
	req := httptest.NewRequest("POST", "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestFilesRejectsBadJobID(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/files/not-a-uuid/x.pdf", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/files/00000000-0000-0000-0000-000000000000/x.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for unknown job", rec.Code)
	}
}

func TestPackageEndpoint(t *testing.T) {
	s := newTestServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("%PDF-1.4 source"))
	}))
	defer upstream.Close()

	payload, _ := json.Marshal(map[string]interface{}{
		"pdfUrl":             upstream.URL + "/slides.pdf",
		"title":              "Intro",
		"sidebarDefaultOpen": false,
	})
	req := httptest.NewRequest("POST", "/package", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != "application/zip" {
		t.Errorf("Content-Type = %q", got)
	}

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatalf("response is not a zip: %v", err)
	}
	names := make(map[string]bool)
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"player.html", "index_lms.html", "Config.js", "imsmanifest.xml", "data/content.pdf"} {
		if !names[want] {
			t.Errorf("archive missing %s", want)
		}
	}
}

func TestPackageUpstreamFailure(t *testing.T) {
	s := newTestServer(t)

	upstream := httptest.NewServer(http.NotFoundHandler())
	defer upstream.Close()

	payload, _ := json.Marshal(map[string]string{"pdfUrl": upstream.URL + "/gone.pdf"})
	req := httptest.NewRequest("POST", "/package", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Error("archive bytes streamed despite upstream failure")
	}
}

func TestPackageRejectsBadURL(t *testing.T) {
	s := newTestServer(t)

	for _, u := range []string{"", "ftp://host/x.pdf", "not a url"} {
		payload, _ := json.Marshal(map[string]string{"pdfUrl": u})
		req := httptest.NewRequest("POST", "/package", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("pdfUrl %q: status = %d, want 400", u, rec.Code)
		}
	}
}

func TestProxy(t *testing.T) {
	s := newTestServer(t)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4 proxied"))
	}))
	defer upstream.Close()

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/proxy?url="+upstream.URL+"/doc.pdf", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if !strings.Contains(rec.Body.String(), "proxied") {
		t.Error("body not proxied")
	}

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest("GET", "/proxy?url=file:///etc/passwd", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("non-http scheme: status = %d, want 400", rec.Code)
	}
}

func TestConvertFailureSurfacesState(t *testing.T) {
	s := newTestServer(t)
	// Point the office converter at a binary that cannot exist.
	s.registry = convertRegistryWithBrokenOffice(t)

	body, contentType := multipartUpload(t, "document", "deck.pptx", "junk")
	req := httptest.NewRequest("POST", "/convert", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("convert status = %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	waitForState(t, s, resp["jobId"], StateError)
}

func convertRegistryWithBrokenOffice(t *testing.T) *convert.Registry {
	t.Helper()
	return convert.DefaultRegistry(filepath.Join(t.TempDir(), "missing-soffice"))
}
