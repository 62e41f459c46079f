package main

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/opd-ai/pdfscorm/convert"
	"github.com/opd-ai/pdfscorm/scorm"
)

//go:embed templates/*
var templateFS embed.FS

// Server wires the conversion pipeline and package assembler behind the
// HTTP surface. One instance serves all requests; per-request state lives
// in uuid-keyed jobs and staging directories.
type Server struct {
	router    chi.Router
	templates *template.Template
	jobs      *JobManager
	registry  *convert.Registry
	assembler *scorm.Assembler
	client    *http.Client
	workRoot  string
	assetDir  string
}

func NewServer(assetDir, workRoot, officeBinary string) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		templates: template.Must(template.ParseFS(templateFS, "templates/*.html")),
		jobs:      NewJobManager(jobRetention),
		registry:  convert.DefaultRegistry(officeBinary),
		assembler: scorm.NewAssembler(assetDir, workRoot),
		client:    &http.Client{Timeout: 2 * time.Minute},
		workRoot:  workRoot,
		assetDir:  assetDir,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
		w.Header().Set("Access-Control-Expose-Headers", "X-Job-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(corsMiddleware)

	s.router.Get("/", s.handleIndex)
	s.router.Get("/health", handleHealthCheck)

	// Conversion is the expensive path; cap per-client request rates.
	s.router.Group(func(r chi.Router) {
		r.Use(httprate.LimitByIP(30, 1*time.Minute))
		r.Post("/convert", s.handleConvert)
	})

	s.router.Get("/ws/{jobID}", s.handleWebSocket)
	s.router.Get("/files/{jobID}/{name}", s.handleFiles)
	s.router.Post("/package", s.handlePackage)
	s.router.Get("/proxy", s.handleProxy)

	fileServer := http.FileServer(http.Dir(s.assetDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))
}
