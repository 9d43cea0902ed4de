package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/MimeLyc/bilingual-sub-merger/internal/config"
	"github.com/MimeLyc/bilingual-sub-merger/internal/jobs"
	"github.com/MimeLyc/bilingual-sub-merger/internal/library"
	"github.com/MimeLyc/bilingual-sub-merger/internal/service"
	"github.com/MimeLyc/bilingual-sub-merger/pkg/log"
)

// maxRequestBody bounds JSON bodies; previews carry two whole subtitle files.
const maxRequestBody = 16 << 20

type runtimeSettingsStore interface {
	GetRuntimeSettings() (config.RuntimeSettings, error)
	UpdateRuntimeSettings(next config.RuntimeSettings) (config.RuntimeSettings, error)
}

type runtimeSettingsApplier func(next config.RuntimeSettings) error

// scanRunner queues merges for recently changed videos.
type scanRunner interface {
	RunOnce(ctx context.Context) (service.RunReport, error)
}

// Server exposes the library, the merge queue and the runtime settings over HTTP.
type Server struct {
	scanner  *library.Scanner
	queue    *jobs.Queue
	runner   scanRunner
	settings runtimeSettingsStore
	apply    runtimeSettingsApplier

	uiEnabled   bool
	uiStaticDir string

	mux     *http.ServeMux
	handler http.Handler
	server  *http.Server
}

type Option func(*Server)

// WithUI serves a single page application from staticDir.
func WithUI(staticDir string, enabled bool) Option {
	return func(s *Server) {
		s.uiStaticDir = staticDir
		s.uiEnabled = enabled
	}
}

func WithRuntimeSettingsStore(store runtimeSettingsStore) Option {
	return func(s *Server) {
		s.settings = store
	}
}

// WithRuntimeSettingsApplier is called with settings after they were saved.
func WithRuntimeSettingsApplier(apply runtimeSettingsApplier) Option {
	return func(s *Server) {
		s.apply = apply
	}
}

// WithScanRunner lets POST /api/scan?enqueue=true queue merges.
func WithScanRunner(runner scanRunner) Option {
	return func(s *Server) {
		s.runner = runner
	}
}

func NewServer(scanner *library.Scanner, queue *jobs.Queue, opts ...Option) *Server {
	s := &Server{
		scanner: scanner,
		queue:   queue,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	s.handler = logRequests(recoverPanics(s.mux))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe blocks until the server is shut down. No write timeout is
// set so the job stream stays open.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/library/sources", s.handleListSources)
	s.mux.HandleFunc("/api/library/videos", s.handleListVideos)
	s.mux.HandleFunc("/api/library/video", s.handleGetVideo)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/jobs/stream", s.handleJobStream)
	s.mux.HandleFunc("/api/jobs/", s.handleJobDetailRoutes)
	s.mux.HandleFunc("/api/scan", s.handleScan)
	s.mux.HandleFunc("/api/preview", limitBody(s.handlePreview))
	s.mux.HandleFunc("/api/settings", limitBody(s.handleSettings))
	s.mux.HandleFunc("/", s.handleStatic)
}

func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if !s.uiEnabled || s.uiStaticDir == "" {
		http.NotFound(w, r)
		return
	}
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	http.ServeFile(w, r, s.staticFile(r.URL.Path))
}

// staticFile maps a URL path to a file of the UI directory. Client-side
// routes and missing assets resolve to index.html.
func (s *Server) staticFile(urlPath string) string {
	indexPath := filepath.Join(s.uiStaticDir, "index.html")
	rel := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if rel == "" || !strings.Contains(path.Base(rel), ".") {
		return indexPath
	}

	filePath := filepath.Join(s.uiStaticDir, filepath.FromSlash(rel))
	if info, err := os.Stat(filePath); err != nil || info.IsDir() {
		return indexPath
	}
	return filePath
}

func limitBody(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		next(w, r)
	}
}

// statusRecorder keeps the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(started).Round(time.Millisecond))
	})
}

func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				log.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, v)
				writeError(w, http.StatusInternalServerError, fmt.Sprint("internal error: ", v))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
