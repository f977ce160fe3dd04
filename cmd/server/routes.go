package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.config.AllowedOrigins))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/recordings", s.handleListRecordings)
		r.Route("/recordings/{index}", func(r chi.Router) {
			r.Get("/signal", s.handleSignal)
			r.Get("/rejections", s.handleGetRejections)
			r.Put("/rejections", s.handleSaveRejections)
			r.Get("/spectrogram.png", s.handleSpectrogram)
			r.With(middleware.Timeout(5*time.Minute)).Post("/preprocess", s.handlePreprocess)
		})

		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleRunOutcomes)
	})

	return r
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs every request with its status and latency
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Infof("%s %s from %s -> %d (%s) [%s]", r.Method, r.URL.Path, r.RemoteAddr,
			ww.Status(), time.Since(start).Round(time.Millisecond), middleware.GetReqID(r.Context()))
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	handler := s.setupRoutes()

	addr := fmt.Sprintf(":%d", s.config.Port)
	s.log.Infof("🚀 behapy dashboard starting on %s", addr)
	s.log.Infof("   Dataset: %s", s.service.Root())
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                                 - Health check")
	s.log.Infof("   GET    /api/recordings                         - List recordings")
	s.log.Infof("   GET    /api/recordings/{index}/signal          - Decimated raw trace")
	s.log.Infof("   GET    /api/recordings/{index}/rejections      - Rejection intervals")
	s.log.Infof("   PUT    /api/recordings/{index}/rejections      - Replace rejection intervals")
	s.log.Infof("   GET    /api/recordings/{index}/spectrogram.png - Spectrogram preview")
	s.log.Infof("   POST   /api/recordings/{index}/preprocess      - Preprocess one recording")
	s.log.Infof("   GET    /api/runs                               - Preprocessing runs")

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}
