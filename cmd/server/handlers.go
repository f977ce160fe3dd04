package main

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/himanishpuri/behapy/internal/bids"
	"github.com/himanishpuri/behapy/internal/storage"
	"github.com/himanishpuri/behapy/internal/visuals"
	"github.com/himanishpuri/behapy/pkg/behapy"
	"github.com/himanishpuri/behapy/pkg/logger"
	"github.com/himanishpuri/behapy/pkg/models"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service behapy.Service
	config  *ServerConfig
	log     behapy.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service behapy.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	render.Status(r, statusCode)
	render.JSON(w, r, data)
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	s.respondJSON(w, r, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]any{
		"service": "behapy dashboard",
		"root":    s.service.Root(),
		"endpoints": map[string]string{
			"health":         "GET /health",
			"recordings":     "GET /api/recordings",
			"signal":         "GET /api/recordings/{index}/signal?max_points=N",
			"rejections":     "GET /api/recordings/{index}/rejections",
			"saveRejections": "PUT /api/recordings/{index}/rejections",
			"spectrogram":    "GET /api/recordings/{index}/spectrogram.png",
			"preprocess":     "POST /api/recordings/{index}/preprocess",
			"runs":           "GET /api/runs",
			"runOutcomes":    "GET /api/runs/{id}",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleListRecordings handles GET /api/recordings
func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	keys, err := s.service.Recordings()
	if err != nil {
		s.log.Errorf("Failed to list recordings: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	root := s.service.Root()
	dtos := make([]RecordingDTO, len(keys))
	for i, key := range keys {
		dtos[i] = RecordingDTO{
			Index:        i,
			Key:          key,
			Stem:         key.Stem(),
			Curated:      exists(bids.RejectionsPath(root, key)),
			Preprocessed: exists(bids.PreprocessedPath(root, key, "npy")),
		}
	}

	s.respondJSON(w, r, http.StatusOK, ListRecordingsResponse{
		Recordings: dtos,
		Count:      len(dtos),
	})
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// recordingKey resolves the {index} URL parameter against the current
// recording list. On failure the error response has been written.
func (s *Server) recordingKey(w http.ResponseWriter, r *http.Request) (models.RecordingKey, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		s.respondError(w, r, http.StatusBadRequest, "Invalid recording index")
		return models.RecordingKey{}, false
	}
	keys, err := s.service.Recordings()
	if err != nil {
		s.log.Errorf("Failed to list recordings: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to list recordings")
		return models.RecordingKey{}, false
	}
	if index >= len(keys) {
		s.respondError(w, r, http.StatusNotFound, "Recording not found")
		return models.RecordingKey{}, false
	}
	return keys[index], true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// handleSignal handles GET /api/recordings/{index}/signal
func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordingKey(w, r)
	if !ok {
		return
	}
	maxPoints, err := intParam(r, "max_points", DefaultMaxPoints)
	if err != nil || maxPoints < 2 || maxPoints > MaxPointsLimit {
		s.respondError(w, r, http.StatusBadRequest, "max_points must be between 2 and 100000")
		return
	}

	trace, err := s.service.LoadTrace(key)
	if err != nil {
		s.log.Errorf("Failed to load %s: %v", key.Stem(), err)
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	t, sig := visuals.Decimate(trace.Time, trace.Signal, maxPoints)
	isoT, iso := visuals.Decimate(trace.Time, trace.Iso, maxPoints)
	s.respondJSON(w, r, http.StatusOK, SignalResponse{
		Key:       key,
		Channel:   trace.Channel,
		Fs:        trace.Fs,
		StartTime: trace.StartTime,
		Samples:   len(trace.Time),
		Time:      t,
		Signal:    sig,
		IsoTime:   isoT,
		Iso:       iso,
	})
}

// handleGetRejections handles GET /api/recordings/{index}/rejections
func (s *Server) handleGetRejections(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordingKey(w, r)
	if !ok {
		return
	}
	intervals, curated, err := s.service.Rejections(key)
	if err != nil {
		s.log.Errorf("Failed to load rejections for %s: %v", key.Stem(), err)
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if intervals == nil {
		intervals = models.Intervals{}
	}
	s.respondJSON(w, r, http.StatusOK, RejectionsResponse{Key: key, Curated: curated, Intervals: intervals})
}

// handleSaveRejections handles PUT /api/recordings/{index}/rejections
func (s *Server) handleSaveRejections(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordingKey(w, r)
	if !ok {
		return
	}

	var req SaveRejectionsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.service.SaveRejections(key, req.Intervals); err != nil {
		s.log.Errorf("Failed to save rejections for %s: %v", key.Stem(), err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to save rejections")
		return
	}
	s.respondJSON(w, r, http.StatusOK, RejectionsResponse{Key: key, Curated: true, Intervals: req.Intervals.Sorted()})
}

// handleSpectrogram handles GET /api/recordings/{index}/spectrogram.png
func (s *Server) handleSpectrogram(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordingKey(w, r)
	if !ok {
		return
	}
	opts := visuals.DefaultSpectrogramOptions()
	var err1, err2 error
	opts.Width, err1 = intParam(r, "width", opts.Width)
	opts.Height, err2 = intParam(r, "height", opts.Height)
	if err1 != nil || err2 != nil || opts.Width < 1 || opts.Height < 1 || opts.Width > 4096 || opts.Height > 2048 {
		s.respondError(w, r, http.StatusBadRequest, "Invalid image size")
		return
	}
	opts.Log = r.URL.Query().Get("log") == "true"

	trace, err := s.service.LoadTrace(key)
	if err != nil {
		s.log.Errorf("Failed to load %s: %v", key.Stem(), err)
		s.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := visuals.RenderSpectrogram(w, trace.Signal, trace.Fs, opts); err != nil {
		w.Header().Del("Content-Type")
		if errors.Is(err, visuals.ErrTooShort) {
			s.respondError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Errorf("Failed to render spectrogram for %s: %v", key.Stem(), err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to render spectrogram")
	}
}

// handlePreprocess handles POST /api/recordings/{index}/preprocess
func (s *Server) handlePreprocess(w http.ResponseWriter, r *http.Request) {
	key, ok := s.recordingKey(w, r)
	if !ok {
		return
	}
	report, err := s.service.PreprocessRecording(r.Context(), key)
	if err != nil {
		s.log.Errorf("Preprocessing %s failed: %v", key.Stem(), err)
		if report != nil {
			s.respondJSON(w, r, http.StatusUnprocessableEntity, report)
			return
		}
		s.respondError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, r, http.StatusOK, report)
}

// handleListRuns handles GET /api/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "Invalid limit")
		return
	}
	runs, err := s.service.ListRuns(limit)
	if errors.Is(err, behapy.ErrNoLedger) {
		s.respondError(w, r, http.StatusNotFound, "Run ledger disabled")
		return
	}
	if err != nil {
		s.log.Errorf("Failed to list runs: %v", err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = RunDTO(run)
	}
	s.respondJSON(w, r, http.StatusOK, ListRunsResponse{Runs: dtos, Count: len(dtos)})
}

// handleRunOutcomes handles GET /api/runs/{id}
func (s *Server) handleRunOutcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcomes, err := s.service.RunOutcomes(id)
	switch {
	case errors.Is(err, storage.ErrRunNotFound), errors.Is(err, behapy.ErrNoLedger):
		s.respondError(w, r, http.StatusNotFound, "Run not found")
		return
	case err != nil:
		s.log.Errorf("Failed to load run %s: %v", id, err)
		s.respondError(w, r, http.StatusInternalServerError, "Failed to load run")
		return
	}
	s.respondJSON(w, r, http.StatusOK, RunOutcomesResponse{ID: id, Outcomes: outcomes})
}
