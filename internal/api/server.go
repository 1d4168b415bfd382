// Package api serves the counting service's HTTP surface: the live
// slot view, session history, exercise profiles, the effective
// configuration, and liveness.
package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gymsight/repcount/internal/config"
	"github.com/gymsight/repcount/internal/db"
	"github.com/gymsight/repcount/internal/httputil"
	"github.com/gymsight/repcount/internal/pipeline"
	"github.com/gymsight/repcount/internal/version"
)

// ANSI escape codes for the request log.
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	live *pipeline.Live
	db   *db.DB
	cfg  *config.TuningConfig
}

// NewServer creates the API handler set. db may be nil when the service
// runs without persistence; history and profile routes then answer 503.
func NewServer(live *pipeline.Live, database *db.DB, cfg *config.TuningConfig) *Server {
	return &Server{
		live: live,
		db:   database,
		cfg:  cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/live", s.showLive)
	mux.HandleFunc("/api/sessions", s.listSessions)
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/events", s.listSessionEvents)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/healthz", s.healthz)
	return mux
}

// requireDB answers 503 and returns false when no database is wired.
func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "no database configured")
		return false
	}
	return true
}

func (s *Server) showLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.live.Get())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	sessions, err := s.db.ListSessions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	if sessions == nil {
		sessions = []*db.Session{}
	}
	httputil.WriteJSONOK(w, sessions)
}

// sessionDetail bundles a session with its summary when one exists.
type sessionDetail struct {
	Session *db.Session        `json:"session"`
	Summary *db.SessionSummary `json:"summary,omitempty"`
}

func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return
	}

	sess, err := s.db.GetSession(id)
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, fmt.Sprintf("session %q not found", id))
		return
	}
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get session: %v", err))
		return
	}

	detail := sessionDetail{Session: sess}
	summary, err := s.db.GetSummary(id)
	if err == nil {
		detail.Summary = summary
	} else if !errors.Is(err, db.ErrNotFound) {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get summary: %v", err))
		return
	}

	httputil.WriteJSONOK(w, detail)
}

func (s *Server) listSessionEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if !s.requireDB(w) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing 'id' parameter")
		return
	}

	// Resolve the session first so a bad id is a 404, not an empty list.
	if _, err := s.db.GetSession(id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			httputil.NotFound(w, fmt.Sprintf("session %q not found", id))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get session: %v", err))
		return
	}

	events, err := s.db.ListRepEvents(id)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list rep events: %v", err))
		return
	}
	if events == nil {
		events = []*db.RepEvent{}
	}
	httputil.WriteJSONOK(w, events)
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listProfiles(w, r)
	case http.MethodPost:
		s.upsertProfile(w, r)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) listProfiles(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}
	profiles, err := s.db.ListProfiles()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list profiles: %v", err))
		return
	}
	if profiles == nil {
		profiles = []*db.ExerciseProfile{}
	}
	httputil.WriteJSONOK(w, profiles)
}

func (s *Server) upsertProfile(w http.ResponseWriter, r *http.Request) {
	if !s.requireDB(w) {
		return
	}

	var p db.ExerciseProfile
	if err := httputil.DecodeJSON(r, &p); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid profile: %v", err))
		return
	}
	if p.Name == "" {
		httputil.BadRequest(w, "profile name must not be empty")
		return
	}
	if p.UpAngle != 0 && p.DownAngle != 0 && p.DownAngle >= p.UpAngle {
		httputil.BadRequest(w, "down_angle must be below up_angle")
		return
	}

	if err := s.db.UpsertProfile(&p); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to upsert profile: %v", err))
		return
	}
	httputil.WriteJSONOK(w, &p)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	joints := s.cfg.GetJoints()
	effective := map[string]interface{}{
		"exercise":         string(s.cfg.GetExercise()),
		"joints":           joints[:],
		"up_angle":         s.cfg.GetUpAngle(),
		"down_angle":       s.cfg.GetDownAngle(),
		"slot_order":       s.cfg.GetSlotOrder().String(),
		"camera_id":        s.cfg.GetCameraID(),
		"poselog_dir":      s.cfg.GetPoselogDir(),
		"show_preview":     s.cfg.GetShowPreview(),
		"line_thickness":   s.cfg.GetLineThickness(),
		"hud_refresh":      s.cfg.GetHUDRefresh().String(),
		"summary_interval": s.cfg.GetSummaryInterval().String(),
	}
	httputil.WriteJSONOK(w, effective)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]string{
		"status":     "ok",
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
