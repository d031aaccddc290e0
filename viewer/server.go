// Package viewer serves a comparison in the browser and receives the accept message from the page.
package viewer

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/vpcompare/vpdiff"
)

// Message is the structured message posted by the rendered page.
type Message struct {
	Command string `json:"command"`
}

type response struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	State   string `json:"state"`
}

// Server exposes a single comparison over HTTP.
type Server struct {
	cmp    *vpdiff.Comparison
	logger *slog.Logger
	// OnDone, if set, is called once the comparison has been accepted or dismissed.
	OnDone func()
}

// New creates a Server for cmp. A nil logger uses slog.Default.
func New(cmp *vpdiff.Comparison, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cmp: cmp, logger: logger}
}

// Handler returns the routes of the viewer.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Get("/artifact.gif", s.handleArtifact)
	r.Get("/frames/{n}", s.handleFrame)
	r.Post("/message", s.handleMessage)
	r.Post("/dismiss", s.handleDismiss)

	return r
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Title    string
		Expected string
		Actual   string
		Command  string
		Diff     vpdiff.DiffResult
		Mask     *vpdiff.Mask
	}{
		Title:    "VP Compare",
		Expected: filepath.Base(s.cmp.ExpectedPath),
		Actual:   filepath.Base(s.cmp.ActualPath),
		Command:  ReplaceCommand,
		Diff:     s.cmp.Diff,
		Mask:     s.cmp.Mask,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := page.Execute(w, data); err != nil {
		s.logger.Error("viewer: render page", "error", err)
	}
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, s.cmp.ArtifactPath)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 0 || n >= len(s.cmp.Frames) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, s.cmp.Frames[n])
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.writeJSON(w, http.StatusBadRequest, response{Error: "invalid message"})
		return
	}
	if msg.Command != ReplaceCommand {
		s.writeJSON(w, http.StatusBadRequest, response{Error: "unknown command: " + msg.Command})
		return
	}

	replaced, err := s.cmp.Accept(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, vpdiff.ErrInvalidState) {
			status = http.StatusConflict
		}
		s.logger.Error("viewer: accept", "expected", s.cmp.ExpectedPath, "error", err)
		s.writeJSON(w, status, response{Error: err.Error()})
		return
	}

	// A baseline which no longer holds the payload is skipped silently.
	res := response{}
	if replaced {
		res.Message = ReplacedMessage
		s.logger.Info("baseline replaced", "expected", s.cmp.ExpectedPath, "actual", s.cmp.ActualPath)
	}
	s.writeJSON(w, http.StatusOK, res)
	s.done()
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.cmp.Dismiss(); err != nil {
		s.writeJSON(w, http.StatusConflict, response{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, response{Message: DismissedMessage})
	s.done()
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, res response) {
	res.State = s.cmp.State().String()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		s.logger.Error("viewer: encode response", "error", err)
	}
}

func (s *Server) done() {
	if s.OnDone != nil {
		s.OnDone()
	}
}
