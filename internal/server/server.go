// Package server hosts the widget for previewing: each visitor gets a
// server-side widget, driven by events the page forwards.
package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/stravella/chatwidget/internal/session"
	"github.com/stravella/chatwidget/internal/widget"
	"github.com/stravella/chatwidget/internal/widgetconfig"
)

//go:embed page.html
var pageFS embed.FS

var pageTmpl = template.Must(template.ParseFS(pageFS, "page.html"))

type pageData struct {
	Title    string
	ThreadID string
	Widget   template.HTML
}

// maxEventBytes bounds the body of POST /widget/events.
const maxEventBytes = 64 << 10

type Options struct {
	Sessions *session.Manager
	// Gatherer backs /metrics; nil leaves the route out.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
	// SecureCookies marks the visitor cookie Secure.
	SecureCookies bool
}

type Server struct {
	sessions *session.Manager
	gatherer prometheus.Gatherer
	log      zerolog.Logger
	secure   bool
}

func New(o Options) *Server {
	return &Server{
		sessions: o.Sessions,
		gatherer: o.Gatherer,
		log:      o.Logger.With().Str("component", "server").Logger(),
		secure:   o.SecureCookies,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", s.handlePage)
	r.Get("/widget", s.handleWidget)
	r.Get("/widget/state", s.handleState)
	r.Post("/widget/events", s.handleEvent)
	return r
}

// handlePage is a page load: the visitor gets a freshly mounted widget.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	visitor, ok := s.visitor(w, r)
	if !ok {
		return
	}

	page := widgetconfig.FromDataAttributes(widgetconfig.FromQuery(r.URL.Query()))
	wg, err := s.sessions.Reload(visitor, page)
	if err != nil {
		s.log.Error().Err(err).Str("visitor", visitor).Msg("mounting widget")
		http.Error(w, "widget unavailable", http.StatusInternalServerError)
		return
	}

	var markup bytes.Buffer
	if err := wg.Render(&markup); err != nil {
		s.log.Error().Err(err).Msg("rendering widget")
		http.Error(w, "widget unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTmpl.Execute(w, pageData{
		Title:    wg.Config().BusinessName,
		ThreadID: wg.ThreadID(),
		Widget:   template.HTML(markup.String()),
	}); err != nil {
		s.log.Error().Err(err).Msg("executing page template")
	}
}

func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgetFor(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := wg.Render(w); err != nil {
		s.log.Error().Err(err).Msg("rendering widget")
	}
}

type eventResponse struct {
	State widget.Snapshot `json:"state"`
	HTML  string          `json:"html"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev widget.Event
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBytes))
	if err := dec.Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed event"})
		return
	}

	wg, ok := s.widgetFor(w, r)
	if !ok {
		return
	}

	// The exchange outlives this request: the response carries the Sending
	// state and the page polls /widget/state until the reply is shown.
	if _, err := wg.DispatchAsync(context.WithoutCancel(r.Context()), ev); err != nil {
		switch {
		case errors.Is(err, widget.ErrBusy):
			writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		case errors.Is(err, widget.ErrUnknownEvent), errors.Is(err, widget.ErrNoSuchAction):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		default:
			s.log.Error().Err(err).Str("kind", string(ev.Kind)).Msg("dispatching event")
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
		return
	}

	s.writeState(w, wg)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	wg, ok := s.widgetFor(w, r)
	if !ok {
		return
	}
	s.writeState(w, wg)
}

func (s *Server) writeState(w http.ResponseWriter, wg *widget.Widget) {
	state := wg.Snapshot()
	var markup bytes.Buffer
	if err := wg.Render(&markup); err != nil {
		s.log.Error().Err(err).Msg("rendering widget")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, eventResponse{State: state, HTML: markup.String()})
}

func (s *Server) visitor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := getOrCreateVisitorID(w, r, s.secure)
	if err != nil {
		s.log.Error().Err(err).Msg("visitor identity")
		http.Error(w, "failed to establish visitor identity", http.StatusInternalServerError)
		return "", false
	}
	return id, true
}

// widgetFor returns the visitor's current widget, mounting one when the
// visitor has not loaded the page yet.
func (s *Server) widgetFor(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	visitor, ok := s.visitor(w, r)
	if !ok {
		return nil, false
	}
	wg, err := s.sessions.Get(visitor)
	if err != nil {
		s.log.Error().Err(err).Str("visitor", visitor).Msg("mounting widget")
		http.Error(w, "widget unavailable", http.StatusInternalServerError)
		return nil, false
	}
	return wg, true
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
