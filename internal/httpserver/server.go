// Package httpserver exposes the REST, SPARQL and server-push surface.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mvdveer/fediviz/internal/auth"
	"github.com/mvdveer/fediviz/internal/config"
	"github.com/mvdveer/fediviz/internal/domain"
	"github.com/mvdveer/fediviz/internal/hub"
	"github.com/mvdveer/fediviz/internal/rdf"
	"github.com/mvdveer/fediviz/internal/webmention"
)

// Server is the HTTP server over the graph store, webmention service and
// broadcast hub.
type Server struct {
	cfg        *config.Config
	store      *rdf.Store
	mentions   *webmention.Service
	auth       *auth.Authenticator
	hub        *hub.Hub
	logger     *slog.Logger
	httpServer *http.Server
	started    time.Time
}

// NewServer wires all routes.
func NewServer(
	cfg *config.Config,
	store *rdf.Store,
	mentions *webmention.Service,
	authenticator *auth.Authenticator,
	h *hub.Hub,
	logger *slog.Logger,
) *Server {
	s := &Server{
		cfg:      cfg,
		store:    store,
		mentions: mentions,
		auth:     authenticator,
		hub:      h,
		logger:   logger,
		started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /admin/login", s.handleLogin)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /webmention", s.handleWebmention)
	mux.HandleFunc("POST /test-webmention", s.requireAdmin(s.handleTestWebmention(true)))
	mux.HandleFunc("POST /test-webmention-pending", s.requireAdmin(s.handleTestWebmention(false)))
	mux.HandleFunc("POST /mentions/{id}/approve", s.requireAdmin(s.handleApprove))
	mux.HandleFunc("POST /mentions/{id}/reject", s.requireAdmin(s.handleReject))
	mux.HandleFunc("GET /mentions", s.requireAdmin(s.handleAllMentions))
	mux.HandleFunc("GET /mentions/approved", s.handleApprovedMentions)
	mux.HandleFunc("GET /rdf/stats", s.handleStats)
	mux.HandleFunc("GET /rdf/influencers", s.handleInfluencers)
	mux.HandleFunc("GET /rdf/influence-graph", s.handleInfluenceGraph)
	mux.HandleFunc("GET /sparql", s.handleSparql)
	mux.HandleFunc("GET /rdf/turtle", s.handleTurtle)
	mux.HandleFunc("GET /rdf/jsonld", s.handleJSONLD)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     withCORS(withLogging(logger, mux)),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// Handler returns the full middleware-wrapped handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Secret string `json:"secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid secret"})
		return
	}

	if err := s.auth.Check(body.Secret); err != nil {
		s.logger.Warn("admin login failed")
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid secret"})
		return
	}

	s.logger.Info("admin login succeeded")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Authenticated"})
}

// requireAdmin validates the bearer secret on every call; no session state
// is held server-side.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthorized: Missing token")
			return
		}
		if err := s.auth.Check(token); err != nil {
			writeError(w, http.StatusForbidden, "Forbidden: Invalid token")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "\n")
	flusher.Flush()

	sub := s.hub.Subscribe()
	defer sub.Close()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to marshal event", "type", event.Type, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleWebmention(w http.ResponseWriter, r *http.Request) {
	source, target, err := mentionParams(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "Missing source or target parameter",
			"verified": false,
		})
		return
	}

	_, err = s.mentions.Verify(r.Context(), source, target)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]any{
			"message":  "Webmention received and verified, awaiting approval.",
			"status":   "pending_approval",
			"verified": true,
		})
	case errors.Is(err, domain.ErrMissingParameter),
		errors.Is(err, domain.ErrUnreachableSource),
		errors.Is(err, domain.ErrLinkNotFound):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    err.Error(),
			"verified": false,
		})
	default:
		s.logger.Error("webmention verification failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":    "verification failed",
			"verified": false,
		})
	}
}

// mentionParams reads source and target from a JSON body or form fields;
// the webmention protocol itself submits form-encoded.
func mentionParams(r *http.Request) (source, target string, err error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Source string `json:"source"`
			Target string `json:"target"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", "", fmt.Errorf("decode body: %w", err)
		}
		return body.Source, body.Target, nil
	}
	if err := r.ParseForm(); err != nil {
		return "", "", fmt.Errorf("parse form: %w", err)
	}
	return r.PostFormValue("source"), r.PostFormValue("target"), nil
}

func (s *Server) handleTestWebmention(approved bool) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		mention := s.mentions.CreateTest(approved)
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Test webmention sent",
			"mention": mention,
		})
	}
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Webmention not found")
		return
	}

	mention, err := s.mentions.Approve(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Webmention not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Webmention approved", "mention": mention})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Webmention not found")
		return
	}

	mention, err := s.mentions.Reject(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Webmention not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Webmention rejected", "mention": mention})
}

func (s *Server) handleAllMentions(w http.ResponseWriter, _ *http.Request) {
	mentions := s.mentions.All()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(mentions), "mentions": mentions})
}

func (s *Server) handleApprovedMentions(w http.ResponseWriter, _ *http.Request) {
	mentions := s.mentions.Approved()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(mentions), "mentions": mentions})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.logger.Error("failed to read stats", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	influencers, err := s.store.TopInfluencers(limit)
	if err != nil {
		s.logger.Error("failed to rank influencers", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to rank influencers")
		return
	}
	writeJSON(w, http.StatusOK, influencers)
}

func (s *Server) handleInfluenceGraph(w http.ResponseWriter, _ *http.Request) {
	graph, err := s.store.InfluenceGraph()
	if err != nil {
		s.logger.Error("failed to build influence graph", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build influence graph")
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (s *Server) handleSparql(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, http.StatusBadRequest, "Missing query parameter")
		return
	}

	results, err := s.store.Query(query)
	if err != nil {
		var queryErr *domain.QueryError
		if errors.As(err, &queryErr) {
			writeError(w, http.StatusBadRequest, queryErr.Error())
			return
		}
		s.logger.Error("query execution failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query execution failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleTurtle(w http.ResponseWriter, _ *http.Request) {
	out, err := s.store.SerializeTurtle()
	if err != nil {
		s.logger.Error("turtle export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "text/turtle")
	fmt.Fprint(w, out)
}

func (s *Server) handleJSONLD(w http.ResponseWriter, _ *http.Request) {
	out, err := s.store.SerializeJSONLD()
	if err != nil {
		s.logger.Error("json-ld export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/ld+json")
	fmt.Fprint(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"uptime":      time.Since(s.started).Seconds(),
		"subscribers": s.hub.SubscriberCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// withCORS allows the browser client to reach the API from another origin.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Flush lets the SSE handler flush through the logging wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
