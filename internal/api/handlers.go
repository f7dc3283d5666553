/*
Package api
File: handlers.go
Description:
    Contains the HTTP handlers for the REST API.
    They offer the same request/response protocol as the WebSocket hub for
    agents that prefer plain HTTP, plus session management and the leaderboard.

    Key Responsibilities:
    - Input Validation (Is the JSON valid? Does the session exist?)
    - Dispatch to the session registry
    - Mapping protocol errors onto HTTP status codes
*/

package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/everforgeworks/plantsim/internal/leaderboard"
	"github.com/everforgeworks/plantsim/internal/logging"
	"github.com/everforgeworks/plantsim/internal/session"
)

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Level string  `json:"level"`
	Seed  *uint64 `json:"seed,omitempty"`
}

// LevelInfo describes a level without its full parameter set.
type LevelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Environment string `json:"environment"`
}

// Server bundles the REST handlers.
type Server struct {
	registry      *session.Registry
	hub           *Hub
	log           *slog.Logger
	allowedOrigin string
	defaultTop    int
	maxBody       int64
}

// ServerOptions configures a Server.
type ServerOptions struct {
	AllowedOrigin  string
	LeaderboardTop int
	MaxBody        int64
	Logger         *slog.Logger
}

// NewServer creates the REST layer. hub may be nil to disable /ws.
func NewServer(registry *session.Registry, hub *Hub, opts ServerOptions) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}
	if opts.LeaderboardTop <= 0 {
		opts.LeaderboardTop = 10
	}
	if opts.MaxBody <= 0 {
		opts.MaxBody = 4096
	}
	return &Server{
		registry:      registry,
		hub:           hub,
		log:           opts.Logger.With("component", "http"),
		allowedOrigin: opts.AllowedOrigin,
		defaultTop:    opts.LeaderboardTop,
		maxBody:       opts.MaxBody,
	}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Information
	mux.HandleFunc("GET /api/levels", s.HandleGetLevels)
	mux.HandleFunc("GET /api/leaderboard", s.HandleGetLeaderboard)

	// Sessions
	mux.HandleFunc("GET /api/sessions", s.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", s.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", s.HandleGetSession)
	mux.HandleFunc("POST /api/sessions/{id}/tick", s.HandleTick)
	mux.HandleFunc("DELETE /api/sessions/{id}", s.HandleDeleteSession)

	// Real-time
	if s.hub != nil {
		mux.HandleFunc("GET /ws", s.hub.ServeWs)
	}

	return corsMiddleware(s.allowedOrigin, mux)
}

// HandleGetLevels lists the levels new sessions can start on.
func (s *Server) HandleGetLevels(w http.ResponseWriter, r *http.Request) {
	levels := s.registry.Levels()
	out := make([]LevelInfo, 0, len(levels))
	for _, l := range levels {
		mode := l.Environment.Mode
		if mode == "" {
			mode = "constant"
		}
		out = append(out, LevelInfo{Name: l.Name, Description: l.Description, Environment: mode})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCreateSession starts a session. An empty body picks the first level
// and a random seed.
func (s *Server) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
	}

	seed, _ := parseSeed("")
	if req.Seed != nil {
		seed = *req.Seed
	}

	sess, err := s.registry.Create(req.Level, seed)
	if err != nil {
		writeJSON(w, StatusCode(err), ErrorMessage(SenderSystem, err))
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		writeJSON(w, StatusCode(err), ErrorMessage(sess.ID(), err))
		return
	}
	writeJSON(w, http.StatusCreated, Message{Type: TypeState, Payload: snap, Sender: sess.ID()})
}

// HandleListSessions returns snapshots of all live sessions.
func (s *Server) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

// HandleGetSession is the read-only growth query.
func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, StatusCode(err), ErrorMessage(SenderSystem, err))
		return
	}
	s.respond(w, Handle(r.Context(), sess, TickRequest{Type: TypeGrowth}))
}

// HandleTick runs one protocol request (tick, reset or query) against a session.
func (s *Server) HandleTick(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeJSON(w, StatusCode(err), ErrorMessage(SenderSystem, err))
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	s.respond(w, HandleRaw(r.Context(), sess, body))
}

// HandleDeleteSession terminates a session and returns its summary.
func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.registry.Remove(r.Context(), r.PathValue("id"), session.ReasonDeleted)
	if err != nil {
		writeJSON(w, StatusCode(err), ErrorMessage(SenderSystem, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleGetLeaderboard returns the best finished sessions.
func (s *Server) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := s.defaultTop
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	top, err := s.registry.Leaderboard(r.Context(), limit)
	if err != nil {
		s.log.Error("leaderboard lookup failed", "error", err)
		http.Error(w, "Leaderboard unavailable", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []leaderboard.Summary{}
	}
	writeJSON(w, http.StatusOK, top)
}

// respond writes a protocol Message, mapping error payloads onto a status.
func (s *Server) respond(w http.ResponseWriter, msg Message) {
	status := http.StatusOK
	if msg.Type == TypeError {
		if p, ok := msg.Payload.(ErrorPayload); ok {
			status = statusForCode(p.Code)
		}
	}
	writeJSON(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// corsMiddleware lets browser clients on other origins talk to the server.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
