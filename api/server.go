package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wricardo/gomoku-relay/game/room"
	"github.com/wricardo/gomoku-relay/game/rules"
)

// Rooms is the read-only view of the room manager the API exposes
type Rooms interface {
	List() []room.Room
	Get(roomID string) (room.Room, error)
	Stats() room.Stats
}

// Peers reports the connected players
type Peers interface {
	Len() int
}

// Server represents the REST API server
type Server struct {
	rooms   Rooms
	peers   Peers
	ws      http.Handler
	mcp     http.Handler
	router  *mux.Router
	version string
	started time.Time
	now     func() time.Time
}

// Option configures a Server
type Option func(*Server)

// WithMCP mounts an MCP JSON-RPC handler at POST /mcp
func WithMCP(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates a new API server. ws serves the /ws upgrade endpoint.
func NewServer(rooms Rooms, peers Peers, ws http.Handler, opts ...Option) *Server {
	s := &Server{
		rooms:   rooms,
		peers:   peers,
		ws:      ws,
		router:  mux.NewRouter(),
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.started = s.now()

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("", s.handleIndex).Methods("GET")

	// Room inspection
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Rule evaluation
	api.HandleFunc("/rules/win", s.handleCheckWin).Methods("POST")
	api.HandleFunc("/rules/draw", s.handleCheckDraw).Methods("POST")

	if s.ws != nil {
		s.router.Handle("/ws", s.ws)
	}
	if s.mcp != nil {
		s.router.Handle("/mcp", s.mcp).Methods("POST")
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"version":     s.version,
		"uptime":      s.now().Sub(s.started).Round(time.Second).String(),
		"connections": s.peers.Len(),
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	endpoints := []string{
		"GET /health",
		"GET /api/rooms?status=waiting|playing|finished",
		"GET /api/rooms/{id}",
		"GET /api/stats",
		"POST /api/rules/win",
		"POST /api/rules/draw",
		"GET /ws (WebSocket)",
	}
	if s.mcp != nil {
		endpoints = append(endpoints, "POST /mcp")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":      "gomoku-relay",
		"version":   s.version,
		"endpoints": endpoints,
	})
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := s.rooms.List()

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		var status room.Status
		if err := status.UnmarshalText([]byte(statusStr)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}

		filtered := rooms[:0]
		for _, rm := range rooms {
			if rm.Status == status {
				filtered = append(filtered, rm)
			}
		}
		rooms = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	rm, err := s.rooms.Get(roomID)
	if err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, rm)
}

// StatsResponse is returned by GET /api/stats
type StatsResponse struct {
	room.Stats
	Connections int    `json:"connections"`
	Uptime      string `json:"uptime"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatsResponse{
		Stats:       s.rooms.Stats(),
		Connections: s.peers.Len(),
		Uptime:      s.now().Sub(s.started).Round(time.Second).String(),
	})
}

// Rule Handlers

// WinRequest asks whether the stone at (Row, Col) completes five in a row.
// Board rows use '.', 'B' and 'W'. Stone defaults to the stone on the board
// at that position.
type WinRequest struct {
	Board []string `json:"board"`
	Row   int      `json:"row"`
	Col   int      `json:"col"`
	Stone string   `json:"stone,omitempty"`
}

// WinResponse reports the outcome and, for a win, the winning run
type WinResponse struct {
	Win   bool        `json:"win"`
	Stone rules.Stone `json:"stone"`
	Line  *rules.Line `json:"line,omitempty"`
}

// DrawRequest carries a board in text form
type DrawRequest struct {
	Board []string `json:"board"`
}

// DrawResponse reports whether the board is full and the stone counts
type DrawResponse struct {
	Draw  bool `json:"draw"`
	Black int  `json:"black"`
	White int  `json:"white"`
	Empty int  `json:"empty"`
}

func (s *Server) handleCheckWin(w http.ResponseWriter, r *http.Request) {
	var req WinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	board, err := rules.ParseBoard(req.Board)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !board.InBounds(req.Row, req.Col) {
		respondError(w, http.StatusBadRequest, "position is outside the board")
		return
	}

	stone := board.At(req.Row, req.Col)
	if req.Stone != "" {
		if err := json.Unmarshal([]byte(`"`+req.Stone+`"`), &stone); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	resp := WinResponse{Stone: stone}
	if line, ok := rules.WinLine(board, req.Row, req.Col, stone); ok {
		resp.Win = true
		resp.Line = &line
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCheckDraw(w http.ResponseWriter, r *http.Request) {
	var req DrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	board, err := rules.ParseBoard(req.Board)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, DrawResponse{
		Draw:  rules.CheckDraw(board),
		Black: rules.CountStones(board, rules.Black),
		White: rules.CountStones(board, rules.White),
		Empty: rules.CountStones(board, rules.Empty),
	})
}
