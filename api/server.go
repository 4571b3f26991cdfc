package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wricardo/packed2048/game/config"
	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/service"
	"github.com/wricardo/packed2048/game/tile"
	"github.com/wricardo/packed2048/transport/websocket"
)

// Server represents the REST API server
type Server struct {
	service service.CodecService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil, in which case no
// events are broadcast.
func NewServer(codecService service.CodecService, hub *websocket.Hub) *Server {
	s := &Server{
		service: codecService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("", s.handleIndex).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Codec operations
	api.HandleFunc("/pack", s.handlePack).Methods("POST")
	api.HandleFunc("/parse", s.handleParse).Methods("POST")
	api.HandleFunc("/unpack", s.handleUnpack).Methods("POST")
	api.HandleFunc("/rotate", s.handleRotate).Methods("POST")
	api.HandleFunc("/rotations", s.handleRotations).Methods("POST")

	// Fixtures
	api.HandleFunc("/fixtures", s.handleListFixtures).Methods("GET")
	api.HandleFunc("/fixtures", s.handleCreateFixture).Methods("POST")
	api.HandleFunc("/fixtures/{name}", s.handleGetFixture).Methods("GET")
	api.HandleFunc("/fixtures/{name}/rotations", s.handleFixtureRotations).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)

	// Metrics
	s.router.Handle("/metrics", promhttp.Handler())
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

// statusForError maps codec and fixture errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, config.ErrFixtureNotFound):
		return http.StatusNotFound
	case errors.Is(err, tile.ErrInvalidTile),
		errors.Is(err, tile.ErrInvalidExponent),
		errors.Is(err, position.ErrMalformedInput),
		errors.Is(err, config.ErrInvalidFixture):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// broadcast publishes a position to the channel named by the request
func (s *Server) broadcast(r *http.Request, event string, view *service.PositionView) {
	if s.hub == nil || view == nil {
		return
	}
	channel := r.URL.Query().Get("channel")
	if channel == "" {
		channel = websocket.DefaultChannel
	}
	s.hub.PublishPosition(channel, event, view)
}

// Codec Handlers

func (s *Server) handlePack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Grid  *position.Grid `json:"grid,omitempty"`
		Tiles string         `json:"tiles,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if errors.Is(err, position.ErrMalformedInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var view *service.PositionView
	var err error
	switch {
	case req.Tiles != "":
		view, err = s.service.Parse(r.Context(), req.Tiles)
	case req.Grid != nil:
		view, err = s.service.Pack(r.Context(), *req.Grid)
	default:
		respondError(w, http.StatusBadRequest, "grid or tiles is required")
		return
	}
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	s.broadcast(r, "packed", view)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	view, err := s.service.Parse(r.Context(), req.Text)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// decodePacked reads {"packed": "<hex>", ...} into req and reports problems
func decodePacked(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleUnpack(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Packed *position.Packed `json:"packed"`
	}
	if !decodePacked(w, r, &req) {
		return
	}
	if req.Packed == nil {
		respondError(w, http.StatusBadRequest, "packed is required")
		return
	}

	view, err := s.service.Unpack(r.Context(), *req.Packed)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	s.broadcast(r, "unpacked", view)
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleRotate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Packed *position.Packed `json:"packed"`
		Turns  int              `json:"turns"`
	}
	if !decodePacked(w, r, &req) {
		return
	}
	if req.Packed == nil {
		respondError(w, http.StatusBadRequest, "packed is required")
		return
	}

	result, err := s.service.Rotate(r.Context(), *req.Packed, req.Turns)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	s.broadcast(r, "rotated", result.To)
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRotations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Packed *position.Packed `json:"packed"`
	}
	if !decodePacked(w, r, &req) {
		return
	}
	if req.Packed == nil {
		respondError(w, http.StatusBadRequest, "packed is required")
		return
	}

	set, err := s.service.Rotations(r.Context(), *req.Packed)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, set)
}

// Fixture Handlers

func (s *Server) handleListFixtures(w http.ResponseWriter, r *http.Request) {
	fixtures, err := s.service.ListFixtures(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sort.Slice(fixtures, func(i, j int) bool {
		return fixtures[i].FixtureID < fixtures[j].FixtureID
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(fixtures),
		"fixtures": fixtures,
	})
}

func (s *Server) handleGetFixture(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	result, err := s.service.LoadFixture(r.Context(), name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleFixtureRotations(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	result, err := s.service.LoadFixture(r.Context(), name)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	set, err := s.service.Rotations(r.Context(), result.Position.Packed)
	if err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, set)
}

func (s *Server) handleCreateFixture(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		service.Fixture
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := s.service.SaveFixture(r.Context(), req.ID, &req.Fixture); err != nil {
		respondError(w, statusForError(err), err.Error())
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "Fixture saved successfully",
		"fixture_id": req.ID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket not available", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r, r.URL.Query().Get("channel"))
}

// Index and health

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":         "packed2048",
		"max_exponent": tile.MaxExponent,
		"endpoints": []string{
			"POST /api/pack",
			"POST /api/parse",
			"POST /api/unpack",
			"POST /api/rotate",
			"POST /api/rotations",
			"GET /api/fixtures",
			"POST /api/fixtures",
			"GET /api/fixtures/{name}",
			"GET /api/fixtures/{name}/rotations",
			"GET /ws?channel=<name>",
			"GET /metrics",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
