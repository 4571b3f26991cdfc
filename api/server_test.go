package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/wricardo/packed2048/game/config"
	"github.com/wricardo/packed2048/game/position"
	"github.com/wricardo/packed2048/game/service"
	"github.com/wricardo/packed2048/transport/websocket"
)

const scenarioHex = "04030302020100000100000000000100"

var scenarioGrid = position.Grid{
	{16, 8, 8, 4},
	{4, 2, 0, 0},
	{2, 0, 0, 0},
	{0, 0, 2, 0},
}

// MockCodecService implements service.CodecService for testing.
// Codec operations without an override run the real codec.
type MockCodecService struct {
	PackFunc         func(ctx context.Context, grid position.Grid) (*service.PositionView, error)
	ParseFunc        func(ctx context.Context, text string) (*service.PositionView, error)
	UnpackFunc       func(ctx context.Context, packed position.Packed) (*service.PositionView, error)
	RotateFunc       func(ctx context.Context, packed position.Packed, turns int) (*service.RotationResult, error)
	RotationsFunc    func(ctx context.Context, packed position.Packed) (*service.RotationSet, error)
	ListFixturesFunc func(ctx context.Context) ([]*service.FixtureInfo, error)
	LoadFixtureFunc  func(ctx context.Context, name string) (*service.FixtureResult, error)
	SaveFixtureFunc  func(ctx context.Context, name string, fixture *service.Fixture) error

	codec service.CodecService
}

func (m *MockCodecService) real() service.CodecService {
	if m.codec == nil {
		m.codec = service.NewCodecService(nil)
	}
	return m.codec
}

func (m *MockCodecService) Pack(ctx context.Context, grid position.Grid) (*service.PositionView, error) {
	if m.PackFunc != nil {
		return m.PackFunc(ctx, grid)
	}
	return m.real().Pack(ctx, grid)
}

func (m *MockCodecService) Parse(ctx context.Context, text string) (*service.PositionView, error) {
	if m.ParseFunc != nil {
		return m.ParseFunc(ctx, text)
	}
	return m.real().Parse(ctx, text)
}

func (m *MockCodecService) Unpack(ctx context.Context, packed position.Packed) (*service.PositionView, error) {
	if m.UnpackFunc != nil {
		return m.UnpackFunc(ctx, packed)
	}
	return m.real().Unpack(ctx, packed)
}

func (m *MockCodecService) Rotate(ctx context.Context, packed position.Packed, turns int) (*service.RotationResult, error) {
	if m.RotateFunc != nil {
		return m.RotateFunc(ctx, packed, turns)
	}
	return m.real().Rotate(ctx, packed, turns)
}

func (m *MockCodecService) Rotations(ctx context.Context, packed position.Packed) (*service.RotationSet, error) {
	if m.RotationsFunc != nil {
		return m.RotationsFunc(ctx, packed)
	}
	return m.real().Rotations(ctx, packed)
}

func (m *MockCodecService) ListFixtures(ctx context.Context) ([]*service.FixtureInfo, error) {
	if m.ListFixturesFunc != nil {
		return m.ListFixturesFunc(ctx)
	}
	return []*service.FixtureInfo{}, nil
}

func (m *MockCodecService) LoadFixture(ctx context.Context, name string) (*service.FixtureResult, error) {
	if m.LoadFixtureFunc != nil {
		return m.LoadFixtureFunc(ctx, name)
	}
	view, err := service.NewPositionView(position.Packed{})
	if err != nil {
		return nil, err
	}
	return &service.FixtureResult{
		FixtureID: name,
		Fixture:   &service.Fixture{Name: name, Tiles: "0 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0"},
		Position:  view,
	}, nil
}

func (m *MockCodecService) SaveFixture(ctx context.Context, name string, fixture *service.Fixture) error {
	if m.SaveFixtureFunc != nil {
		return m.SaveFixtureFunc(ctx, name, fixture)
	}
	return nil
}

// Test helpers
func setupTestServer(t *testing.T, mockService *MockCodecService) *Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub()
	go hub.Run(ctx)
	return NewServer(mockService, hub)
}

func makeRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewBuffer(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, target interface{}) {
	if err := json.Unmarshal(w.Body.Bytes(), target); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
}

// Codec Tests

func expectMalformedGrid(t *testing.T, w *httptest.ResponseRecorder) {
	var resp map[string]string
	parseResponse(t, w, &resp)
	if !strings.Contains(resp["error"], "malformed input") {
		t.Errorf("Expected malformed input error, got %q", resp["error"])
	}
}

func TestPack(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
		malformed      bool
		validateResp   func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:           "Pack grid",
			requestBody:    map[string]interface{}{"grid": scenarioGrid},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.PositionView
				parseResponse(t, w, &resp)
				if resp.Packed.String() != scenarioHex {
					t.Errorf("Expected packed %s, got %s", scenarioHex, resp.Packed)
				}
				if resp.Lanes[0] != "0000010202030304" || resp.Lanes[1] != "0001000000000001" {
					t.Errorf("Unexpected lanes %v", resp.Lanes)
				}
			},
		},
		{
			name:           "Pack tiles text",
			requestBody:    map[string]string{"tiles": "16 8 8 4 4 2 0 0 2 0 0 0 0 0 2 0"},
			expectedStatus: http.StatusOK,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp service.PositionView
				parseResponse(t, w, &resp)
				if resp.Grid != scenarioGrid {
					t.Errorf("Expected grid %v, got %v", scenarioGrid, resp.Grid)
				}
			},
		},
		{
			name: "Invalid tile",
			requestBody: map[string]interface{}{"grid": [4][4]uint32{
				{3, 0, 0, 0},
			}},
			expectedStatus: http.StatusBadRequest,
			validateResp: func(t *testing.T, w *httptest.ResponseRecorder) {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if !strings.Contains(resp["error"], "invalid tile") {
					t.Errorf("Expected invalid tile error, got %q", resp["error"])
				}
			},
		},
		{
			name:           "Missing grid and tiles",
			requestBody:    map[string]string{},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "Short grid",
			requestBody:    map[string]interface{}{"grid": [][]uint32{{2, 2}}},
			expectedStatus: http.StatusBadRequest,
			malformed:      true,
			validateResp:   expectMalformedGrid,
		},
		{
			name: "Oversized grid",
			requestBody: map[string]interface{}{"grid": [][]uint32{
				{0, 0, 0, 0, 0},
				{0, 0, 0, 0, 3},
				{0, 0, 0, 0, 0},
				{0, 0, 0, 0, 0},
				{3, 3, 3, 3, 3},
			}},
			expectedStatus: http.StatusBadRequest,
			malformed:      true,
			validateResp:   expectMalformedGrid,
		},
		{
			name: "Grid with a short row",
			requestBody: map[string]interface{}{"grid": [][]uint32{
				{2, 0, 0, 0},
				{0, 0},
				{0, 0, 0, 0},
				{0, 0, 0, 0},
			}},
			expectedStatus: http.StatusBadRequest,
			malformed:      true,
			validateResp:   expectMalformedGrid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			packed := false
			mock := &MockCodecService{}
			mock.PackFunc = func(ctx context.Context, grid position.Grid) (*service.PositionView, error) {
				packed = true
				return mock.real().Pack(ctx, grid)
			}
			server := setupTestServer(t, mock)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/pack", tt.requestBody))

			if tt.malformed && packed {
				t.Errorf("Malformed grid reached the service")
			}

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.validateResp != nil {
				tt.validateResp(t, w)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name           string
		text           string
		expectedStatus int
	}{
		{"Valid text", "16 8 8 4 4 2 0 0 2 0 0 0 0 0 2 0", http.StatusOK},
		{"Too few tokens", "2 2 2", http.StatusBadRequest},
		{"Not a number", "a 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0", http.StatusBadRequest},
		{"Not a power of two", "3 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t, &MockCodecService{})
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/parse", map[string]string{"text": tt.text}))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestUnpack(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		expectedStatus int
	}{
		{"Valid position", map[string]string{"packed": scenarioHex}, http.StatusOK},
		{"Exponent out of range", map[string]string{"packed": "12000000000000000000000000000000"}, http.StatusBadRequest},
		{"Short hex", map[string]string{"packed": "0403"}, http.StatusBadRequest},
		{"Missing packed", map[string]string{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t, &MockCodecService{})
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/unpack", tt.requestBody))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if w.Code == http.StatusOK {
				var resp service.PositionView
				parseResponse(t, w, &resp)
				if resp.Grid != scenarioGrid {
					t.Errorf("Expected grid %v, got %v", scenarioGrid, resp.Grid)
				}
			}
		})
	}
}

func TestRotate(t *testing.T) {
	rotated := position.Grid{
		{0, 2, 4, 16},
		{0, 0, 2, 8},
		{2, 0, 0, 8},
		{0, 0, 0, 4},
	}

	tests := []struct {
		name           string
		turns          int
		expectedStatus int
		expectedGrid   position.Grid
		expectedTurns  int
	}{
		{"One clockwise turn", 1, http.StatusOK, rotated, 1},
		{"Five turns equal one", 5, http.StatusOK, rotated, 1},
		{"Minus three equals one", -3, http.StatusOK, rotated, 1},
		{"Zero turns is identity", 0, http.StatusOK, scenarioGrid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := setupTestServer(t, &MockCodecService{})
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/rotate", map[string]interface{}{
				"packed": scenarioHex,
				"turns":  tt.turns,
			}))

			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}

			var resp service.RotationResult
			parseResponse(t, w, &resp)
			if resp.RequestedTurns != tt.turns {
				t.Errorf("Expected requested turns %d, got %d", tt.turns, resp.RequestedTurns)
			}
			if resp.NormalizedTurns != tt.expectedTurns {
				t.Errorf("Expected normalized turns %d, got %d", tt.expectedTurns, resp.NormalizedTurns)
			}
			if resp.To.Grid != tt.expectedGrid {
				t.Errorf("Expected grid %v, got %v", tt.expectedGrid, resp.To.Grid)
			}
		})
	}
}

func TestRotateInvalidPosition(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/rotate", map[string]interface{}{
		"packed": "ff000000000000000000000000000000",
		"turns":  1,
	}))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestRotations(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/rotations", map[string]string{"packed": scenarioHex}))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp service.RotationSet
	parseResponse(t, w, &resp)
	if resp.Distinct != 4 {
		t.Errorf("Expected 4 distinct rotations, got %d", resp.Distinct)
	}
	if resp.Rotations[0].Packed.String() != scenarioHex {
		t.Errorf("Expected identity first, got %s", resp.Rotations[0].Packed)
	}
}

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{"Malformed input", fmt.Errorf("failed to parse grid: %w", position.ErrMalformedInput), http.StatusBadRequest},
		{"Invalid fixture", fmt.Errorf("%w: bad", config.ErrInvalidFixture), http.StatusBadRequest},
		{"Missing fixture", fmt.Errorf("%w: x", config.ErrFixtureNotFound), http.StatusNotFound},
		{"Unexpected", errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockCodecService{
				ParseFunc: func(ctx context.Context, text string) (*service.PositionView, error) {
					return nil, tt.err
				},
			}
			server := setupTestServer(t, mock)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("POST", "/api/parse", map[string]string{"text": "x"}))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d", tt.expectedStatus, w.Code)
			}
		})
	}
}

// Fixture Tests

func TestListFixtures(t *testing.T) {
	mock := &MockCodecService{
		ListFixturesFunc: func(ctx context.Context) ([]*service.FixtureInfo, error) {
			return []*service.FixtureInfo{
				{FixtureID: "scenario", Name: "Scenario", Packed: scenarioHex},
				{FixtureID: "empty", Name: "Empty", Packed: strings.Repeat("0", 32)},
			}, nil
		},
	}
	server := setupTestServer(t, mock)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/fixtures", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var resp struct {
		Count    int                    `json:"count"`
		Fixtures []*service.FixtureInfo `json:"fixtures"`
	}
	parseResponse(t, w, &resp)
	if resp.Count != 2 {
		t.Errorf("Expected 2 fixtures, got %d", resp.Count)
	}
	if resp.Fixtures[0].FixtureID != "empty" {
		t.Errorf("Expected fixtures sorted by id, got %s first", resp.Fixtures[0].FixtureID)
	}
}

func TestGetFixture(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		setupMock      func(*MockCodecService)
		expectedStatus int
	}{
		{
			name:           "Existing fixture",
			path:           "/api/fixtures/scenario",
			expectedStatus: http.StatusOK,
		},
		{
			name: "Missing fixture",
			path: "/api/fixtures/nope",
			setupMock: func(m *MockCodecService) {
				m.LoadFixtureFunc = func(ctx context.Context, name string) (*service.FixtureResult, error) {
					return nil, fmt.Errorf("failed to load fixture: %w", config.ErrFixtureNotFound)
				}
			},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "Fixture rotations",
			path:           "/api/fixtures/scenario/rotations",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockCodecService{}
			if tt.setupMock != nil {
				tt.setupMock(mock)
			}
			server := setupTestServer(t, mock)
			w := httptest.NewRecorder()
			server.ServeHTTP(w, makeRequest("GET", tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestFixtureRotationsOfEmptyGrid(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("GET", "/api/fixtures/empty/rotations", nil))

	var resp service.RotationSet
	parseResponse(t, w, &resp)
	if resp.Distinct != 1 {
		t.Errorf("Expected 1 distinct rotation for the empty grid, got %d", resp.Distinct)
	}
}

func TestCreateFixture(t *testing.T) {
	var savedName string
	var saved *service.Fixture
	mock := &MockCodecService{
		SaveFixtureFunc: func(ctx context.Context, name string, fixture *service.Fixture) error {
			savedName = name
			saved = fixture
			return nil
		},
	}
	server := setupTestServer(t, mock)

	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/fixtures", map[string]interface{}{
		"id":    "mine",
		"name":  "Mine",
		"tiles": "2 0 0 0 0 0 0 0 0 0 0 0 0 0 0 0",
		"turns": 2,
	}))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	if savedName != "mine" {
		t.Errorf("Expected fixture id mine, got %q", savedName)
	}
	if saved == nil || saved.Name != "Mine" || saved.Turns != 2 {
		t.Errorf("Unexpected saved fixture %+v", saved)
	}

	w = httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/fixtures", map[string]string{"name": "No id"}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without id, got %d", w.Code)
	}
}

// Misc

func TestHealthAndIndex(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})

	for _, path := range []string{"/api", "/api/health"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, makeRequest("GET", path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, w.Code)
		}
	}
}

func TestMetrics(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})

	// Produce at least one observation
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest("POST", "/api/parse", map[string]string{"text": "2 2 2"}))

	w = httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "packed2048_codec_operations_total") {
		t.Error("Expected codec operation counter in metrics output")
	}
}

func TestWebSocketWithoutHub(t *testing.T) {
	server := NewServer(&MockCodecService{}, nil)
	w := httptest.NewRecorder()
	server.ServeHTTP(w, httptest.NewRequest("GET", "/ws", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", w.Code)
	}
}

func TestRotateBroadcastsToWebSocket(t *testing.T) {
	server := setupTestServer(t, &MockCodecService{})
	ts := httptest.NewServer(server)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?channel=board"
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var greeting websocket.Event
	if err := conn.ReadJSON(&greeting); err != nil {
		t.Fatalf("Failed to read greeting: %v", err)
	}
	if greeting.Name != websocket.EventSubscribed || greeting.Channel != "board" {
		t.Fatalf("Unexpected greeting %+v", greeting)
	}

	body, _ := json.Marshal(map[string]interface{}{"packed": scenarioHex, "turns": 1})
	resp, err := http.Post(ts.URL+"/api/rotate?channel=board", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Rotate request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var msg websocket.Event
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msg.Name != "rotated" || msg.Channel != "board" {
		t.Errorf("Unexpected message %+v", msg)
	}
	if msg.Position == nil || msg.Position.Grid[0] != [4]uint32{0, 2, 4, 16} {
		t.Errorf("Unexpected rotated position %+v", msg.Position)
	}
}
