package patrol

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func testParams(t *testing.T) RunParameters {
	t.Helper()
	m, err := grid.NewGenerator(1).Generate(4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return RunParameters{RangerCount: 2, MaxSteps: 5, Map: m}
}

const okRun = `{"routes":[{"rangerId":0,"path":[[0,0],[0,1]]},{"rangerId":1,"path":[[1,1]]}],
"stats":{"beforeRisk":0.42,"afterRisk":0.21,"riskReduction":"50%","highRiskCoverage":"100%"}}`

func TestClient_Optimize_Success(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, okRun)
	c := NewClient(mock, RESTBackend{BaseURL: "http://patrol.test/"})

	res, err := c.Optimize(context.Background(), testParams(t))
	if err != nil {
		t.Fatalf("Optimize: %v", err)
	}

	if len(res.Routes) != 2 {
		t.Fatalf("got %d routes, want 2", len(res.Routes))
	}
	if got := res.Routes[0].Path; len(got) != 2 || got[1] != grid.C(0, 1) {
		t.Errorf("route 0 path = %v", got)
	}
	if res.Stats.RiskReduction != "50%" || res.Stats.BeforeRisk != 0.42 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.MaxPathLength() != 2 {
		t.Errorf("MaxPathLength = %d, want 2", res.MaxPathLength())
	}

	req := mock.GetRequest(0)
	if req.Method != http.MethodPost || req.URL.String() != "http://patrol.test/api/optimize" {
		t.Errorf("request = %s %s", req.Method, req.URL)
	}
	if req.Header.Get("Content-Type") != "application/json" || req.Header.Get("Accept") != "application/json" {
		t.Errorf("headers = %v", req.Header)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(mock.RequestBody(0), &body); err != nil {
		t.Fatalf("request body: %v", err)
	}
	for _, key := range []string{"gridSize", "rangerCount", "maxSteps", "riskMap", "animalMap", "terrainMap"} {
		if _, ok := body[key]; !ok {
			t.Errorf("request body missing %q", key)
		}
	}
	if body["rangerCount"] != 2.0 || body["gridSize"] != 4.0 {
		t.Errorf("rangerCount/gridSize = %v/%v", body["rangerCount"], body["gridSize"])
	}
}

func TestClient_Optimize_ServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message":"bad input"}`))
	}))
	defer server.Close()

	c := NewClient(server.Client(), RESTBackend{BaseURL: server.URL})
	_, err := c.Optimize(context.Background(), testParams(t))

	if !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("error = %v, want OptimizationFailed", err)
	}
	var pe *Error
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not *Error", err)
	}
	if pe.Kind != OptimizationFailed || pe.Message != "bad input" || pe.Status != 500 {
		t.Errorf("error = %+v", pe)
	}
	if UserMessage(err) != "bad input" {
		t.Errorf("UserMessage = %q", UserMessage(err))
	}
}

func TestClient_DefaultMessages(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name     string
		call     func(c *Client) error
		sentinel error
		want     string
	}{
		{"optimize", func(c *Client) error { _, err := c.Optimize(ctx, testParams(t)); return err }, ErrOptimizationFailed, "Optimization failed"},
		{"random", func(c *Client) error { _, err := c.RandomPatrol(ctx, testParams(t)); return err }, ErrOptimizationFailed, "Random patrol failed"},
		{"save map", func(c *Client) error { _, err := c.SaveMap(ctx, MapRecord{Name: "x"}); return err }, ErrMapSaveFailed, "Failed to save map"},
		{"list maps", func(c *Client) error { _, err := c.GetMaps(ctx); return err }, ErrMapFetchFailed, "Failed to fetch maps"},
		{"get map", func(c *Client) error { _, err := c.GetMap(ctx, "abc"); return err }, ErrMapFetchFailed, "Failed to fetch map"},
		{"save result", func(c *Client) error { _, err := c.SaveResult(ctx, ResultRecord{MapID: "m"}); return err }, ErrResultSaveFailed, "Failed to save result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient().AddResponse(http.StatusBadGateway, "")
			err := tt.call(NewClient(mock, RESTBackend{BaseURL: "http://patrol.test"}))

			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}
			if got := UserMessage(err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_TransportErrorCollapsesIntoKind(t *testing.T) {
	netErr := errors.New("connection refused")
	mock := httputil.NewMockHTTPClient().AddErrorResponse(netErr)
	c := NewClient(mock, RESTBackend{BaseURL: "http://patrol.test"})

	_, err := c.GetMaps(context.Background())
	if !errors.Is(err, ErrMapFetchFailed) {
		t.Fatalf("error = %v, want MapFetchFailed", err)
	}
	if !errors.Is(err, netErr) {
		t.Error("transport error should be reachable through Unwrap")
	}
	if UserMessage(err) != "Failed to fetch maps" {
		t.Errorf("message = %q", UserMessage(err))
	}
}

func TestClient_UndecodableSuccessBody(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, "<html>")
	c := NewClient(mock, RESTBackend{BaseURL: "http://patrol.test"})

	_, err := c.Optimize(context.Background(), testParams(t))
	if !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("error = %v, want OptimizationFailed", err)
	}
}

func TestClient_InvalidParamsMakeNoRequest(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	c := NewClient(mock, RESTBackend{BaseURL: "http://patrol.test"})

	params := testParams(t)
	params.RangerCount = 0
	_, err := c.Optimize(context.Background(), params)

	if !errors.Is(err, ErrOptimizationFailed) {
		t.Fatalf("error = %v", err)
	}
	if mock.RequestCount() != 0 {
		t.Errorf("made %d requests, want 0", mock.RequestCount())
	}
}

func TestClient_ModeBackend_RunBodies(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, okRun).
		AddResponse(http.StatusOK, okRun)
	c := NewClient(mock, ModeBackend{URL: "https://lambda.test/prod/patrol"})

	if _, err := c.Optimize(context.Background(), testParams(t)); err != nil {
		t.Fatalf("Optimize: %v", err)
	}
	if _, err := c.RandomPatrol(context.Background(), testParams(t)); err != nil {
		t.Fatalf("RandomPatrol: %v", err)
	}

	for i, want := range []Mode{ModeOptimized, ModeRandom} {
		req := mock.GetRequest(i)
		if req.URL.String() != "https://lambda.test/prod/patrol" || req.Method != http.MethodPost {
			t.Errorf("request %d = %s %s", i, req.Method, req.URL)
		}
		var body struct {
			Mode Mode `json:"mode"`
		}
		if err := json.Unmarshal(mock.RequestBody(i), &body); err != nil {
			t.Fatalf("body %d: %v", i, err)
		}
		if body.Mode != want {
			t.Errorf("request %d mode = %q, want %q", i, body.Mode, want)
		}
	}
}

func TestClient_ModeBackend_ErrorField(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusBadRequest, `{"error":"Invalid mode. Use \"optimized\" or \"random\"."}`)
	c := NewClient(mock, ModeBackend{URL: "https://lambda.test"})

	_, err := c.Optimize(context.Background(), testParams(t))
	if !strings.HasPrefix(UserMessage(err), "Invalid mode") {
		t.Errorf("message = %q", UserMessage(err))
	}
}

func TestClient_ModeBackend_NoPersistence(t *testing.T) {
	mock := httputil.NewMockHTTPClient()
	c := NewClient(mock, ModeBackend{URL: "https://lambda.test"})
	ctx := context.Background()

	_, err := c.SaveMap(ctx, MapRecord{Name: "reserve"})
	if !errors.Is(err, ErrMapSaveFailed) || !errors.Is(err, ErrPersistenceUnavailable) {
		t.Errorf("SaveMap error = %v", err)
	}
	_, err = c.GetMaps(ctx)
	if !errors.Is(err, ErrMapFetchFailed) {
		t.Errorf("GetMaps error = %v", err)
	}
	_, err = c.SaveResult(ctx, ResultRecord{})
	if !errors.Is(err, ErrResultSaveFailed) {
		t.Errorf("SaveResult error = %v", err)
	}
	if UserMessage(err) != ErrPersistenceUnavailable.Error() {
		t.Errorf("message = %q", UserMessage(err))
	}
	if mock.RequestCount() != 0 {
		t.Errorf("made %d requests, want 0", mock.RequestCount())
	}
}

func TestClient_MapEndpoints(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"mapId":"m-1","createdAt":"2026-01-02T03:04:05Z"}`).
		AddResponse(http.StatusOK, `[{"mapId":"m-1","name":"North","gridSize":1,"terrainMap":[[1]],"riskMap":[[0.5]],"animalMap":[[true]]}]`).
		AddResponse(http.StatusOK, `{"mapId":"m 1","name":"North","gridSize":1,"terrainMap":[[1]],"riskMap":[[0.5]],"animalMap":[[true]]}`).
		AddResponse(http.StatusOK, `{"resultId":"r-1","createdAt":"2026-01-02T03:04:05Z"}`)
	c := NewClient(mock, RESTBackend{BaseURL: "http://patrol.test"})
	ctx := context.Background()

	m, _ := grid.NewModel(1)
	receipt, err := c.SaveMap(ctx, MapRecord{Name: "North", Model: *m})
	if err != nil || receipt.MapID != "m-1" {
		t.Fatalf("SaveMap = %+v, %v", receipt, err)
	}

	maps, err := c.GetMaps(ctx)
	if err != nil || len(maps) != 1 || maps[0].Name != "North" || maps[0].Size != 1 {
		t.Fatalf("GetMaps = %+v, %v", maps, err)
	}

	one, err := c.GetMap(ctx, "m 1")
	if err != nil || !one.Animals[0][0] || one.Risk[0][0] != 0.5 {
		t.Fatalf("GetMap = %+v, %v", one, err)
	}

	res, err := c.SaveResult(ctx, ResultRecord{MapID: "m-1", RangerCount: 2})
	if err != nil || res.ResultID != "r-1" {
		t.Fatalf("SaveResult = %+v, %v", res, err)
	}

	wantCalls := []string{
		"POST http://patrol.test/api/maps",
		"GET http://patrol.test/api/maps",
		"GET http://patrol.test/api/maps/m%201",
		"POST http://patrol.test/api/results",
	}
	for i, want := range wantCalls {
		req := mock.GetRequest(i)
		if got := req.Method + " " + req.URL.String(); got != want {
			t.Errorf("call %d = %q, want %q", i, got, want)
		}
	}
	if len(mock.RequestBody(1)) != 0 {
		t.Error("GET should send no body")
	}

	var sent map[string]interface{}
	if err := json.Unmarshal(mock.RequestBody(0), &sent); err != nil {
		t.Fatalf("save body: %v", err)
	}
	if sent["name"] != "North" || sent["gridSize"] != 1.0 {
		t.Errorf("save body = %v", sent)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okRun))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.Client(), RESTBackend{BaseURL: server.URL})
	_, err := c.Optimize(ctx, testParams(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
