package devbackend

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/patrol.report/internal/testutil"
)

// These drive the mux directly with a recorder, without a listener.

func TestHandlers_Health(t *testing.T) {
	mux := NewServer(Config{Planner: NewPlanner(1)}).ServeMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodGet, "/health", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestHandlers_OptimizeRejectsGet(t *testing.T) {
	mux := NewServer(Config{Planner: NewPlanner(1)}).ServeMux()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodGet, "/api/optimize", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	var body map[string]string
	testutil.DecodeJSON(t, rec, &body)
	if body["error"] != "NOT_FOUND" {
		t.Errorf("error = %q, want NOT_FOUND", body["error"])
	}
}

func TestHandlers_OptimizeRecorder(t *testing.T) {
	mux := NewServer(Config{Planner: NewPlanner(1)}).ServeMux()
	m := fixture(t)
	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/optimize", map[string]interface{}{
		"gridSize":    m.Size,
		"rangerCount": 2,
		"maxSteps":    4,
		"riskMap":     m.Risk,
		"animalMap":   m.Animals,
		"terrainMap":  m.Terrain,
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp runResponse
	testutil.DecodeJSON(t, rec, &resp)
	if len(resp.Routes) != 2 {
		t.Fatalf("routes = %d, want 2", len(resp.Routes))
	}
	if resp.Simulation != nil {
		t.Error("simulation should be omitted unless requested")
	}
}

func TestHandlers_ModeBadBody(t *testing.T) {
	mux := NewServer(Config{Planner: NewPlanner(1)}).ServeMux()
	req := httptest.NewRequest(http.MethodPost, "/optimize", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code == http.StatusOK {
		t.Fatalf("empty body accepted")
	}
}
