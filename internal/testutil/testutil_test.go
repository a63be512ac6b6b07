package testutil

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAssertHelpersPass(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, errors.New("boom"))
}

func TestNewJSONRequestAndDecode(t *testing.T) {
	req := NewJSONRequest(t, http.MethodPost, "/api/map/generate", map[string]int{"gridSize": 8})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("content type = %q", req.Header.Get("Content-Type"))
	}

	rec := httptest.NewRecorder()
	_, _ = rec.Body.ReadFrom(req.Body)

	var got map[string]int
	DecodeJSON(t, rec, &got)
	if got["gridSize"] != 8 {
		t.Errorf("gridSize = %d, want 8", got["gridSize"])
	}
}

func TestNewJSONRequest_NilBody(t *testing.T) {
	req := NewJSONRequest(t, http.MethodGet, "/api/maps", nil)
	if req.ContentLength != 0 {
		t.Errorf("content length = %d, want 0", req.ContentLength)
	}
}
