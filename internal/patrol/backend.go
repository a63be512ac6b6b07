package patrol

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Operation is one of the calls the client can make.
type Operation int

const (
	OpOptimize Operation = iota
	OpRandomPatrol
	OpSaveMap
	OpListMaps
	OpGetMap
	OpSaveResult
)

type opInfo struct {
	name           string
	kind           Kind
	defaultMessage string
}

var operations = map[Operation]opInfo{
	OpOptimize:     {"optimize", OptimizationFailed, "Optimization failed"},
	OpRandomPatrol: {"random patrol", OptimizationFailed, "Random patrol failed"},
	OpSaveMap:      {"save map", MapSaveFailed, "Failed to save map"},
	OpListMaps:     {"list maps", MapFetchFailed, "Failed to fetch maps"},
	OpGetMap:       {"get map", MapFetchFailed, "Failed to fetch map"},
	OpSaveResult:   {"save result", ResultSaveFailed, "Failed to save result"},
}

func (op Operation) String() string {
	if info, ok := operations[op]; ok {
		return info.name
	}
	return fmt.Sprintf("Operation(%d)", int(op))
}

// Endpoint is where and how an operation is sent.
type Endpoint struct {
	Method string
	URL    string
}

// Backend maps client operations onto a concrete endpoint layout. An
// operation the backend cannot serve returns an error and the client makes no
// request.
type Backend interface {
	Name() string
	Endpoint(op Operation, id string) (Endpoint, error)
}

// RESTBackend is the multi-resource layout rooted at BaseURL:
// /api/optimize, /api/maps, /api/maps/{id} and /api/results.
type RESTBackend struct {
	BaseURL string
}

func (b RESTBackend) Name() string { return "rest" }

func (b RESTBackend) Endpoint(op Operation, id string) (Endpoint, error) {
	base := strings.TrimRight(b.BaseURL, "/")
	switch op {
	case OpOptimize, OpRandomPatrol:
		return Endpoint{http.MethodPost, base + "/api/optimize"}, nil
	case OpSaveMap:
		return Endpoint{http.MethodPost, base + "/api/maps"}, nil
	case OpListMaps:
		return Endpoint{http.MethodGet, base + "/api/maps"}, nil
	case OpGetMap:
		if id == "" {
			return Endpoint{}, fmt.Errorf("map id is required")
		}
		return Endpoint{http.MethodGet, base + "/api/maps/" + url.PathEscape(id)}, nil
	case OpSaveResult:
		return Endpoint{http.MethodPost, base + "/api/results"}, nil
	}
	return Endpoint{}, fmt.Errorf("unsupported operation %v", op)
}

// ModeBackend is a single fixed endpoint that runs either planner depending on
// the mode field of the request body. It has no storage.
type ModeBackend struct {
	URL string
}

func (b ModeBackend) Name() string { return "mode" }

func (b ModeBackend) Endpoint(op Operation, _ string) (Endpoint, error) {
	switch op {
	case OpOptimize, OpRandomPatrol:
		return Endpoint{http.MethodPost, b.URL}, nil
	}
	return Endpoint{}, ErrPersistenceUnavailable
}

// NewBackend builds a backend by name ("rest" or "mode").
func NewBackend(name, target string) (Backend, error) {
	if target == "" {
		return nil, fmt.Errorf("backend %q needs a URL", name)
	}
	switch name {
	case "rest":
		return RESTBackend{BaseURL: target}, nil
	case "mode":
		return ModeBackend{URL: target}, nil
	}
	return nil, fmt.Errorf("unknown backend %q (want rest or mode)", name)
}
