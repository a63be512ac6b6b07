package devbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/patrol.report/internal/db"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/patrol"
)

// InvalidModeMessage is the single-endpoint answer to an unknown mode.
const InvalidModeMessage = `Invalid mode. Use "optimized" or "random".`

// Config configures a development backend.
type Config struct {
	Address string
	DB      *db.DB
	Planner *Planner
	// Seed drives the poaching simulation. Zero uses the current time.
	Seed int64
}

// Server serves the REST and single-endpoint contracts.
type Server struct {
	address string
	db      *db.DB
	planner *Planner
	simRand *rand.Rand
	server  *http.Server
}

// runRequest is the body accepted by both optimise endpoints.
type runRequest struct {
	Mode           string           `json:"mode"`
	GridSize       int              `json:"gridSize"`
	RangerCount    int              `json:"rangerCount"`
	MaxSteps       int              `json:"maxSteps"`
	RiskMap        [][]float64      `json:"riskMap"`
	AnimalMap      [][]bool         `json:"animalMap"`
	TerrainMap     [][]grid.Terrain `json:"terrainMap"`
	SimulationRuns int              `json:"simulationRuns,omitempty"`
}

func (r runRequest) model() *grid.Model {
	return &grid.Model{
		Size:    r.GridSize,
		Terrain: r.TerrainMap,
		Risk:    r.RiskMap,
		Animals: r.AnimalMap,
	}
}

type runResponse struct {
	patrol.Result
	Simulation *Simulation `json:"simulation,omitempty"`
}

// NewServer builds a server. A nil DB disables the persistence routes.
func NewServer(cfg Config) *Server {
	planner := cfg.Planner
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if planner == nil {
		planner = NewPlanner(seed)
	}
	s := &Server{
		address: cfg.Address,
		db:      cfg.DB,
		planner: planner,
		simRand: rand.New(rand.NewSource(seed)),
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the full route table behind the CORS and logging layers.
func (s *Server) Handler() http.Handler {
	return httputil.LoggingMiddleware(httputil.CORSMiddleware("GET, POST, OPTIONS", s.ServeMux()))
}

// ServeMux returns the bare route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/optimize", s.handleModeOptimize)
	mux.HandleFunc("/api/optimize", s.handleOptimize)
	mux.HandleFunc("/api/maps", s.handleMaps)
	mux.HandleFunc("/api/maps/", s.handleMap)
	mux.HandleFunc("/api/results", s.handleResults)
	mux.HandleFunc("/api/results/", s.handleResult)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})
	if s.db != nil {
		if err := s.db.AttachAdminRoutes(mux); err != nil {
			monitoring.Warnf("debug routes unavailable: %v", err)
		}
	}
	return mux
}

// Start serves until ctx is cancelled, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting dev backend on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dev backend: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down dev backend...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("dev backend shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("dev backend force close error: %v", err)
		}
	}
	monitoring.Logf("dev backend stopped")
	return nil
}

func writeNotFound(w http.ResponseWriter) {
	httputil.WriteJSON(w, http.StatusNotFound, map[string]string{
		"error":   "NOT_FOUND",
		"message": "Resource not found",
	})
}

func writeFailure(w http.ResponseWriter, code, msg string) {
	httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   code,
		"message": msg,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok"})
}

// handleOptimize serves the REST run. The body's mode picks the walk; an
// empty mode plans an optimised patrol from strategic starts.
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeNotFound(w)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, "OPTIMIZATION_FAILED", "invalid request body: "+err.Error())
		return
	}
	mode := patrol.ModeOptimized
	starts := StrategicStarts
	if req.Mode != "" {
		m, err := patrol.ParseMode(req.Mode)
		if err != nil {
			writeFailure(w, "OPTIMIZATION_FAILED", err.Error())
			return
		}
		mode = m
	}
	if mode == patrol.ModeRandom {
		starts = RandomStarts
	}

	resp, err := s.run(req, mode, starts)
	if err != nil {
		monitoring.Errorf("optimize: %v", err)
		writeFailure(w, "OPTIMIZATION_FAILED", err.Error())
		return
	}
	httputil.WriteJSONOK(w, resp)
}

// handleModeOptimize serves the single-endpoint run. Failures carry only an
// error field.
func (s *Server) handleModeOptimize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeNotFound(w)
		return
	}
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	mode, err := patrol.ParseMode(req.Mode)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": InvalidModeMessage})
		return
	}

	resp, err := s.run(req, mode, RandomStarts)
	if err != nil {
		monitoring.Errorf("optimize (%s): %v", mode, err)
		httputil.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) run(req runRequest, mode patrol.Mode, starts StartStrategy) (*runResponse, error) {
	m := req.model()
	result, err := s.planner.Plan(m, mode, req.RangerCount, req.MaxSteps, starts)
	if err != nil {
		return nil, err
	}
	resp := &runResponse{Result: *result}
	if req.SimulationRuns > 0 {
		s.planner.mu.Lock()
		sim := Simulate(m, result.Coverage, req.SimulationRuns, s.simRand)
		s.planner.mu.Unlock()
		resp.Simulation = &sim
	}
	return resp, nil
}

func (s *Server) requireDB(w http.ResponseWriter) bool {
	if s.db == nil {
		writeFailure(w, "INTERNAL_ERROR", "persistence is disabled")
		return false
	}
	return true
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !s.requireDB(w) {
			return
		}
		maps, err := s.db.ListMaps()
		if err != nil {
			monitoring.Errorf("list maps: %v", err)
			writeFailure(w, "INTERNAL_ERROR", err.Error())
			return
		}
		httputil.WriteJSONOK(w, maps)
	case http.MethodPost:
		if !s.requireDB(w) {
			return
		}
		var rec patrol.MapRecord
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			writeFailure(w, "INTERNAL_ERROR", "invalid request body: "+err.Error())
			return
		}
		receipt, err := s.db.SaveMap(rec)
		if err != nil {
			monitoring.Errorf("save map: %v", err)
			writeFailure(w, "INTERNAL_ERROR", err.Error())
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, receipt)
	default:
		writeNotFound(w)
	}
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/maps/")
	if r.Method != http.MethodGet || id == "" || strings.Contains(id, "/") {
		writeNotFound(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	m, err := s.db.GetMap(id)
	if errors.Is(err, db.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		monitoring.Errorf("get map %s: %v", id, err)
		writeFailure(w, "INTERNAL_ERROR", err.Error())
		return
	}
	httputil.WriteJSONOK(w, m)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeNotFound(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	var rec patrol.ResultRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeFailure(w, "INTERNAL_ERROR", "invalid request body: "+err.Error())
		return
	}
	receipt, err := s.db.SaveResult(rec)
	if err != nil {
		monitoring.Errorf("save result: %v", err)
		writeFailure(w, "INTERNAL_ERROR", err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/results/")
	if r.Method != http.MethodGet || id == "" || strings.Contains(id, "/") {
		writeNotFound(w)
		return
	}
	if !s.requireDB(w) {
		return
	}
	res, err := s.db.GetResult(id)
	if errors.Is(err, db.ErrNotFound) {
		writeNotFound(w)
		return
	}
	if err != nil {
		monitoring.Errorf("get result %s: %v", id, err)
		writeFailure(w, "INTERNAL_ERROR", err.Error())
		return
	}
	httputil.WriteJSONOK(w, res)
}
