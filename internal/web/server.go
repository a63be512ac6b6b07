// Package web serves the browser front end of the visualiser: the board
// page, the JSON control API, a live event stream of board frames and the
// chart pages.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"strings"
	"time"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/patrol.report/internal/app"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/version"
	"github.com/banshee-data/patrol.report/internal/view"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Defaults pre-fill the page controls and stand in for omitted request
// fields.
type Defaults struct {
	GridSize    int `json:"gridSize"`
	RangerCount int `json:"rangerCount"`
	MaxSteps    int `json:"maxSteps"`
	MaxGridSize int `json:"maxGridSize"`
}

// Config configures a Server.
type Config struct {
	Address     string
	Controller  *app.Controller
	Broadcaster *Broadcaster
	Defaults    Defaults
	// Backend names the patrol backend shape for display.
	Backend string
}

// Server is the visualiser's HTTP front end.
type Server struct {
	address  string
	ctrl     *app.Controller
	events   *Broadcaster
	defaults Defaults
	backend  string
	server   *http.Server
}

// NewServer creates a server. A nil Broadcaster gets a fresh one, though
// frames only reach it if the controller publishes to it.
func NewServer(cfg Config) *Server {
	events := cfg.Broadcaster
	if events == nil {
		events = NewBroadcaster()
	}
	s := &Server{
		address:  cfg.Address,
		ctrl:     cfg.Controller,
		events:   events,
		defaults: cfg.Defaults,
		backend:  cfg.Backend,
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           httputil.LoggingMiddleware(s.ServeMux()),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ServeMux returns the route table.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/map/generate", s.handleGenerate)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/maps", s.handleMaps)
	mux.HandleFunc("/api/maps/", s.handleLoadMap)
	mux.HandleFunc("/api/results", s.handleSaveResult)
	mux.HandleFunc("/api/events", s.handleEvents)
	mux.HandleFunc("/charts/stats", s.handleStatsChart)
	mux.HandleFunc("/charts/risk", s.handleRiskChart)
	mux.HandleFunc("/charts/risk.png", s.handleRiskPNG)
	return mux
}

// Start serves until ctx is cancelled, then shuts down gracefully.
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
		monitoring.Logf("Starting HTTP server on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	monitoring.Logf("shutting down HTTP server...")
	// Event streams only end when their subscription closes.
	s.events.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

// statusFor maps an operation error onto an HTTP status.
func statusFor(err error) int {
	var perr *patrol.Error
	switch {
	case errors.Is(err, app.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, app.ErrNoMap), errors.Is(err, app.ErrNoResult):
		return http.StatusPreconditionFailed
	case errors.Is(err, grid.ErrInvalidSize):
		return http.StatusBadRequest
	case errors.Is(err, patrol.ErrPersistenceUnavailable):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &perr):
		if perr.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteJSONError(w, statusFor(err), patrol.UserMessage(err))
}

// decodeOptional decodes a JSON body if there is one.
func decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.ContentLength == 0 {
		return true
	}
	return httputil.DecodeJSON(w, r, v)
}

type indexData struct {
	Defaults Defaults
	Legend   string
	Backend  string
	Version  string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{
		Defaults: s.defaults,
		Legend:   view.Legend,
		Backend:  s.backend,
		Version:  version.String(),
	}
	if err := indexTemplate.Execute(w, data); err != nil {
		monitoring.Errorf("render index: %v", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{"status": "ok", "version": version.String()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.State())
}

type generateRequest struct {
	GridSize int `json:"gridSize"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req generateRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	size := req.GridSize
	if size == 0 {
		size = s.defaults.GridSize
	}
	if s.defaults.MaxGridSize > 0 && size > s.defaults.MaxGridSize {
		httputil.BadRequest(w, fmt.Sprintf("grid size must be at most %d", s.defaults.MaxGridSize))
		return
	}
	if _, err := s.ctrl.GenerateMap(size); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.State())
}

type runRequest struct {
	Mode        string `json:"mode"`
	RangerCount int    `json:"rangerCount"`
	MaxSteps    int    `json:"maxSteps"`
}

type runResponse struct {
	Result *patrol.Result `json:"result"`
	State  app.State      `json:"state"`
}

// handleRun blocks until the run's playback finishes. The request context
// cancels playback if the caller goes away.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req runRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	mode := patrol.ModeOptimized
	if req.Mode != "" {
		m, err := patrol.ParseMode(req.Mode)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		mode = m
	}
	rangers := req.RangerCount
	if rangers == 0 {
		rangers = s.defaults.RangerCount
	}
	steps := req.MaxSteps
	if steps == 0 {
		steps = s.defaults.MaxSteps
	}
	if rangers < 0 || steps < 0 {
		httputil.BadRequest(w, "ranger count and max steps must be positive")
		return
	}

	result, err := s.ctrl.Run(r.Context(), mode, rangers, steps)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, runResponse{Result: result, State: s.ctrl.State()})
}

type saveMapRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		maps, err := s.ctrl.ListMaps(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		// Listings omit the matrices.
		type listing struct {
			MapID     string `json:"mapId"`
			Name      string `json:"name"`
			GridSize  int    `json:"gridSize"`
			CreatedAt string `json:"createdAt"`
		}
		out := make([]listing, 0, len(maps))
		for _, m := range maps {
			out = append(out, listing{MapID: m.MapID, Name: m.Name, GridSize: m.Size, CreatedAt: m.CreatedAt})
		}
		httputil.WriteJSONOK(w, out)
	case http.MethodPost:
		var req saveMapRequest
		if !decodeOptional(w, r, &req) {
			return
		}
		receipt, err := s.ctrl.SaveMap(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusCreated, receipt)
	default:
		httputil.MethodNotAllowed(w)
	}
}

// handleLoadMap serves POST /api/maps/{id}/load.
func (s *Server) handleLoadMap(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/maps/")
	id, action, ok := strings.Cut(rest, "/")
	if !ok || id == "" || action != "load" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	if _, err := s.ctrl.LoadMap(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSONOK(w, s.ctrl.State())
}

func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	receipt, err := s.ctrl.SaveLastResult(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, receipt)
}

// handleEvents streams board frames as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.InternalServerError(w, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	id, frames := s.events.Subscribe()
	defer s.events.Unsubscribe(id)

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			payload, err := json.Marshal(f)
			if err != nil {
				monitoring.Errorf("encode frame: %v", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleStatsChart(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.ctrl.Presenter().RenderComparison(w); err != nil {
		monitoring.Errorf("render stats chart: %v", err)
	}
}

func (s *Server) currentModel(w http.ResponseWriter) *grid.Model {
	m := s.ctrl.Model()
	if m == nil {
		writeError(w, app.ErrNoMap)
	}
	return m
}

func (s *Server) handleRiskChart(w http.ResponseWriter, r *http.Request) {
	m := s.currentModel(w)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.RiskHeatmapChart(m, w); err != nil {
		monitoring.Errorf("render risk chart: %v", err)
	}
}

func (s *Server) handleRiskPNG(w http.ResponseWriter, r *http.Request) {
	m := s.currentModel(w)
	if m == nil {
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := view.RiskHeatmapPNG(m, w, 6*vg.Inch); err != nil {
		monitoring.Errorf("render risk png: %v", err)
	}
}
