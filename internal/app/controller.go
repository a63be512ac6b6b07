// Package app owns the application state of the visualiser: the current map,
// its board, the stats panels and the loading flag that serialises patrol
// runs.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/patrol.report/internal/animate"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/stats"
	"github.com/banshee-data/patrol.report/internal/timeutil"
	"github.com/banshee-data/patrol.report/internal/view"
)

var (
	// ErrNoMap is returned by operations that need a generated map.
	ErrNoMap = errors.New("Please generate a map first!")
	// ErrBusy is returned while a patrol run is in flight.
	ErrBusy = errors.New("a patrol run is already in progress")
	// ErrNoResult is returned when there is no finished run to save.
	ErrNoResult = errors.New("no patrol result to save yet")
)

// Service is the patrol backend as seen by the controller. *patrol.Client
// satisfies it.
type Service interface {
	Run(ctx context.Context, mode patrol.Mode, params patrol.RunParameters) (*patrol.Result, error)
	SaveMap(ctx context.Context, rec patrol.MapRecord) (*patrol.SaveReceipt, error)
	GetMaps(ctx context.Context) ([]patrol.SavedMap, error)
	GetMap(ctx context.Context, id string) (*patrol.SavedMap, error)
	SaveResult(ctx context.Context, rec patrol.ResultRecord) (*patrol.SaveReceipt, error)
}

// Notifier shows a blocking message to the user.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }

// Config configures a Controller. Service and Generator are required.
type Config struct {
	Service        Service
	Generator      *grid.Generator
	AnimationDelay time.Duration
	Clock          timeutil.Clock
	Notifier       Notifier
	// OnFrame receives a board snapshot whenever the board changes.
	OnFrame func(view.Frame)
}

// LastRun is the most recent completed run.
type LastRun struct {
	Mode        patrol.Mode    `json:"mode"`
	RangerCount int            `json:"rangerCount"`
	MaxSteps    int            `json:"maxSteps"`
	Result      *patrol.Result `json:"result"`
}

// State is a point-in-time view of the controller for display.
type State struct {
	HasMap         bool          `json:"hasMap"`
	Loading        bool          `json:"loading"`
	MapID          string        `json:"mapId,omitempty"`
	Frame          *view.Frame   `json:"frame,omitempty"`
	Summary        *grid.Summary `json:"summary,omitempty"`
	ResultsVisible bool          `json:"resultsVisible"`
	Panels         []stats.Panel `json:"panels"`
	LastRun        *LastRun      `json:"lastRun,omitempty"`
}

// Controller coordinates map generation, backend calls, playback and stats.
type Controller struct {
	service   Service
	generator *grid.Generator
	delay     time.Duration
	clock     timeutil.Clock
	notifier  Notifier
	onFrame   func(view.Frame)
	presenter *stats.Presenter

	genMu sync.Mutex

	mu      sync.Mutex
	model   *grid.Model
	board   *view.Board
	loading bool
	mapID   string
	last    *LastRun
}

// New creates a controller with no map.
func New(cfg Config) *Controller {
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(msg string) { monitoring.Logf("notice: %s", msg) })
	}
	return &Controller{
		service:   cfg.Service,
		generator: cfg.Generator,
		delay:     cfg.AnimationDelay,
		clock:     clock,
		notifier:  notifier,
		onFrame:   cfg.OnFrame,
		presenter: stats.NewPresenter(),
	}
}

// Presenter exposes the stats panels.
func (c *Controller) Presenter() *stats.Presenter { return c.presenter }

// Model returns a copy of the current map, or nil.
func (c *Controller) Model() *grid.Model {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		return nil
	}
	return c.model.Clone()
}

// Board returns the current board, or nil before the first map.
func (c *Controller) Board() *view.Board {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board
}

// Loading reports whether a run is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// State returns a snapshot for display.
func (c *Controller) State() State {
	c.mu.Lock()
	s := State{
		HasMap:  c.model != nil,
		Loading: c.loading,
		MapID:   c.mapID,
		LastRun: c.last,
	}
	model, board := c.model, c.board
	c.mu.Unlock()

	if board != nil {
		f := board.Snapshot()
		s.Frame = &f
	}
	if model != nil {
		sum := grid.Summarize(model)
		s.Summary = &sum
	}
	s.ResultsVisible = c.presenter.AnyVisible()
	s.Panels = c.presenter.Panels()
	return s
}

// GenerateMap replaces the current map with a freshly generated one and
// hides the stats panels.
func (c *Controller) GenerateMap(size int) (*grid.Model, error) {
	c.genMu.Lock()
	m, err := c.generator.Generate(size)
	c.genMu.Unlock()
	if err != nil {
		return nil, err
	}
	if err := c.install(m, ""); err != nil {
		return nil, err
	}
	return m.Clone(), nil
}

// install makes m the current map unless a run is in flight.
func (c *Controller) install(m *grid.Model, mapID string) error {
	board := view.NewBoard(m)

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		return ErrBusy
	}
	c.model = m
	c.board = board
	c.mapID = mapID
	c.last = nil
	c.mu.Unlock()

	c.presenter.HideAll()
	c.publish(board, 0, 0)
	return nil
}

func (c *Controller) publish(board *view.Board, step, steps int) {
	if c.onFrame == nil || board == nil {
		return
	}
	f := board.Snapshot()
	f.Step, f.Steps = step, steps
	c.onFrame(f)
}

// Run requests routes for the current map, plays them back and shows the
// stats in the panel for mode. Failures are logged, passed to the notifier
// and returned.
func (c *Controller) Run(ctx context.Context, mode patrol.Mode, rangerCount, maxSteps int) (*patrol.Result, error) {
	c.mu.Lock()
	if c.model == nil {
		c.mu.Unlock()
		c.notifier.Notify(ErrNoMap.Error())
		return nil, ErrNoMap
	}
	if c.loading {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	c.loading = true
	model, board := c.model, c.board
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.loading = false
		c.mu.Unlock()
	}()

	result, err := c.service.Run(ctx, mode, patrol.RunParameters{
		RangerCount: rangerCount,
		MaxSteps:    maxSteps,
		Map:         model,
	})
	if err != nil {
		c.report(mode, err)
		return nil, err
	}

	player := &animate.Animator{
		Surface: board,
		Delay:   c.delay,
		Clock:   c.clock,
		OnStep: func(s animate.Step) {
			c.publish(board, s.Index, s.Total)
		},
	}
	if err := player.Play(ctx, result.Routes); err != nil {
		monitoring.Warnf("playback of %s routes stopped: %v", mode, err)
		return nil, fmt.Errorf("playback: %w", err)
	}

	c.presenter.Show(stats.PanelFor(mode), result.Stats)

	c.mu.Lock()
	if c.model == model {
		c.last = &LastRun{Mode: mode, RangerCount: rangerCount, MaxSteps: maxSteps, Result: result}
	}
	c.mu.Unlock()
	return result, nil
}

func (c *Controller) report(mode patrol.Mode, err error) {
	label := "Optimization failed"
	if mode == patrol.ModeRandom {
		label = "Random patrol failed"
	}
	monitoring.Errorf("%s: %v", label, err)
	if errors.Is(err, context.Canceled) {
		return
	}
	c.notifier.Notify(label + ": " + patrol.UserMessage(err))
}

// SaveMap stores the current map under name and remembers its ID.
func (c *Controller) SaveMap(ctx context.Context, name string) (*patrol.SaveReceipt, error) {
	c.mu.Lock()
	model := c.model
	c.mu.Unlock()
	if model == nil {
		return nil, ErrNoMap
	}

	receipt, err := c.service.SaveMap(ctx, patrol.MapRecord{Name: name, Model: *model})
	if err != nil {
		monitoring.Errorf("save map: %v", err)
		return nil, err
	}

	c.mu.Lock()
	if c.model == model {
		c.mapID = receipt.MapID
	}
	c.mu.Unlock()
	return receipt, nil
}

// LoadMap fetches a stored map and makes it current.
func (c *Controller) LoadMap(ctx context.Context, id string) (*patrol.SavedMap, error) {
	if c.Loading() {
		return nil, ErrBusy
	}
	saved, err := c.service.GetMap(ctx, id)
	if err != nil {
		monitoring.Errorf("load map %s: %v", id, err)
		return nil, err
	}
	m := saved.Model.Clone()
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("map %s: %w", id, err)
	}
	if err := c.install(m, saved.MapID); err != nil {
		return nil, err
	}
	return saved, nil
}

// ListMaps returns the stored maps.
func (c *Controller) ListMaps(ctx context.Context) ([]patrol.SavedMap, error) {
	maps, err := c.service.GetMaps(ctx)
	if err != nil {
		monitoring.Errorf("list maps: %v", err)
		return nil, err
	}
	return maps, nil
}

// SaveLastResult stores the most recent run against the current map ID.
func (c *Controller) SaveLastResult(ctx context.Context) (*patrol.SaveReceipt, error) {
	c.mu.Lock()
	last, mapID := c.last, c.mapID
	c.mu.Unlock()
	if last == nil {
		return nil, ErrNoResult
	}

	receipt, err := c.service.SaveResult(ctx, patrol.ResultRecord{
		MapID:       mapID,
		RangerCount: last.RangerCount,
		Routes:      last.Result.Routes,
		Stats:       last.Result.Stats,
	})
	if err != nil {
		monitoring.Errorf("save result: %v", err)
		return nil, err
	}
	return receipt, nil
}
