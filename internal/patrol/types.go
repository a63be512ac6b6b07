// Package patrol is the client side of the patrol optimisation service: the
// run and persistence records exchanged with it, the typed failures it can
// produce, and the pluggable endpoint shapes.
package patrol

import (
	"errors"
	"fmt"

	"github.com/banshee-data/patrol.report/internal/grid"
)

// Mode selects which planner the backend runs.
type Mode string

const (
	ModeOptimized Mode = "optimized"
	ModeRandom    Mode = "random"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeOptimized, ModeRandom:
		return Mode(s), nil
	}
	return "", fmt.Errorf("invalid mode %q: use %q or %q", s, ModeOptimized, ModeRandom)
}

// RunParameters is one patrol request against a generated map.
type RunParameters struct {
	RangerCount int
	MaxSteps    int
	Map         *grid.Model
}

// Validate rejects non-positive counts and missing or inconsistent maps.
func (p RunParameters) Validate() error {
	if p.RangerCount <= 0 {
		return errors.New("ranger count must be positive")
	}
	if p.MaxSteps <= 0 {
		return errors.New("max steps must be positive")
	}
	if p.Map == nil {
		return errors.New("no map supplied")
	}
	if err := p.Map.Validate(); err != nil {
		return fmt.Errorf("invalid map: %w", err)
	}
	return nil
}

// runRequest is the JSON body of an optimisation run. The map fields are
// flattened next to the counts, which is what both backend shapes expect.
type runRequest struct {
	Mode        Mode             `json:"mode,omitempty"`
	GridSize    int              `json:"gridSize"`
	RangerCount int              `json:"rangerCount"`
	MaxSteps    int              `json:"maxSteps"`
	RiskMap     [][]float64      `json:"riskMap"`
	AnimalMap   [][]bool         `json:"animalMap"`
	TerrainMap  [][]grid.Terrain `json:"terrainMap"`
}

func newRunRequest(mode Mode, p RunParameters) runRequest {
	return runRequest{
		Mode:        mode,
		GridSize:    p.Map.Size,
		RangerCount: p.RangerCount,
		MaxSteps:    p.MaxSteps,
		RiskMap:     p.Map.Risk,
		AnimalMap:   p.Map.Animals,
		TerrainMap:  p.Map.Terrain,
	}
}

// Route is the path walked by one ranger, one coordinate per step.
type Route struct {
	RangerID int          `json:"rangerId"`
	Path     []grid.Coord `json:"path"`
}

// Stats are the before/after metrics reported by the backend. RiskReduction
// and HighRiskCoverage arrive preformatted (for example "42%").
type Stats struct {
	BeforeRisk       float64 `json:"beforeRisk"`
	AfterRisk        float64 `json:"afterRisk"`
	RiskReduction    string  `json:"riskReduction"`
	HighRiskCoverage string  `json:"highRiskCoverage"`

	OverallCoverage      string `json:"overallCoverage,omitempty"`
	CellsPatrolled       int    `json:"cellsPatrolled,omitempty"`
	TotalCells           int    `json:"totalCells,omitempty"`
	HighRiskCells        int    `json:"highRiskCells,omitempty"`
	CoveredHighRiskCells int    `json:"coveredHighRiskCells,omitempty"`
}

// Result is the backend's answer to a run.
type Result struct {
	Routes   []Route `json:"routes"`
	Coverage [][]int `json:"coverage,omitempty"`
	Stats    Stats   `json:"stats"`
}

// MaxPathLength returns the length of the longest route.
func (r *Result) MaxPathLength() int {
	longest := 0
	for _, route := range r.Routes {
		longest = max(longest, len(route.Path))
	}
	return longest
}

// MapRecord is a named map submitted for storage.
type MapRecord struct {
	Name string `json:"name"`
	grid.Model
}

// SavedMap is a stored map as returned by the persistence endpoint.
type SavedMap struct {
	MapID     string `json:"mapId"`
	CreatedAt string `json:"createdAt"`
	Name      string `json:"name"`
	grid.Model
}

// ResultRecord is a run outcome submitted for storage.
type ResultRecord struct {
	MapID       string  `json:"mapId"`
	RangerCount int     `json:"rangerCount"`
	Routes      []Route `json:"routes"`
	Stats       Stats   `json:"stats"`
}

// SaveReceipt acknowledges a stored map or result. Only one of MapID and
// ResultID is set.
type SaveReceipt struct {
	MapID     string `json:"mapId,omitempty"`
	ResultID  string `json:"resultId,omitempty"`
	CreatedAt string `json:"createdAt"`
}
