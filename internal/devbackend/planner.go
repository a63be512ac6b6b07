// Package devbackend is a local stand-in for the patrol optimisation service.
// It serves both the REST contract and the single-endpoint contract, plans
// routes with the same greedy and random walks as the hosted planners, and
// keeps saved maps and results in SQLite.
package devbackend

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/patrol"
)

// ErrNoPassableCells is returned when a map offers nowhere to start a ranger.
var ErrNoPassableCells = errors.New("map has no passable cells")

// StartStrategy chooses where rangers begin.
type StartStrategy int

const (
	// RandomStarts places every ranger on a uniformly chosen passable cell.
	RandomStarts StartStrategy = iota
	// StrategicStarts spreads rangers to the corners (four or more rangers)
	// and then onto the riskiest remaining cells.
	StrategicStarts
)

var (
	orthogonal = []grid.Coord{{Row: -1}, {Row: 1}, {Col: -1}, {Col: 1}}
	diagonal   = []grid.Coord{{Row: -1, Col: -1}, {Row: -1, Col: 1}, {Row: 1, Col: -1}, {Row: 1, Col: 1}}
	compass    = append(append([]grid.Coord{}, orthogonal...), diagonal...)
)

// Planner computes patrol routes. It is safe for concurrent use.
type Planner struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewPlanner returns a planner seeded with seed.
func NewPlanner(seed int64) *Planner {
	return &Planner{rng: rand.New(rand.NewSource(seed))}
}

// Plan walks rangerCount rangers over m. Every path starts on a passable
// cell, moves one cell per step and holds at most maxSteps cells. Visit
// counts are shared between rangers, so later rangers are steered away from
// ground already covered.
func (p *Planner) Plan(m *grid.Model, mode patrol.Mode, rangerCount, maxSteps int, starts StartStrategy) (*patrol.Result, error) {
	if _, err := patrol.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	if rangerCount <= 0 {
		return nil, fmt.Errorf("ranger count must be positive, got %d", rangerCount)
	}
	if maxSteps <= 0 {
		return nil, fmt.Errorf("max steps must be positive, got %d", maxSteps)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	passable := m.PassableCells()
	if len(passable) == 0 {
		return nil, ErrNoPassableCells
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	coverage := make([][]int, m.Size)
	for row := range coverage {
		coverage[row] = make([]int, m.Size)
	}

	var fixed []grid.Coord
	if starts == StrategicStarts {
		fixed = strategicStarts(m, passable, rangerCount)
	}

	routes := make([]patrol.Route, 0, rangerCount)
	for r := 0; r < rangerCount; r++ {
		var cur grid.Coord
		if len(fixed) > 0 {
			cur = fixed[r%len(fixed)]
		} else {
			cur = passable[p.rng.Intn(len(passable))]
		}
		path := []grid.Coord{cur}
		coverage[cur.Row][cur.Col]++

		for len(path) < maxSteps {
			var next grid.Coord
			var ok bool
			if mode == patrol.ModeRandom {
				next, ok = p.randomStep(m, cur)
			} else {
				next, ok = greedyStep(m, coverage, cur)
			}
			if !ok {
				break
			}
			cur = next
			path = append(path, cur)
			coverage[cur.Row][cur.Col]++
		}
		routes = append(routes, patrol.Route{RangerID: r, Path: path})
	}

	return &patrol.Result{
		Routes:   routes,
		Coverage: coverage,
		Stats:    ComputeStats(m, coverage),
	}, nil
}

func neighbours(m *grid.Model, c grid.Coord, dirs []grid.Coord) []grid.Coord {
	out := make([]grid.Coord, 0, len(dirs))
	for _, d := range dirs {
		n := grid.C(c.Row+d.Row, c.Col+d.Col)
		if m.IsPassable(n) {
			out = append(out, n)
		}
	}
	return out
}

// Score ranks a candidate cell for the greedy walk: risk counts double, a
// sighted animal adds one, and every earlier visit divides the total.
func Score(risk float64, animal bool, visits int) float64 {
	bonus := 0.0
	if animal {
		bonus = 1
	}
	return (risk*2 + bonus) / float64(visits+1)
}

// greedyStep picks the best scoring orthogonal neighbour. Ties go to the
// first in up, down, left, right order.
func greedyStep(m *grid.Model, coverage [][]int, c grid.Coord) (grid.Coord, bool) {
	candidates := neighbours(m, c, orthogonal)
	if len(candidates) == 0 {
		return grid.Coord{}, false
	}
	best := candidates[0]
	bestScore := math.Inf(-1)
	for _, n := range candidates {
		score := Score(m.Risk[n.Row][n.Col], m.Animals[n.Row][n.Col], coverage[n.Row][n.Col])
		if score > bestScore {
			best, bestScore = n, score
		}
	}
	return best, true
}

func (p *Planner) randomStep(m *grid.Model, c grid.Coord) (grid.Coord, bool) {
	candidates := neighbours(m, c, compass)
	if len(candidates) == 0 {
		return grid.Coord{}, false
	}
	return candidates[p.rng.Intn(len(candidates))], true
}

// strategicStarts returns up to count distinct start cells.
func strategicStarts(m *grid.Model, passable []grid.Coord, count int) []grid.Coord {
	byRisk := append([]grid.Coord(nil), passable...)
	sort.SliceStable(byRisk, func(i, j int) bool {
		return m.RiskAt(byRisk[i]) > m.RiskAt(byRisk[j])
	})

	var starts []grid.Coord
	used := make(map[grid.Coord]bool)
	add := func(c grid.Coord) {
		if !used[c] {
			used[c] = true
			starts = append(starts, c)
		}
	}

	if count >= 4 {
		last := m.Size - 1
		for _, corner := range []grid.Coord{grid.C(0, 0), grid.C(0, last), grid.C(last, 0), grid.C(last, last)} {
			if c, ok := nearestPassable(m, corner); ok {
				add(c)
			}
		}
	}
	for _, c := range byRisk {
		if len(starts) >= count {
			break
		}
		add(c)
	}
	return starts
}

// nearestPassable scans squares of growing radius around origin and returns
// the first passable cell in row-major order.
func nearestPassable(m *grid.Model, origin grid.Coord) (grid.Coord, bool) {
	for radius := 0; radius < m.Size; radius++ {
		for dr := -radius; dr <= radius; dr++ {
			for dc := -radius; dc <= radius; dc++ {
				c := grid.C(origin.Row+dr, origin.Col+dc)
				if m.IsPassable(c) {
					return c, true
				}
			}
		}
	}
	return grid.Coord{}, false
}
