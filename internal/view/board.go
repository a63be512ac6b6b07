// Package view renders a patrol-area model: the coordinate-indexed board that
// route playback marks, its terminal rendering, and risk heatmaps.
package view

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/banshee-data/patrol.report/internal/animate"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/patrol"
)

// Cell classes.
const (
	ClassCell       = "map-cell"
	ClassTerrain    = "terrain"
	ClassRiskHigh   = "risk-high"
	ClassRiskMedium = "risk-medium"
	ClassRiskLow    = "risk-low"
	ClassAnimal     = "animal"
	ClassPatrol     = "patrol"
	ClassRanger     = "ranger"
)

// RouteClass returns the colour class for a route index.
func RouteClass(routeIdx int) string {
	return fmt.Sprintf("route-%d", animate.ColourIndex(routeIdx))
}

// Cell is one board square and its class set.
type Cell struct {
	Row, Col int
	classes  []string
}

// Has reports whether the cell carries class.
func (c *Cell) Has(class string) bool {
	return slices.Contains(c.classes, class)
}

// Classes returns a copy of the cell's classes in insertion order.
func (c *Cell) Classes() []string {
	return slices.Clone(c.classes)
}

func (c *Cell) add(classes ...string) {
	for _, cls := range classes {
		if !c.Has(cls) {
			c.classes = append(c.classes, cls)
		}
	}
}

func (c *Cell) removeRouteClasses() {
	c.classes = slices.DeleteFunc(c.classes, func(cls string) bool {
		return cls == ClassPatrol || cls == ClassRanger || strings.HasPrefix(cls, "route-")
	})
}

// Board is the display surface for one model. Cells are indexed by
// coordinate at render time, so marking is O(1). A Board is safe for
// concurrent use.
type Board struct {
	mu    sync.RWMutex
	size  int
	cells [][]*Cell
}

var _ animate.Surface = (*Board)(nil)

// NewBoard renders m onto a fresh board.
func NewBoard(m *grid.Model) *Board {
	b := &Board{size: m.Size, cells: make([][]*Cell, m.Size)}
	for row := 0; row < m.Size; row++ {
		b.cells[row] = make([]*Cell, m.Size)
		for col := 0; col < m.Size; col++ {
			cell := &Cell{Row: row, Col: col}
			cell.add(ClassCell)
			if m.Terrain[row][col] != grid.Passable {
				cell.add(ClassTerrain)
			} else {
				cell.add("risk-" + grid.RiskBand(m.Risk[row][col]))
				if m.Animals[row][col] {
					cell.add(ClassAnimal)
				}
			}
			b.cells[row][col] = cell
		}
	}
	return b
}

// Size returns the board's side length.
func (b *Board) Size() int { return b.size }

// Cell returns the cell at c, or nil when c is off the board.
func (b *Board) Cell(c grid.Coord) *Cell {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cell(c)
}

func (b *Board) cell(c grid.Coord) *Cell {
	if c.Row < 0 || c.Row >= b.size || c.Col < 0 || c.Col >= b.size {
		return nil
	}
	return b.cells[c.Row][c.Col]
}

// ClearRoutes removes patrol, ranger and route colour classes everywhere.
func (b *Board) ClearRoutes() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, row := range b.cells {
		for _, cell := range row {
			cell.removeRouteClasses()
		}
	}
}

// Mark adds the patrol and route classes at c, plus ranger for a start
// position. Off-board coordinates are ignored.
func (b *Board) Mark(c grid.Coord, routeIdx int, start bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cell := b.cell(c)
	if cell == nil {
		return
	}
	cell.add(ClassPatrol, RouteClass(routeIdx))
	if start {
		cell.add(ClassRanger)
	}
}

// RenderRoutes draws every route in full without playback.
func (b *Board) RenderRoutes(routes []patrol.Route) {
	b.ClearRoutes()
	for idx, r := range routes {
		for step, c := range r.Path {
			b.Mark(c, idx, step == 0)
		}
	}
}

// Frame is a JSON snapshot of the board. Cells holds each cell's class list
// joined with spaces, row-major. Step and Steps are set during playback.
type Frame struct {
	GridSize int        `json:"gridSize"`
	Cells    [][]string `json:"cells"`
	Step     int        `json:"step"`
	Steps    int        `json:"steps"`
}

// Snapshot captures the board's current classes.
func (b *Board) Snapshot() Frame {
	b.mu.RLock()
	defer b.mu.RUnlock()
	f := Frame{GridSize: b.size, Cells: make([][]string, b.size)}
	for row := range b.cells {
		f.Cells[row] = make([]string, b.size)
		for col, cell := range b.cells[row] {
			f.Cells[row][col] = strings.Join(cell.classes, " ")
		}
	}
	return f
}
