// Package grid holds the square patrol-area model (terrain, risk and animal
// sighting layers) and the synthetic map generator.
package grid

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Terrain is the traversability of a single cell. It is encoded on the wire as
// 1 (passable) or 0 (blocked).
type Terrain int

const (
	Blocked  Terrain = 0
	Passable Terrain = 1
)

// Risk bands used for display colouring and backend statistics.
const (
	HighRiskThreshold   = 0.7
	MediumRiskThreshold = 0.4
)

// ErrInvalidSize is returned when a grid side length is not positive.
var ErrInvalidSize = errors.New("grid size must be a positive integer")

// Coord is a (row, col) grid coordinate. It is encoded as a two element JSON
// array, matching the route paths returned by the backend.
type Coord struct {
	Row int
	Col int
}

// C is shorthand for Coord{Row: row, Col: col}.
func C(row, col int) Coord {
	return Coord{Row: row, Col: col}
}

// String implements fmt.Stringer.
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.Row, c.Col)
}

// MarshalJSON encodes the coordinate as [row, col].
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

// UnmarshalJSON decodes a [row, col] pair.
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("coordinate: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("coordinate: expected [row, col], got %d values", len(pair))
	}
	c.Row, c.Col = pair[0], pair[1]
	return nil
}

// Model is one generated patrol area. All three layers are Size×Size and
// blocked cells always carry zero risk and no animal.
type Model struct {
	Size    int         `json:"gridSize"`
	Terrain [][]Terrain `json:"terrainMap"`
	Risk    [][]float64 `json:"riskMap"`
	Animals [][]bool    `json:"animalMap"`
}

// NewModel allocates a Size×Size model with every cell blocked.
func NewModel(size int) (*Model, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	m := &Model{
		Size:    size,
		Terrain: make([][]Terrain, size),
		Risk:    make([][]float64, size),
		Animals: make([][]bool, size),
	}
	for row := 0; row < size; row++ {
		m.Terrain[row] = make([]Terrain, size)
		m.Risk[row] = make([]float64, size)
		m.Animals[row] = make([]bool, size)
	}
	return m, nil
}

// InBounds reports whether c lies inside the grid.
func (m *Model) InBounds(c Coord) bool {
	return c.Row >= 0 && c.Row < m.Size && c.Col >= 0 && c.Col < m.Size
}

// IsPassable reports whether c is inside the grid and traversable.
func (m *Model) IsPassable(c Coord) bool {
	return m.InBounds(c) && m.Terrain[c.Row][c.Col] == Passable
}

// RiskAt returns the risk at c, or 0 outside the grid.
func (m *Model) RiskAt(c Coord) float64 {
	if !m.InBounds(c) {
		return 0
	}
	return m.Risk[c.Row][c.Col]
}

// HasAnimal reports whether an animal was sighted at c.
func (m *Model) HasAnimal(c Coord) bool {
	return m.InBounds(c) && m.Animals[c.Row][c.Col]
}

// PassableCells lists every passable coordinate in row-major order.
func (m *Model) PassableCells() []Coord {
	var cells []Coord
	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Terrain[row][col] == Passable {
				cells = append(cells, C(row, col))
			}
		}
	}
	return cells
}

// Clone returns a deep copy of the model.
func (m *Model) Clone() *Model {
	out := &Model{
		Size:    m.Size,
		Terrain: make([][]Terrain, len(m.Terrain)),
		Risk:    make([][]float64, len(m.Risk)),
		Animals: make([][]bool, len(m.Animals)),
	}
	for i := range m.Terrain {
		out.Terrain[i] = append([]Terrain(nil), m.Terrain[i]...)
	}
	for i := range m.Risk {
		out.Risk[i] = append([]float64(nil), m.Risk[i]...)
	}
	for i := range m.Animals {
		out.Animals[i] = append([]bool(nil), m.Animals[i]...)
	}
	return out
}

// Validate checks the layer dimensions and the blocked-cell invariant.
func (m *Model) Validate() error {
	if m == nil {
		return errors.New("grid: nil model")
	}
	if m.Size <= 0 {
		return ErrInvalidSize
	}
	if len(m.Terrain) != m.Size || len(m.Risk) != m.Size || len(m.Animals) != m.Size {
		return fmt.Errorf("grid: layers must have %d rows (terrain=%d risk=%d animals=%d)",
			m.Size, len(m.Terrain), len(m.Risk), len(m.Animals))
	}
	for row := 0; row < m.Size; row++ {
		if len(m.Terrain[row]) != m.Size || len(m.Risk[row]) != m.Size || len(m.Animals[row]) != m.Size {
			return fmt.Errorf("grid: row %d must have %d columns in every layer", row, m.Size)
		}
		for col := 0; col < m.Size; col++ {
			risk := m.Risk[row][col]
			switch m.Terrain[row][col] {
			case Passable:
				if risk < 0 || risk > 1 {
					return fmt.Errorf("grid: risk %.3f at (%d,%d) outside [0,1]", risk, row, col)
				}
			case Blocked:
				if risk != 0 || m.Animals[row][col] {
					return fmt.Errorf("grid: blocked cell (%d,%d) must have zero risk and no animal", row, col)
				}
			default:
				return fmt.Errorf("grid: unknown terrain %d at (%d,%d)", m.Terrain[row][col], row, col)
			}
		}
	}
	return nil
}

// RiskBand classifies a risk value as "high", "medium" or "low".
func RiskBand(risk float64) string {
	switch {
	case risk >= HighRiskThreshold:
		return "high"
	case risk >= MediumRiskThreshold:
		return "medium"
	default:
		return "low"
	}
}
