package grid

import (
	"math"
	"math/rand"
)

const (
	// passableThreshold: a cell is passable when its terrain draw exceeds it,
	// so roughly nine cells in ten are traversable.
	passableThreshold = 0.1

	edgeRiskWeight   = 0.5
	animalBaseChance = 0.2
	edgeAnimalWeight = 0.3
)

// Generator synthesises random patrol areas. It is not safe for concurrent
// use; give each goroutine its own Generator.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator creates a generator seeded with seed. Equal seeds produce
// identical maps.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// NewGeneratorWithRand creates a generator drawing from rng.
func NewGeneratorWithRand(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// EdgeFactor is the distance from (row, col) to the nearest grid boundary,
// normalised by half the grid size.
func EdgeFactor(size, row, col int) float64 {
	if size <= 0 {
		return 0
	}
	d := min(row, col, size-1-row, size-1-col)
	return float64(d) / (float64(size) / 2)
}

// CellRisk applies the edge weighting to a base risk draw, clamps to [0,1]
// and rounds to two decimal places.
func CellRisk(baseRisk, edgeFactor float64) float64 {
	risk := baseRisk * (1 - edgeFactor*edgeRiskWeight)
	risk = math.Max(0, math.Min(1, risk))
	return math.Round(risk*100) / 100
}

// AnimalChance is the probability of an animal sighting at a passable cell.
func AnimalChance(edgeFactor float64) float64 {
	return animalBaseChance * (1 - edgeFactor*edgeAnimalWeight)
}

// Generate builds a fresh size×size model. Each cell consumes a terrain draw
// and, when passable, a risk draw and an animal draw.
func (g *Generator) Generate(size int) (*Model, error) {
	m, err := NewModel(size)
	if err != nil {
		return nil, err
	}

	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			if g.rng.Float64() <= passableThreshold {
				continue
			}
			m.Terrain[row][col] = Passable

			ef := EdgeFactor(size, row, col)
			m.Risk[row][col] = CellRisk(g.rng.Float64(), ef)
			m.Animals[row][col] = g.rng.Float64() < AnimalChance(ef)
		}
	}
	return m, nil
}
