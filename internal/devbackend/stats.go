package devbackend

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/patrol"
)

// PatrolReductionFactor scales the risk of any cell a ranger visited.
const PatrolReductionFactor = 0.2

// ComputeStats compares mean risk over passable cells before and after the
// patrol described by coverage.
func ComputeStats(m *grid.Model, coverage [][]int) patrol.Stats {
	var before, after float64
	var passable, patrolled, highRisk, coveredHighRisk int

	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Terrain[row][col] != grid.Passable {
				continue
			}
			passable++
			risk := m.Risk[row][col]
			covered := coverage[row][col] > 0
			before += risk
			if covered {
				after += risk * PatrolReductionFactor
				patrolled++
			} else {
				after += risk
			}
			if risk >= grid.HighRiskThreshold {
				highRisk++
				if covered {
					coveredHighRisk++
				}
			}
		}
	}

	var meanBefore, meanAfter, overall float64
	if passable > 0 {
		meanBefore = before / float64(passable)
		meanAfter = after / float64(passable)
		overall = float64(patrolled) / float64(passable) * 100
	}
	reduction := 0.0
	if meanBefore > 0 {
		reduction = (meanBefore - meanAfter) / meanBefore * 100
	}
	highCoverage := 100.0
	if highRisk > 0 {
		highCoverage = float64(coveredHighRisk) / float64(highRisk) * 100
	}

	return patrol.Stats{
		BeforeRisk:           round3(meanBefore),
		AfterRisk:            round3(meanAfter),
		RiskReduction:        wholePercent(reduction),
		HighRiskCoverage:     wholePercent(highCoverage),
		OverallCoverage:      wholePercent(overall),
		CellsPatrolled:       patrolled,
		TotalCells:           passable,
		HighRiskCells:        highRisk,
		CoveredHighRiskCells: coveredHighRisk,
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func wholePercent(v float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(v))
}

// Simulation is the outcome of repeated poaching trials against one patrol.
type Simulation struct {
	Runs                   int     `json:"simulationRuns"`
	AnimalsAtRisk          int     `json:"animalsAtRisk"`
	ExpectedPoachingBefore float64 `json:"expectedPoachingBefore"`
	ExpectedPoachingAfter  float64 `json:"expectedPoachingAfter"`
	AnimalsSaved           float64 `json:"animalsSaved"`
}

// Simulate runs poaching trials on every animal cell. Each trial draws one
// event with the cell's risk and one with its patrolled risk.
func Simulate(m *grid.Model, coverage [][]int, runs int, rng *rand.Rand) Simulation {
	sim := Simulation{Runs: runs}
	if runs <= 0 {
		return sim
	}

	var before, after int
	for run := 0; run < runs; run++ {
		for row := 0; row < m.Size; row++ {
			for col := 0; col < m.Size; col++ {
				if m.Terrain[row][col] != grid.Passable || !m.Animals[row][col] {
					continue
				}
				if run == 0 {
					sim.AnimalsAtRisk++
				}
				risk := m.Risk[row][col]
				if rng.Float64() < risk {
					before++
				}
				if coverage[row][col] > 0 {
					risk *= PatrolReductionFactor
				}
				if rng.Float64() < risk {
					after++
				}
			}
		}
	}

	sim.ExpectedPoachingBefore = float64(before) / float64(runs)
	sim.ExpectedPoachingAfter = float64(after) / float64(runs)
	sim.AnimalsSaved = float64(before-after) / float64(runs)
	return sim
}
