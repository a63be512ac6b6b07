package grid

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary describes a model's passable area. Risk statistics cover passable
// cells only.
type Summary struct {
	GridSize        int     `json:"gridSize"`
	PassableCells   int     `json:"passableCells"`
	BlockedCells    int     `json:"blockedCells"`
	AnimalCells     int     `json:"animalCells"`
	HighRiskCells   int     `json:"highRiskCells"`
	MediumRiskCells int     `json:"mediumRiskCells"`
	MeanRisk        float64 `json:"meanRisk"`
	RiskStdDev      float64 `json:"riskStdDev"`
	MedianRisk      float64 `json:"medianRisk"`
	MaxRisk         float64 `json:"maxRisk"`
}

// Summarize computes the Summary for m.
func Summarize(m *Model) Summary {
	s := Summary{GridSize: m.Size}
	risks := make([]float64, 0, m.Size*m.Size)

	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Terrain[row][col] != Passable {
				s.BlockedCells++
				continue
			}
			s.PassableCells++
			r := m.Risk[row][col]
			risks = append(risks, r)
			if m.Animals[row][col] {
				s.AnimalCells++
			}
			switch RiskBand(r) {
			case "high":
				s.HighRiskCells++
			case "medium":
				s.MediumRiskCells++
			}
		}
	}

	if len(risks) == 0 {
		return s
	}

	sort.Float64s(risks)
	s.MeanRisk, s.RiskStdDev = stat.MeanStdDev(risks, nil)
	if len(risks) == 1 {
		s.RiskStdDev = 0
	}
	s.MedianRisk = stat.Quantile(0.5, stat.Empirical, risks, nil)
	s.MaxRisk = risks[len(risks)-1]
	return s
}
