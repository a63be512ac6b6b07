package view

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/patrol.report/internal/grid"
)

// EchartsAssetsHost is where rendered chart pages load echarts from.
const EchartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

var riskColours = []string{"#1a9850", "#91cf60", "#d9ef8b", "#fee08b", "#fc8d59", "#d73027"}

// RiskHeatmapChart writes an interactive HTML page plotting passable cells
// coloured by risk. Cells with an animal sighting use a triangle symbol.
func RiskHeatmapChart(m *grid.Model, w io.Writer) error {
	cells := make([]opts.ScatterData, 0, m.Size*m.Size)
	animals := 0
	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Terrain[row][col] != grid.Passable {
				continue
			}
			// Row 0 is drawn at the top.
			pt := opts.ScatterData{
				Name:  grid.C(row, col).String(),
				Value: []interface{}{col, m.Size - 1 - row, m.Risk[row][col]},
			}
			if m.Animals[row][col] {
				pt.Symbol = "triangle"
				animals++
			}
			cells = append(cells, pt)
		}
	}

	size := fmt.Sprintf("%dpx", max(400, min(900, m.Size*40)))
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Patrol Area Risk", Width: size, Height: size, AssetsHost: EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Risk by cell", Subtitle: fmt.Sprintf("grid=%d passable=%d animals=%d", m.Size, len(cells), animals)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -1, Max: m.Size, Name: "col"}),
		charts.WithYAxisOpts(opts.YAxis{Min: -1, Max: m.Size, Name: "row"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        1,
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: riskColours},
		}),
	)
	scatter.AddSeries("risk", cells, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: max(4, 360/m.Size)}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return fmt.Errorf("render risk chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// riskGrid adapts a model to plotter.GridXYZ. Blocked cells are NaN.
type riskGrid struct {
	m *grid.Model
}

func (g riskGrid) Dims() (c, r int) { return g.m.Size, g.m.Size }

func (g riskGrid) Z(c, r int) float64 {
	row := g.m.Size - 1 - r
	if g.m.Terrain[row][c] != grid.Passable {
		return math.NaN()
	}
	return g.m.Risk[row][c]
}

func (g riskGrid) X(c int) float64 { return float64(c) }
func (g riskGrid) Y(r int) float64 { return float64(r) }

// RiskHeatmapPNG writes a PNG heatmap of m, sized side×side.
func RiskHeatmapPNG(m *grid.Model, w io.Writer, side vg.Length) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Patrol area risk (%dx%d)", m.Size, m.Size)
	p.X.Label.Text = "col"
	p.Y.Label.Text = "row (from bottom)"

	hm := plotter.NewHeatMap(riskGrid{m: m}, palette.Heat(12, 1))
	hm.Min, hm.Max = 0, 1
	hm.NaN = color.Gray{Y: 90}
	p.Add(hm)

	var pts plotter.XYs
	for row := 0; row < m.Size; row++ {
		for col := 0; col < m.Size; col++ {
			if m.Animals[row][col] {
				pts = append(pts, plotter.XY{X: float64(col), Y: float64(m.Size - 1 - row)})
			}
		}
	}
	if len(pts) > 0 {
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return fmt.Errorf("animal overlay: %w", err)
		}
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Color = color.RGBA{R: 63, G: 81, B: 181, A: 255}
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)
		p.Legend.Add("animal", sc)
	}

	wt, err := p.WriterTo(side, side, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return nil
}
