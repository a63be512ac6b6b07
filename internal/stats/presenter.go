// Package stats formats run statistics for display in the optimised and
// random-baseline panels.
package stats

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/view"
)

// PanelID names a stats panel.
type PanelID string

const (
	Optimized PanelID = "optimized"
	Random    PanelID = "random"
)

// PanelFor returns the panel that shows results of mode.
func PanelFor(mode patrol.Mode) PanelID {
	if mode == patrol.ModeRandom {
		return Random
	}
	return Optimized
}

// FormatPercent renders a [0,1] ratio as a percentage with one decimal.
func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// Panel is the display text of one stats panel.
type Panel struct {
	ID               PanelID `json:"id"`
	Visible          bool    `json:"visible"`
	BeforeRisk       string  `json:"beforeRisk"`
	AfterRisk        string  `json:"afterRisk"`
	RiskReduction    string  `json:"riskReduction"`
	HighRiskCoverage string  `json:"highRiskCoverage"`

	raw patrol.Stats
}

// Presenter holds the two panels and the raw stats behind them. It is safe
// for concurrent use.
type Presenter struct {
	mu     sync.RWMutex
	panels map[PanelID]*Panel
}

// NewPresenter creates a presenter with both panels hidden.
func NewPresenter() *Presenter {
	return &Presenter{panels: map[PanelID]*Panel{
		Optimized: {ID: Optimized},
		Random:    {ID: Random},
	}}
}

// Show fills panel id from s and makes it visible. Backend-derived metrics
// are passed through unchanged.
func (p *Presenter) Show(id PanelID, s patrol.Stats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	panel, ok := p.panels[id]
	if !ok {
		panel = &Panel{ID: id}
		p.panels[id] = panel
	}
	panel.Visible = true
	panel.BeforeRisk = FormatPercent(s.BeforeRisk)
	panel.AfterRisk = FormatPercent(s.AfterRisk)
	panel.RiskReduction = s.RiskReduction
	panel.HighRiskCoverage = s.HighRiskCoverage
	panel.raw = s
}

// HideAll hides every panel, as happens when a new map is generated.
func (p *Presenter) HideAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, panel := range p.panels {
		panel.Visible = false
	}
}

// Panel returns a copy of panel id.
func (p *Presenter) Panel(id PanelID) (Panel, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	panel, ok := p.panels[id]
	if !ok {
		return Panel{}, false
	}
	return *panel, true
}

// Panels returns copies of the panels in display order.
func (p *Presenter) Panels() []Panel {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Panel, 0, len(p.panels))
	for _, id := range []PanelID{Optimized, Random} {
		if panel, ok := p.panels[id]; ok {
			out = append(out, *panel)
		}
	}
	return out
}

// AnyVisible reports whether the results section should be shown.
func (p *Presenter) AnyVisible() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, panel := range p.panels {
		if panel.Visible {
			return true
		}
	}
	return false
}

// RenderComparison writes an HTML page with a bar chart of before and after
// risk (as percentages) for each visible panel.
func (p *Presenter) RenderComparison(w io.Writer) error {
	var names []string
	var before, after []opts.BarData
	for _, panel := range p.Panels() {
		if !panel.Visible {
			continue
		}
		names = append(names, string(panel.ID))
		before = append(before, opts.BarData{Value: round1(panel.raw.BeforeRisk * 100)})
		after = append(after, opts.BarData{Value: round1(panel.raw.AfterRisk * 100)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Patrol Comparison", Width: "100%", Height: "480px", AssetsHost: view.EchartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Mean risk before and after patrol", Subtitle: fmt.Sprintf("runs=%d", len(names))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "risk %", Min: 0}),
	)
	bar.SetXAxis(names).
		AddSeries("before", before, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("after", after, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.SetAssetsHost(view.EchartsAssetsHost)
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return fmt.Errorf("render comparison: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
