package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/patrol.report/internal/app"
	"github.com/banshee-data/patrol.report/internal/config"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/stats"
	"github.com/banshee-data/patrol.report/internal/timeutil"
	"github.com/banshee-data/patrol.report/internal/view"
)

type options struct {
	modes     []patrol.Mode
	animate   bool
	colour    bool
	loadID    string
	list      bool
	save      bool
	mapName   string
	pngPath   string
	chartPath string
	statsPath string
}

type runner struct {
	cfg        *config.PatrolConfig
	httpClient httputil.HTTPClient
	clock      timeutil.Clock
	out        io.Writer
	seed       int64
	opts       options
}

func (r *runner) run(ctx context.Context) error {
	backend, err := patrol.NewBackend(r.cfg.GetBackend(), r.cfg.GetBackendURL())
	if err != nil {
		return err
	}
	client := patrol.NewClient(r.httpClient, backend)

	var notices []string
	var ctrl *app.Controller
	ctrl = app.New(app.Config{
		Service:        client,
		Generator:      grid.NewGenerator(r.seed),
		AnimationDelay: r.cfg.GetAnimationDelay(),
		Clock:          r.clock,
		Notifier:       app.NotifierFunc(func(msg string) { notices = append(notices, msg) }),
		OnFrame: func(f view.Frame) {
			if r.opts.animate && f.Steps > 0 {
				fmt.Fprintf(r.out, "step %d/%d\n", f.Step+1, f.Steps)
				r.printBoard(ctrl.Board())
			}
		},
	})

	if r.opts.list {
		return r.printMaps(ctx, ctrl)
	}

	if r.opts.loadID != "" {
		saved, err := ctrl.LoadMap(ctx, r.opts.loadID)
		if err != nil {
			return fmt.Errorf("load map %s: %w", r.opts.loadID, err)
		}
		fmt.Fprintf(r.out, "loaded map %s (%q, %dx%d)\n", saved.MapID, saved.Name, saved.Size, saved.Size)
	} else if _, err := ctrl.GenerateMap(r.cfg.GetGridSize()); err != nil {
		return fmt.Errorf("generate map: %w", err)
	}

	sum := grid.Summarize(ctrl.Model())
	fmt.Fprintf(r.out, "map %dx%d: %d passable, %d high risk, %d animals, mean risk %.3f\n",
		sum.GridSize, sum.GridSize, sum.PassableCells, sum.HighRiskCells, sum.AnimalCells, sum.MeanRisk)

	if err := r.writeMapCharts(ctrl.Model()); err != nil {
		return err
	}

	if r.opts.save {
		receipt, err := ctrl.SaveMap(ctx, r.opts.mapName)
		if err != nil {
			return fmt.Errorf("save map: %w", err)
		}
		fmt.Fprintf(r.out, "saved map %s\n", receipt.MapID)
	}

	for _, mode := range r.opts.modes {
		result, err := ctrl.Run(ctx, mode, r.cfg.GetRangerCount(), r.cfg.GetMaxSteps())
		if err != nil {
			for _, msg := range notices {
				fmt.Fprintln(r.out, msg)
			}
			return err
		}
		fmt.Fprintf(r.out, "\n%s: %d routes, longest %d steps\n", mode, len(result.Routes), result.MaxPathLength())
		r.printBoard(ctrl.Board())
		r.printPanel(ctrl.Presenter(), stats.PanelFor(mode))

		if r.opts.save {
			receipt, err := ctrl.SaveLastResult(ctx)
			if err != nil {
				return fmt.Errorf("save result: %w", err)
			}
			fmt.Fprintf(r.out, "saved result %s\n", receipt.ResultID)
		}
	}

	if r.opts.statsPath != "" {
		if err := writeFile(r.opts.statsPath, ctrl.Presenter().RenderComparison); err != nil {
			return fmt.Errorf("stats chart: %w", err)
		}
	}
	return nil
}

func (r *runner) printBoard(b *view.Board) {
	if b == nil {
		return
	}
	if err := b.WriteText(r.out, r.opts.colour); err != nil {
		fmt.Fprintf(r.out, "render: %v\n", err)
	}
}

func (r *runner) printPanel(p *stats.Presenter, id stats.PanelID) {
	panel, ok := p.Panel(id)
	if !ok || !panel.Visible {
		return
	}
	fmt.Fprintf(r.out, "  %-20s %s\n", "before risk", panel.BeforeRisk)
	fmt.Fprintf(r.out, "  %-20s %s\n", "after risk", panel.AfterRisk)
	fmt.Fprintf(r.out, "  %-20s %s\n", "risk reduction", panel.RiskReduction)
	fmt.Fprintf(r.out, "  %-20s %s\n", "high-risk coverage", panel.HighRiskCoverage)
}

func (r *runner) printMaps(ctx context.Context, ctrl *app.Controller) error {
	maps, err := ctrl.ListMaps(ctx)
	if err != nil {
		return fmt.Errorf("list maps: %w", err)
	}
	fmt.Fprintf(r.out, "%-36s  %-20s  %4s  %s\n", "ID", "NAME", "SIZE", "CREATED")
	for _, m := range maps {
		fmt.Fprintf(r.out, "%-36s  %-20s  %4d  %s\n", m.MapID, m.Name, m.Size, m.CreatedAt)
	}
	return nil
}

func (r *runner) writeMapCharts(m *grid.Model) error {
	if r.opts.pngPath != "" {
		err := writeFile(r.opts.pngPath, func(w io.Writer) error {
			return view.RiskHeatmapPNG(m, w, 6*vg.Inch)
		})
		if err != nil {
			return fmt.Errorf("risk png: %w", err)
		}
	}
	if r.opts.chartPath != "" {
		err := writeFile(r.opts.chartPath, func(w io.Writer) error {
			return view.RiskHeatmapChart(m, w)
		})
		if err != nil {
			return fmt.Errorf("risk chart: %w", err)
		}
	}
	return nil
}

func writeFile(path string, render func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
