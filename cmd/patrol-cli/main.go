// Command patrol-cli generates a patrol area, requests routes from a backend
// and replays them as text in the terminal.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/patrol.report/internal/config"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/timeutil"
)

var (
	flags     = config.RegisterFlags(flag.CommandLine)
	mode      = flag.String("mode", string(patrol.ModeOptimized), "Run mode: optimized or random")
	compare   = flag.Bool("compare", false, "Run both modes on the same map")
	animate   = flag.Bool("animate", false, "Print the board after every step")
	noColour  = flag.Bool("no-color", false, "Disable ANSI colours")
	loadID    = flag.String("load", "", "Load a stored map by ID instead of generating one")
	listMaps  = flag.Bool("list", false, "List stored maps and exit")
	save      = flag.Bool("save", false, "Store the map and the last result on the backend")
	mapName   = flag.String("name", "", "Name for the stored map")
	pngPath   = flag.String("png", "", "Write a risk heatmap PNG to this path")
	chartPath = flag.String("chart", "", "Write an interactive risk heatmap HTML page to this path")
	statsPath = flag.String("stats-chart", "", "Write a before/after risk bar chart HTML page to this path")
)

func main() {
	flag.Parse()

	cfg, err := flags.Load(flag.CommandLine)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	modes := []patrol.Mode{}
	if *compare {
		modes = append(modes, patrol.ModeOptimized, patrol.ModeRandom)
	} else {
		m, err := patrol.ParseMode(*mode)
		if err != nil {
			log.Fatal(err)
		}
		modes = append(modes, m)
	}

	seed, ok := cfg.GetSeed()
	if !ok {
		seed = time.Now().UnixNano()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := &runner{
		cfg:        cfg,
		httpClient: httputil.NewTimeoutClient(cfg.GetRequestTimeout()),
		clock:      timeutil.RealClock{},
		out:        os.Stdout,
		seed:       seed,
		opts: options{
			modes:     modes,
			animate:   *animate,
			colour:    !*noColour,
			loadID:    *loadID,
			list:      *listMaps,
			save:      *save,
			mapName:   *mapName,
			pngPath:   *pngPath,
			chartPath: *chartPath,
			statsPath: *statsPath,
		},
	}
	if err := r.run(ctx); err != nil {
		log.Fatal(err)
	}
}
