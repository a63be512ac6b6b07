// Command patrolview serves the patrol route visualiser in a browser.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/patrol.report/internal/app"
	"github.com/banshee-data/patrol.report/internal/config"
	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/version"
	"github.com/banshee-data/patrol.report/internal/web"
)

var flags = config.RegisterFlags(flag.CommandLine)

func main() {
	flag.Parse()

	cfg, err := flags.Load(flag.CommandLine)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backend, err := patrol.NewBackend(cfg.GetBackend(), cfg.GetBackendURL())
	if err != nil {
		log.Fatalf("invalid backend: %v", err)
	}
	client := patrol.NewClient(httputil.NewTimeoutClient(cfg.GetRequestTimeout()), backend)

	seed, ok := cfg.GetSeed()
	if !ok {
		seed = time.Now().UnixNano()
	}

	events := web.NewBroadcaster()
	ctrl := app.New(app.Config{
		Service:        client,
		Generator:      grid.NewGenerator(seed),
		AnimationDelay: cfg.GetAnimationDelay(),
		OnFrame:        events.Publish,
	})

	// The page opens on a fresh map.
	if _, err := ctrl.GenerateMap(cfg.GetGridSize()); err != nil {
		log.Fatalf("failed to generate initial map: %v", err)
	}

	server := web.NewServer(web.Config{
		Address:     cfg.GetListen(),
		Controller:  ctrl,
		Broadcaster: events,
		Backend:     backend.Name(),
		Defaults: web.Defaults{
			GridSize:    cfg.GetGridSize(),
			RangerCount: cfg.GetRangerCount(),
			MaxSteps:    cfg.GetMaxSteps(),
			MaxGridSize: config.MaxGridSize,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.Logf("patrolview %s: backend=%s url=%s seed=%d", version.String(), backend.Name(), cfg.GetBackendURL(), seed)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
	monitoring.Logf("patrolview stopped")
}
