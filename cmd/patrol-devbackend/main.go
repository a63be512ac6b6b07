// Command patrol-devbackend runs an in-process route planner and map store
// that speaks both backend contracts, for local development of patrolview.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/patrol.report/internal/config"
	"github.com/banshee-data/patrol.report/internal/db"
	"github.com/banshee-data/patrol.report/internal/devbackend"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/version"
)

var (
	flags  = config.RegisterFlags(flag.CommandLine)
	noDB   = flag.Bool("no-db", false, "Disable map and result persistence")
	showDB = flag.Bool("migrate-version", false, "Print the database schema version and exit")
)

func main() {
	flag.Parse()

	cfg, err := flags.Load(flag.CommandLine)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var store *db.DB
	if !*noDB {
		store, err = db.NewDB(cfg.GetDevDBPath())
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()

		if *showDB {
			v, dirty, err := store.MigrateVersion()
			if err != nil {
				log.Fatalf("failed to read schema version: %v", err)
			}
			monitoring.Logf("schema version %d (dirty=%v)", v, dirty)
			return
		}
	}

	seed, ok := cfg.GetSeed()
	if !ok {
		seed = time.Now().UnixNano()
	}

	server := devbackend.NewServer(devbackend.Config{
		Address: cfg.GetDevListen(),
		DB:      store,
		Planner: devbackend.NewPlanner(seed),
		Seed:    seed,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	monitoring.Logf("patrol-devbackend %s: db=%s persistence=%v", version.String(), cfg.GetDevDBPath(), store != nil)
	if err := server.Start(ctx); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
