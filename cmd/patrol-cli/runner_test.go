package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/patrol.report/internal/config"
	"github.com/banshee-data/patrol.report/internal/db"
	"github.com/banshee-data/patrol.report/internal/devbackend"
	"github.com/banshee-data/patrol.report/internal/httputil"
	"github.com/banshee-data/patrol.report/internal/monitoring"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

// newRunner points a runner at an in-process development backend.
func newRunner(t *testing.T, backend string, opts options) (*runner, *bytes.Buffer) {
	t.Helper()

	var store *db.DB
	if backend == "rest" {
		var err error
		store, err = db.NewDB(filepath.Join(t.TempDir(), "dev.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
	}
	dev := httptest.NewServer(devbackend.NewServer(devbackend.Config{
		DB:      store,
		Planner: devbackend.NewPlanner(5),
		Seed:    5,
	}).Handler())
	t.Cleanup(dev.Close)

	url := dev.URL
	if backend == "mode" {
		url += "/optimize"
	}
	cfg := config.EmptyConfig()
	cfg.Backend = strPtr(backend)
	cfg.BackendURL = strPtr(url)
	cfg.GridSize = intPtr(6)
	cfg.RangerCount = intPtr(2)
	cfg.MaxSteps = intPtr(5)

	var out bytes.Buffer
	return &runner{
		cfg:        cfg,
		httpClient: httputil.NewStandardClient(dev.Client()),
		clock:      timeutil.NewMockClock(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
		out:        &out,
		seed:       9,
		opts:       opts,
	}, &out
}

func TestRunOptimized(t *testing.T) {
	r, out := newRunner(t, "mode", options{modes: []patrol.Mode{patrol.ModeOptimized}})
	require.NoError(t, r.run(context.Background()))

	got := out.String()
	assert.Contains(t, got, "map 6x6")
	assert.Contains(t, got, "optimized: 2 routes")
	assert.Contains(t, got, "risk reduction")
	assert.Contains(t, got, "R")
	assert.NotContains(t, got, "random:")
}

func TestRunCompareWithCharts(t *testing.T) {
	dir := t.TempDir()
	r, out := newRunner(t, "mode", options{
		modes:     []patrol.Mode{patrol.ModeOptimized, patrol.ModeRandom},
		pngPath:   filepath.Join(dir, "risk.png"),
		chartPath: filepath.Join(dir, "risk.html"),
		statsPath: filepath.Join(dir, "stats.html"),
	})
	require.NoError(t, r.run(context.Background()))

	assert.Contains(t, out.String(), "optimized: 2 routes")
	assert.Contains(t, out.String(), "random: 2 routes")

	png, err := os.ReadFile(filepath.Join(dir, "risk.png"))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	for _, name := range []string{"risk.html", "stats.html"} {
		page, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.Contains(t, string(page), "echarts", name)
	}
}

func TestRunAnimatePrintsEachStep(t *testing.T) {
	r, out := newRunner(t, "mode", options{modes: []patrol.Mode{patrol.ModeOptimized}, animate: true})
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "step 1/")
}

func TestRunSaveAndList(t *testing.T) {
	r, out := newRunner(t, "rest", options{
		modes:   []patrol.Mode{patrol.ModeOptimized},
		save:    true,
		mapName: "ridge",
	})
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "saved map ")
	assert.Contains(t, out.String(), "saved result ")

	out.Reset()
	r.opts = options{list: true}
	require.NoError(t, r.run(context.Background()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "ridge")

	id := strings.Fields(lines[1])[0]
	out.Reset()
	r.opts = options{modes: []patrol.Mode{patrol.ModeRandom}, loadID: id}
	require.NoError(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "loaded map "+id)
}

func TestRunSaveNeedsPersistence(t *testing.T) {
	r, _ := newRunner(t, "mode", options{modes: []patrol.Mode{patrol.ModeOptimized}, save: true})
	err := r.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, patrol.ErrPersistenceUnavailable)
}

func TestRunBackendFailurePrintsNotice(t *testing.T) {
	r, out := newRunner(t, "mode", options{modes: []patrol.Mode{patrol.ModeOptimized}})
	r.cfg.MaxSteps = intPtr(0)

	require.Error(t, r.run(context.Background()))
	assert.Contains(t, out.String(), "Optimization failed: ")
}
