// Package animate replays patrol routes onto a display surface one time step
// at a time.
package animate

import (
	"context"
	"time"

	"github.com/banshee-data/patrol.report/internal/grid"
	"github.com/banshee-data/patrol.report/internal/patrol"
	"github.com/banshee-data/patrol.report/internal/timeutil"
)

// RouteColours is the number of distinct route colour classes.
const RouteColours = 5

// Surface receives route markings.
type Surface interface {
	// ClearRoutes removes every patrol and ranger marking.
	ClearRoutes()
	// Mark records that the route with index routeIdx occupies c. start is
	// true for the first step of the route.
	Mark(c grid.Coord, routeIdx int, start bool)
}

// Step describes one completed playback step.
type Step struct {
	Index int
	Total int
	// Marked lists the coordinates added during this step, in route order.
	Marked []grid.Coord
}

// Animator plays routes back with a fixed delay between steps.
type Animator struct {
	Surface Surface
	Delay   time.Duration
	Clock   timeutil.Clock

	// OnStep, if set, is called after each step is marked and before the
	// delay.
	OnStep func(Step)
}

// New creates an Animator using the real clock.
func New(surface Surface, delay time.Duration) *Animator {
	return &Animator{Surface: surface, Delay: delay, Clock: timeutil.RealClock{}}
}

// Play clears existing markings and replays routes. Cancellation is observed
// only between steps: a step is always marked in full before ctx is checked.
// Play returns ctx.Err() if playback was cut short.
func (a *Animator) Play(ctx context.Context, routes []patrol.Route) error {
	a.Surface.ClearRoutes()

	total := 0
	for _, r := range routes {
		total = max(total, len(r.Path))
	}

	clock := a.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	for step := 0; step < total; step++ {
		marked := make([]grid.Coord, 0, len(routes))
		for idx, r := range routes {
			if step >= len(r.Path) {
				continue
			}
			c := r.Path[step]
			a.Surface.Mark(c, idx, step == 0)
			marked = append(marked, c)
		}

		if a.OnStep != nil {
			a.OnStep(Step{Index: step, Total: total, Marked: marked})
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := clock.Sleep(ctx, a.Delay); err != nil {
			return err
		}
	}
	return nil
}

// ColourIndex maps a route index onto one of the RouteColours classes.
func ColourIndex(routeIdx int) int {
	return routeIdx % RouteColours
}
