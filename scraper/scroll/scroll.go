// Package scroll drives infinite-scroll and "load more" pagination until the
// page stops growing.
package scroll

import (
	"context"
	"fmt"
	"time"

	"review-scraper/utils"
)

// Probe is the page-side half of the driver. Measure returns the growth
// signal (page height, or number of rendered items). Advance triggers more
// content and reports false when there is nothing left to trigger.
type Probe interface {
	Measure(ctx context.Context) (int, error)
	Advance(ctx context.Context) (bool, error)
}

// Result describes how a run ended.
type Result struct {
	Rounds    int
	Final     int
	Capped    bool // MaxRounds reached while still growing
	Exhausted bool // Advance found no trigger
}

// Driver repeats advance, settle and re-measure until the signal stops
// growing or MaxRounds is hit.
type Driver struct {
	MaxRounds int
	Delay     time.Duration
	Logger    *utils.Logger

	// Sleep defaults to utils.SleepContext.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d *Driver) Run(ctx context.Context, p Probe) (Result, error) {
	sleep := d.Sleep
	if sleep == nil {
		sleep = utils.SleepContext
	}

	last, err := p.Measure(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("scroll: initial measure: %w", err)
	}

	res := Result{Final: last}
	for round := 1; round <= d.MaxRounds; round++ {
		res.Rounds = round

		more, err := p.Advance(ctx)
		if err != nil {
			return res, fmt.Errorf("scroll: advance round %d: %w", round, err)
		}
		if !more {
			res.Exhausted = true
			return res, nil
		}

		if err := sleep(ctx, d.Delay); err != nil {
			return res, err
		}

		cur, err := p.Measure(ctx)
		if err != nil {
			return res, fmt.Errorf("scroll: measure round %d: %w", round, err)
		}
		if cur <= last {
			if d.Logger != nil {
				d.Logger.Debug("[scroll] Stable at %d after %d rounds", cur, round)
			}
			return res, nil
		}
		last = cur
		res.Final = cur
	}

	res.Capped = d.MaxRounds > 0
	if d.Logger != nil && res.Capped {
		d.Logger.Debug("[scroll] Stopped at round cap %d (signal %d)", d.MaxRounds, res.Final)
	}
	return res, nil
}
