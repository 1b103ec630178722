// Package scheduler drives workflow runs across niches, one niche at a time.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/poll"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// DefaultNichePause separates consecutive niche runs.
const DefaultNichePause = 30 * time.Second

// Runner executes one workflow run for a niche.
type Runner interface {
	Run(ctx context.Context, niche *types.ContentNiche) (string, error)
}

// Outcome is the result of one niche run.
type Outcome struct {
	NicheID string
	VideoID string
	Err     error
}

// DriverOptions tunes the driver.
type DriverOptions struct {
	NichePause time.Duration
	Logger     *log.Logger
}

// Driver runs niches strictly sequentially with a fixed pause between them.
type Driver struct {
	runner Runner
	pause  time.Duration
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewDriver returns a driver. A zero NichePause uses DefaultNichePause; pass a negative
// value for no pause.
func NewDriver(runner Runner, opts DriverOptions) *Driver {
	pause := opts.NichePause
	if pause == 0 {
		pause = DefaultNichePause
	}
	if pause < 0 {
		pause = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Driver{runner: runner, pause: pause, logger: logger, sleep: poll.Sleep}
}

// RunAll runs every niche in order. A failed niche is logged and the driver moves on.
// Cancellation stops before the next niche; outcomes so far are returned.
func (d *Driver) RunAll(ctx context.Context, niches []types.ContentNiche) []Outcome {
	outcomes := make([]Outcome, 0, len(niches))
	for i := range niches {
		if i > 0 {
			if err := d.sleep(ctx, d.pause); err != nil {
				d.logger.Printf("[scheduler] Stopping before niche %s: %v", niches[i].ID, err)
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		niche := &niches[i]
		d.logger.Printf("[scheduler] Running niche %s (%d/%d)", niche.ID, i+1, len(niches))
		videoID, err := d.runner.Run(ctx, niche)
		if err != nil {
			d.logger.Printf("[scheduler] Niche %s failed: %v", niche.ID, err)
		} else {
			d.logger.Printf("[scheduler] Niche %s produced video %s", niche.ID, videoID)
		}
		outcomes = append(outcomes, Outcome{NicheID: niche.ID, VideoID: videoID, Err: err})
	}
	return outcomes
}
