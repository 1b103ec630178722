package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Defaults for the loop.
const (
	DefaultTick         = time.Minute
	DefaultCollectEvery = 6 * time.Hour
)

// NicheLister loads the current niche catalogue.
type NicheLister interface {
	ListNiches(ctx context.Context) ([]types.ContentNiche, error)
}

// Collector refreshes analytics.
type Collector interface {
	CollectAll(ctx context.Context) (*analytics.Summary, error)
}

// LoopOptions tunes the loop.
type LoopOptions struct {
	Tick         time.Duration
	CollectEvery time.Duration
	Logger       *log.Logger
	Now          func() time.Time
}

// Loop wakes every tick, runs niches whose posting slots have passed since the previous
// tick, and periodically collects analytics. Everything happens on the loop goroutine,
// so runs never overlap.
type Loop struct {
	driver    *Driver
	niches    NicheLister
	collector Collector
	opts      LoopOptions
	logger    *log.Logger
	now       func() time.Time

	lastTick    time.Time
	lastCollect time.Time
}

// NewLoop builds a loop. collector may be nil to disable analytics.
func NewLoop(driver *Driver, niches NicheLister, collector Collector, opts LoopOptions) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.CollectEvery <= 0 {
		opts.CollectEvery = DefaultCollectEvery
	}
	l := &Loop{driver: driver, niches: niches, collector: collector, opts: opts, logger: opts.Logger, now: opts.Now}
	if l.logger == nil {
		l.logger = log.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Run blocks until ctx is canceled. Slots that passed before Run started are not replayed.
func (l *Loop) Run(ctx context.Context) error {
	l.lastTick = l.now()
	l.lastCollect = l.lastTick
	l.logger.Printf("[scheduler] Loop started (tick %s, analytics every %s)", l.opts.Tick, l.opts.CollectEvery)

	ticker := time.NewTicker(l.opts.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			l.logger.Printf("[scheduler] Loop stopped")
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one scheduling pass covering (lastTick, now].
func (l *Loop) Tick(ctx context.Context) {
	now := l.now()
	from := l.lastTick
	l.lastTick = now

	niches, err := l.niches.ListNiches(ctx)
	if err != nil {
		l.logger.Printf("[scheduler] Failed to list niches: %v", err)
	} else if due := DueNiches(niches, from, now); len(due) > 0 {
		l.logger.Printf("[scheduler] %d niche(s) due", len(due))
		l.driver.RunAll(ctx, due)
	}

	if l.collector != nil && now.Sub(l.lastCollect) >= l.opts.CollectEvery {
		l.lastCollect = now
		if _, err := l.collector.CollectAll(ctx); err != nil {
			l.logger.Printf("[scheduler] Analytics collection failed: %v", err)
		}
	}
}
