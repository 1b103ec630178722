package scheduler

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/shorts-autopilot/internal/analytics"
	"github.com/jonathan/shorts-autopilot/internal/types"
)

type fakeRunner struct {
	RunFunc func(ctx context.Context, niche *types.ContentNiche) (string, error)
	order   []string
	active  int
	maxSeen int
}

func (f *fakeRunner) Run(ctx context.Context, niche *types.ContentNiche) (string, error) {
	f.active++
	if f.active > f.maxSeen {
		f.maxSeen = f.active
	}
	defer func() { f.active-- }()
	f.order = append(f.order, niche.ID)
	if f.RunFunc != nil {
		return f.RunFunc(ctx, niche)
	}
	return "video-" + niche.ID, nil
}

func quietLogger() *log.Logger {
	return log.New(&bytes.Buffer{}, "", 0)
}

func niches(ids ...string) []types.ContentNiche {
	out := make([]types.ContentNiche, len(ids))
	for i, id := range ids {
		out[i] = types.ContentNiche{ID: id, Name: id}
	}
	return out
}

func TestDriver_SequentialWithPauses(t *testing.T) {
	runner := &fakeRunner{RunFunc: func(_ context.Context, n *types.ContentNiche) (string, error) {
		if n.ID == "b" {
			return "", errors.New("video provider down")
		}
		return "video-" + n.ID, nil
	}}
	d := NewDriver(runner, DriverOptions{Logger: quietLogger()})
	var pauses []time.Duration
	d.sleep = func(_ context.Context, p time.Duration) error {
		pauses = append(pauses, p)
		return nil
	}

	outcomes := d.RunAll(context.Background(), niches("a", "b", "c"))
	require.Len(t, outcomes, 3)
	assert.Equal(t, []string{"a", "b", "c"}, runner.order)
	assert.Equal(t, 1, runner.maxSeen)
	assert.Equal(t, []time.Duration{DefaultNichePause, DefaultNichePause}, pauses)
	assert.Equal(t, "video-a", outcomes[0].VideoID)
	assert.Error(t, outcomes[1].Err)
	assert.Equal(t, "video-c", outcomes[2].VideoID)
}

func TestDriver_CancelDuringPause(t *testing.T) {
	runner := &fakeRunner{}
	d := NewDriver(runner, DriverOptions{NichePause: time.Hour, Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	runner.RunFunc = func(context.Context, *types.ContentNiche) (string, error) {
		cancel()
		return "v", nil
	}

	outcomes := d.RunAll(ctx, niches("a", "b"))
	assert.Len(t, outcomes, 1)
	assert.Equal(t, []string{"a"}, runner.order)
}

func TestDriver_NegativePauseMeansNone(t *testing.T) {
	d := NewDriver(&fakeRunner{}, DriverOptions{NichePause: -1, Logger: quietLogger()})
	assert.Equal(t, time.Duration(0), d.pause)
	start := time.Now()
	d.RunAll(context.Background(), niches("a", "b", "c"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestSlots(t *testing.T) {
	assert.Equal(t, []Slot{{9, 0}, {18, 30}}, Slots(types.PostingSchedule{PreferredTimes: []string{"18:30", "09:00", "bad"}}))
	assert.Equal(t, []Slot{{9, 0}}, Slots(types.PostingSchedule{TimesPerDay: 1, PreferredTimes: []string{"09:00", "18:30"}}))
	assert.Equal(t, []Slot{{0, 0}, {8, 0}, {16, 0}}, Slots(types.PostingSchedule{TimesPerDay: 3}))
	assert.Empty(t, Slots(types.PostingSchedule{}))
}

func TestIsDue_RespectsTimezone(t *testing.T) {
	niche := types.ContentNiche{ID: "ny", Schedule: types.PostingSchedule{PreferredTimes: []string{"09:00"}, Timezone: "America/New_York"}}
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	slot := time.Date(2026, 3, 2, 9, 0, 0, 0, ny)
	assert.True(t, IsDue(niche, slot.Add(-time.Minute), slot))
	assert.False(t, IsDue(niche, slot, slot.Add(time.Minute)), "slot is exclusive at the start")
	assert.False(t, IsDue(niche, slot.Add(time.Hour), slot.Add(2*time.Hour)))

	// Window crossing midnight UTC still finds the next-day slot.
	assert.True(t, IsDue(niche, slot.Add(-20*time.Hour), slot.Add(time.Second)))
	assert.False(t, IsDue(niche, slot, slot))
}

func TestDueNiches(t *testing.T) {
	all := []types.ContentNiche{
		{ID: "morning", Schedule: types.PostingSchedule{PreferredTimes: []string{"08:00"}}},
		{ID: "never"},
		{ID: "evening", Schedule: types.PostingSchedule{PreferredTimes: []string{"20:00"}}},
	}
	from := time.Date(2026, 1, 1, 7, 59, 0, 0, time.UTC)
	due := DueNiches(all, from, from.Add(2*time.Minute))
	require.Len(t, due, 1)
	assert.Equal(t, "morning", due[0].ID)
}

type fakeLister struct {
	niches []types.ContentNiche
	err    error
}

func (f *fakeLister) ListNiches(context.Context) ([]types.ContentNiche, error) {
	return f.niches, f.err
}

type fakeCollector struct {
	calls int
}

func (f *fakeCollector) CollectAll(context.Context) (*analytics.Summary, error) {
	f.calls++
	return &analytics.Summary{}, nil
}

func TestLoop_TickRunsDueNichesAndCollects(t *testing.T) {
	runner := &fakeRunner{}
	driver := NewDriver(runner, DriverOptions{NichePause: -1, Logger: quietLogger()})
	lister := &fakeLister{niches: []types.ContentNiche{
		{ID: "a", Schedule: types.PostingSchedule{PreferredTimes: []string{"10:00"}}},
		{ID: "b", Schedule: types.PostingSchedule{PreferredTimes: []string{"10:01"}}},
	}}
	collector := &fakeCollector{}

	now := time.Date(2026, 1, 1, 9, 59, 30, 0, time.UTC)
	loop := NewLoop(driver, lister, collector, LoopOptions{
		CollectEvery: time.Minute,
		Logger:       quietLogger(),
		Now:          func() time.Time { return now },
	})
	loop.lastTick = now
	loop.lastCollect = now

	now = now.Add(time.Minute) // 10:00:30
	loop.Tick(context.Background())
	assert.Equal(t, []string{"a"}, runner.order)
	assert.Equal(t, 1, collector.calls)

	now = now.Add(30 * time.Second) // 10:01:00
	loop.Tick(context.Background())
	assert.Equal(t, []string{"a", "b"}, runner.order)
	assert.Equal(t, 1, collector.calls)

	lister.err = errors.New("db down")
	now = now.Add(time.Minute)
	assert.NotPanics(t, func() { loop.Tick(context.Background()) })
	assert.Equal(t, 2, collector.calls)
}

func TestLoop_RunStopsOnCancel(t *testing.T) {
	loop := NewLoop(NewDriver(&fakeRunner{}, DriverOptions{Logger: quietLogger()}), &fakeLister{}, nil, LoopOptions{Tick: time.Millisecond, Logger: quietLogger()})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, loop.Run(ctx))
}
