package scheduler

import (
	"sort"
	"time"

	"github.com/jonathan/shorts-autopilot/internal/types"
)

// Slot is a wall-clock posting time in the niche's timezone.
type Slot struct {
	Hour   int
	Minute int
}

// Slots returns a schedule's daily posting times, sorted. Preferred times win; when
// TimesPerDay is also set only that many are used. Without preferred times, TimesPerDay
// slots are spread evenly from midnight. Unparseable times are ignored.
func Slots(s types.PostingSchedule) []Slot {
	var slots []Slot
	for _, hhmm := range s.PreferredTimes {
		t, err := time.Parse("15:04", hhmm)
		if err != nil {
			continue
		}
		slots = append(slots, Slot{Hour: t.Hour(), Minute: t.Minute()})
	}

	if len(slots) > 0 {
		if s.TimesPerDay > 0 && len(slots) > s.TimesPerDay {
			slots = slots[:s.TimesPerDay]
		}
	} else if s.TimesPerDay > 0 {
		step := 24 * 60 / s.TimesPerDay
		for i := 0; i < s.TimesPerDay; i++ {
			m := i * step
			slots = append(slots, Slot{Hour: m / 60, Minute: m % 60})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Hour != slots[j].Hour {
			return slots[i].Hour < slots[j].Hour
		}
		return slots[i].Minute < slots[j].Minute
	})
	return slots
}

// IsDue reports whether any of the niche's slots falls in (from, to].
func IsDue(niche types.ContentNiche, from, to time.Time) bool {
	if !to.After(from) {
		return false
	}
	slots := Slots(niche.Schedule)
	if len(slots) == 0 {
		return false
	}
	loc := niche.Schedule.Location()
	start := from.In(loc)
	end := to.In(loc)

	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	for !day.After(end) {
		for _, s := range slots {
			at := time.Date(day.Year(), day.Month(), day.Day(), s.Hour, s.Minute, 0, 0, loc)
			if at.After(from) && !at.After(to) {
				return true
			}
		}
		day = day.AddDate(0, 0, 1)
	}
	return false
}

// DueNiches filters niches to those with a posting slot in (from, to], keeping order.
func DueNiches(niches []types.ContentNiche, from, to time.Time) []types.ContentNiche {
	var due []types.ContentNiche
	for _, n := range niches {
		if IsDue(n, from, to) {
			due = append(due, n)
		}
	}
	return due
}
