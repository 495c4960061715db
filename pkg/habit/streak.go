// Package habit computes streaks and schedules habit blocks.
package habit

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

// maxStreakDays bounds the backward walk.
const maxStreakDays = 3650

// CalculateStreak counts consecutive completed days walking back from the
// anchor: today if completed, else yesterday if completed, else there is no
// streak. Every calendar day counts regardless of ScheduledDays.
func CalculateStreak(h model.Habit, today time.Time) int {
	done := make(map[string]bool, len(h.CompletedDates))
	for _, d := range h.CompletedDates {
		done[d] = true
	}

	day := dayStart(today)
	if !done[day.Format(model.DateFormat)] {
		day = day.AddDate(0, 0, -1)
		if !done[day.Format(model.DateFormat)] {
			return 0
		}
	}

	streak := 0
	for streak < maxStreakDays && done[day.Format(model.DateFormat)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

// Toggle flips completion of date and refreshes the streak memo.
// LongestStreak never decreases.
func Toggle(h model.Habit, date string, today time.Time) model.Habit {
	out := h
	out.CompletedDates = nil
	found := false
	for _, d := range h.CompletedDates {
		if d == date {
			found = true
			continue
		}
		out.CompletedDates = append(out.CompletedDates, d)
	}
	if !found {
		out.CompletedDates = append(out.CompletedDates, date)
	}
	sort.Strings(out.CompletedDates)
	return Recompute(out, today)
}

// Recompute refreshes CurrentStreak and raises LongestStreak if needed.
func Recompute(h model.Habit, today time.Time) model.Habit {
	h.CurrentStreak = CalculateStreak(h, today)
	if h.CurrentStreak > h.LongestStreak {
		h.LongestStreak = h.CurrentStreak
	}
	return h
}

// IsScheduled reports whether the habit is due on weekday. An empty
// ScheduledDays means every day.
func IsScheduled(h model.Habit, weekday time.Weekday) bool {
	if len(h.ScheduledDays) == 0 {
		return true
	}
	for _, d := range h.ScheduledDays {
		if time.Weekday(d) == weekday {
			return true
		}
	}
	return false
}

// Validate rejects habits that cannot be stored.
func Validate(h model.Habit) error {
	if strings.TrimSpace(h.Name) == "" {
		return errs.Validationf("habit name is empty")
	}
	switch h.Frequency {
	case model.FrequencyDaily, model.FrequencyWeekly:
	default:
		return errs.Validationf("unknown frequency %q", h.Frequency)
	}
	for _, d := range h.ScheduledDays {
		if d < 0 || d > 6 {
			return errs.Validationf("weekday %d out of range 0-6", d)
		}
	}
	if (h.ScheduledStartTime == "") != (h.ScheduledEndTime == "") {
		return errs.Validationf("habit needs both a start and an end time")
	}
	if h.ScheduledStartTime != "" {
		start, err := timegrid.ClockToHour(h.ScheduledStartTime)
		if err != nil {
			return errs.Validationf("%v", err)
		}
		end, err := timegrid.ClockToHour(h.ScheduledEndTime)
		if err != nil {
			return errs.Validationf("%v", err)
		}
		if end <= start {
			return errs.Validationf("habit end %s is not after start %s", h.ScheduledEndTime, h.ScheduledStartTime)
		}
	}
	return nil
}

// Materialize returns the habit blocks missing for date: one per habit that
// is scheduled that weekday, carries a time window, and has no block yet.
func Materialize(habits []model.Habit, date string, existing []model.TimedEntry) []model.TimedEntry {
	day, err := time.Parse(model.DateFormat, date)
	if err != nil {
		return nil
	}
	have := make(map[string]bool)
	for _, e := range existing {
		if e.OwnerKind == model.OwnerHabit {
			have[e.OwnerID] = true
		}
	}

	var out []model.TimedEntry
	for _, h := range habits {
		if have[h.ID] || h.ScheduledStartTime == "" || !IsScheduled(h, day.Weekday()) {
			continue
		}
		start, err := timegrid.ClockToHour(h.ScheduledStartTime)
		if err != nil {
			continue
		}
		end, err := timegrid.ClockToHour(h.ScheduledEndTime)
		if err != nil || end <= start {
			continue
		}
		start, dur := timegrid.Place(start, end-start)
		out = append(out, model.TimedEntry{
			ID:           uuid.NewString(),
			Date:         date,
			Title:        h.Name,
			StartHour:    start,
			DurationHour: dur,
			Tag:          h.Tag,
			OwnerKind:    model.OwnerHabit,
			OwnerID:      h.ID,
			Origin:       model.OriginLocal,
			Completed:    h.CompletedOn(date),
		})
	}
	return out
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
