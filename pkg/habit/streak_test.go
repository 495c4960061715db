package habit

import (
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
)

func day(s string) time.Time {
	t, err := time.Parse(model.DateFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalculateStreak(t *testing.T) {
	today := day("2024-01-03")

	t.Run("anchored on today", func(t *testing.T) {
		h := model.Habit{CompletedDates: []string{"2024-01-01", "2024-01-02", "2024-01-03"}}
		if got := CalculateStreak(h, today); got != 3 {
			t.Errorf("streak = %d, want 3", got)
		}
	})

	t.Run("grace period anchors on yesterday", func(t *testing.T) {
		h := model.Habit{CompletedDates: []string{"2024-01-01", "2024-01-02"}}
		if got := CalculateStreak(h, today); got != 2 {
			t.Errorf("streak = %d, want 2", got)
		}
	})

	t.Run("two missed days reset", func(t *testing.T) {
		h := model.Habit{CompletedDates: []string{"2024-01-01"}}
		if got := CalculateStreak(h, today); got != 0 {
			t.Errorf("streak = %d, want 0", got)
		}
	})

	t.Run("gap stops the walk", func(t *testing.T) {
		h := model.Habit{CompletedDates: []string{"2023-12-30", "2024-01-02", "2024-01-03"}}
		if got := CalculateStreak(h, today); got != 2 {
			t.Errorf("streak = %d, want 2", got)
		}
	})

	t.Run("crosses month and year boundaries", func(t *testing.T) {
		h := model.Habit{CompletedDates: []string{"2023-12-30", "2023-12-31", "2024-01-01"}}
		if got := CalculateStreak(h, day("2024-01-01")); got != 3 {
			t.Errorf("streak = %d, want 3", got)
		}
	})

	t.Run("weekly habits still count every calendar day", func(t *testing.T) {
		h := model.Habit{
			Frequency:      model.FrequencyWeekly,
			ScheduledDays:  []int{1, 3}, // Mon, Wed
			CompletedDates: []string{"2024-01-01", "2024-01-03"},
		}
		if got := CalculateStreak(h, today); got != 1 {
			t.Errorf("streak = %d, want 1", got)
		}
	})

	t.Run("capped walk", func(t *testing.T) {
		var dates []string
		d := today
		for i := 0; i < maxStreakDays+20; i++ {
			dates = append(dates, d.Format(model.DateFormat))
			d = d.AddDate(0, 0, -1)
		}
		if got := CalculateStreak(model.Habit{CompletedDates: dates}, today); got != maxStreakDays {
			t.Errorf("streak = %d, want cap %d", got, maxStreakDays)
		}
	})
}

func TestToggle(t *testing.T) {
	today := day("2024-01-03")
	h := model.Habit{CompletedDates: []string{"2024-01-01", "2024-01-02"}, LongestStreak: 1}

	h = Toggle(h, "2024-01-03", today)
	if h.CurrentStreak != 3 || h.LongestStreak != 3 {
		t.Fatalf("after completing today: current=%d longest=%d", h.CurrentStreak, h.LongestStreak)
	}

	h = Toggle(h, "2024-01-02", today)
	if h.CurrentStreak != 1 {
		t.Errorf("after un-completing yesterday: current=%d, want 1", h.CurrentStreak)
	}
	if h.LongestStreak != 3 {
		t.Errorf("longest streak decreased to %d", h.LongestStreak)
	}
	if h.CompletedOn("2024-01-02") {
		t.Error("2024-01-02 should have been removed")
	}
}

func TestToggleDoesNotAliasInput(t *testing.T) {
	orig := model.Habit{CompletedDates: []string{"2024-01-01", "2024-01-02"}}
	_ = Toggle(orig, "2024-01-01", day("2024-01-02"))
	if len(orig.CompletedDates) != 2 || orig.CompletedDates[0] != "2024-01-01" {
		t.Errorf("input habit was mutated: %v", orig.CompletedDates)
	}
}

func TestIsScheduled(t *testing.T) {
	every := model.Habit{Frequency: model.FrequencyDaily}
	if !IsScheduled(every, time.Sunday) {
		t.Error("empty ScheduledDays should mean every day")
	}
	weekly := model.Habit{ScheduledDays: []int{2}}
	if !IsScheduled(weekly, time.Tuesday) || IsScheduled(weekly, time.Wednesday) {
		t.Error("weekday filter not applied")
	}
}

func TestValidate(t *testing.T) {
	ok := model.Habit{Name: "Read", Frequency: model.FrequencyDaily, ScheduledStartTime: "07:00", ScheduledEndTime: "07:30"}
	if err := Validate(ok); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := []model.Habit{
		{Name: " ", Frequency: model.FrequencyDaily},
		{Name: "x", Frequency: "hourly"},
		{Name: "x", Frequency: model.FrequencyWeekly, ScheduledDays: []int{7}},
		{Name: "x", Frequency: model.FrequencyDaily, ScheduledStartTime: "08:00"},
		{Name: "x", Frequency: model.FrequencyDaily, ScheduledStartTime: "08:00", ScheduledEndTime: "07:00"},
	}
	for _, h := range bad {
		if err := Validate(h); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("Validate(%+v) = %v, want validation error", h, err)
		}
	}
}

func TestMaterialize(t *testing.T) {
	habits := []model.Habit{
		{ID: "h1", Name: "Run", ScheduledStartTime: "06:30", ScheduledEndTime: "07:15", CompletedDates: []string{"2024-01-03"}},
		{ID: "h2", Name: "Gym", ScheduledDays: []int{1}, ScheduledStartTime: "18:00", ScheduledEndTime: "19:00"},
		{ID: "h3", Name: "Untimed"},
		{ID: "h4", Name: "Stretch", ScheduledStartTime: "21:00", ScheduledEndTime: "21:15"},
	}
	existing := []model.TimedEntry{{ID: "e", OwnerKind: model.OwnerHabit, OwnerID: "h4"}}

	// 2024-01-03 is a Wednesday.
	got := Materialize(habits, "2024-01-03", existing)
	if len(got) != 1 {
		t.Fatalf("expected 1 block, got %d: %+v", len(got), got)
	}
	b := got[0]
	if b.OwnerID != "h1" || b.StartHour != 6.5 || b.DurationHour != 0.75 || !b.Completed || b.Date != "2024-01-03" {
		t.Errorf("unexpected block %+v", b)
	}
	if b.ID == "" || b.Origin != model.OriginLocal {
		t.Errorf("block should carry an id and local origin: %+v", b)
	}
}
