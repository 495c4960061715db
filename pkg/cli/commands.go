package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/harrisonrobin/timebox/pkg/auth"
	"github.com/harrisonrobin/timebox/pkg/calcache"
	"github.com/harrisonrobin/timebox/pkg/config"
	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/google"
	"github.com/harrisonrobin/timebox/pkg/habit"
	"github.com/harrisonrobin/timebox/pkg/model"
)

type AuthCmd struct{}

func (c *AuthCmd) Run(ctx *Context) error {
	if err := auth.Authorize(ctx, ctx.Config.Dir(), google.Scopes); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	fmt.Fprintln(ctx.Out, "Authentication successful!")
	return nil
}

type SetCalendarCmd struct {
	Name string `arg:"" help:"Calendar name or id."`
}

func (c *SetCalendarCmd) Run(ctx *Context) error {
	if err := config.SetCalendar(ctx.Config, c.Name); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Default calendar set to: %s\n", c.Name)
	return nil
}

type DatabaseCmd struct {
	URL string `arg:"" help:"PostgreSQL connection string."`
}

func (c *DatabaseCmd) Run(ctx *Context) error {
	if err := auth.SetConnectionString(c.URL); err != nil {
		return err
	}
	fmt.Fprintln(ctx.Out, "Connection string stored in the OS keyring.")
	return nil
}

type DayCmd struct{}

func (c *DayCmd) Run(ctx *Context) error {
	a := ctx.App
	fmt.Fprintf(ctx.Out, "%s\n", a.Date())
	entries := a.Schedule()
	if len(entries) == 0 {
		fmt.Fprintln(ctx.Out, "  (nothing scheduled)")
	}
	for _, e := range entries {
		var marks []string
		if e.Origin == model.OriginRemote {
			marks = append(marks, "calendar")
			if !calcache.Editable(e) {
				marks = append(marks, "read-only")
			}
		} else if e.Linked() {
			marks = append(marks, "synced")
		}
		if e.Tag != "" {
			marks = append(marks, "#"+e.Tag)
		}
		suffix := ""
		if len(marks) > 0 {
			suffix = "  (" + strings.Join(marks, ", ") + ")"
		}
		fmt.Fprintf(ctx.Out, "  %s %s %s  %s%s\n", check(e.Completed), span(e), e.Title, e.ID, suffix)
	}
	if last := a.Calendar().LastRefresh(); !last.IsZero() {
		fmt.Fprintf(ctx.Out, "calendar refreshed %s\n", last.Format(time.Kitchen))
	}
	return nil
}

type SyncCmd struct{}

func (c *SyncCmd) Run(ctx *Context) error {
	counts, err := ctx.App.Sync(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Synced: %s\n", counts)
	return nil
}

type WatchCmd struct {
	Interval time.Duration `help:"Time between refreshes (defaults to sync_interval from config)."`
}

func (c *WatchCmd) Run(ctx *Context) error {
	interval := c.Interval
	if interval <= 0 {
		interval = ctx.Config.SyncInterval
	}
	sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(ctx.Out, "Refreshing the calendar every %s, press Ctrl-C to stop.\n", interval)
	return ctx.App.Watch(sigCtx, interval)
}

type ZoomCmd struct {
	Off bool `help:"Return to the normal scale."`
}

func (c *ZoomCmd) Run(ctx *Context) error {
	s := ctx.App.SetZoomed(!c.Off)
	fmt.Fprintf(ctx.Out, "Timeline at %.0f px per hour.\n", s.PixelsPerHour())
	return nil
}

// Tasks

type TaskAddCmd struct {
	Title string `arg:"" help:"Task title."`
	Tag   string `short:"t" help:"Tag."`
	Due   string `help:"Assigned date (YYYY-MM-DD). Defaults to the selected day."`
}

func (c *TaskAddCmd) Run(ctx *Context) error {
	due := c.Due
	if due == "" {
		due = ctx.App.Date()
	}
	t, err := ctx.App.Store().AddTask(model.Task{Title: c.Title, Tag: c.Tag, AssignedDate: due})
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Added task %s (%s)\n", t.Title, t.ID)
	return nil
}

type TaskDoneCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TaskDoneCmd) Run(ctx *Context) error {
	t, err := ctx.App.Store().ToggleTask(c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s %s\n", check(t.Completed), t.Title)
	return nil
}

type TaskRmCmd struct {
	ID string `arg:"" help:"Task id."`
}

func (c *TaskRmCmd) Run(ctx *Context) error {
	if err := ctx.App.Store().DeleteTask(c.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Deleted task %s\n", c.ID)
	return nil
}

type TaskListCmd struct {
	Overdue bool `help:"Only incomplete tasks from past days."`
}

func (c *TaskListCmd) Run(ctx *Context) error {
	s := ctx.App.Store()
	overdue := make(map[string]bool)
	for _, t := range s.Overdue() {
		overdue[t.ID] = true
	}
	for _, t := range s.Tasks() {
		if c.Overdue && !overdue[t.ID] {
			continue
		}
		at := t.Time
		if at == "" {
			at = "--:--"
		}
		title := t.Title
		if overdue[t.ID] {
			title = "! " + title
		}
		fmt.Fprintf(ctx.Out, "%s %s %s  %s  %s\n", check(t.Completed), t.AssignedDate, at, title, t.ID)
	}
	return nil
}

// Blocks

type BlockAddCmd struct {
	Title    string        `arg:"" optional:"" help:"Block title. Defaults to the task or habit name."`
	Start    string        `short:"s" required:"" help:"Start time (HH:MM)."`
	Duration time.Duration `short:"d" default:"1h" help:"Length of the block."`
	Task     string        `help:"Schedule this task."`
	Habit    string        `help:"Block time for this habit."`
	Tag      string        `short:"t" help:"Tag."`
}

func (c *BlockAddCmd) Run(ctx *Context) error {
	start, err := parseClock(c.Start)
	if err != nil {
		return err
	}
	s := ctx.App.Store()
	var e model.TimedEntry
	switch {
	case c.Task != "" && c.Habit != "":
		return errs.Validationf("a block belongs to a task or a habit, not both")
	case c.Task != "":
		e, err = s.Schedule(c.Task, ctx.App.Date(), start, hours(c.Duration))
	default:
		e = model.TimedEntry{Title: c.Title, Tag: c.Tag, StartHour: start, DurationHour: hours(c.Duration)}
		if c.Habit != "" {
			e.OwnerKind, e.OwnerID = model.OwnerHabit, c.Habit
		}
		e, err = s.Create(e)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Added %s %s (%s)\n", span(e), e.Title, e.ID)
	return nil
}

func findEntry(ctx *Context, id string) (model.TimedEntry, error) {
	for _, e := range ctx.App.Schedule() {
		if e.ID == id {
			return e, nil
		}
	}
	return model.TimedEntry{}, fmt.Errorf("block %s on %s: %w", id, ctx.App.Date(), errs.ErrNotFound)
}

type BlockDragCmd struct {
	ID    string `arg:"" help:"Block id."`
	Start string `arg:"" help:"New start time (HH:MM)."`
}

func (c *BlockDragCmd) Run(ctx *Context) error {
	e, err := findEntry(ctx, c.ID)
	if err != nil {
		return err
	}
	start, err := parseClock(c.Start)
	if err != nil {
		return err
	}
	if err := ctx.App.Move(ctx, e.ID, start, e.DurationHour); err != nil {
		return err
	}
	moved, _ := findEntry(ctx, c.ID)
	fmt.Fprintf(ctx.Out, "Moved %s to %s\n", e.Title, span(moved))
	return nil
}

type BlockResizeCmd struct {
	ID       string        `arg:"" help:"Block id."`
	Duration time.Duration `arg:"" help:"New length, e.g. 45m or 1h30m."`
}

func (c *BlockResizeCmd) Run(ctx *Context) error {
	e, err := findEntry(ctx, c.ID)
	if err != nil {
		return err
	}
	if err := ctx.App.Move(ctx, e.ID, e.StartHour, hours(c.Duration)); err != nil {
		return err
	}
	resized, _ := findEntry(ctx, c.ID)
	fmt.Fprintf(ctx.Out, "Resized %s to %s\n", e.Title, span(resized))
	return nil
}

type BlockRmCmd struct {
	ID string `arg:"" help:"Block id."`
}

func (c *BlockRmCmd) Run(ctx *Context) error {
	if err := ctx.App.RemoveEntry(ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Removed %s\n", c.ID)
	return nil
}

type BlockPushCmd struct {
	ID string `arg:"" help:"Block id."`
}

func (c *BlockPushCmd) Run(ctx *Context) error {
	e, err := ctx.App.Push(ctx, c.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Pushed %s as event %s\n", e.Title, e.RemoteID)
	return nil
}

// Habits

type HabitAddCmd struct {
	Name   string `arg:"" help:"Habit name."`
	Weekly bool   `help:"Track weekly instead of daily."`
	Days   string `short:"w" help:"Comma-separated weekdays the habit is scheduled on."`
	Start  string `short:"s" help:"Start of the habit's time window (HH:MM)."`
	End    string `short:"e" help:"End of the habit's time window (HH:MM)."`
	Tag    string `short:"t" help:"Tag."`
}

func (c *HabitAddCmd) Run(ctx *Context) error {
	days, err := parseWeekdays(c.Days)
	if err != nil {
		return err
	}
	h := model.Habit{
		Name:               c.Name,
		Tag:                c.Tag,
		Frequency:          model.FrequencyDaily,
		ScheduledDays:      days,
		ScheduledStartTime: c.Start,
		ScheduledEndTime:   c.End,
	}
	if c.Weekly {
		h.Frequency = model.FrequencyWeekly
	}
	h, err = ctx.App.Store().AddHabit(h)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Added habit %s (%s)\n", h.Name, h.ID)
	return nil
}

type HabitDoneCmd struct {
	ID string `arg:"" help:"Habit id."`
}

func (c *HabitDoneCmd) Run(ctx *Context) error {
	date := ctx.App.Date()
	h, err := ctx.App.Store().ToggleHabit(c.ID, date)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "%s %s on %s, streak %d\n", check(h.CompletedOn(date)), h.Name, date, h.CurrentStreak)
	return nil
}

type HabitRmCmd struct {
	ID string `arg:"" help:"Habit id."`
}

func (c *HabitRmCmd) Run(ctx *Context) error {
	if err := ctx.App.Store().DeleteHabit(c.ID); err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Deleted habit %s\n", c.ID)
	return nil
}

type HabitListCmd struct{}

func (c *HabitListCmd) Run(ctx *Context) error {
	date := ctx.App.Date()
	day, _ := time.Parse(model.DateFormat, date)
	for _, h := range ctx.App.Store().Habits() {
		when := "daily"
		if h.Frequency == model.FrequencyWeekly {
			when = "weekly"
		}
		if !habit.IsScheduled(h, day.Weekday()) {
			when = "rest day"
		}
		fmt.Fprintf(ctx.Out, "%s %s  streak %d (best %d)  %s  %s\n",
			check(h.CompletedOn(date)), h.Name, h.CurrentStreak, h.LongestStreak, when, h.ID)
	}
	return nil
}

// Weight

type WeightLogCmd struct {
	Kg float64 `arg:"" help:"Weight."`
}

func (c *WeightLogCmd) Run(ctx *Context) error {
	entries, err := ctx.App.LogWeight(ctx, ctx.App.Date(), c.Kg)
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.Out, "Logged %.1f on %s (%d entries)\n", c.Kg, ctx.App.Date(), len(entries))
	return nil
}

type WeightListCmd struct{}

func (c *WeightListCmd) Run(ctx *Context) error {
	for _, e := range ctx.App.Weights().Entries() {
		fmt.Fprintf(ctx.Out, "%s  %.1f\n", e.Date, e.Weight)
	}
	return nil
}

// Notes

type NoteCmd struct {
	Body []string `arg:"" optional:"" help:"New note text. Omit to print the note."`
}

func (c *NoteCmd) Run(ctx *Context) error {
	s := ctx.App.Store()
	date := ctx.App.Date()
	if len(c.Body) == 0 {
		n, err := s.Note(ctx, date)
		if err != nil {
			return err
		}
		fmt.Fprintln(ctx.Out, n.Body)
		return nil
	}
	return s.SaveNote(date, strings.Join(c.Body, " "))
}
