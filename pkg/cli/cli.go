// Package cli holds the kong command tree of the timebox binary.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/timebox/pkg/app"
	"github.com/harrisonrobin/timebox/pkg/auth"
	"github.com/harrisonrobin/timebox/pkg/colors"
	"github.com/harrisonrobin/timebox/pkg/config"
	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/google"
	"github.com/harrisonrobin/timebox/pkg/index"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/remote"
	"github.com/harrisonrobin/timebox/pkg/storage"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

type CLI struct {
	Date     string `short:"D" help:"Day to work on (YYYY-MM-DD). Defaults to the last selected day."`
	Calendar string `help:"Calendar name to sync with (overrides config)."`
	Debug    bool   `help:"Log to stderr at debug level."`

	Auth        AuthCmd        `cmd:"" help:"Authorize access to Google Calendar."`
	SetCalendar SetCalendarCmd `cmd:"" help:"Set the default calendar."`
	Database    DatabaseCmd    `cmd:"" help:"Store a database connection string in the OS keyring."`
	Day         DayCmd         `cmd:"" help:"Show the schedule of a day." default:"1"`
	Sync        SyncCmd        `cmd:"" help:"Reconcile with the calendar once."`
	Watch       WatchCmd       `cmd:"" help:"Refresh the cached calendar periodically."`
	Zoom        ZoomCmd        `cmd:"" help:"Switch the timeline scale."`
	Task        struct {
		Add  TaskAddCmd  `cmd:"" help:"Add a task."`
		Done TaskDoneCmd `cmd:"" help:"Toggle completion of a task."`
		Rm   TaskRmCmd   `cmd:"" help:"Delete a task and its blocks."`
		List TaskListCmd `cmd:"" help:"List tasks." default:"1"`
	} `cmd:"" help:"Manage tasks."`
	Block struct {
		Add    BlockAddCmd    `cmd:"" help:"Add a block to the day."`
		Drag   BlockDragCmd   `cmd:"" help:"Move a block to a new start time."`
		Resize BlockResizeCmd `cmd:"" help:"Change the length of a block."`
		Rm     BlockRmCmd     `cmd:"" help:"Remove a block."`
		Push   BlockPushCmd   `cmd:"" help:"Create the calendar event of a block."`
	} `cmd:"" help:"Manage time blocks."`
	Habit struct {
		Add  HabitAddCmd  `cmd:"" help:"Add a habit."`
		Done HabitDoneCmd `cmd:"" help:"Toggle a habit for the day."`
		Rm   HabitRmCmd   `cmd:"" help:"Delete a habit and its blocks."`
		List HabitListCmd `cmd:"" help:"List habits with streaks." default:"1"`
	} `cmd:"" help:"Manage habits."`
	Weight struct {
		Log  WeightLogCmd  `cmd:"" help:"Log the weight of the day."`
		List WeightListCmd `cmd:"" help:"Show the weight log." default:"1"`
	} `cmd:"" help:"Track weight."`
	Note NoteCmd `cmd:"" help:"Show or replace the note of the day."`
}

// NeedsApp reports whether command (as printed by kong) works on the schedule.
func NeedsApp(command string) bool {
	for _, prefix := range []string{"auth", "set-calendar", "database"} {
		if strings.HasPrefix(command, prefix) {
			return false
		}
	}
	return true
}

// Context is handed to every command's Run.
type Context struct {
	context.Context
	Config *config.Config
	App    *app.App
	Out    io.Writer

	closers []func()
}

// Open builds the application for cfg. Without a stored calendar token the
// app runs local only.
func (c *Context) Open(cli *CLI) error {
	loc, err := c.Config.Location()
	if err != nil {
		return err
	}
	dsn := c.Config.Database
	if dsn == "" {
		dsn = auth.GetConnectionString()
	}
	if dsn == "" {
		dsn = c.Config.DefaultDatabasePath()
	}
	db, err := storage.Open(dsn, c.Config.User)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, func() { db.Close() })

	kv := kvcache.Open(c.Config.CacheDir())
	notices := notice.Tee{notice.Log{}, &printer{w: os.Stderr}}
	c.App = app.New(app.Config{
		Adapter:  db,
		Provider: c.openCalendar(kv),
		Cache:    kv,
		Notices:  notices,
		Location: loc,
		Zoomed:   c.Config.Zoomed,
	})
	c.closers = append([]func(){c.App.Close}, c.closers...)

	if err := c.App.Open(c); err != nil {
		return err
	}
	if cli.Date != "" {
		if _, err := c.App.SelectDate(c, cli.Date); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) openCalendar(kv *kvcache.Cache) remote.Provider {
	httpClient, err := auth.GetClient(c, c.Config.Dir(), google.Scopes)
	if err != nil {
		logger.Info("Calendar not connected", "error", err)
		return nil
	}
	client, err := google.NewClient(c, httpClient, c.Config.Calendar, index.NewEventIndex(kv), colors.NewCache(kv))
	if err != nil {
		logger.Warn("Could not open calendar", "calendar", c.Config.Calendar, "error", err)
		return nil
	}
	return client
}

// Close waits for queued writes and releases the database.
func (c *Context) Close() {
	for _, fn := range c.closers {
		fn()
	}
	c.closers = nil
}

// printer shows notices that need the user's attention.
type printer struct {
	w io.Writer
}

func (p *printer) Notify(n notice.Notice) {
	if !errs.UserVisible(n.Err) {
		return
	}
	fmt.Fprintf(p.w, "! %s: %v\n", n.Message, n.Err)
}

func parseClock(s string) (float64, error) {
	h, err := timegrid.ClockToHour(s)
	if err != nil {
		return 0, errs.Validationf("%v", err)
	}
	return h, nil
}

func hours(d time.Duration) float64 {
	return d.Hours()
}

func span(e model.TimedEntry) string {
	return fmt.Sprintf("%s-%s", timegrid.HourToClock(e.StartHour), timegrid.HourToClock(e.EndHour()))
}

func check(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

// parseWeekdays reads "mon,wed,fri" or "1,3,5" into 0=Sunday..6=Saturday.
func parseWeekdays(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	dayMap := map[string]int{
		"sun": 0, "sunday": 0,
		"mon": 1, "monday": 1,
		"tue": 2, "tuesday": 2,
		"wed": 3, "wednesday": 3,
		"thu": 4, "thursday": 4,
		"fri": 5, "friday": 5,
		"sat": 6, "saturday": 6,
	}
	var days []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if d, ok := dayMap[part]; ok {
			days = append(days, d)
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 6 {
			return nil, errs.Validationf("invalid weekday %q", part)
		}
		days = append(days, n)
	}
	return days, nil
}
