package model

import "time"

const (
	// DateFormat is the layout used for every day key (assigned dates, completions, cache keys).
	DateFormat = "2006-01-02"
	// ClockFormat is the layout for wall-clock strings such as habit start times.
	ClockFormat = "15:04"
)

type OwnerKind string

const (
	OwnerTask  OwnerKind = "task"
	OwnerHabit OwnerKind = "habit"
	OwnerFree  OwnerKind = "free"
)

type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// TimedEntry is a block positioned on the 24-hour timeline of a single day.
type TimedEntry struct {
	ID           string    `json:"id"`
	Date         string    `json:"date"`
	Title        string    `json:"title"`
	StartHour    float64   `json:"start_hour"`
	DurationHour float64   `json:"duration_hour"`
	Tag          string    `json:"tag,omitempty"`
	ColorID      string    `json:"color_id,omitempty"`
	OwnerKind    OwnerKind `json:"owner_kind"`
	OwnerID      string    `json:"owner_id,omitempty"`
	Origin       Origin    `json:"origin"`
	RemoteID     string    `json:"remote_id,omitempty"`
	Completed    bool      `json:"completed"`
	// Editable is only meaningful for remote-origin entries; it records the
	// provider's own permission for the event.
	Editable bool `json:"editable,omitempty"`
}

// EndHour is the exclusive end of the block on the day axis.
func (e TimedEntry) EndHour() float64 {
	return e.StartHour + e.DurationHour
}

// Linked reports whether the entry has a counterpart on the external calendar.
func (e TimedEntry) Linked() bool {
	return e.RemoteID != ""
}

// EntryPatch is a partial update; nil fields are left untouched.
type EntryPatch struct {
	Title        *string
	StartHour    *float64
	DurationHour *float64
	Date         *string
	Tag          *string
	Completed    *bool
	RemoteID     *string
}

// Task is an item of the task list. Time is a display cache derived from the
// linked block and is never edited directly.
type Task struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Tag          string `json:"tag,omitempty"`
	TagColor     string `json:"tag_color,omitempty"`
	AssignedDate string `json:"assigned_date,omitempty"`
	Completed    bool   `json:"completed"`
	CompletedAt  string `json:"completed_at,omitempty"`
	Time         string `json:"time,omitempty"`
}

type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// Habit is a recurring intention. CompletedDates is the source of truth;
// CurrentStreak and LongestStreak are memoised from it.
type Habit struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Tag                string    `json:"tag,omitempty"`
	TagColor           string    `json:"tag_color,omitempty"`
	Frequency          Frequency `json:"frequency"`
	ScheduledDays      []int     `json:"scheduled_days,omitempty"`
	ScheduledStartTime string    `json:"scheduled_start_time,omitempty"`
	ScheduledEndTime   string    `json:"scheduled_end_time,omitempty"`
	CompletedDates     []string  `json:"completed_dates,omitempty"`
	CurrentStreak      int       `json:"current_streak"`
	LongestStreak      int       `json:"longest_streak"`
	CreatedAt          time.Time `json:"created_at"`
}

// CompletedOn reports whether day (YYYY-MM-DD) is in CompletedDates.
func (h Habit) CompletedOn(day string) bool {
	for _, d := range h.CompletedDates {
		if d == day {
			return true
		}
	}
	return false
}

type WeightEntry struct {
	Date   string  `json:"date"`
	Weight float64 `json:"weight"`
}

type Note struct {
	Date string `json:"date"`
	Body string `json:"body"`
}

// RemoteEvent is the provider-neutral shape of an external calendar event.
type RemoteEvent struct {
	RemoteID   string    `json:"remote_id"`
	Title      string    `json:"title"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Tag        string    `json:"tag,omitempty"`
	ColorID    string    `json:"color_id,omitempty"`
	CalendarID string    `json:"calendar_id,omitempty"`
	// OwnerKind/OwnerID are set when the event was written by this app on
	// behalf of a local task, habit or free block.
	OwnerKind OwnerKind `json:"owner_kind,omitempty"`
	OwnerID   string    `json:"owner_id,omitempty"`
	Editable  bool      `json:"editable,omitempty"`
}

// Owned reports whether the event was pushed by this app for a task or habit.
func (r RemoteEvent) Owned() bool {
	return r.OwnerID != "" && (r.OwnerKind == OwnerTask || r.OwnerKind == OwnerHabit)
}
