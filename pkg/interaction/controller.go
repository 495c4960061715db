// Package interaction turns pointer events on a timeline block into move and
// resize gestures. The transition function is pure; Controller holds the one
// gesture in flight.
package interaction

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

type State int

const (
	Idle State = iota
	ArmedWaiting
	Dragging
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ArmedWaiting:
		return "armed"
	case Dragging:
		return "dragging"
	case Resizing:
		return "resizing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Handle is the part of the block that was grabbed.
type Handle int

const (
	Body Handle = iota
	BottomEdge
)

const (
	DefaultMoveThreshold = 5.0
	DefaultHoldDelay     = 200 * time.Millisecond
)

type Config struct {
	// MoveThreshold is the pointer travel in pixels needed to start a drag.
	MoveThreshold float64
	// HoldDelay is how long the pointer must be held before a drag starts.
	HoldDelay time.Duration
	Scale     timegrid.Scale
}

func (c Config) withDefaults() Config {
	if c.MoveThreshold <= 0 {
		c.MoveThreshold = DefaultMoveThreshold
	}
	if c.HoldDelay <= 0 {
		c.HoldDelay = DefaultHoldDelay
	}
	if c.Scale <= 0 {
		c.Scale = timegrid.ScaleNormal
	}
	return c
}

type EventKind int

const (
	Down EventKind = iota
	Move
	Up
	Cancel
)

type Event struct {
	Kind   EventKind
	Handle Handle
	Y      float64
	At     time.Time
}

// Gesture is the state of one pointer interaction with one block.
type Gesture struct {
	State   State
	EntryID string
	StartY  float64
	DownAt  time.Time
	// OrigStart and OrigDuration are the block's values at pointer-down.
	OrigStart    float64
	OrigDuration float64
	// Start and Duration are the live preview.
	Start    float64
	Duration float64
}

type Outcome int

const (
	None Outcome = iota
	// Click is a release before the hold delay; callers toggle completion.
	Click
	// Commit carries the terminal position of a drag or resize.
	Commit
	// Reverted is a cancelled drag or resize.
	Reverted
)

func (o Outcome) String() string {
	switch o {
	case Click:
		return "click"
	case Commit:
		return "commit"
	case Reverted:
		return "reverted"
	default:
		return "none"
	}
}

// Next applies ev to g. The returned Outcome is None except on release or
// cancel.
func Next(g Gesture, ev Event, cfg Config) (Gesture, Outcome) {
	cfg = cfg.withDefaults()
	pph := cfg.Scale.PixelsPerHour()

	switch ev.Kind {
	case Down:
		if g.State != Idle {
			return g, None
		}
		g.StartY = ev.Y
		g.DownAt = ev.At
		g.Start, g.Duration = g.OrigStart, g.OrigDuration
		if ev.Handle == BottomEdge {
			g.State = Resizing
		} else {
			g.State = ArmedWaiting
		}
		return g, None

	case Move:
		dy := ev.Y - g.StartY
		switch g.State {
		case ArmedWaiting:
			if math.Abs(dy) < cfg.MoveThreshold || ev.At.Sub(g.DownAt) < cfg.HoldDelay {
				return g, None
			}
			g.State = Dragging
			g.Start = dragStart(g, dy, pph)
		case Dragging:
			g.Start = dragStart(g, dy, pph)
		case Resizing:
			g.Duration = resizeDuration(g, dy, pph)
		}
		return g, None

	case Up:
		switch g.State {
		case ArmedWaiting:
			out := None
			if ev.At.Sub(g.DownAt) < cfg.HoldDelay {
				out = Click
			}
			return reset(g), out
		case Dragging, Resizing:
			g.State = Idle
			return g, Commit
		}
		return g, None

	case Cancel:
		switch g.State {
		case Dragging, Resizing:
			g.Start, g.Duration = g.OrigStart, g.OrigDuration
			g.State = Idle
			return g, Reverted
		case ArmedWaiting:
			return reset(g), None
		}
	}
	return g, None
}

func reset(g Gesture) Gesture {
	g.State = Idle
	g.Start, g.Duration = g.OrigStart, g.OrigDuration
	return g
}

func dragStart(g Gesture, dy, pph float64) float64 {
	start := timegrid.ClampStart(g.OrigStart+timegrid.ToHour(dy, pph), g.OrigDuration)
	return timegrid.ClampStart(timegrid.Snap(start), g.OrigDuration)
}

func resizeDuration(g Gesture, dy, pph float64) float64 {
	dur := timegrid.ClampDuration(timegrid.Snap(g.OrigDuration + timegrid.ToHour(dy, pph)))
	if limit := timegrid.HoursPerDay - g.OrigStart; dur > limit {
		dur = math.Max(math.Floor(limit/timegrid.Granularity)*timegrid.Granularity, timegrid.MinDuration)
	}
	return dur
}

// Preview is the live position of the block under the pointer.
type Preview struct {
	EntryID  string
	Start    float64
	Duration float64
	State    State
}

// Result is reported when the pointer is released or the gesture cancelled.
type Result struct {
	Outcome  Outcome
	EntryID  string
	Start    float64
	Duration float64
	// Changed is false when a commit lands on the original position.
	Changed bool
}

// Controller tracks a single gesture. It is safe for use from one event
// loop and from tests driving it from several goroutines.
type Controller struct {
	mu  sync.Mutex
	cfg Config
	g   Gesture
}

func NewController(cfg Config) *Controller {
	return &Controller{cfg: cfg.withDefaults()}
}

// SetScale changes the pixels-per-hour used to read pointer deltas. It must
// match the scale the timeline is rendered with.
func (c *Controller) SetScale(s timegrid.Scale) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Scale = s
}

func (c *Controller) Scale() timegrid.Scale {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Scale
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.g.State
}

// PointerDown starts a gesture on e. editable reports whether the block may
// be moved; read-only blocks are rejected and the controller stays idle.
func (c *Controller) PointerDown(e model.TimedEntry, editable bool, handle Handle, y float64, at time.Time) error {
	if !editable {
		return fmt.Errorf("%q: %w", e.Title, errs.ErrReadOnly)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g.State != Idle {
		return errs.Validationf("another gesture is in progress on %s", c.g.EntryID)
	}
	g := Gesture{EntryID: e.ID, OrigStart: e.StartHour, OrigDuration: e.DurationHour}
	c.g, _ = Next(g, Event{Kind: Down, Handle: handle, Y: y, At: at}, c.cfg)
	return nil
}

// PointerMove updates the live preview. The bool is false while no drag or
// resize is in progress.
func (c *Controller) PointerMove(y float64, at time.Time) (Preview, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g.State == Idle {
		return Preview{}, false
	}
	c.g, _ = Next(c.g, Event{Kind: Move, Y: y, At: at}, c.cfg)
	if c.g.State != Dragging && c.g.State != Resizing {
		return Preview{}, false
	}
	return c.preview(), true
}

// PointerUp ends the gesture. A drag or resize always commits its last
// snapped position.
func (c *Controller) PointerUp(y float64, at time.Time) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.g.State == Dragging || c.g.State == Resizing {
		c.g, _ = Next(c.g, Event{Kind: Move, Y: y, At: at}, c.cfg)
	}
	g, out := Next(c.g, Event{Kind: Up, Y: y, At: at}, c.cfg)
	res := c.result(g, out)
	c.g = Gesture{}
	return res
}

// Cancel abandons the gesture and restores the original position.
func (c *Controller) Cancel() Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, out := Next(c.g, Event{Kind: Cancel}, c.cfg)
	res := c.result(g, out)
	c.g = Gesture{}
	return res
}

func (c *Controller) preview() Preview {
	return Preview{EntryID: c.g.EntryID, Start: c.g.Start, Duration: c.g.Duration, State: c.g.State}
}

func (c *Controller) result(g Gesture, out Outcome) Result {
	return Result{
		Outcome:  out,
		EntryID:  g.EntryID,
		Start:    g.Start,
		Duration: g.Duration,
		Changed:  g.Start != g.OrigStart || g.Duration != g.OrigDuration,
	}
}
