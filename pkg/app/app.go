// Package app wires the schedule store, the calendar cache, the gesture
// controller and reconciliation into the state one day view works with.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/calcache"
	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/interaction"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/reconcile"
	"github.com/harrisonrobin/timebox/pkg/remote"
	"github.com/harrisonrobin/timebox/pkg/schedule"
	"github.com/harrisonrobin/timebox/pkg/storage"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
	"github.com/harrisonrobin/timebox/pkg/weight"
)

type Config struct {
	Adapter storage.Adapter
	// Provider is the external calendar. Nil runs without one.
	Provider remote.Provider
	Cache    *kvcache.Cache
	Notices  notice.Sink
	Location *time.Location
	Now      func() time.Time
	// Zoomed is the initial zoom when none has been persisted.
	Zoomed      bool
	Interaction interaction.Config
}

type App struct {
	provider remote.Provider
	kv       *kvcache.Cache
	notices  notice.Sink
	loc      *time.Location
	now      func() time.Time

	store    *schedule.Store
	calendar *calcache.Cache
	engine   *reconcile.Engine
	ctrl     *interaction.Controller
	weights  *weight.Tracker

	mu     sync.Mutex
	date   string
	zoomed bool
}

func New(cfg Config) *App {
	a := &App{
		provider: cfg.Provider,
		kv:       cfg.Cache,
		notices:  cfg.Notices,
		loc:      cfg.Location,
		now:      cfg.Now,
		zoomed:   cfg.Zoomed,
	}
	if a.notices == nil {
		a.notices = notice.Log{}
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.now == nil {
		a.now = time.Now
	}

	a.store = schedule.New(schedule.Config{
		Adapter:  cfg.Adapter,
		Remote:   cfg.Provider,
		Notices:  a.notices,
		Cache:    cfg.Cache,
		Location: a.loc,
		Now:      a.now,
	})
	a.calendar = calcache.New(calcache.Config{
		Provider: cfg.Provider,
		Store:    cfg.Cache,
		Location: a.loc,
		Notices:  a.notices,
		Now:      a.now,
	})
	if cfg.Provider != nil {
		a.engine = reconcile.NewEngine(cfg.Provider, a.store, a.calendar, a.loc)
		a.engine.SetClock(a.now)
	}
	a.weights = weight.NewTracker(cfg.Adapter, cfg.Cache)

	if a.kv != nil {
		a.kv.Get(kvcache.KeySelectedDate, &a.date)
		a.kv.Get(kvcache.KeyZoomState, &a.zoomed)
	}
	if _, err := time.Parse(model.DateFormat, a.date); err != nil {
		a.date = a.today()
	}
	ic := cfg.Interaction
	ic.Scale = scaleFor(a.zoomed)
	a.ctrl = interaction.NewController(ic)
	return a
}

// Open loads tasks, habits, the selected day and the weight log.
func (a *App) Open(ctx context.Context) error {
	if err := a.store.Init(ctx); err != nil {
		return err
	}
	if _, err := a.store.Load(ctx, a.Date()); err != nil {
		return err
	}
	if _, err := a.weights.Load(ctx); err != nil {
		logger.Warn("Using cached weight log", "error", err)
	}
	return nil
}

// Close waits for queued writes.
func (a *App) Close() {
	a.store.Close()
}

func (a *App) Store() *schedule.Store {
	return a.store
}

func (a *App) Calendar() *calcache.Cache {
	return a.calendar
}

func (a *App) Weights() *weight.Tracker {
	return a.weights
}

func (a *App) HasCalendar() bool {
	return a.provider != nil
}

func (a *App) today() string {
	return a.now().In(a.loc).Format(model.DateFormat)
}

// Date is the selected day.
func (a *App) Date() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.date
}

// SelectDate loads date into the store and remembers it across restarts.
func (a *App) SelectDate(ctx context.Context, date string) ([]model.TimedEntry, error) {
	if _, err := a.store.Load(ctx, date); err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.date = date
	a.mu.Unlock()
	a.put(kvcache.KeySelectedDate, date)
	return a.Schedule(), nil
}

// Schedule is the selected day as rendered: local blocks plus cached
// calendar events not already linked to one of them.
func (a *App) Schedule() []model.TimedEntry {
	return calcache.Merge(a.store.Entries(), a.calendar.Day(a.Date()))
}

func scaleFor(zoomed bool) timegrid.Scale {
	if zoomed {
		return timegrid.ScaleZoomed
	}
	return timegrid.ScaleNormal
}

func (a *App) Zoomed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.zoomed
}

// SetZoomed switches the timeline scale. The gesture controller reads pointer
// deltas with the same scale.
func (a *App) SetZoomed(zoomed bool) timegrid.Scale {
	a.mu.Lock()
	a.zoomed = zoomed
	a.mu.Unlock()
	s := scaleFor(zoomed)
	a.ctrl.SetScale(s)
	a.put(kvcache.KeyZoomState, zoomed)
	return s
}

func (a *App) Scale() timegrid.Scale {
	return a.ctrl.Scale()
}

func (a *App) put(key string, v interface{}) {
	if a.kv == nil {
		return
	}
	if err := a.kv.Put(key, v); err != nil {
		logger.Warn("Failed to persist view state", "key", key, "error", err)
	}
}

// lookup finds an entry of the selected day. local is false for cached
// calendar events that no local block carries.
func (a *App) lookup(id string) (e model.TimedEntry, local bool, ok bool) {
	if e, ok := a.store.Find(id); ok {
		return e, true, true
	}
	for _, c := range a.calendar.Day(a.Date()) {
		if c.ID == id {
			return c, false, true
		}
	}
	return model.TimedEntry{}, false, false
}

// Gestures

func (a *App) PointerDown(id string, handle interaction.Handle, y float64, at time.Time) error {
	e, _, ok := a.lookup(id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	err := a.ctrl.PointerDown(e, calcache.Editable(e), handle, y, at)
	if errors.Is(err, errs.ErrReadOnly) {
		a.notices.Notify(notice.From("this event can't be edited here", err))
	}
	return err
}

func (a *App) PointerMove(y float64, at time.Time) (interaction.Preview, bool) {
	return a.ctrl.PointerMove(y, at)
}

// PointerUp ends the gesture. A changed drag or resize is written to the
// store, or to the calendar for events that live only there; a click toggles
// the task or habit behind the block.
func (a *App) PointerUp(ctx context.Context, y float64, at time.Time) (interaction.Result, error) {
	res := a.ctrl.PointerUp(y, at)
	switch res.Outcome {
	case interaction.Commit:
		if !res.Changed {
			return res, nil
		}
		return res, a.commit(ctx, res)
	case interaction.Click:
		return res, a.click(res.EntryID)
	}
	return res, nil
}

func (a *App) Cancel() interaction.Result {
	return a.ctrl.Cancel()
}

// Move places an entry directly, as a committed drag or resize would.
func (a *App) Move(ctx context.Context, id string, start, duration float64) error {
	duration = timegrid.ClampDuration(timegrid.Snap(duration))
	start = timegrid.ClampStart(timegrid.Snap(start), duration)
	return a.commit(ctx, interaction.Result{Outcome: interaction.Commit, EntryID: id, Start: start, Duration: duration, Changed: true})
}

func (a *App) commit(ctx context.Context, res interaction.Result) error {
	e, local, ok := a.lookup(res.EntryID)
	if !ok {
		return fmt.Errorf("entry %s: %w", res.EntryID, errs.ErrNotFound)
	}
	patch := model.EntryPatch{StartHour: &res.Start, DurationHour: &res.Duration}
	if local {
		_, err := a.store.Update(e.ID, patch)
		return err
	}
	if err := calcache.Guard(e); err != nil {
		return err
	}
	if a.provider == nil {
		return errs.Validationf("no calendar configured")
	}
	e.StartHour, e.DurationHour = res.Start, res.Duration
	ev, err := model.ToRemoteEvent(e, a.loc)
	if err != nil {
		return err
	}
	if err := a.provider.Update(ctx, ev); err != nil {
		a.notices.Notify(notice.From("failed to move calendar event", err))
		return err
	}
	a.calendar.Patch(e.RemoteID, patch)
	if err := a.calendar.Save(); err != nil {
		logger.Warn("Failed to persist calendar cache", "error", err)
	}
	return nil
}

func (a *App) click(id string) error {
	e, local, ok := a.lookup(id)
	if !ok || !local {
		return nil
	}
	switch e.OwnerKind {
	case model.OwnerTask:
		_, err := a.store.ToggleTask(e.OwnerID)
		return err
	case model.OwnerHabit:
		_, err := a.store.ToggleHabit(e.OwnerID, e.Date)
		return err
	}
	return nil
}

// RemoveEntry deletes a block. Calendar-only events are deleted on the
// calendar and dropped from the cache.
func (a *App) RemoveEntry(ctx context.Context, id string) error {
	e, local, ok := a.lookup(id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	if local {
		return a.store.Remove(id)
	}
	if err := calcache.Guard(e); err != nil {
		return err
	}
	if a.provider == nil {
		return errs.Validationf("no calendar configured")
	}
	if err := a.provider.Delete(ctx, e.RemoteID); err != nil {
		return err
	}
	a.calendar.Delete(e.RemoteID)
	return a.calendar.Save()
}

// Push creates the calendar event of a local block.
func (a *App) Push(ctx context.Context, id string) (model.TimedEntry, error) {
	return a.store.Push(ctx, id)
}

// Calendar sync

// Sync reconciles the calendar window around today.
func (a *App) Sync(ctx context.Context) (reconcile.Counts, error) {
	if a.engine == nil {
		return reconcile.Counts{}, errs.Validationf("no calendar configured")
	}
	counts, err := a.engine.Sync(ctx)
	if err != nil {
		msg := "calendar sync failed"
		if errors.Is(err, errs.ErrAuthExpired) {
			msg = "calendar authorization expired, run 'timebox auth'"
		}
		a.notices.Notify(notice.From(msg, err))
	}
	return counts, err
}

// Watch refreshes the calendar cache now and every interval until ctx is
// done or the credential expires. Local entries are left alone; only Sync
// reconciles.
func (a *App) Watch(ctx context.Context, interval time.Duration) error {
	if a.provider == nil {
		return errs.Validationf("no calendar configured")
	}
	return a.calendar.Run(ctx, interval)
}

// Weight

func (a *App) LogWeight(ctx context.Context, date string, kg float64) ([]model.WeightEntry, error) {
	entries, err := a.weights.Log(ctx, date, kg)
	if errs.Kind(err) == "persistence" {
		a.notices.Notify(notice.From("failed to save weight", err))
	}
	return entries, err
}
