// Package reconcile brings local copies of calendar events in line with a
// fresh fetch from the provider.
package reconcile

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/harrisonrobin/timebox/pkg/calcache"
	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/remote"
)

// hourTolerance absorbs sub-minute rounding between the two projections.
const hourTolerance = 1.0 / 120

// Update pairs a local copy with the remote values that replace it.
type Update struct {
	Local  model.TimedEntry
	Remote model.TimedEntry
	Patch  model.EntryPatch
}

// Plan classifies every remote id seen on either side. An id appears in at
// most one list.
type Plan struct {
	ToAdd    []model.TimedEntry
	ToUpdate []Update
	ToRemove []model.TimedEntry
}

func (p Plan) Empty() bool {
	return len(p.ToAdd) == 0 && len(p.ToUpdate) == 0 && len(p.ToRemove) == 0
}

type Counts struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

func (c Counts) String() string {
	return fmt.Sprintf("%d added, %d updated, %d removed", c.Added, c.Updated, c.Removed)
}

// Diff compares local linked entries with the fetched ones. Remote values
// win for title, day, start and duration.
func Diff(local, fetched []model.TimedEntry) Plan {
	byRemote := make(map[string]model.TimedEntry, len(local))
	for _, e := range local {
		if e.RemoteID == "" {
			continue
		}
		if _, dup := byRemote[e.RemoteID]; !dup {
			byRemote[e.RemoteID] = e
		}
	}

	var plan Plan
	seen := make(map[string]bool, len(fetched))
	for _, r := range fetched {
		if r.RemoteID == "" || seen[r.RemoteID] {
			continue
		}
		seen[r.RemoteID] = true
		l, ok := byRemote[r.RemoteID]
		if !ok {
			plan.ToAdd = append(plan.ToAdd, r)
			continue
		}
		if patch, changed := drift(l, r); changed {
			plan.ToUpdate = append(plan.ToUpdate, Update{Local: l, Remote: r, Patch: patch})
		}
	}

	removed := make(map[string]bool)
	for _, l := range local {
		if l.RemoteID == "" || seen[l.RemoteID] || removed[l.RemoteID] {
			continue
		}
		removed[l.RemoteID] = true
		plan.ToRemove = append(plan.ToRemove, l)
	}
	return plan
}

func drift(l, r model.TimedEntry) (model.EntryPatch, bool) {
	var p model.EntryPatch
	changed := false
	if l.Title != r.Title {
		title := r.Title
		p.Title = &title
		changed = true
	}
	if l.Date != r.Date {
		date := r.Date
		p.Date = &date
		changed = true
	}
	if math.Abs(l.StartHour-r.StartHour) > hourTolerance {
		start := r.StartHour
		p.StartHour = &start
		changed = true
	}
	if math.Abs(l.DurationHour-r.DurationHour) > hourTolerance {
		dur := r.DurationHour
		p.DurationHour = &dur
		changed = true
	}
	return p, changed
}

// Store is the part of the schedule store reconciliation writes to.
type Store interface {
	Linked(ctx context.Context, from, to string) ([]model.TimedEntry, error)
	Find(id string) (model.TimedEntry, bool)
	ApplyRemote(id string, patch model.EntryPatch) (model.TimedEntry, error)
	Drop(id string) error
	SaveStored(e model.TimedEntry)
	DropStored(e model.TimedEntry)
	// Wait blocks until queued writes are visible to Linked.
	Wait()
}

type Engine struct {
	provider remote.Provider
	store    Store
	cache    *calcache.Cache
	loc      *time.Location
	now      func() time.Time
}

func NewEngine(provider remote.Provider, store Store, cache *calcache.Cache, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{provider: provider, store: store, cache: cache, loc: loc, now: time.Now}
}

// SetClock replaces the time source used to place the sync window.
func (e *Engine) SetClock(now func() time.Time) {
	if now != nil {
		e.now = now
	}
}

// Sync reconciles the refresh window around now.
func (e *Engine) Sync(ctx context.Context) (Counts, error) {
	from, to := calcache.Window(e.now(), e.loc)
	return e.SyncRange(ctx, from, to)
}

// SyncRange fetches [from, to), diffs it against the linked local entries
// and cached events of those days, and applies the result. A failed fetch
// changes nothing.
func (e *Engine) SyncRange(ctx context.Context, from, to time.Time) (Counts, error) {
	if e.provider == nil {
		return Counts{}, errs.Validationf("no calendar configured")
	}
	events, err := e.provider.Fetch(ctx, from, to)
	if err != nil {
		return Counts{}, classify(err)
	}

	fromDay, toDay := from.In(e.loc).Format(model.DateFormat), to.In(e.loc).Format(model.DateFormat)
	e.store.Wait()
	stored, err := e.store.Linked(ctx, fromDay, toDay)
	if err != nil {
		return Counts{}, err
	}

	fetched := make([]model.TimedEntry, 0, len(events))
	unprojectable := make(map[string]bool)
	for _, ev := range events {
		if entry, ok := model.ToEntry(ev, e.loc); ok {
			fetched = append(fetched, entry)
		} else {
			unprojectable[ev.RemoteID] = true
		}
	}

	inStore := make(map[string]bool, len(stored))
	local := make([]model.TimedEntry, 0, len(stored))
	for _, s := range stored {
		if unprojectable[s.RemoteID] {
			continue
		}
		inStore[s.RemoteID] = true
		local = append(local, s)
	}
	for _, c := range e.cache.Range(fromDay, toDay) {
		if inStore[c.RemoteID] || unprojectable[c.RemoteID] {
			continue
		}
		local = append(local, c)
	}

	plan := Diff(local, fetched)
	counts := e.apply(plan, inStore)
	if err := e.cache.Save(); err != nil {
		logger.Warn("Failed to persist calendar cache", "error", err)
	}
	logger.Info("Calendar synced", "added", counts.Added, "updated", counts.Updated, "removed", counts.Removed)
	return counts, nil
}

func (e *Engine) apply(plan Plan, inStore map[string]bool) Counts {
	var counts Counts
	for _, r := range plan.ToAdd {
		e.cache.Put(r)
		counts.Added++
	}
	for _, u := range plan.ToUpdate {
		id := u.Local.RemoteID
		if inStore[id] {
			if _, loaded := e.store.Find(u.Local.ID); loaded {
				if _, err := e.store.ApplyRemote(u.Local.ID, u.Patch); err != nil {
					logger.Warn("Failed to apply calendar change", "entry", u.Local.ID, "error", err)
					continue
				}
			} else {
				e.store.SaveStored(patched(u.Local, u.Remote))
			}
			if _, cached := e.cache.Find(id); cached {
				e.cache.Put(u.Remote)
			}
		} else {
			e.cache.Put(u.Remote)
		}
		counts.Updated++
	}
	for _, l := range plan.ToRemove {
		if inStore[l.RemoteID] {
			if _, loaded := e.store.Find(l.ID); loaded {
				if err := e.store.Drop(l.ID); err != nil {
					logger.Warn("Failed to drop entry", "entry", l.ID, "error", err)
					continue
				}
			} else {
				e.store.DropStored(l)
			}
		}
		e.cache.Delete(l.RemoteID)
		counts.Removed++
	}
	return counts
}

func patched(l, r model.TimedEntry) model.TimedEntry {
	l.Title = r.Title
	l.Date = r.Date
	l.StartHour = r.StartHour
	l.DurationHour = r.DurationHour
	return l
}

func classify(err error) error {
	switch errs.Kind(err) {
	case "auth_expired", "transient":
		return err
	default:
		return errs.Transient(err)
	}
}
