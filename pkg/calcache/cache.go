// Package calcache keeps a day-keyed copy of external calendar events on disk
// so a day can be rendered before the network answers.
package calcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/remote"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

const (
	// WindowDays is how far before and after today a refresh reaches.
	WindowDays      = 45
	DefaultInterval = 5 * time.Minute
)

type Config struct {
	Provider remote.Provider
	// Store persists the day map. Optional; without it the cache is memory only.
	Store    *kvcache.Cache
	Location *time.Location
	Notices  notice.Sink
	// Now defaults to time.Now.
	Now      func() time.Time
}

type Cache struct {
	provider remote.Provider
	store    *kvcache.Cache
	loc      *time.Location
	notices  notice.Sink
	now      func() time.Time

	mu          sync.Mutex
	days        map[string][]model.TimedEntry
	lastRefresh time.Time
}

// New builds a cache seeded from the persisted day map. Unreadable data
// yields an empty cache.
func New(cfg Config) *Cache {
	c := &Cache{
		provider: cfg.Provider,
		store:    cfg.Store,
		loc:      cfg.Location,
		notices:  cfg.Notices,
		now:      cfg.Now,
		days:     make(map[string][]model.TimedEntry),
	}
	if c.loc == nil {
		c.loc = time.Local
	}
	if c.notices == nil {
		c.notices = notice.Log{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.store != nil {
		var days map[string][]model.TimedEntry
		if c.store.Get(kvcache.KeyCalendarCache, &days) && days != nil {
			c.days = days
		}
		c.store.Get(kvcache.KeyCalendarRefreshed, &c.lastRefresh)
	}
	return c
}

// Window returns the refresh range [today-45d, today+46d) in loc.
func Window(now time.Time, loc *time.Location) (time.Time, time.Time) {
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return today.AddDate(0, 0, -WindowDays), today.AddDate(0, 0, WindowDays+1)
}

// Refresh fetches the window around now and replaces every day in it. On a
// fetch error nothing changes.
func (c *Cache) Refresh(ctx context.Context, now time.Time) error {
	if c.provider == nil {
		return errs.Validationf("no calendar configured")
	}
	from, to := Window(now, c.loc)
	events, err := c.provider.Fetch(ctx, from, to)
	if err != nil {
		return err
	}

	fresh := make(map[string][]model.TimedEntry)
	for _, ev := range events {
		e, ok := model.ToEntry(ev, c.loc)
		if !ok {
			continue
		}
		fresh[e.Date] = append(fresh[e.Date], e)
	}

	c.mu.Lock()
	for day := from; day.Before(to); day = day.AddDate(0, 0, 1) {
		key := day.Format(model.DateFormat)
		if entries, ok := fresh[key]; ok {
			sortByStart(entries)
			c.days[key] = entries
		} else {
			delete(c.days, key)
		}
	}
	c.lastRefresh = now
	c.mu.Unlock()

	logger.Debug("Calendar cache refreshed", "events", len(events), "from", from.Format(model.DateFormat), "to", to.Format(model.DateFormat))
	return c.Save()
}

// Run refreshes now and then every interval until ctx is done. Transient
// failures are retried on the next tick; an expired credential stops the
// loop and is returned.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := c.Refresh(ctx, c.now()); err != nil {
			if errors.Is(err, errs.ErrAuthExpired) {
				c.notices.Notify(notice.From("calendar authorization expired", err))
				return err
			}
			if ctx.Err() == nil {
				c.notices.Notify(notice.From("calendar refresh failed", err))
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// LastRefresh is the time of the last successful refresh.
func (c *Cache) LastRefresh() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRefresh
}

// Save writes the day map to the persistent store.
func (c *Cache) Save() error {
	if c.store == nil {
		return nil
	}
	c.mu.Lock()
	days := make(map[string][]model.TimedEntry, len(c.days))
	for k, v := range c.days {
		days[k] = v
	}
	last := c.lastRefresh
	c.mu.Unlock()
	if err := c.store.Put(kvcache.KeyCalendarCache, days); err != nil {
		return fmt.Errorf("failed to save calendar cache: %w", err)
	}
	if !last.IsZero() {
		if err := c.store.Put(kvcache.KeyCalendarRefreshed, last); err != nil {
			return fmt.Errorf("failed to save calendar cache: %w", err)
		}
	}
	return nil
}

// Day returns the cached entries of date ordered by start.
func (c *Cache) Day(date string) []model.TimedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.TimedEntry, len(c.days[date]))
	copy(out, c.days[date])
	return out
}

// Range returns cached entries whose day is in [from, to).
func (c *Cache) Range(from, to string) []model.TimedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []model.TimedEntry
	for day, entries := range c.days {
		if day >= from && day < to {
			out = append(out, entries...)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartHour < out[j].StartHour
	})
	return out
}

// Find looks an entry up by remote id.
func (c *Cache) Find(remoteID string) (model.TimedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day, i := c.locate(remoteID)
	if i < 0 {
		return model.TimedEntry{}, false
	}
	return c.days[day][i], true
}

// Put inserts e, replacing any entry with the same remote id on any day.
func (c *Cache) Put(e model.TimedEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(e.RemoteID)
	c.days[e.Date] = append(c.days[e.Date], e)
	sortByStart(c.days[e.Date])
}

// Patch applies patch to the entry carrying remoteID.
func (c *Cache) Patch(remoteID string, patch model.EntryPatch) (model.TimedEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day, i := c.locate(remoteID)
	if i < 0 {
		return model.TimedEntry{}, false
	}
	e := c.days[day][i]
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.StartHour != nil {
		e.StartHour = *patch.StartHour
	}
	if patch.DurationHour != nil {
		e.DurationHour = *patch.DurationHour
	}
	if patch.Tag != nil {
		e.Tag = *patch.Tag
	}
	if patch.Completed != nil {
		e.Completed = *patch.Completed
	}
	if patch.Date != nil {
		e.Date = *patch.Date
	}
	e.DurationHour = timegrid.ClampDuration(e.DurationHour)
	e.StartHour = timegrid.ClampStart(e.StartHour, e.DurationHour)

	c.remove(remoteID)
	c.days[e.Date] = append(c.days[e.Date], e)
	sortByStart(c.days[e.Date])
	return e, true
}

// Delete removes the entry carrying remoteID.
func (c *Cache) Delete(remoteID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remove(remoteID)
}

func (c *Cache) remove(remoteID string) bool {
	day, i := c.locate(remoteID)
	if i < 0 {
		return false
	}
	entries := append(c.days[day][:i:i], c.days[day][i+1:]...)
	if len(entries) == 0 {
		delete(c.days, day)
	} else {
		c.days[day] = entries
	}
	return true
}

func (c *Cache) locate(remoteID string) (string, int) {
	if remoteID == "" {
		return "", -1
	}
	for day, entries := range c.days {
		for i, e := range entries {
			if e.RemoteID == remoteID {
				return day, i
			}
		}
	}
	return "", -1
}

// Editable reports whether e may be moved, resized or deleted from here.
// Local entries always can; remote ones only when they belong to a local
// task or habit or the provider allows it.
func Editable(e model.TimedEntry) bool {
	if e.Origin != model.OriginRemote {
		return true
	}
	if e.Editable {
		return true
	}
	return e.OwnerID != "" && (e.OwnerKind == model.OwnerTask || e.OwnerKind == model.OwnerHabit)
}

// Guard returns errs.ErrReadOnly for entries that may not be edited.
func Guard(e model.TimedEntry) error {
	if Editable(e) {
		return nil
	}
	return fmt.Errorf("%q belongs to another calendar: %w", e.Title, errs.ErrReadOnly)
}

// Merge is the rendered schedule of a day: local entries plus cached ones,
// skipping cached entries whose remote id a local entry already carries.
func Merge(local, cached []model.TimedEntry) []model.TimedEntry {
	out := make([]model.TimedEntry, 0, len(local)+len(cached))
	linked := make(map[string]bool, len(local))
	for _, e := range local {
		out = append(out, e)
		if e.RemoteID != "" {
			linked[e.RemoteID] = true
		}
	}
	for _, e := range cached {
		if e.RemoteID != "" && linked[e.RemoteID] {
			continue
		}
		out = append(out, e)
	}
	sortByStart(out)
	return out
}

func sortByStart(entries []model.TimedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].StartHour != entries[j].StartHour {
			return entries[i].StartHour < entries[j].StartHour
		}
		return entries[i].ID < entries[j].ID
	})
}
