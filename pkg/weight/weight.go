// Package weight keeps the daily weight log.
package weight

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
)

// Retention is the number of most recent entries kept.
const Retention = 90

// Upsert returns entries with weight logged for date: an existing entry for
// the date is replaced, the result is sorted by date and trimmed to the most
// recent Retention entries. entries is not modified.
func Upsert(entries []model.WeightEntry, date string, weight float64) ([]model.WeightEntry, error) {
	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return nil, errs.Validationf("invalid date %q", date)
	}
	if weight <= 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return nil, errs.Validationf("weight must be positive, got %v", weight)
	}

	out := make([]model.WeightEntry, 0, len(entries)+1)
	for _, e := range entries {
		if e.Date != date {
			out = append(out, e)
		}
	}
	out = append(out, model.WeightEntry{Date: date, Weight: weight})
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	if len(out) > Retention {
		out = out[len(out)-Retention:]
	}
	return out, nil
}

// Store is the subset of the persistence adapter the tracker needs.
type Store interface {
	ListWeights(ctx context.Context) ([]model.WeightEntry, error)
	SaveWeight(ctx context.Context, w model.WeightEntry) error
	DeleteWeight(ctx context.Context, date string) error
}

// Tracker owns the in-memory log, mirrored to the local cache and the adapter.
type Tracker struct {
	store   Store
	cache   *kvcache.Cache
	mu      sync.Mutex
	entries []model.WeightEntry
}

// NewTracker seeds the log from the local cache so it can be shown before Load.
func NewTracker(store Store, cache *kvcache.Cache) *Tracker {
	t := &Tracker{store: store, cache: cache}
	if cache != nil {
		cache.Get(kvcache.KeyWeightEntries, &t.entries)
	}
	return t
}

// Load replaces the log with the adapter's copy.
func (t *Tracker) Load(ctx context.Context) ([]model.WeightEntry, error) {
	all, err := t.store.ListWeights(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Date < all[j].Date })
	if len(all) > Retention {
		all = all[len(all)-Retention:]
	}
	t.mu.Lock()
	t.entries = all
	t.mu.Unlock()
	t.mirror(all)
	return all, nil
}

// Log records weight for date. Entries pushed out of the retention window are
// deleted from the adapter too; a date older than the whole window is not
// stored at all.
func (t *Tracker) Log(ctx context.Context, date string, weight float64) ([]model.WeightEntry, error) {
	t.mu.Lock()
	next, err := Upsert(t.entries, date, weight)
	if err != nil {
		t.mu.Unlock()
		return nil, err
	}
	kept := make(map[string]bool, len(next))
	for _, e := range next {
		kept[e.Date] = true
	}
	var dropped []string
	for _, e := range t.entries {
		if !kept[e.Date] {
			dropped = append(dropped, e.Date)
		}
	}
	t.entries = next
	t.mu.Unlock()

	t.mirror(next)
	if !kept[date] {
		return next, nil
	}
	if err := t.store.SaveWeight(ctx, model.WeightEntry{Date: date, Weight: weight}); err != nil {
		return next, errs.Persistence("save weight", err)
	}
	for _, d := range dropped {
		if err := t.store.DeleteWeight(ctx, d); err != nil {
			logger.Warn("Failed to trim weight entry", "date", d, "error", err)
		}
	}
	return next, nil
}

// Entries returns a copy of the log.
func (t *Tracker) Entries() []model.WeightEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.WeightEntry(nil), t.entries...)
}

func (t *Tracker) mirror(entries []model.WeightEntry) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Put(kvcache.KeyWeightEntries, entries); err != nil {
		logger.Warn("Failed to cache weight entries", "error", err)
	}
}
