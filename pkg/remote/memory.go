package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
)

// Memory is an in-process Provider for tests. Put and Remove stand in for
// edits made on the calendar side.
type Memory struct {
	mu     sync.Mutex
	events map[string]model.RemoteEvent
	seq    int
	// FailWith, when set, is returned by every call.
	FailWith error
	// Deleted records ids passed to Delete, in order.
	Deleted []string
}

func NewMemory(events ...model.RemoteEvent) *Memory {
	m := &Memory{events: make(map[string]model.RemoteEvent)}
	for _, ev := range events {
		m.events[ev.RemoteID] = ev
	}
	return m
}

func (m *Memory) Fetch(_ context.Context, timeMin, timeMax time.Time) ([]model.RemoteEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	var out []model.RemoteEvent
	for _, ev := range m.events {
		if ev.End.After(timeMin) && ev.Start.Before(timeMax) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].RemoteID < out[j].RemoteID
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (m *Memory) Create(_ context.Context, ev model.RemoteEvent) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return "", m.FailWith
	}
	m.seq++
	ev.RemoteID = fmt.Sprintf("mem-%d", m.seq)
	ev.Editable = true
	m.events[ev.RemoteID] = ev
	return ev.RemoteID, nil
}

func (m *Memory) Update(_ context.Context, ev model.RemoteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	old, ok := m.events[ev.RemoteID]
	if !ok {
		return fmt.Errorf("event %s: %w", ev.RemoteID, errs.ErrNotFound)
	}
	old.Title, old.Start, old.End = ev.Title, ev.Start, ev.End
	if ev.ColorID != "" {
		old.ColorID = ev.ColorID
	}
	m.events[ev.RemoteID] = old
	return nil
}

func (m *Memory) Delete(_ context.Context, remoteID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWith != nil {
		return m.FailWith
	}
	delete(m.events, remoteID)
	m.Deleted = append(m.Deleted, remoteID)
	return nil
}

// Put inserts or replaces an event as if it had been edited on the provider side.
func (m *Memory) Put(ev model.RemoteEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[ev.RemoteID] = ev
}

// Get returns the stored event.
func (m *Memory) Get(remoteID string) (model.RemoteEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[remoteID]
	return ev, ok
}

// Remove deletes an event as if it had been deleted on the provider side.
func (m *Memory) Remove(remoteID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, remoteID)
}
