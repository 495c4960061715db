package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/harrisonrobin/timebox/pkg/model"
)

// Memory is an in-process Adapter for tests. FailWrites simulates a
// database that rejects writes.
type Memory struct {
	mu      sync.Mutex
	tasks   map[string]model.Task
	habits  map[string]model.Habit
	entries map[string]model.TimedEntry
	weights map[string]model.WeightEntry
	notes   map[string]model.Note
	// FailWrites, when set, is returned by every write.
	FailWrites error
}

func NewMemory() *Memory {
	return &Memory{
		tasks:   make(map[string]model.Task),
		habits:  make(map[string]model.Habit),
		entries: make(map[string]model.TimedEntry),
		weights: make(map[string]model.WeightEntry),
		notes:   make(map[string]model.Note),
	}
}

func (m *Memory) SetFailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailWrites = err
}

func (m *Memory) ListTasks(context.Context) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveTask(_ context.Context, t model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *Memory) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.tasks, id)
	return nil
}

func (m *Memory) ListHabits(context.Context) ([]model.Habit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Habit, 0, len(m.habits))
	for _, h := range m.habits {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) SaveHabit(_ context.Context, h model.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.habits[h.ID] = h
	return nil
}

func (m *Memory) DeleteHabit(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.habits, id)
	return nil
}

func (m *Memory) selectEntries(keep func(model.TimedEntry) bool) []model.TimedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.TimedEntry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartHour != out[j].StartHour {
			return out[i].StartHour < out[j].StartHour
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *Memory) ListEntries(_ context.Context, date string) ([]model.TimedEntry, error) {
	return m.selectEntries(func(e model.TimedEntry) bool { return e.Date == date }), nil
}

func (m *Memory) ListEntriesByOwner(_ context.Context, kind model.OwnerKind, ownerID string) ([]model.TimedEntry, error) {
	return m.selectEntries(func(e model.TimedEntry) bool { return e.OwnerKind == kind && e.OwnerID == ownerID }), nil
}

func (m *Memory) ListLinkedEntries(_ context.Context, from, to string) ([]model.TimedEntry, error) {
	return m.selectEntries(func(e model.TimedEntry) bool {
		return e.Linked() && e.Date >= from && e.Date < to
	}), nil
}

func (m *Memory) SaveEntry(_ context.Context, e model.TimedEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.entries[e.ID] = e
	return nil
}

func (m *Memory) DeleteEntry(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.entries, id)
	return nil
}

func (m *Memory) ListWeights(context.Context) ([]model.WeightEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.WeightEntry, 0, len(m.weights))
	for _, w := range m.weights {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (m *Memory) SaveWeight(_ context.Context, w model.WeightEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.weights[w.Date] = w
	return nil
}

func (m *Memory) DeleteWeight(_ context.Context, date string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	delete(m.weights, date)
	return nil
}

func (m *Memory) GetNote(_ context.Context, date string) (model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notes[date]; ok {
		return n, nil
	}
	return model.Note{Date: date}, nil
}

func (m *Memory) SaveNote(_ context.Context, n model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.notes[n.Date] = n
	return nil
}

func (m *Memory) Close() error { return nil }

var (
	_ Adapter = (*Memory)(nil)
	_ Adapter = (*SQLStore)(nil)
)
