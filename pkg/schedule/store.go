// Package schedule owns tasks, habits and the timed entries of the selected
// day. Mutations apply to memory first and are written to the persistence
// adapter in order by a background writer; a failed write raises a notice and
// leaves the in-memory state as the user made it.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/habit"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/logger"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/remote"
	"github.com/harrisonrobin/timebox/pkg/storage"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

const (
	defaultWriteTimeout = 15 * time.Second
	queueSize           = 256
)

type Config struct {
	Adapter storage.Adapter
	// Remote receives updates and deletes for linked entries. Optional.
	Remote  remote.Provider
	Notices notice.Sink
	// Cache mirrors the habit list for offline start. Optional.
	Cache        *kvcache.Cache
	Location     *time.Location
	Now          func() time.Time
	WriteTimeout time.Duration
}

type job struct {
	op string
	fn func(ctx context.Context) error
}

type Store struct {
	adapter storage.Adapter
	remote  remote.Provider
	notices notice.Sink
	cache   *kvcache.Cache
	loc     *time.Location
	now     func() time.Time
	timeout time.Duration

	mu      sync.Mutex
	date    string
	entries []model.TimedEntry
	tasks   map[string]model.Task
	habits  map[string]model.Habit

	jobs    chan job
	pending sync.WaitGroup
	done    chan struct{}
	closed  bool
}

func New(cfg Config) *Store {
	s := &Store{
		adapter: cfg.Adapter,
		remote:  cfg.Remote,
		notices: cfg.Notices,
		cache:   cfg.Cache,
		loc:     cfg.Location,
		now:     cfg.Now,
		timeout: cfg.WriteTimeout,
		tasks:   make(map[string]model.Task),
		habits:  make(map[string]model.Habit),
		jobs:    make(chan job, queueSize),
		done:    make(chan struct{}),
	}
	if s.notices == nil {
		s.notices = notice.Log{}
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.timeout <= 0 {
		s.timeout = defaultWriteTimeout
	}
	go s.writer()
	return s
}

// Wait blocks until every queued write has completed.
func (s *Store) Wait() {
	s.pending.Wait()
}

// Close drains the write queue and stops the writer.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
	close(s.jobs)
	<-s.done
}

func (s *Store) writer() {
	defer close(s.done)
	for j := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := j.fn(ctx)
		cancel()
		if err != nil {
			s.fail(j.op, err)
		}
		s.pending.Done()
	}
}

func (s *Store) fail(op string, err error) {
	switch errs.Kind(err) {
	case "auth_expired", "transient", "not_found":
	default:
		err = errs.Persistence(op, err)
	}
	logger.Error("Background write failed", "op", op, "error", err)
	s.notices.Notify(notice.From(fmt.Sprintf("could not %s", op), err))
}

// enqueue must be called with s.mu held so queue order matches mutation order.
func (s *Store) enqueue(op string, fn func(ctx context.Context) error) {
	if s.closed {
		logger.Warn("Write dropped after close", "op", op)
		return
	}
	s.pending.Add(1)
	s.jobs <- job{op: op, fn: fn}
}

func (s *Store) today() string {
	return s.now().In(s.loc).Format(model.DateFormat)
}

// Init loads tasks and habits. When habits cannot be read, the mirrored copy
// is used so materialization still works offline.
func (s *Store) Init(ctx context.Context) error {
	tasks, err := s.adapter.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	habits, err := s.adapter.ListHabits(ctx)
	if err != nil {
		if s.cache == nil || !s.cache.Get(kvcache.KeyHabits, &habits) {
			return fmt.Errorf("failed to load habits: %w", err)
		}
		logger.Warn("Using cached habits", "error", err)
	}

	now := s.now().In(s.loc)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = make(map[string]model.Task, len(tasks))
	for _, t := range tasks {
		s.tasks[t.ID] = t
	}
	s.habits = make(map[string]model.Habit, len(habits))
	for _, h := range habits {
		s.habits[h.ID] = habit.Recompute(h, now)
	}
	s.mirrorHabits()
	return nil
}

// Load makes date the selected day: its blocks are read from the adapter and
// any scheduled habit without a block gets one.
func (s *Store) Load(ctx context.Context, date string) ([]model.TimedEntry, error) {
	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return nil, errs.Validationf("invalid date %q", date)
	}
	s.Wait()
	existing, err := s.adapter.ListEntries(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule for %s: %w", date, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	missing := habit.Materialize(s.habitList(), date, existing)
	for _, e := range missing {
		s.enqueue("save habit block", func(ctx context.Context) error {
			return s.adapter.SaveEntry(ctx, e)
		})
	}
	s.date = date
	s.entries = append(existing, missing...)
	sortEntries(s.entries)
	logger.Debug("Loaded day", "date", date, "entries", len(s.entries), "materialized", len(missing))
	return s.copyEntries(), nil
}

// Date is the currently loaded day.
func (s *Store) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Entries returns the loaded day's entries ordered by start.
func (s *Store) Entries() []model.TimedEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyEntries()
}

// Find returns a loaded entry by id.
func (s *Store) Find(id string) (model.TimedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.TimedEntry{}, false
	}
	return s.entries[i], true
}

// FindByRemote returns the loaded entry carrying remoteID.
func (s *Store) FindByRemote(remoteID string) (model.TimedEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if remoteID != "" && e.RemoteID == remoteID {
			return e, true
		}
	}
	return model.TimedEntry{}, false
}

// Linked returns every stored entry with a remote id whose day is in
// [from, to). Loaded entries shadow their stored rows so unflushed edits are
// visible.
func (s *Store) Linked(ctx context.Context, from, to string) ([]model.TimedEntry, error) {
	stored, err := s.adapter.ListLinkedEntries(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list linked entries: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TimedEntry, 0, len(stored))
	for _, e := range stored {
		if e.Date == s.date {
			continue
		}
		out = append(out, e)
	}
	if s.date >= from && s.date < to {
		for _, e := range s.entries {
			if e.Linked() {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// Create adds a block. Missing id, date and owner kind are filled in; start
// and duration are clamped onto the day.
func (s *Store) Create(e model.TimedEntry) (model.TimedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.Date == "" {
		e.Date = s.date
	}
	if _, err := time.Parse(model.DateFormat, e.Date); err != nil {
		return model.TimedEntry{}, errs.Validationf("invalid date %q", e.Date)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OwnerKind == "" {
		e.OwnerKind = model.OwnerFree
	}
	if e.Origin == "" {
		e.Origin = model.OriginLocal
	}
	e.DurationHour = timegrid.ClampDuration(e.DurationHour)
	e.StartHour = timegrid.ClampStart(e.StartHour, e.DurationHour)

	switch e.OwnerKind {
	case model.OwnerTask:
		t, ok := s.tasks[e.OwnerID]
		if !ok {
			return model.TimedEntry{}, fmt.Errorf("task %s: %w", e.OwnerID, errs.ErrNotFound)
		}
		taken, err := s.taskBlockOn(t.ID, e.Date, e.ID)
		if err != nil {
			return model.TimedEntry{}, err
		}
		if taken {
			return model.TimedEntry{}, errs.Validationf("task %q is already scheduled on %s", t.Title, e.Date)
		}
		if e.Title == "" {
			e.Title = t.Title
		}
		if e.Tag == "" {
			e.Tag = t.Tag
		}
		e.Completed = t.Completed
		t.Time = timegrid.HourToClock(e.StartHour)
		if t.AssignedDate == "" {
			t.AssignedDate = e.Date
		}
		s.putTask(t)
	case model.OwnerHabit:
		h, ok := s.habits[e.OwnerID]
		if !ok {
			return model.TimedEntry{}, fmt.Errorf("habit %s: %w", e.OwnerID, errs.ErrNotFound)
		}
		if e.Title == "" {
			e.Title = h.Name
		}
		e.Completed = h.CompletedOn(e.Date)
	}
	if strings.TrimSpace(e.Title) == "" {
		return model.TimedEntry{}, errs.Validationf("block title is required")
	}

	if e.Date == s.date {
		s.entries = append(s.entries, e)
		sortEntries(s.entries)
	}
	saved := e
	s.enqueue("save block", func(ctx context.Context) error {
		return s.adapter.SaveEntry(ctx, saved)
	})
	return e, nil
}

// Update applies patch to a loaded entry and mirrors the change to the
// external calendar when the entry is linked.
func (s *Store) Update(id string, patch model.EntryPatch) (model.TimedEntry, error) {
	return s.update(id, patch, true)
}

// ApplyRemote applies a change that originated on the external calendar; it
// is persisted but not written back.
func (s *Store) ApplyRemote(id string, patch model.EntryPatch) (model.TimedEntry, error) {
	return s.update(id, patch, false)
}

func (s *Store) update(id string, patch model.EntryPatch, writeThrough bool) (model.TimedEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return model.TimedEntry{}, fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	e := s.entries[i]
	if patch.Title != nil {
		if strings.TrimSpace(*patch.Title) == "" {
			return model.TimedEntry{}, errs.Validationf("block title is required")
		}
		e.Title = *patch.Title
	}
	if patch.Date != nil {
		if _, err := time.Parse(model.DateFormat, *patch.Date); err != nil {
			return model.TimedEntry{}, errs.Validationf("invalid date %q", *patch.Date)
		}
		if e.OwnerKind == model.OwnerTask && *patch.Date != e.Date {
			taken, err := s.taskBlockOn(e.OwnerID, *patch.Date, e.ID)
			if err != nil {
				return model.TimedEntry{}, err
			}
			if taken {
				return model.TimedEntry{}, errs.Validationf("task is already scheduled on %s", *patch.Date)
			}
		}
		e.Date = *patch.Date
	}
	if patch.DurationHour != nil {
		e.DurationHour = *patch.DurationHour
	}
	if patch.StartHour != nil {
		e.StartHour = *patch.StartHour
	}
	if patch.Tag != nil {
		e.Tag = *patch.Tag
	}
	if patch.Completed != nil {
		e.Completed = *patch.Completed
	}
	if patch.RemoteID != nil {
		e.RemoteID = *patch.RemoteID
	}
	e.DurationHour = timegrid.ClampDuration(e.DurationHour)
	e.StartHour = timegrid.ClampStart(e.StartHour, e.DurationHour)

	if e.OwnerKind == model.OwnerTask {
		if t, ok := s.tasks[e.OwnerID]; ok {
			t.Time = timegrid.HourToClock(e.StartHour)
			if patch.Date != nil {
				t.AssignedDate = e.Date
			}
			if patch.Title != nil {
				t.Title = e.Title
			}
			s.putTask(t)
		}
	}

	if e.Date == s.date {
		s.entries[i] = e
		sortEntries(s.entries)
	} else {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	saved := e
	s.enqueue("save block", func(ctx context.Context) error {
		return s.adapter.SaveEntry(ctx, saved)
	})
	if writeThrough && e.Linked() && s.remote != nil {
		s.enqueueRemoteUpdate(saved)
	}
	return e, nil
}

func (s *Store) enqueueRemoteUpdate(e model.TimedEntry) {
	ev, err := model.ToRemoteEvent(e, s.loc)
	if err != nil {
		logger.Warn("Skipping calendar update", "entry", e.ID, "error", err)
		return
	}
	s.enqueue("update calendar event", func(ctx context.Context) error {
		return s.remote.Update(ctx, ev)
	})
}

// Remove deletes a block, and its calendar event when linked. A task keeps
// existing with its time cleared.
func (s *Store) Remove(id string) error {
	return s.remove(id, true)
}

// Drop deletes a block whose calendar event is already gone.
func (s *Store) Drop(id string) error {
	return s.remove(id, false)
}

func (s *Store) remove(id string, writeThrough bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	e := s.entries[i]
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	if e.OwnerKind == model.OwnerTask {
		if t, ok := s.tasks[e.OwnerID]; ok {
			t.Time = ""
			s.putTask(t)
		}
	}
	s.enqueue("delete block", func(ctx context.Context) error {
		return s.adapter.DeleteEntry(ctx, id)
	})
	if writeThrough && e.Linked() && s.remote != nil {
		s.enqueueRemoteDelete(e.RemoteID)
	}
	return nil
}

// DropStored deletes a block that is not on the loaded day.
func (s *Store) DropStored(e model.TimedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(e.ID); i >= 0 {
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
	}
	if e.OwnerKind == model.OwnerTask {
		if t, ok := s.tasks[e.OwnerID]; ok && t.AssignedDate == e.Date {
			t.Time = ""
			s.putTask(t)
		}
	}
	id := e.ID
	s.enqueue("delete block", func(ctx context.Context) error {
		return s.adapter.DeleteEntry(ctx, id)
	})
}

// SaveStored persists a changed block that is not on the loaded day.
func (s *Store) SaveStored(e model.TimedEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(e.ID); i >= 0 {
		s.entries[i] = e
		sortEntries(s.entries)
	}
	s.enqueue("save block", func(ctx context.Context) error {
		return s.adapter.SaveEntry(ctx, e)
	})
}

func (s *Store) enqueueRemoteDelete(remoteID string) {
	s.enqueue("delete calendar event", func(ctx context.Context) error {
		return s.remote.Delete(ctx, remoteID)
	})
}

// Push creates the calendar event for a local block and records its id.
// Already linked blocks are returned unchanged.
func (s *Store) Push(ctx context.Context, id string) (model.TimedEntry, error) {
	if s.remote == nil {
		return model.TimedEntry{}, errs.Validationf("no calendar configured")
	}
	e, ok := s.Find(id)
	if !ok {
		return model.TimedEntry{}, fmt.Errorf("entry %s: %w", id, errs.ErrNotFound)
	}
	if e.Origin == model.OriginRemote || e.Linked() {
		return e, nil
	}
	ev, err := model.ToRemoteEvent(e, s.loc)
	if err != nil {
		return model.TimedEntry{}, err
	}
	if ev.OwnerID == "" {
		ev.OwnerID = e.ID
	}
	remoteID, err := s.remote.Create(ctx, ev)
	if err != nil {
		return model.TimedEntry{}, err
	}
	logger.Info("Pushed block to calendar", "entry", e.ID, "event", remoteID)
	return s.ApplyRemote(id, model.EntryPatch{RemoteID: &remoteID})
}

// Tasks

// Tasks returns every task, incomplete first, then by assigned date and title.
func (s *Store) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Completed != b.Completed {
			return !a.Completed
		}
		if a.AssignedDate != b.AssignedDate {
			return a.AssignedDate < b.AssignedDate
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ID < b.ID
	})
	return out
}

// Overdue returns incomplete tasks assigned to a day before today, oldest
// first.
func (s *Store) Overdue() []model.Task {
	today := s.today()
	var out []model.Task
	for _, t := range s.Tasks() {
		if !t.Completed && t.AssignedDate != "" && t.AssignedDate < today {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) Task(id string) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

func (s *Store) AddTask(t model.Task) (model.Task, error) {
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return model.Task{}, errs.Validationf("task title is required")
	}
	if t.AssignedDate != "" {
		if _, err := time.Parse(model.DateFormat, t.AssignedDate); err != nil {
			return model.Task{}, errs.Validationf("invalid date %q", t.AssignedDate)
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Time = ""
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putTask(t)
	return t, nil
}

// ToggleTask flips completion; the blocks of the task follow on every day.
func (s *Store) ToggleTask(id string) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
	}
	t.Completed = !t.Completed
	t.CompletedAt = ""
	if t.Completed {
		t.CompletedAt = s.today()
	}
	s.putTask(t)
	var loadedID string
	if i := s.ownedIndex(model.OwnerTask, id); i >= 0 {
		s.entries[i].Completed = t.Completed
		e := s.entries[i]
		loadedID = e.ID
		s.enqueue("save block", func(ctx context.Context) error {
			return s.adapter.SaveEntry(ctx, e)
		})
	}
	completed := t.Completed
	s.enqueue("save task blocks", func(ctx context.Context) error {
		stored, err := s.adapter.ListEntriesByOwner(ctx, model.OwnerTask, id)
		if err != nil {
			return err
		}
		for _, e := range stored {
			if e.ID == loadedID || e.Completed == completed {
				continue
			}
			e.Completed = completed
			if err := s.adapter.SaveEntry(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	return t, nil
}

// DeleteTask removes the task and every block it owns on any day, including
// their calendar events.
func (s *Store) DeleteTask(id string) error {
	return s.deleteOwner(model.OwnerTask, id)
}

// Schedule places a task on the timeline of date.
func (s *Store) Schedule(taskID, date string, start, duration float64) (model.TimedEntry, error) {
	return s.Create(model.TimedEntry{
		Date:         date,
		StartHour:    start,
		DurationHour: duration,
		OwnerKind:    model.OwnerTask,
		OwnerID:      taskID,
	})
}

// putTask must be called with s.mu held.
func (s *Store) putTask(t model.Task) {
	s.tasks[t.ID] = t
	s.enqueue("save task", func(ctx context.Context) error {
		return s.adapter.SaveTask(ctx, t)
	})
}

// Habits

func (s *Store) Habits() []model.Habit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.habitList()
}

func (s *Store) AddHabit(h model.Habit) (model.Habit, error) {
	h.Name = strings.TrimSpace(h.Name)
	if h.Frequency == "" {
		h.Frequency = model.FrequencyDaily
	}
	if err := habit.Validate(h); err != nil {
		return model.Habit{}, err
	}
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = s.now()
	}
	h = habit.Recompute(h, s.now().In(s.loc))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.putHabit(h)
	if s.date != "" {
		for _, e := range habit.Materialize([]model.Habit{h}, s.date, s.entries) {
			s.entries = append(s.entries, e)
			s.enqueue("save habit block", func(ctx context.Context) error {
				return s.adapter.SaveEntry(ctx, e)
			})
		}
		sortEntries(s.entries)
	}
	return h, nil
}

// ToggleHabit flips completion of date and refreshes the streak memo.
func (s *Store) ToggleHabit(id, date string) (model.Habit, error) {
	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return model.Habit{}, errs.Validationf("invalid date %q", date)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.habits[id]
	if !ok {
		return model.Habit{}, fmt.Errorf("habit %s: %w", id, errs.ErrNotFound)
	}
	h = habit.Toggle(h, date, s.now().In(s.loc))
	s.putHabit(h)
	if date == s.date {
		if i := s.ownedIndex(model.OwnerHabit, id); i >= 0 {
			s.entries[i].Completed = h.CompletedOn(date)
			e := s.entries[i]
			s.enqueue("save block", func(ctx context.Context) error {
				return s.adapter.SaveEntry(ctx, e)
			})
		}
	}
	return h, nil
}

// DeleteHabit removes the habit and its blocks on every day.
func (s *Store) DeleteHabit(id string) error {
	return s.deleteOwner(model.OwnerHabit, id)
}

// putHabit must be called with s.mu held.
func (s *Store) putHabit(h model.Habit) {
	s.habits[h.ID] = h
	s.mirrorHabits()
	s.enqueue("save habit", func(ctx context.Context) error {
		return s.adapter.SaveHabit(ctx, h)
	})
}

func (s *Store) mirrorHabits() {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(kvcache.KeyHabits, s.habitList()); err != nil {
		logger.Warn("Failed to mirror habits", "error", err)
	}
}

func (s *Store) habitList() []model.Habit {
	out := make([]model.Habit, 0, len(s.habits))
	for _, h := range s.habits {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) deleteOwner(kind model.OwnerKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case model.OwnerTask:
		if _, ok := s.tasks[id]; !ok {
			return fmt.Errorf("task %s: %w", id, errs.ErrNotFound)
		}
		delete(s.tasks, id)
	case model.OwnerHabit:
		if _, ok := s.habits[id]; !ok {
			return fmt.Errorf("habit %s: %w", id, errs.ErrNotFound)
		}
		delete(s.habits, id)
		s.mirrorHabits()
	}

	// Loaded blocks are captured now; stored blocks on other days are
	// resolved when the job runs.
	var loaded []model.TimedEntry
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.OwnerKind == kind && e.OwnerID == id {
			loaded = append(loaded, e)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept

	rm := s.remote
	s.enqueue(fmt.Sprintf("delete %s", kind), func(ctx context.Context) error {
		stored, err := s.adapter.ListEntriesByOwner(ctx, kind, id)
		if err != nil {
			return err
		}
		seen := make(map[string]bool)
		blocks := append(loaded, stored...)
		for _, e := range blocks {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			if err := s.adapter.DeleteEntry(ctx, e.ID); err != nil {
				return err
			}
			if e.Linked() && rm != nil {
				if err := rm.Delete(ctx, e.RemoteID); err != nil {
					logger.Warn("Failed to delete calendar event", "event", e.RemoteID, "error", err)
				}
			}
		}
		if kind == model.OwnerTask {
			return s.adapter.DeleteTask(ctx, id)
		}
		return s.adapter.DeleteHabit(ctx, id)
	})
	return nil
}

// Notes

func (s *Store) Note(ctx context.Context, date string) (model.Note, error) {
	return s.adapter.GetNote(ctx, date)
}

func (s *Store) SaveNote(date, body string) error {
	if _, err := time.Parse(model.DateFormat, date); err != nil {
		return errs.Validationf("invalid date %q", date)
	}
	n := model.Note{Date: date, Body: body}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enqueue("save note", func(ctx context.Context) error {
		return s.adapter.SaveNote(ctx, n)
	})
	return nil
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// taskBlockOn reports whether the task has a block on date other than except.
// Days other than the loaded one are read from the adapter once queued writes
// have landed. Must be called with s.mu held.
func (s *Store) taskBlockOn(taskID, date, except string) (bool, error) {
	if date == s.date {
		for _, e := range s.entries {
			if e.OwnerKind == model.OwnerTask && e.OwnerID == taskID && e.ID != except {
				return true, nil
			}
		}
		return false, nil
	}
	s.pending.Wait()
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	stored, err := s.adapter.ListEntriesByOwner(ctx, model.OwnerTask, taskID)
	if err != nil {
		return false, errs.Persistence("check task schedule", err)
	}
	for _, e := range stored {
		if e.Date == date && e.ID != except {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ownedIndex(kind model.OwnerKind, ownerID string) int {
	for i, e := range s.entries {
		if e.OwnerKind == kind && e.OwnerID == ownerID {
			return i
		}
	}
	return -1
}

func (s *Store) copyEntries() []model.TimedEntry {
	out := make([]model.TimedEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func sortEntries(entries []model.TimedEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].StartHour != entries[j].StartHour {
			return entries[i].StartHour < entries[j].StartHour
		}
		return entries[i].ID < entries[j].ID
	})
}
