package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/interaction"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/remote"
	"github.com/harrisonrobin/timebox/pkg/storage"
	"github.com/harrisonrobin/timebox/pkg/timegrid"
)

const day = "2024-01-02"

var (
	now = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
	t0  = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)
)

type fixture struct {
	app     *App
	db      *storage.Memory
	remote  *remote.Memory
	notices *notice.Recorder
	kv      *kvcache.Cache
}

func at(hour, min int) time.Time {
	return time.Date(2024, 1, 2, hour, min, 0, 0, time.UTC)
}

func foreign(id string) model.RemoteEvent {
	return model.RemoteEvent{RemoteID: id, Title: "Standup", Start: at(10, 0), End: at(11, 0)}
}

func shared(id string) model.RemoteEvent {
	return model.RemoteEvent{RemoteID: id, Title: "Gym", Start: at(17, 0), End: at(18, 0), Editable: true}
}

func newApp(f *fixture, provider remote.Provider) *App {
	return New(Config{
		Adapter:  f.db,
		Provider: provider,
		Cache:    f.kv,
		Notices:  f.notices,
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
}

func setup(t *testing.T, events ...model.RemoteEvent) *fixture {
	t.Helper()
	f := &fixture{
		db:      storage.NewMemory(),
		remote:  remote.NewMemory(events...),
		notices: &notice.Recorder{},
		kv:      kvcache.Open(t.TempDir()),
	}
	f.app = newApp(f, f.remote)
	t.Cleanup(f.app.Close)
	if err := f.app.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) drag(t *testing.T, id string, handle interaction.Handle, dy float64) interaction.Result {
	t.Helper()
	if err := f.app.PointerDown(id, handle, 100, t0); err != nil {
		t.Fatalf("pointer down: %v", err)
	}
	f.app.PointerMove(100+dy, t0.Add(300*time.Millisecond))
	res, err := f.app.PointerUp(context.Background(), 100+dy, t0.Add(350*time.Millisecond))
	if err != nil {
		t.Fatalf("pointer up: %v", err)
	}
	return res
}

func TestOpenDefaultsToToday(t *testing.T) {
	f := setup(t)
	if f.app.Date() != day {
		t.Errorf("date = %s", f.app.Date())
	}
	if f.app.Scale() != timegrid.ScaleNormal || f.app.Zoomed() {
		t.Errorf("unexpected initial scale %v", f.app.Scale())
	}
}

func TestScheduleMergesCalendar(t *testing.T) {
	f := setup(t, foreign("r1"))
	ctx := context.Background()
	if _, err := f.app.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	block, err := f.app.Store().Create(model.TimedEntry{Title: "Write", StartHour: 9, DurationHour: 1})
	if err != nil {
		t.Fatal(err)
	}

	got := f.app.Schedule()
	if len(got) != 2 || got[0].ID != block.ID || got[1].ID != model.RemoteEntryPrefix+"r1" {
		t.Fatalf("schedule = %+v", got)
	}

	if _, err := f.app.Push(ctx, block.ID); err != nil {
		t.Fatal(err)
	}
	f.app.Store().Wait()
	if _, err := f.app.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if got := f.app.Schedule(); len(got) != 2 {
		t.Errorf("pushed block shown twice: %+v", got)
	}
}

func TestDragCommitsLocalBlock(t *testing.T) {
	f := setup(t)
	e, _ := f.app.Store().Create(model.TimedEntry{Title: "Write", StartHour: 9, DurationHour: 1})

	res := f.drag(t, e.ID, interaction.Body, 90)
	if res.Outcome != interaction.Commit || res.Start != 10.5 {
		t.Fatalf("result = %+v", res)
	}
	got, _ := f.app.Store().Find(e.ID)
	if got.StartHour != 10.5 || got.DurationHour != 1 {
		t.Errorf("entry = %+v", got)
	}
}

func TestZoomScalesGestures(t *testing.T) {
	f := setup(t)
	if s := f.app.SetZoomed(true); s != timegrid.ScaleZoomed {
		t.Fatalf("scale = %v", s)
	}
	e, _ := f.app.Store().Create(model.TimedEntry{Title: "Write", StartHour: 9, DurationHour: 1})
	res := f.drag(t, e.ID, interaction.Body, 90)
	if res.Start != 9.75 {
		t.Errorf("zoomed drag start = %v", res.Start)
	}

	f.app.Store().Wait()
	reopened := newApp(f, f.remote)
	defer reopened.Close()
	if !reopened.Zoomed() || reopened.Scale() != timegrid.ScaleZoomed {
		t.Error("zoom state not restored")
	}
}

func TestSelectDatePersists(t *testing.T) {
	f := setup(t)
	if _, err := f.app.SelectDate(context.Background(), "2024-01-05"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.app.SelectDate(context.Background(), "bogus"); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	if f.app.Date() != "2024-01-05" {
		t.Errorf("date = %s", f.app.Date())
	}
	reopened := newApp(f, f.remote)
	defer reopened.Close()
	if reopened.Date() != "2024-01-05" {
		t.Errorf("restored date = %s", reopened.Date())
	}
}

func TestClickTogglesTask(t *testing.T) {
	f := setup(t)
	s := f.app.Store()
	task, err := s.AddTask(model.Task{Title: "Report", AssignedDate: day})
	if err != nil {
		t.Fatal(err)
	}
	e, err := s.Schedule(task.ID, day, 9, 1)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.app.PointerDown(e.ID, interaction.Body, 100, t0); err != nil {
		t.Fatal(err)
	}
	res, err := f.app.PointerUp(context.Background(), 101, t0.Add(50*time.Millisecond))
	if err != nil || res.Outcome != interaction.Click {
		t.Fatalf("result = %+v, %v", res, err)
	}
	got, _ := s.Task(task.ID)
	if !got.Completed {
		t.Error("task not completed by click")
	}
	block, _ := s.Find(e.ID)
	if !block.Completed {
		t.Error("block not completed by click")
	}
}

func TestReadOnlyEventRejected(t *testing.T) {
	f := setup(t, foreign("r1"))
	ctx := context.Background()
	f.app.Sync(ctx)
	id := model.RemoteEntryPrefix + "r1"

	err := f.app.PointerDown(id, interaction.Body, 100, t0)
	if !errors.Is(err, errs.ErrReadOnly) {
		t.Fatalf("expected read-only, got %v", err)
	}
	if _, ok := f.app.PointerMove(200, t0.Add(time.Second)); ok {
		t.Error("gesture started on read-only event")
	}
	notices := f.notices.Drain()
	if len(notices) != 1 || notices[0].Kind != "read_only" {
		t.Errorf("notices = %+v", notices)
	}
	if err := f.app.RemoveEntry(ctx, id); !errors.Is(err, errs.ErrReadOnly) {
		t.Errorf("remove: expected read-only, got %v", err)
	}
	if err := f.app.Move(ctx, id, 12, 1); !errors.Is(err, errs.ErrReadOnly) {
		t.Errorf("move: expected read-only, got %v", err)
	}
	if _, ok := f.remote.Get("r1"); !ok {
		t.Error("read-only event deleted")
	}
}

func TestDragEditableCalendarEvent(t *testing.T) {
	f := setup(t, shared("r2"))
	f.app.Sync(context.Background())
	id := model.RemoteEntryPrefix + "r2"

	res := f.drag(t, id, interaction.BottomEdge, 30)
	if res.Outcome != interaction.Commit || res.Duration != 1.5 {
		t.Fatalf("result = %+v", res)
	}
	ev, _ := f.remote.Get("r2")
	if !ev.End.Equal(at(18, 30)) {
		t.Errorf("calendar end = %v", ev.End)
	}
	cached, _ := f.app.Calendar().Find("r2")
	if cached.DurationHour != 1.5 {
		t.Errorf("cached = %+v", cached)
	}
}

func TestRemoveEditableCalendarEvent(t *testing.T) {
	f := setup(t, shared("r2"))
	ctx := context.Background()
	f.app.Sync(ctx)

	if err := f.app.RemoveEntry(ctx, model.RemoteEntryPrefix+"r2"); err != nil {
		t.Fatal(err)
	}
	if len(f.remote.Deleted) != 1 || f.remote.Deleted[0] != "r2" {
		t.Errorf("deleted = %v", f.remote.Deleted)
	}
	if len(f.app.Schedule()) != 0 {
		t.Errorf("schedule = %+v", f.app.Schedule())
	}
	if err := f.app.RemoveEntry(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestSyncAuthExpiry(t *testing.T) {
	f := setup(t)
	f.remote.FailWith = errs.AuthExpired(errors.New("invalid_grant"))

	if _, err := f.app.Sync(context.Background()); !errors.Is(err, errs.ErrAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}
	notices := f.notices.Drain()
	if len(notices) != 1 || notices[0].Kind != "auth_expired" {
		t.Errorf("notices = %+v", notices)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.app.Watch(ctx, time.Hour); !errors.Is(err, errs.ErrAuthExpired) {
		t.Errorf("watch returned %v", err)
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	f := setup(t, foreign("r1"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.app.Watch(ctx, time.Hour); err != nil {
		t.Errorf("watch returned %v", err)
	}
	if len(f.app.Schedule()) != 1 {
		t.Error("watch did not refresh before stopping")
	}
}

func TestWatchRefreshesCacheOnly(t *testing.T) {
	f := setup(t, foreign("r1"))
	ctx := context.Background()
	block, err := f.app.Store().Create(model.TimedEntry{Title: "Write", StartHour: 9, DurationHour: 1})
	if err != nil {
		t.Fatal(err)
	}
	pushed, err := f.app.Push(ctx, block.ID)
	if err != nil {
		t.Fatal(err)
	}
	f.app.Store().Wait()
	f.remote.Remove(pushed.RemoteID)

	watchCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if err := f.app.Watch(watchCtx, 10*time.Millisecond); err != nil {
		t.Fatalf("watch returned %v", err)
	}

	if _, ok := f.app.Store().Find(block.ID); !ok {
		t.Error("local block removed by the refresh loop")
	}
	if !f.app.Calendar().LastRefresh().Equal(now) {
		t.Errorf("last refresh = %v", f.app.Calendar().LastRefresh())
	}
	cached := f.app.Calendar().Day(day)
	if len(cached) != 1 || cached[0].RemoteID != "r1" {
		t.Errorf("cached day = %+v", cached)
	}
}

func TestWithoutCalendar(t *testing.T) {
	f := &fixture{db: storage.NewMemory(), notices: &notice.Recorder{}, kv: kvcache.Open(t.TempDir())}
	a := newApp(f, nil)
	defer a.Close()
	if err := a.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	if a.HasCalendar() {
		t.Error("calendar reported without provider")
	}
	if _, err := a.Sync(context.Background()); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
	e, _ := a.Store().Create(model.TimedEntry{Title: "Read", StartHour: 20, DurationHour: 1})
	if _, err := a.Push(context.Background(), e.ID); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("push: expected validation error, got %v", err)
	}
}

func TestLogWeight(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	entries, err := f.app.LogWeight(ctx, day, 72.5)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %+v, %v", entries, err)
	}
	if _, err := f.app.LogWeight(ctx, day, -1); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	f.db.SetFailWrites(errors.New("disk full"))
	if _, err := f.app.LogWeight(ctx, "2024-01-03", 72); !errors.Is(err, errs.ErrPersistence) {
		t.Errorf("expected persistence error, got %v", err)
	}
	notices := f.notices.Drain()
	if len(notices) != 1 || notices[0].Kind != "persistence" {
		t.Errorf("notices = %+v", notices)
	}
	if len(f.app.Weights().Entries()) != 2 {
		t.Error("in-memory log rolled back")
	}
}
