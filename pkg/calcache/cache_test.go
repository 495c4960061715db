package calcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/kvcache"
	"github.com/harrisonrobin/timebox/pkg/model"
	"github.com/harrisonrobin/timebox/pkg/notice"
	"github.com/harrisonrobin/timebox/pkg/remote"
)

var now = time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC)

func event(id string, day, hour int, dur time.Duration) model.RemoteEvent {
	start := time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
	return model.RemoteEvent{RemoteID: id, Title: "ev " + id, Start: start, End: start.Add(dur)}
}

func TestRefreshReplacesWindowOnly(t *testing.T) {
	ctx := context.Background()
	p := remote.NewMemory(event("a", 2, 9, time.Hour), event("b", 3, 14, 30*time.Minute))
	kv := kvcache.Open(t.TempDir())
	c := New(Config{Provider: p, Store: kv, Location: time.UTC})

	// stale entry inside the window and one far outside it
	c.Put(model.TimedEntry{ID: "remote-old", Date: "2024-01-05", RemoteID: "old", Origin: model.OriginRemote})
	c.Put(model.TimedEntry{ID: "remote-far", Date: "2023-06-01", RemoteID: "far", Origin: model.OriginRemote})

	if err := c.Refresh(ctx, now); err != nil {
		t.Fatal(err)
	}
	if got := c.Day("2024-01-02"); len(got) != 1 || got[0].RemoteID != "a" || got[0].StartHour != 9 {
		t.Errorf("day 2 = %+v", got)
	}
	if got := c.Day("2024-01-03"); len(got) != 1 || got[0].DurationHour != 0.5 {
		t.Errorf("day 3 = %+v", got)
	}
	if _, ok := c.Find("old"); ok {
		t.Error("stale entry inside the window survived refresh")
	}
	if _, ok := c.Find("far"); !ok {
		t.Error("entry outside the window was dropped")
	}
	if c.LastRefresh() != now {
		t.Errorf("last refresh = %v", c.LastRefresh())
	}

	// a new cache over the same store renders without the network
	offline := New(Config{Store: kv, Location: time.UTC})
	if got := offline.Day("2024-01-02"); len(got) != 1 {
		t.Errorf("persisted day = %+v", got)
	}
	if !offline.LastRefresh().Equal(now) {
		t.Errorf("persisted last refresh = %v", offline.LastRefresh())
	}
}

func TestRefreshFailureLeavesCache(t *testing.T) {
	p := remote.NewMemory(event("a", 2, 9, time.Hour))
	c := New(Config{Provider: p, Location: time.UTC})
	if err := c.Refresh(context.Background(), now); err != nil {
		t.Fatal(err)
	}

	p.FailWith = errs.AuthExpired(errors.New("invalid_grant"))
	p.Remove("a")
	err := c.Refresh(context.Background(), now)
	if !errors.Is(err, errs.ErrAuthExpired) {
		t.Fatalf("expected auth expired, got %v", err)
	}
	if len(c.Day("2024-01-02")) != 1 {
		t.Error("cache changed after failed refresh")
	}
}

func TestRefreshSkipsMultiDayEvents(t *testing.T) {
	p := remote.NewMemory(event("long", 2, 20, 8*time.Hour))
	c := New(Config{Provider: p, Location: time.UTC})
	if err := c.Refresh(context.Background(), now); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Find("long"); ok {
		t.Error("multi-day event was cached")
	}
}

func TestMalformedStoreYieldsEmptyCache(t *testing.T) {
	kv := kvcache.Open(t.TempDir())
	if err := kv.Put(kvcache.KeyCalendarCache, []string{"not", "a", "map"}); err != nil {
		t.Fatal(err)
	}
	c := New(Config{Store: kv})
	if got := c.Range("0000-00-00", "9999-99-99"); len(got) != 0 {
		t.Errorf("expected empty cache, got %+v", got)
	}
}

func TestPatchMovesAcrossDays(t *testing.T) {
	c := New(Config{Location: time.UTC})
	c.Put(model.TimedEntry{ID: "remote-x", Date: "2024-01-02", RemoteID: "x", StartHour: 9, DurationHour: 1})

	day := "2024-01-03"
	start := 23.5
	e, ok := c.Patch("x", model.EntryPatch{Date: &day, StartHour: &start})
	if !ok {
		t.Fatal("patch did not find entry")
	}
	if e.StartHour != 23 {
		t.Errorf("start not clamped: %v", e.StartHour)
	}
	if len(c.Day("2024-01-02")) != 0 || len(c.Day("2024-01-03")) != 1 {
		t.Error("entry not moved to new day")
	}
	if !c.Delete("x") || c.Delete("x") {
		t.Error("delete should succeed once")
	}
}

func TestEditable(t *testing.T) {
	tests := []struct {
		name string
		e    model.TimedEntry
		want bool
	}{
		{"local", model.TimedEntry{Origin: model.OriginLocal}, true},
		{"foreign remote", model.TimedEntry{Origin: model.OriginRemote}, false},
		{"provider editable", model.TimedEntry{Origin: model.OriginRemote, Editable: true}, true},
		{"owned by task", model.TimedEntry{Origin: model.OriginRemote, OwnerKind: model.OwnerTask, OwnerID: "t1"}, true},
		{"free owner", model.TimedEntry{Origin: model.OriginRemote, OwnerKind: model.OwnerFree, OwnerID: "b1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Editable(tt.e); got != tt.want {
				t.Errorf("Editable = %v, want %v", got, tt.want)
			}
			err := Guard(tt.e)
			if tt.want && err != nil || !tt.want && !errors.Is(err, errs.ErrReadOnly) {
				t.Errorf("Guard = %v", err)
			}
		})
	}
}

func TestMergeSkipsLinkedCopies(t *testing.T) {
	local := []model.TimedEntry{
		{ID: "l1", StartHour: 10, RemoteID: "r1"},
		{ID: "l2", StartHour: 8},
	}
	cached := []model.TimedEntry{
		{ID: "remote-r1", StartHour: 10, RemoteID: "r1"},
		{ID: "remote-r2", StartHour: 9, RemoteID: "r2"},
	}
	got := Merge(local, cached)
	if len(got) != 3 {
		t.Fatalf("merged = %+v", got)
	}
	want := []string{"l2", "remote-r2", "l1"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("merged[%d] = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestRunStopsOnAuthExpired(t *testing.T) {
	p := remote.NewMemory()
	p.FailWith = errs.AuthExpired(errors.New("401"))
	rec := &notice.Recorder{}
	c := New(Config{Provider: p, Location: time.UTC, Notices: rec})

	err := c.Run(context.Background(), time.Millisecond)
	if !errors.Is(err, errs.ErrAuthExpired) {
		t.Fatalf("Run = %v", err)
	}
	if n := rec.Drain(); len(n) != 1 || n[0].Kind != "auth_expired" {
		t.Errorf("notices = %+v", n)
	}
}

func TestRunRetriesTransient(t *testing.T) {
	p := remote.NewMemory()
	p.FailWith = errs.Transient(errors.New("timeout"))
	rec := &notice.Recorder{}
	c := New(Config{Provider: p, Location: time.UTC, Notices: rec})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx, 5*time.Millisecond); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if n := rec.Drain(); len(n) < 2 {
		t.Errorf("expected repeated attempts, got %d notices", len(n))
	}
}
