package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
)

func setupTestStore(t *testing.T, user string) *SQLStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "timebox.db"), user)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenRequiresUser(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "x.db"), ""); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "timebox.db")
	s, err := Open(path, "u1")
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path, "u1")
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()
	v, err := s.currentVersion()
	if err != nil || v != 1 {
		t.Errorf("version = %d, %v; want 1", v, err)
	}
}

func TestRebind(t *testing.T) {
	s := &SQLStore{dialect: DialectPostgres}
	if got := s.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Errorf("rebind = %q", got)
	}
	s.dialect = DialectSQLite
	if got := s.rebind("a = ?"); got != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", got)
	}
}

func TestTasksCRUD(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, "u1")

	task := model.Task{ID: "t1", Title: "Write report", Tag: "work", AssignedDate: "2024-01-02", Time: "09:00"}
	if err := s.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask failed: %v", err)
	}
	task.Completed = true
	task.CompletedAt = "2024-01-02"
	task.Time = ""
	if err := s.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask (update) failed: %v", err)
	}

	tasks, err := s.ListTasks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if !got.Completed || got.CompletedAt != "2024-01-02" || got.Time != "" || got.AssignedDate != "2024-01-02" {
		t.Errorf("unexpected task %+v", got)
	}

	if err := s.DeleteTask(ctx, "t1"); err != nil {
		t.Fatal(err)
	}
	if tasks, _ := s.ListTasks(ctx); len(tasks) != 0 {
		t.Errorf("task not deleted: %+v", tasks)
	}
}

func TestEntriesByDateAndOwner(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, "u1")

	entries := []model.TimedEntry{
		{ID: "e1", Date: "2024-01-02", Title: "Deep work", StartHour: 9, DurationHour: 2, OwnerKind: model.OwnerTask, OwnerID: "t1", Origin: model.OriginLocal, RemoteID: "r1"},
		{ID: "e2", Date: "2024-01-02", Title: "Lunch", StartHour: 12.5, DurationHour: 0.75, OwnerKind: model.OwnerFree, Origin: model.OriginLocal},
		{ID: "e3", Date: "2024-01-03", Title: "Deep work", StartHour: 8, DurationHour: 1, OwnerKind: model.OwnerTask, OwnerID: "t1", Origin: model.OriginLocal, Completed: true},
	}
	for _, e := range entries {
		if err := s.SaveEntry(ctx, e); err != nil {
			t.Fatalf("SaveEntry(%s) failed: %v", e.ID, err)
		}
	}

	day, err := s.ListEntries(ctx, "2024-01-02")
	if err != nil {
		t.Fatal(err)
	}
	if len(day) != 2 || day[0].ID != "e1" || day[1].ID != "e2" {
		t.Fatalf("unexpected day entries %+v", day)
	}
	if day[0].RemoteID != "r1" || day[1].StartHour != 12.5 {
		t.Errorf("fields not round-tripped: %+v", day)
	}

	owned, err := s.ListEntriesByOwner(ctx, model.OwnerTask, "t1")
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 {
		t.Errorf("expected 2 owned entries, got %d", len(owned))
	}

	linked, err := s.ListLinkedEntries(ctx, "2024-01-01", "2024-01-04")
	if err != nil {
		t.Fatal(err)
	}
	if len(linked) != 1 || linked[0].ID != "e1" {
		t.Errorf("unexpected linked entries %+v", linked)
	}

	if err := s.DeleteEntry(ctx, "e1"); err != nil {
		t.Fatal(err)
	}
	if day, _ := s.ListEntries(ctx, "2024-01-02"); len(day) != 1 {
		t.Errorf("entry not deleted: %+v", day)
	}
}

func TestUserScoping(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(path, "alice")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if err := a.SaveTask(ctx, model.Task{ID: "t1", Title: "alice's"}); err != nil {
		t.Fatal(err)
	}
	a.Close()

	b, err := Open(path, "bob")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	if tasks, _ := b.ListTasks(ctx); len(tasks) != 0 {
		t.Errorf("bob sees alice's tasks: %+v", tasks)
	}
}

func TestHabitsRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, "u1")

	created := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	h := model.Habit{
		ID: "h1", Name: "Run", Frequency: model.FrequencyWeekly, ScheduledDays: []int{1, 3, 5},
		ScheduledStartTime: "06:30", ScheduledEndTime: "07:00",
		CompletedDates: []string{"2024-01-01", "2024-01-03"}, CurrentStreak: 1, LongestStreak: 4, CreatedAt: created,
	}
	if err := s.SaveHabit(ctx, h); err != nil {
		t.Fatalf("SaveHabit failed: %v", err)
	}
	habits, err := s.ListHabits(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(habits) != 1 {
		t.Fatalf("expected 1 habit, got %d", len(habits))
	}
	got := habits[0]
	if len(got.ScheduledDays) != 3 || len(got.CompletedDates) != 2 || got.LongestStreak != 4 || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected habit %+v", got)
	}
	if err := s.DeleteHabit(ctx, "h1"); err != nil {
		t.Fatal(err)
	}
}

func TestWeightsAndNotes(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t, "u1")

	s.SaveWeight(ctx, model.WeightEntry{Date: "2024-01-02", Weight: 80})
	if err := s.SaveWeight(ctx, model.WeightEntry{Date: "2024-01-02", Weight: 79.2}); err != nil {
		t.Fatal(err)
	}
	ws, err := s.ListWeights(ctx)
	if err != nil || len(ws) != 1 || ws[0].Weight != 79.2 {
		t.Fatalf("weights = %+v, %v", ws, err)
	}
	if err := s.DeleteWeight(ctx, "2024-01-02"); err != nil {
		t.Fatal(err)
	}

	n, err := s.GetNote(ctx, "2024-01-02")
	if err != nil || n.Body != "" {
		t.Fatalf("missing note = %+v, %v", n, err)
	}
	if err := s.SaveNote(ctx, model.Note{Date: "2024-01-02", Body: "felt good"}); err != nil {
		t.Fatal(err)
	}
	n, _ = s.GetNote(ctx, "2024-01-02")
	if n.Body != "felt good" {
		t.Errorf("note body = %q", n.Body)
	}
}

func TestIsPostgres(t *testing.T) {
	if !IsPostgres("postgres://u@localhost/timebox") || !IsPostgres("postgresql://h/db") {
		t.Error("postgres URLs not detected")
	}
	if IsPostgres("/home/u/.config/timebox/timebox.db") {
		t.Error("file path detected as postgres")
	}
}
