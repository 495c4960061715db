package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/harrisonrobin/timebox/pkg/errs"
	"github.com/harrisonrobin/timebox/pkg/model"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore implements Adapter over SQLite (local file) or PostgreSQL (remote).
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	userID  string
}

// IsPostgres reports whether dsn is a PostgreSQL URL.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to dsn (a sqlite file path or a postgres URL), runs pending
// migrations and scopes the store to userID.
func Open(dsn, userID string) (*SQLStore, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, errs.Validationf("user id is empty")
	}

	s := &SQLStore{userID: userID}
	if IsPostgres(dsn) {
		connector, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid postgres connection string: %w", err)
		}
		s.db = sql.OpenDB(connector)
		s.dialect = DialectPostgres
		s.db.SetMaxOpenConns(10)
		s.db.SetConnMaxLifetime(5 * time.Minute)
		if err := s.db.Ping(); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	} else {
		if err := os.MkdirAll(filepath.Dir(dsn), 0700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		// Writes arrive from background goroutines; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		s.db = db
		s.dialect = DialectSQLite
	}

	if err := s.migrate(); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// rebind rewrites '?' placeholders to '$n' for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...interface{}) error {
	_, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Tasks

func (s *SQLStore) ListTasks(ctx context.Context) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, title, tag, tag_color, assigned_date, completed, completed_at, display_time
		FROM tasks WHERE user_id = ? ORDER BY title, id`), s.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		var t model.Task
		var assigned, completedAt sql.NullString
		var completed int
		if err := rows.Scan(&t.ID, &t.Title, &t.Tag, &t.TagColor, &assigned, &completed, &completedAt, &t.Time); err != nil {
			return nil, err
		}
		t.AssignedDate = assigned.String
		t.CompletedAt = completedAt.String
		t.Completed = completed != 0
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *SQLStore) SaveTask(ctx context.Context, t model.Task) error {
	return s.exec(ctx, `
		INSERT INTO tasks (user_id, id, title, tag, tag_color, assigned_date, completed, completed_at, display_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			title = excluded.title, tag = excluded.tag, tag_color = excluded.tag_color,
			assigned_date = excluded.assigned_date, completed = excluded.completed,
			completed_at = excluded.completed_at, display_time = excluded.display_time`,
		s.userID, t.ID, t.Title, t.Tag, t.TagColor, nullable(t.AssignedDate), boolToInt(t.Completed), nullable(t.CompletedAt), t.Time)
}

func (s *SQLStore) DeleteTask(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM tasks WHERE user_id = ? AND id = ?`, s.userID, id)
}

// Habits

func (s *SQLStore) ListHabits(ctx context.Context) ([]model.Habit, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, name, tag, tag_color, frequency, scheduled_days, start_time, end_time,
		       completed_dates, current_streak, longest_streak, created_at
		FROM habits WHERE user_id = ? ORDER BY created_at, id`), s.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		var h model.Habit
		var days, dates, createdAt string
		var freq string
		if err := rows.Scan(&h.ID, &h.Name, &h.Tag, &h.TagColor, &freq, &days, &h.ScheduledStartTime, &h.ScheduledEndTime,
			&dates, &h.CurrentStreak, &h.LongestStreak, &createdAt); err != nil {
			return nil, err
		}
		h.Frequency = model.Frequency(freq)
		if err := json.Unmarshal([]byte(days), &h.ScheduledDays); err != nil {
			return nil, fmt.Errorf("failed to parse scheduled_days for habit %s: %w", h.ID, err)
		}
		if err := json.Unmarshal([]byte(dates), &h.CompletedDates); err != nil {
			return nil, fmt.Errorf("failed to parse completed_dates for habit %s: %w", h.ID, err)
		}
		h.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for habit %s: %w", h.ID, err)
		}
		habits = append(habits, h)
	}
	return habits, rows.Err()
}

func (s *SQLStore) SaveHabit(ctx context.Context, h model.Habit) error {
	days, err := json.Marshal(nonNilInts(h.ScheduledDays))
	if err != nil {
		return err
	}
	dates, err := json.Marshal(nonNilStrings(h.CompletedDates))
	if err != nil {
		return err
	}
	return s.exec(ctx, `
		INSERT INTO habits (user_id, id, name, tag, tag_color, frequency, scheduled_days, start_time, end_time,
		                    completed_dates, current_streak, longest_streak, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			name = excluded.name, tag = excluded.tag, tag_color = excluded.tag_color,
			frequency = excluded.frequency, scheduled_days = excluded.scheduled_days,
			start_time = excluded.start_time, end_time = excluded.end_time,
			completed_dates = excluded.completed_dates, current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak`,
		s.userID, h.ID, h.Name, h.Tag, h.TagColor, string(h.Frequency), string(days), h.ScheduledStartTime, h.ScheduledEndTime,
		string(dates), h.CurrentStreak, h.LongestStreak, h.CreatedAt.UTC().Format(time.RFC3339))
}

func (s *SQLStore) DeleteHabit(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM habits WHERE user_id = ? AND id = ?`, s.userID, id)
}

// Schedule blocks

const entryColumns = `id, day, title, start_hour, duration_hour, tag, color_id, owner_kind, owner_id, origin, remote_id, completed`

func (s *SQLStore) queryEntries(ctx context.Context, where string, args ...interface{}) ([]model.TimedEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT `+entryColumns+` FROM schedule_blocks WHERE `+where+` ORDER BY start_hour, id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.TimedEntry
	for rows.Next() {
		var e model.TimedEntry
		var kind, origin string
		var completed int
		if err := rows.Scan(&e.ID, &e.Date, &e.Title, &e.StartHour, &e.DurationHour, &e.Tag, &e.ColorID,
			&kind, &e.OwnerID, &origin, &e.RemoteID, &completed); err != nil {
			return nil, err
		}
		e.OwnerKind = model.OwnerKind(kind)
		e.Origin = model.Origin(origin)
		e.Completed = completed != 0
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLStore) ListEntries(ctx context.Context, date string) ([]model.TimedEntry, error) {
	return s.queryEntries(ctx, `user_id = ? AND day = ?`, s.userID, date)
}

// ListLinkedEntries returns entries with a remote counterpart whose day is
// in [from, to).
func (s *SQLStore) ListLinkedEntries(ctx context.Context, from, to string) ([]model.TimedEntry, error) {
	return s.queryEntries(ctx, `user_id = ? AND remote_id IS NOT NULL AND remote_id <> '' AND day >= ? AND day < ?`, s.userID, from, to)
}

func (s *SQLStore) ListEntriesByOwner(ctx context.Context, kind model.OwnerKind, ownerID string) ([]model.TimedEntry, error) {
	return s.queryEntries(ctx, `user_id = ? AND owner_kind = ? AND owner_id = ?`, s.userID, string(kind), ownerID)
}

func (s *SQLStore) SaveEntry(ctx context.Context, e model.TimedEntry) error {
	return s.exec(ctx, `
		INSERT INTO schedule_blocks (user_id, `+entryColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, id) DO UPDATE SET
			day = excluded.day, title = excluded.title, start_hour = excluded.start_hour,
			duration_hour = excluded.duration_hour, tag = excluded.tag, color_id = excluded.color_id,
			owner_kind = excluded.owner_kind, owner_id = excluded.owner_id, origin = excluded.origin,
			remote_id = excluded.remote_id, completed = excluded.completed`,
		s.userID, e.ID, e.Date, e.Title, e.StartHour, e.DurationHour, e.Tag, e.ColorID,
		string(e.OwnerKind), e.OwnerID, string(e.Origin), e.RemoteID, boolToInt(e.Completed))
}

func (s *SQLStore) DeleteEntry(ctx context.Context, id string) error {
	return s.exec(ctx, `DELETE FROM schedule_blocks WHERE user_id = ? AND id = ?`, s.userID, id)
}

// Weight

func (s *SQLStore) ListWeights(ctx context.Context) ([]model.WeightEntry, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT day, weight FROM weight_entries WHERE user_id = ? ORDER BY day`), s.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WeightEntry
	for rows.Next() {
		var w model.WeightEntry
		if err := rows.Scan(&w.Date, &w.Weight); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLStore) SaveWeight(ctx context.Context, w model.WeightEntry) error {
	return s.exec(ctx, `
		INSERT INTO weight_entries (user_id, day, weight) VALUES (?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET weight = excluded.weight`,
		s.userID, w.Date, w.Weight)
}

func (s *SQLStore) DeleteWeight(ctx context.Context, date string) error {
	return s.exec(ctx, `DELETE FROM weight_entries WHERE user_id = ? AND day = ?`, s.userID, date)
}

// Notes

func (s *SQLStore) GetNote(ctx context.Context, date string) (model.Note, error) {
	n := model.Note{Date: date}
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT body FROM notes WHERE user_id = ? AND day = ?`), s.userID, date).Scan(&n.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return n, nil
	}
	return n, err
}

func (s *SQLStore) SaveNote(ctx context.Context, n model.Note) error {
	return s.exec(ctx, `
		INSERT INTO notes (user_id, day, body) VALUES (?, ?, ?)
		ON CONFLICT (user_id, day) DO UPDATE SET body = excluded.body`,
		s.userID, n.Date, n.Body)
}

func nonNilInts(v []int) []int {
	if v == nil {
		return []int{}
	}
	return v
}

func nonNilStrings(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
