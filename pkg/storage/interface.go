package storage

import (
	"context"

	"github.com/harrisonrobin/timebox/pkg/model"
)

// Adapter is the relational persistence boundary. Every call is scoped to the
// user the adapter was opened for.
type Adapter interface {
	// Tasks
	ListTasks(ctx context.Context) ([]model.Task, error)
	SaveTask(ctx context.Context, t model.Task) error
	DeleteTask(ctx context.Context, id string) error

	// Habits
	ListHabits(ctx context.Context) ([]model.Habit, error)
	SaveHabit(ctx context.Context, h model.Habit) error
	DeleteHabit(ctx context.Context, id string) error

	// Schedule blocks
	ListEntries(ctx context.Context, date string) ([]model.TimedEntry, error)
	ListEntriesByOwner(ctx context.Context, kind model.OwnerKind, ownerID string) ([]model.TimedEntry, error)
	ListLinkedEntries(ctx context.Context, from, to string) ([]model.TimedEntry, error)
	SaveEntry(ctx context.Context, e model.TimedEntry) error
	DeleteEntry(ctx context.Context, id string) error

	// Weight
	ListWeights(ctx context.Context) ([]model.WeightEntry, error)
	SaveWeight(ctx context.Context, w model.WeightEntry) error
	DeleteWeight(ctx context.Context, date string) error

	// Notes
	GetNote(ctx context.Context, date string) (model.Note, error)
	SaveNote(ctx context.Context, n model.Note) error

	Close() error
}
