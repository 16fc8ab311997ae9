package repository

import (
	"context"
	"time"

	"github.com/limbo/serenity/pkg/entity"
)

type UsersRepositoryI interface {
	// Searches user with given id
	GetByID(ctx context.Context, id string) (*entity.User, error)
	// Lists every user; the daily aggregation job walks this
	All(ctx context.Context) ([]*entity.User, error)
	// Atomically bumps stats.exercisesCompleted and refreshes lastActiveDate
	RegisterExerciseCompleted(ctx context.Context, id, day string) error
	// Writes the recomputed streak together with the new lastActiveDate
	UpdateStreak(ctx context.Context, id string, streak int, lastActiveDate string) error
}

type CatalogRepositoryI interface {
	// Looks up one exercise
	GetExercise(ctx context.Context, id string) (*entity.Exercise, error)
	// Resolves a template's exercise list; ids that don't resolve are skipped
	GetExercises(ctx context.Context, ids []string) ([]*entity.Exercise, error)
	// Lists all categories sorted by their display-order field
	ListCategories(ctx context.Context) ([]*entity.ExerciseCategory, error)
	// Resolves a template with its exercise-id list normalized
	GetTemplate(ctx context.Context, id string) (*entity.ExerciseTemplate, error)
}

type ProgressRepositoryI interface {
	// Idempotently records a completed exercise; reports whether the
	// record already existed before this call
	MarkCompleted(ctx context.Context, userID, exerciseID string, at time.Time) (bool, error)
	// Returns the authoritative set of completed exercise ids for a user
	CompletedExerciseIDs(ctx context.Context, userID string) ([]string, error)
	// Atomically bumps the per-category completion counter
	IncrementCategory(ctx context.Context, userID, categoryID string, at time.Time) error
	// Provides the user's overview; absent overview decodes as zero progress
	GetOverview(ctx context.Context, userID string) (*entity.ProgressOverview, error)
	// Refreshes the overview's overall score
	SetOverall(ctx context.Context, userID string, overall float64, at time.Time) error
	// Returns nil without error when no completion document exists yet
	GetTemplateCompletion(ctx context.Context, userID, templateID string) (*entity.TemplateCompletion, error)
	// Writes the recomputed counters, setting completedAt only on the
	// first transition to full completion
	UpsertTemplateCompletion(ctx context.Context, userID, templateID string, completed, total int, at time.Time) (*entity.TemplateCompletion, error)
}

type ActivityRepositoryI interface {
	// Appends one activity record; id and day-bucket are derived when empty
	Append(ctx context.Context, rec *entity.ActivityRecord) error
	// Provides a user's activity for one day-bucket
	ByUserAndDay(ctx context.Context, userID, day string) ([]*entity.ActivityRecord, error)
}

type MoodRepositoryI interface {
	// Appends one mood entry; id and timestamp are derived when empty
	Append(ctx context.Context, m *entity.MoodEntry) error
	// Provides a user's mood entries from since onward, oldest first
	ByUserSince(ctx context.Context, userID string, since time.Time) ([]*entity.MoodEntry, error)
}

type SnapshotsRepositoryI interface {
	// Returns nil without error when no snapshot exists for the date
	Get(ctx context.Context, date string) (*entity.DailyStatsSnapshot, error)
	// Writes the snapshot for its date; refuses to overwrite unless force
	Write(ctx context.Context, snap *entity.DailyStatsSnapshot, force bool) error
}
