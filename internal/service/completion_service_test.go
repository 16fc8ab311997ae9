package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv wires the real repositories over the in-memory store so the
// cross-document effects of one operation stay observable.
type testEnv struct {
	store    *docstore.MemoryStore
	users    *repository.UsersRepository
	catalog  *repository.CatalogRepository
	progress *repository.ProgressRepository
	activity *repository.ActivityRepository
	moods    *repository.MoodRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := docstore.NewMemoryStore()
	return &testEnv{
		store:    store,
		users:    repository.NewUsersRepo(store),
		catalog:  repository.NewCatalogRepo(store),
		progress: repository.NewProgressRepo(store),
		activity: repository.NewActivityRepo(store),
		moods:    repository.NewMoodRepo(store),
	}
}

func (env *testEnv) seedWellnessCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	docs := map[string]map[string]map[string]any{
		repository.CollectionExercises: {
			"ex1": {"title": "Box breathing", "categoryId": "breathing", "durationMinutes": 5, "order": 1},
			"ex2": {"title": "Body scan", "categoryId": "mindfulness", "durationMinutes": 10, "order": 2},
			"ex3": {"title": "4-7-8 breathing", "categoryId": "breathing", "durationMinutes": 5, "order": 3},
		},
		repository.CollectionCategories: {
			"breathing":   {"label": "Breathing", "order": 1},
			"mindfulness": {"label": "Mindfulness", "order": 2},
			"reflection":  {"label": "Reflection", "order": 3},
		},
		repository.CollectionTemplates: {
			"tpl1": {"name": "Starter", "exercises": []string{"ex1", "ex2", "ex3"}},
		},
		repository.CollectionUsers: {
			"u1": {"name": "anna", "templateId": "tpl1", "createdAt": time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)},
		},
	}
	for collection, items := range docs {
		for id, doc := range items {
			require.NoError(t, env.store.Set(ctx, collection, id, doc, false))
		}
	}
}

func TestCompleteExercise(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedWellnessCatalog(t)
	svc := service.NewCompletionService(env.users, env.catalog, env.progress, env.activity)

	t.Run("first completion moves every counter", func(t *testing.T) {
		result, err := svc.CompleteExercise(ctx, "u1", "ex1")
		require.NoError(t, err)
		assert.False(t, result.AlreadyCompleted)
		require.NotNil(t, result.Completion)
		assert.Equal(t, 1, result.Completion.ExercisesCompleted)
		assert.Equal(t, 3, result.Completion.TotalExercises)
		assert.Nil(t, result.Completion.CompletedAt)

		overview, err := env.progress.GetOverview(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, overview.Categories["breathing"])
		user, err := env.users.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, user.Stats.ExercisesCompleted)
	})

	t.Run("duplicate completion changes nothing", func(t *testing.T) {
		result, err := svc.CompleteExercise(ctx, "u1", "ex1")
		require.NoError(t, err)
		assert.True(t, result.AlreadyCompleted)
		require.NotNil(t, result.Completion)
		assert.Equal(t, 1, result.Completion.ExercisesCompleted)

		overview, err := env.progress.GetOverview(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, overview.Categories["breathing"])
		user, err := env.users.GetByID(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1, user.Stats.ExercisesCompleted)
	})

	t.Run("finishing the template stamps completedAt", func(t *testing.T) {
		_, err := svc.CompleteExercise(ctx, "u1", "ex2")
		require.NoError(t, err)
		result, err := svc.CompleteExercise(ctx, "u1", "ex3")
		require.NoError(t, err)
		require.NotNil(t, result.Completion)
		assert.Equal(t, 3, result.Completion.ExercisesCompleted)
		assert.NotNil(t, result.Completion.CompletedAt)

		overview, err := env.progress.GetOverview(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 1.0, overview.Overall)
		assert.Equal(t, 2, overview.Categories["breathing"])
		assert.Equal(t, 1, overview.Categories["mindfulness"])
	})

	t.Run("activity log carries one record per real completion", func(t *testing.T) {
		day := time.Now().Format("2006-01-02")
		records, err := env.activity.ByUserAndDay(ctx, "u1", day)
		require.NoError(t, err)
		assert.Len(t, records, 3)
	})

	t.Run("unknown exercise", func(t *testing.T) {
		_, err := svc.CompleteExercise(ctx, "u1", "nope")
		assert.ErrorIs(t, err, errorvalues.ErrExerciseNotFound)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := svc.CompleteExercise(ctx, "nobody", "ex1")
		assert.ErrorIs(t, err, errorvalues.ErrUserNotFound)
	})
}
