package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/pkg/entity"
)

// ProgressRepository owns the derived per-user progress documents: the
// completed-exercise set, the category overview and template completions.
type ProgressRepository struct {
	store docstore.Store
}

func NewProgressRepo(store docstore.Store) *ProgressRepository {
	if store == nil {
		log.Fatal("provided nil store for progressRepo")
	}
	return &ProgressRepository{
		store: store,
	}
}

func (pr *ProgressRepository) MarkCompleted(ctx context.Context, userID, exerciseID string, at time.Time) (bool, error) {
	key := DocKey(userID, exerciseID)
	already := false
	err := pr.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		_, err := tx.Get(ctx, CollectionCompletedExercises, key)
		if err == nil {
			already = true
			return nil
		}
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		return tx.Set(ctx, CollectionCompletedExercises, key, entity.CompletedExerciseRecord{
			UserID:      userID,
			ExerciseID:  exerciseID,
			Completed:   true,
			CompletedAt: at,
		}, false)
	})
	if err != nil {
		return false, errors.New("marking exercise completed error: " + err.Error())
	}
	return already, nil
}

func (pr *ProgressRepository) CompletedExerciseIDs(ctx context.Context, userID string) ([]string, error) {
	docs, err := pr.store.Query(ctx, CollectionCompletedExercises, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "userId", Op: docstore.OpEqual, Value: userID},
			{Field: "completed", Op: docstore.OpEqual, Value: true},
		},
	})
	if err != nil {
		return nil, errors.New("getting completed set error: " + err.Error())
	}
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		var rec entity.CompletedExerciseRecord
		if err := doc.Decode(&rec); err != nil {
			return nil, errors.New("completed record parsing error: " + err.Error())
		}
		ids = append(ids, rec.ExerciseID)
	}
	return ids, nil
}

func (pr *ProgressRepository) IncrementCategory(ctx context.Context, userID, categoryID string, at time.Time) error {
	err := pr.store.AtomicIncrement(ctx, CollectionProgress, userID, "categories."+categoryID, 1)
	if err != nil {
		return errors.New("incrementing category counter error: " + err.Error())
	}
	err = pr.store.Set(ctx, CollectionProgress, userID, map[string]any{
		"userId":      userID,
		"lastUpdated": at,
	}, true)
	if err != nil {
		return errors.New("refreshing overview timestamp error: " + err.Error())
	}
	return nil
}

func (pr *ProgressRepository) GetOverview(ctx context.Context, userID string) (*entity.ProgressOverview, error) {
	doc, err := pr.store.Get(ctx, CollectionProgress, userID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &entity.ProgressOverview{UserID: userID, Categories: map[string]int{}}, nil
		}
		return nil, errors.New("getting progress overview error: " + err.Error())
	}
	var overview entity.ProgressOverview
	if err := doc.Decode(&overview); err != nil {
		return nil, errors.New("overview document parsing error: " + err.Error())
	}
	overview.UserID = userID
	if overview.Categories == nil {
		overview.Categories = map[string]int{}
	}
	return &overview, nil
}

func (pr *ProgressRepository) SetOverall(ctx context.Context, userID string, overall float64, at time.Time) error {
	err := pr.store.Set(ctx, CollectionProgress, userID, map[string]any{
		"userId":      userID,
		"overall":     overall,
		"lastUpdated": at,
	}, true)
	if err != nil {
		return errors.New("setting overall score error: " + err.Error())
	}
	return nil
}

func (pr *ProgressRepository) GetTemplateCompletion(ctx context.Context, userID, templateID string) (*entity.TemplateCompletion, error) {
	doc, err := pr.store.Get(ctx, CollectionTemplateCompletions, DocKey(userID, templateID))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.New("getting template completion error: " + err.Error())
	}
	var tc entity.TemplateCompletion
	if err := doc.Decode(&tc); err != nil {
		return nil, errors.New("template completion parsing error: " + err.Error())
	}
	return &tc, nil
}

func (pr *ProgressRepository) UpsertTemplateCompletion(ctx context.Context, userID, templateID string, completed, total int, at time.Time) (*entity.TemplateCompletion, error) {
	existing, err := pr.GetTemplateCompletion(ctx, userID, templateID)
	if err != nil {
		return nil, err
	}
	tc := &entity.TemplateCompletion{
		UserID:             userID,
		TemplateID:         templateID,
		ExercisesCompleted: completed,
		TotalExercises:     total,
	}
	if existing != nil {
		tc.CompletedAt = existing.CompletedAt
	}
	// completedAt is write-once: later recounts never clear it
	if tc.CompletedAt == nil && total > 0 && completed >= total {
		completedAt := at
		tc.CompletedAt = &completedAt
	}
	err = pr.store.Set(ctx, CollectionTemplateCompletions, DocKey(userID, templateID), tc, false)
	if err != nil {
		return nil, errors.New("upserting template completion error: " + err.Error())
	}
	return tc, nil
}
