package service

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/observability"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
)

type CompletionService struct {
	users    repository.UsersRepositoryI
	catalog  repository.CatalogRepositoryI
	progress repository.ProgressRepositoryI
	activity repository.ActivityRepositoryI
}

func NewCompletionService(
	users repository.UsersRepositoryI,
	catalog repository.CatalogRepositoryI,
	progress repository.ProgressRepositoryI,
	activity repository.ActivityRepositoryI,
) *CompletionService {
	if users == nil || catalog == nil || progress == nil || activity == nil {
		log.Fatal("on completion service provided nil repos")
	}
	return &CompletionService{
		users:    users,
		catalog:  catalog,
		progress: progress,
		activity: activity,
	}
}

// CompleteExercise records the completed-exercise fact and then runs the
// bookkeeping steps as independent post-conditions. The record write
// decides everything: counters and the activity log only move on the
// first completion of the pair, so duplicate deliveries cannot drift the
// category counters away from the completed-set. Post-condition failures
// are logged and skipped; they never roll back the record.
func (cs *CompletionService) CompleteExercise(ctx context.Context, userID, exerciseID string) (*CompletionResult, error) {
	ex, err := cs.catalog.GetExercise(ctx, exerciseID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrExerciseNotFound) {
			return nil, err
		}
		return nil, errors.New("catalog repository error: " + err.Error())
	}
	user, err := cs.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("users repository error: " + err.Error())
	}
	now := time.Now()
	already, err := cs.progress.MarkCompleted(ctx, userID, exerciseID, now)
	if err != nil {
		return nil, errors.New("progress repository error: " + err.Error())
	}
	result := &CompletionResult{AlreadyCompleted: already}
	if already {
		observability.RecordDuplicateCompletion()
	} else {
		observability.RecordCompletion()
		if err := cs.progress.IncrementCategory(ctx, userID, ex.CategoryID, now); err != nil {
			slog.Warn("completion: category counter update failed",
				slog.String("uid", userID), slog.String("error", err.Error()))
		}
		if err := cs.users.RegisterExerciseCompleted(ctx, userID, now.Format(entity.DayFormat)); err != nil {
			slog.Warn("completion: user stats update failed",
				slog.String("uid", userID), slog.String("error", err.Error()))
		}
		if err := cs.activity.Append(ctx, &entity.ActivityRecord{
			UserID:          userID,
			Type:            entity.ActivityExercise,
			Title:           ex.Title,
			DurationMinutes: ex.DurationMinutes,
			Timestamp:       now,
		}); err != nil {
			slog.Warn("completion: activity logging failed",
				slog.String("uid", userID), slog.String("error", err.Error()))
		}
	}
	if user.TemplateID != "" {
		tc, err := cs.recountTemplateCompletion(ctx, user, now)
		if err != nil {
			slog.Warn("completion: template recount failed",
				slog.String("uid", userID), slog.String("error", err.Error()))
		} else {
			result.Completion = tc
		}
	}
	return result, nil
}

// recountTemplateCompletion rederives the counters from the completed
// set instead of trusting any running counter, so it stays correct under
// duplicate deliveries and concurrent completions.
func (cs *CompletionService) recountTemplateCompletion(ctx context.Context, user *entity.User, now time.Time) (*entity.TemplateCompletion, error) {
	tmpl, err := cs.catalog.GetTemplate(ctx, user.TemplateID)
	if err != nil {
		return nil, err
	}
	if len(tmpl.ExerciseIDs) == 0 {
		return nil, nil
	}
	completedIDs, err := cs.progress.CompletedExerciseIDs(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	completedSet := make(map[string]struct{}, len(completedIDs))
	for _, id := range completedIDs {
		completedSet[id] = struct{}{}
	}
	count := 0
	for _, id := range tmpl.ExerciseIDs {
		if _, ok := completedSet[id]; ok {
			count++
		}
	}
	tc, err := cs.progress.UpsertTemplateCompletion(ctx, user.ID, tmpl.ID, count, len(tmpl.ExerciseIDs), now)
	if err != nil {
		return nil, err
	}
	overall := float64(count) / float64(len(tmpl.ExerciseIDs))
	if err := cs.progress.SetOverall(ctx, user.ID, overall, now); err != nil {
		slog.Warn("completion: overall score update failed",
			slog.String("uid", user.ID), slog.String("error", err.Error()))
	}
	return tc, nil
}
