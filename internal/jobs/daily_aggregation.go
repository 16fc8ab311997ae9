package jobs

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/limbo/serenity/internal/observability"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
)

// AggregationJob walks every user once per day, updates streak counters
// for users active on the target date and writes the daily snapshot.
// A failure on one user is logged and skipped, the run keeps going.
type AggregationJob struct {
	users     repository.UsersRepositoryI
	activity  repository.ActivityRepositoryI
	snapshots repository.SnapshotsRepositoryI
}

func NewAggregationJob(
	users repository.UsersRepositoryI,
	activity repository.ActivityRepositoryI,
	snapshots repository.SnapshotsRepositoryI,
) *AggregationJob {
	if users == nil || activity == nil || snapshots == nil {
		log.Fatal("on aggregation job provided nil repos")
	}
	return &AggregationJob{
		users:     users,
		activity:  activity,
		snapshots: snapshots,
	}
}

// RunDailyAggregation aggregates yesterday relative to now.
func (j *AggregationJob) RunDailyAggregation(ctx context.Context) (*entity.DailyStatsSnapshot, error) {
	target := time.Now().AddDate(0, 0, -1).Format(entity.DayFormat)
	return j.RunForDate(ctx, target, false)
}

func (j *AggregationJob) RunForDate(ctx context.Context, date string, force bool) (*entity.DailyStatsSnapshot, error) {
	target, err := time.Parse(entity.DayFormat, date)
	if err != nil {
		return nil, errors.New("invalid aggregation date: " + err.Error())
	}
	started := time.Now()
	defer func() {
		observability.ObserveAggregationRun(time.Since(started))
	}()
	users, err := j.users.All(ctx)
	if err != nil {
		return nil, errors.New("users repository error: " + err.Error())
	}
	snap := &entity.DailyStatsSnapshot{
		Date:      date,
		CreatedAt: started,
	}
	for _, user := range users {
		if user.CreatedAt.Format(entity.DayFormat) == date {
			snap.NewUsers++
		}
		records, err := j.activity.ByUserAndDay(ctx, user.ID, date)
		if err != nil {
			slog.Error("aggregation: reading activity failed",
				slog.String("uid", user.ID), slog.String("error", err.Error()))
			observability.RecordAggregationUserFailure()
			continue
		}
		if len(records) == 0 {
			// inactive day: the streak is left alone, regression happens
			// lazily the next time the gap is computed
			continue
		}
		snap.ActiveUsers++
		for _, rec := range records {
			switch rec.Type {
			case entity.ActivityMeditation:
				snap.MeditationMinutes += rec.DurationMinutes
			case entity.ActivityExercise:
				snap.ExercisesCompleted++
			case entity.ActivitySurvey:
				snap.SurveysCompleted++
			}
		}
		if err := j.updateStreak(ctx, user, target); err != nil {
			slog.Error("aggregation: streak update failed",
				slog.String("uid", user.ID), slog.String("error", err.Error()))
			observability.RecordAggregationUserFailure()
		}
	}
	if err := j.snapshots.Write(ctx, snap, force); err != nil {
		return nil, err
	}
	slog.Info("aggregation run finished",
		slog.String("date", date),
		slog.Int("active_users", snap.ActiveUsers),
		slog.Int("new_users", snap.NewUsers))
	return snap, nil
}

func (j *AggregationJob) updateStreak(ctx context.Context, user *entity.User, target time.Time) error {
	streak := 1
	if user.Stats.LastActiveDate != "" {
		last, err := time.Parse(entity.DayFormat, user.Stats.LastActiveDate)
		if err == nil {
			gap := daysBetween(last, target)
			switch {
			case gap == 1:
				streak = user.Stats.Streak + 1
			case gap <= 0:
				// re-run over an already-counted date keeps the streak
				streak = max(user.Stats.Streak, 1)
			}
		}
	}
	return j.users.UpdateStreak(ctx, user.ID, streak, target.Format(entity.DayFormat))
}

func daysBetween(from, to time.Time) int {
	return int(to.Truncate(24*time.Hour).Sub(from.Truncate(24*time.Hour)).Hours() / 24)
}
