package service

import (
	"context"

	"github.com/limbo/serenity/pkg/entity"
)

// CompletionResult reports one CompleteExercise call. AlreadyCompleted
// marks a duplicate delivery: the completed-set and every counter stay
// untouched. Completion is nil when the user has no assigned template or
// the recount step failed (best-effort).
type CompletionResult struct {
	AlreadyCompleted bool                       `json:"alreadyCompleted"`
	Completion       *entity.TemplateCompletion `json:"completion,omitempty"`
}

type RecordMoodRequest struct {
	Mood            string   `validate:"required,mood_label"`
	Value           float64  `validate:"gte=0"`
	DurationMinutes int      `validate:"gte=0"`
	Factors         []string `validate:"max=20"`
	Note            string   `validate:"max=2000"`
}

type insightsParams struct {
	Timeframe string `validate:"required,oneof=week month year"`
}

// UserStatsResult backs the profile screen: raw counters plus the
// derived per-category overview.
type UserStatsResult struct {
	Stats    entity.UserStats         `json:"stats"`
	Overview *entity.ProgressOverview `json:"overview,omitempty"`
}

type CompletionServiceI interface {
	// Records the exercise as completed for the user and refreshes the
	// derived progress documents. Safe to call repeatedly for the same
	// pair: duplicates change nothing.
	CompleteExercise(ctx context.Context, userID, exerciseID string) (*CompletionResult, error)
}

type RadarServiceI interface {
	// Derives the normalized category distribution of the user's
	// assigned template, one entry per known category in display order.
	GetCategoryDistribution(ctx context.Context, userID string) ([]entity.CategoryScore, error)
}

type InsightsServiceI interface {
	// Computes aggregate mood statistics over the timeframe. A nil
	// result with nil error means not enough data, which is a normal
	// outcome, not a failure.
	GenerateInsights(ctx context.Context, userID, timeframe string) (*entity.Insights, error)
	// Stores one mood entry and logs the matching activity record
	RecordMoodEntry(ctx context.Context, userID string, req *RecordMoodRequest) (*entity.MoodEntry, error)
}

type RateLimiterI interface {
	// Atomically checks the sliding 24h window for (user, operation) and
	// records the call when admitted
	CheckAndRecord(ctx context.Context, userID, operation string, maxPerDay int) (*entity.RateLimitDecision, error)
}

type UserServiceI interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetStats(ctx context.Context, id string) (*UserStatsResult, error)
}
