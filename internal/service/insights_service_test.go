package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/service"
	"github.com/limbo/serenity/pkg/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	service.InitValidator()
	m.Run()
}

type limiterStub struct {
	allow   bool
	minutes int
	err     error
}

func (l *limiterStub) CheckAndRecord(ctx context.Context, userID, operation string, maxPerDay int) (*entity.RateLimitDecision, error) {
	if l.err != nil {
		return nil, l.err
	}
	return &entity.RateLimitDecision{Allowed: l.allow, MinutesToReset: l.minutes}, nil
}

func TestGenerateInsights(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	limiter := &limiterStub{allow: true}
	svc := service.NewInsightsService(env.moods, env.activity, limiter, 10)

	now := time.Now()
	dayOne := now.AddDate(0, 0, -2)
	dayTwo := now.AddDate(0, 0, -1)
	entries := []*entity.MoodEntry{
		{UserID: "u1", Mood: "Joy", Value: 80, Timestamp: dayOne},
		{UserID: "u1", Mood: "Joy", Value: 60, Timestamp: dayOne.Add(2 * time.Hour)},
		{UserID: "u1", Mood: "Fear", Value: 20, Timestamp: dayTwo},
	}
	for _, e := range entries {
		require.NoError(t, env.moods.Append(ctx, e))
	}

	t.Run("aggregates over the window", func(t *testing.T) {
		insights, err := svc.GenerateInsights(ctx, "u1", service.TimeframeWeek)
		require.NoError(t, err)
		require.NotNil(t, insights)
		assert.Equal(t, service.TimeframeWeek, insights.Timeframe)
		assert.Equal(t, 3, insights.EntryCount)
		assert.InDelta(t, 160.0/3.0, insights.Average, 1e-9)
		assert.InDelta(t, 70, insights.MoodAverages["Joy"], 1e-9)
		assert.InDelta(t, 20, insights.MoodAverages["Fear"], 1e-9)
		// topMood compares averages, not single peaks
		assert.Equal(t, "Joy", insights.TopMood)
		assert.Equal(t, "Joy", insights.HighestMood.Mood)
		assert.Equal(t, 80.0, insights.HighestMood.Value)
		assert.Equal(t, "Fear", insights.LowestMood.Mood)
		assert.Equal(t, 20.0, insights.LowestMood.Value)
		assert.InDelta(t, 70, insights.MoodsByDay[dayOne.Format(entity.DayFormat)], 1e-9)
		assert.InDelta(t, 20, insights.MoodsByDay[dayTwo.Format(entity.DayFormat)], 1e-9)
	})

	t.Run("no entries is a normal outcome", func(t *testing.T) {
		insights, err := svc.GenerateInsights(ctx, "nobody", service.TimeframeWeek)
		assert.NoError(t, err)
		assert.Nil(t, insights)
	})

	t.Run("invalid timeframe", func(t *testing.T) {
		_, err := svc.GenerateInsights(ctx, "u1", "fortnight")
		assert.ErrorIs(t, err, errorvalues.ErrInvalidTimeframe)
	})

	t.Run("rate limited", func(t *testing.T) {
		limiter.allow = false
		limiter.minutes = 90
		defer func() { limiter.allow = true }()
		_, err := svc.GenerateInsights(ctx, "u1", service.TimeframeWeek)
		var rateLimited *errorvalues.RateLimitedError
		require.ErrorAs(t, err, &rateLimited)
		assert.Equal(t, 90, rateLimited.MinutesToReset)
	})

	t.Run("limiter failure surfaces", func(t *testing.T) {
		limiter.err = errors.New("store down")
		defer func() { limiter.err = nil }()
		_, err := svc.GenerateInsights(ctx, "u1", service.TimeframeWeek)
		assert.Error(t, err)
	})
}

func TestGenerateInsightsTieBreak(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := service.NewInsightsService(env.moods, env.activity, &limiterStub{allow: true}, 10)
	now := time.Now()
	// equal averages: the mood seen first in chronological order wins
	entries := []*entity.MoodEntry{
		{UserID: "u1", Mood: "Calm", Value: 50, Timestamp: now.Add(-3 * time.Hour)},
		{UserID: "u1", Mood: "Joy", Value: 50, Timestamp: now.Add(-2 * time.Hour)},
	}
	for _, e := range entries {
		require.NoError(t, env.moods.Append(ctx, e))
	}
	insights, err := svc.GenerateInsights(ctx, "u1", service.TimeframeWeek)
	require.NoError(t, err)
	require.NotNil(t, insights)
	assert.Equal(t, "Calm", insights.TopMood)
}

func TestRecordMoodEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	svc := service.NewInsightsService(env.moods, env.activity, &limiterStub{allow: true}, 10)

	t.Run("stores entry and activity record", func(t *testing.T) {
		entry, err := svc.RecordMoodEntry(ctx, "u1", &service.RecordMoodRequest{
			Mood:            "Joy",
			Value:           75,
			DurationMinutes: 10,
			Factors:         []string{"sleep", "exercise"},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, entry.ID)
		assert.Equal(t, "Joy", entry.Mood)

		moods, err := env.moods.ByUserSince(ctx, "u1", entry.Timestamp.Add(-time.Minute))
		require.NoError(t, err)
		assert.Len(t, moods, 1)
		records, err := env.activity.ByUserAndDay(ctx, "u1", entry.Timestamp.Format(entity.DayFormat))
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, entity.ActivityMood, records[0].Type)
	})

	t.Run("rejects control characters in the label", func(t *testing.T) {
		_, err := svc.RecordMoodEntry(ctx, "u1", &service.RecordMoodRequest{Mood: "Jo\x00y", Value: 10})
		assert.Error(t, err)
	})

	t.Run("rejects empty label", func(t *testing.T) {
		_, err := svc.RecordMoodEntry(ctx, "u1", &service.RecordMoodRequest{Mood: "", Value: 10})
		assert.Error(t, err)
	})
}
