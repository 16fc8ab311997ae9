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

const (
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
	TimeframeYear  = "year"

	// OperationGenerateInsights keys the rate-limit counter for insight
	// generation.
	OperationGenerateInsights = "generate_insights"

	DefaultInsightsPerDay = 10
)

type InsightsService struct {
	moods     repository.MoodRepositoryI
	activity  repository.ActivityRepositoryI
	limiter   RateLimiterI
	maxPerDay int
}

func NewInsightsService(moods repository.MoodRepositoryI, activity repository.ActivityRepositoryI, limiter RateLimiterI, maxPerDay int) *InsightsService {
	if moods == nil || activity == nil || limiter == nil {
		log.Fatal("on insights service provided nil dependencies")
	}
	if maxPerDay <= 0 {
		maxPerDay = DefaultInsightsPerDay
	}
	return &InsightsService{
		moods:     moods,
		activity:  activity,
		limiter:   limiter,
		maxPerDay: maxPerDay,
	}
}

func (is *InsightsService) GenerateInsights(ctx context.Context, userID, timeframe string) (*entity.Insights, error) {
	if err := validate.Struct(insightsParams{Timeframe: timeframe}); err != nil {
		return nil, errorvalues.ErrInvalidTimeframe
	}
	decision, err := is.limiter.CheckAndRecord(ctx, userID, OperationGenerateInsights, is.maxPerDay)
	if err != nil {
		return nil, errors.New("rate limiter error: " + err.Error())
	}
	if !decision.Allowed {
		observability.RecordInsightsDenied()
		return nil, &errorvalues.RateLimitedError{MinutesToReset: decision.MinutesToReset}
	}
	since := windowStart(timeframe, time.Now())
	entries, err := is.moods.ByUserSince(ctx, userID, since)
	if err != nil {
		return nil, errors.New("mood repository error: " + err.Error())
	}
	observability.RecordInsightsGenerated()
	if len(entries) == 0 {
		// normal outcome, rendered as "not enough data"
		return nil, nil
	}
	return computeInsights(timeframe, entries), nil
}

func windowStart(timeframe string, now time.Time) time.Time {
	switch timeframe {
	case TimeframeMonth:
		return now.AddDate(0, -1, 0)
	case TimeframeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// computeInsights expects entries ordered oldest first; first occurrence
// wins every tie.
func computeInsights(timeframe string, entries []*entity.MoodEntry) *entity.Insights {
	insights := &entity.Insights{
		Timeframe:    timeframe,
		EntryCount:   len(entries),
		MoodAverages: make(map[string]float64),
		MoodsByDay:   make(map[string]float64),
	}
	var (
		sum        float64
		moodSums   = make(map[string]float64)
		moodCounts = make(map[string]int)
		moodOrder  []string
		daySums    = make(map[string]float64)
		dayCounts  = make(map[string]int)
		highest    = entries[0]
		lowest     = entries[0]
	)
	for _, e := range entries {
		sum += e.Value
		if _, seen := moodCounts[e.Mood]; !seen {
			moodOrder = append(moodOrder, e.Mood)
		}
		moodSums[e.Mood] += e.Value
		moodCounts[e.Mood]++
		day := e.Timestamp.Format(entity.DayFormat)
		daySums[day] += e.Value
		dayCounts[day]++
		if e.Value > highest.Value {
			highest = e
		}
		if e.Value < lowest.Value {
			lowest = e
		}
	}
	insights.Average = sum / float64(len(entries))
	for mood, total := range moodSums {
		insights.MoodAverages[mood] = total / float64(moodCounts[mood])
	}
	for day, total := range daySums {
		insights.MoodsByDay[day] = total / float64(dayCounts[day])
	}
	// topMood is the label with the best average, not the best single
	// value; ties resolve to the label seen first
	for _, mood := range moodOrder {
		if insights.TopMood == "" || insights.MoodAverages[mood] > insights.MoodAverages[insights.TopMood] {
			insights.TopMood = mood
		}
	}
	insights.HighestMood = entity.MoodPoint{Mood: highest.Mood, Value: highest.Value, Timestamp: highest.Timestamp}
	insights.LowestMood = entity.MoodPoint{Mood: lowest.Mood, Value: lowest.Value, Timestamp: lowest.Timestamp}
	return insights
}

func (is *InsightsService) RecordMoodEntry(ctx context.Context, userID string, req *RecordMoodRequest) (*entity.MoodEntry, error) {
	if err := validate.Struct(*req); err != nil {
		return nil, errors.New("invalid mood entry: " + err.Error())
	}
	now := time.Now()
	entry := &entity.MoodEntry{
		UserID:          userID,
		Mood:            req.Mood,
		Value:           req.Value,
		DurationMinutes: req.DurationMinutes,
		Timestamp:       now,
		Factors:         req.Factors,
		Note:            req.Note,
	}
	if err := is.moods.Append(ctx, entry); err != nil {
		return nil, errors.New("mood repository error: " + err.Error())
	}
	// activity logging is best-effort, the entry itself is already saved
	if err := is.activity.Append(ctx, &entity.ActivityRecord{
		UserID:          userID,
		Type:            entity.ActivityMood,
		Title:           req.Mood,
		DurationMinutes: req.DurationMinutes,
		Timestamp:       now,
	}); err != nil {
		slog.Warn("mood entry: activity logging failed",
			slog.String("uid", userID), slog.String("error", err.Error()))
	}
	return entry, nil
}
