package entity

import (
	"time"
)

// DayFormat is the layout for day-bucket strings used across streaks,
// activity records and daily snapshots.
const DayFormat = "2006-01-02"

type UserStats struct {
	Streak             int    `json:"streak"`
	LastActiveDate     string `json:"lastActiveDate,omitempty"`
	ExercisesCompleted int    `json:"exercisesCompleted"`
	SurveysCompleted   int    `json:"surveysCompleted"`
}

type User struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	TemplateID string    `json:"templateId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	Stats      UserStats `json:"stats"`
}

// Exercise is read-only catalog data. Order positions the exercise inside
// its template, CategoryID references a single ExerciseCategory.
type Exercise struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	CategoryID      string `json:"categoryId"`
	DurationMinutes int    `json:"durationMinutes"`
	Order           int    `json:"order"`
}

type ExerciseCategory struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Order int    `json:"order"`
}

// ExerciseTemplate carries the normalized ordered exercise-id list. The
// stored document may keep the list as a native array or a delimited
// string; the catalog repository parses both into ExerciseIDs.
type ExerciseTemplate struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	ExerciseIDs []string `json:"exerciseIds"`
}

type ProgressOverview struct {
	UserID      string         `json:"userId"`
	Categories  map[string]int `json:"categories"`
	Overall     float64        `json:"overall"`
	LastUpdated time.Time      `json:"lastUpdated"`
}

// CompletedExerciseRecord existence is the source of truth for "is this
// exercise done". One record per (user, exercise).
type CompletedExerciseRecord struct {
	UserID      string    `json:"userId"`
	ExerciseID  string    `json:"exerciseId"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completedAt"`
}

// TemplateCompletion keeps the recomputed progress of a user through the
// assigned template. CompletedAt is set on the first full completion and
// never cleared afterwards.
type TemplateCompletion struct {
	UserID             string     `json:"userId"`
	TemplateID         string     `json:"templateId"`
	ExercisesCompleted int        `json:"exercisesCompleted"`
	TotalExercises     int        `json:"totalExercises"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
}

type ActivityType string

const (
	ActivityExercise   ActivityType = "exercise"
	ActivityMeditation ActivityType = "meditation"
	ActivitySurvey     ActivityType = "survey"
	ActivityMood       ActivityType = "mood"
)

// ActivityRecord is append-only. Day is the derived day-bucket of
// Timestamp and is what the streak job queries by.
type ActivityRecord struct {
	ID              string       `json:"id"`
	UserID          string       `json:"userId"`
	Type            ActivityType `json:"type"`
	Title           string       `json:"title,omitempty"`
	DurationMinutes int          `json:"durationMinutes,omitempty"`
	Timestamp       time.Time    `json:"timestamp"`
	Day             string       `json:"day"`
}

type MoodEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	Mood            string    `json:"mood"`
	Value           float64   `json:"value"`
	DurationMinutes int       `json:"durationMinutes,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
	Factors         []string  `json:"factors,omitempty"`
	Note            string    `json:"note,omitempty"`
}

// RateLimitCounter holds the sliding-window call timestamps for one
// (user, operation) pair. Mutated only inside a store transaction.
type RateLimitCounter struct {
	Calls     []time.Time `json:"calls"`
	LastReset time.Time   `json:"lastReset"`
}

type RateLimitDecision struct {
	Allowed        bool `json:"allowed"`
	MinutesToReset int  `json:"minutesToReset"`
}

// DailyStatsSnapshot is written once per calendar date by the daily
// aggregation job.
type DailyStatsSnapshot struct {
	Date               string    `json:"date"`
	ActiveUsers        int       `json:"activeUsers"`
	NewUsers           int       `json:"newUsers"`
	MeditationMinutes  int       `json:"meditationMinutes"`
	ExercisesCompleted int       `json:"exercisesCompleted"`
	SurveysCompleted   int       `json:"surveysCompleted"`
	CreatedAt          time.Time `json:"createdAt"`
}

// CategoryScore is one radar axis. The full slice always carries every
// known category in display order, zero-valued axes included.
type CategoryScore struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

type MoodPoint struct {
	Mood      string    `json:"mood"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Insights struct {
	Timeframe    string             `json:"timeframe"`
	EntryCount   int                `json:"entryCount"`
	Average      float64            `json:"average"`
	MoodAverages map[string]float64 `json:"moodAverages"`
	TopMood      string             `json:"topMood"`
	HighestMood  MoodPoint          `json:"highestMood"`
	LowestMood   MoodPoint          `json:"lowestMood"`
	MoodsByDay   map[string]float64 `json:"moodsByDay"`
}
