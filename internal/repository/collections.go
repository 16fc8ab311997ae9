package repository

// Document collections used by the engine. Completed-exercise records,
// template completions and rate-limit counters use composite ids built
// with DocKey.
const (
	CollectionUsers               = "users"
	CollectionExercises           = "exercises"
	CollectionCategories          = "exercise_categories"
	CollectionTemplates           = "exercise_templates"
	CollectionProgress            = "progress_overviews"
	CollectionCompletedExercises  = "completed_exercises"
	CollectionTemplateCompletions = "template_completions"
	CollectionActivity            = "activity_records"
	CollectionMoods               = "mood_entries"
	CollectionRateLimits          = "rate_limits"
	CollectionDailyStats          = "daily_stats"
)

func DocKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += "_"
		}
		key += p
	}
	return key
}
