// One-shot runner for the daily aggregation job, meant for cron and
// operational re-runs.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/internal/jobs"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/cleanup"
	"github.com/limbo/serenity/pkg/config"
	"github.com/limbo/serenity/pkg/entity"
)

func main() {
	defer cleanup.CleanUp()
	date := flag.String("date", "", "day to aggregate as YYYY-MM-DD, defaults to yesterday")
	force := flag.Bool("force", false, "overwrite an existing snapshot for the day")
	flag.Parse()

	cfg := config.New()
	store := docstore.NewPostgresStore(&docstore.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	})

	job := jobs.NewAggregationJob(
		repository.NewUsersRepo(store),
		repository.NewActivityRepo(store),
		repository.NewSnapshotsRepo(store),
	)

	target := *date
	if target == "" {
		target = time.Now().AddDate(0, 0, -1).Format(entity.DayFormat)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()
	snap, err := job.RunForDate(ctx, target, *force)
	if err != nil {
		log.Fatal("aggregation run error: " + err.Error())
	}
	log.Printf("aggregated %s: active=%d new=%d exercises=%d surveys=%d meditation_min=%d",
		snap.Date, snap.ActiveUsers, snap.NewUsers, snap.ExercisesCompleted, snap.SurveysCompleted, snap.MeditationMinutes)
}
