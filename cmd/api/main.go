// @title Serenity Progress API
// @description Progress and analytics aggregation API for the wellness app "Serenity"
// @BasePath /api/v1
// @schemes http
package main

import (
	"context"
	"log"
	"time"

	"github.com/limbo/serenity/internal/api"
	"github.com/limbo/serenity/internal/cache"
	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/internal/jobs"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/internal/service"
	"github.com/limbo/serenity/pkg/cleanup"
	"github.com/limbo/serenity/pkg/config"
	jwtservice "github.com/limbo/serenity/pkg/jwt_service"
	"github.com/redis/go-redis/v9"
)

func init() {
	service.InitValidator()
}

func main() {
	defer cleanup.CleanUp()
	cfg := config.New()
	store := docstore.NewPostgresStore(&docstore.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	})
	if err := store.EnsureSchema(context.Background()); err != nil {
		log.Fatal("ensuring schema error: " + err.Error())
	}

	usersRepo := repository.NewUsersRepo(store)
	progressRepo := repository.NewProgressRepo(store)
	activityRepo := repository.NewActivityRepo(store)
	moodRepo := repository.NewMoodRepo(store)
	snapshotsRepo := repository.NewSnapshotsRepo(store)
	var catalogRepo repository.CatalogRepositoryI = repository.NewCatalogRepo(store)
	if addr := cfg.GetString("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.GetString("REDIS_PASSWORD"),
		})
		catalogRepo = cache.NewCatalogCache(catalogRepo, client, 10*time.Minute)
	}

	limiter := service.NewRateLimitService(store)
	completionService := service.NewCompletionService(usersRepo, catalogRepo, progressRepo, activityRepo)
	radarService := service.NewRadarService(usersRepo, catalogRepo)
	insightsService := service.NewInsightsService(moodRepo, activityRepo, limiter,
		cfg.GetInt("INSIGHTS_MAX_PER_DAY", service.DefaultInsightsPerDay))
	userService := service.NewUserService(usersRepo, progressRepo)

	job := jobs.NewAggregationJob(usersRepo, activityRepo, snapshotsRepo)
	jobs.NewScheduler(job, cfg.GetInt("AGGREGATION_HOUR", 2)).Start()

	serv := api.New(&api.ServicesList{
		UserService:       userService,
		CompletionService: completionService,
		RadarService:      radarService,
		InsightsService:   insightsService,
		Aggregation:       job,
		JwtService:        jwtservice.New(cfg.GetString("JWT_SECRET")),
		IPRequestsPerMin:  cfg.GetInt("IP_REQUESTS_PER_MIN", 60),
	})
	err := serv.Run(cfg.GetString("API_ADDRESS"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
}
