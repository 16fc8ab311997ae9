package api

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/limbo/serenity/pkg/entity"
)

type JWTServiceI interface {
	GenerateToken(user *entity.User) (string, error)
	ParseToken(tokenString string) (*JWTClaims, error)
}

type JWTClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// AggregationRunnerI lets the ops endpoint trigger the daily job.
type AggregationRunnerI interface {
	RunDailyAggregation(ctx context.Context) (*entity.DailyStatsSnapshot, error)
	RunForDate(ctx context.Context, date string, force bool) (*entity.DailyStatsSnapshot, error)
}
