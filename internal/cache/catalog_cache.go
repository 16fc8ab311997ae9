// Package cache provides a redis read-through layer in front of the
// catalog repository. The catalog is read-mostly reference data, so a
// plain TTL without invalidation is enough; every cache failure falls
// through to the repository.
package cache

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"time"

	"github.com/bytedance/sonic"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL   = time.Hour
	redisTimeout = 2 * time.Second

	exerciseKeyPrefix = "catalog:exercise:"
	templateKeyPrefix = "catalog:template:"
	categoriesKey     = "catalog:categories"
)

type CatalogCache struct {
	inner  repository.CatalogRepositoryI
	client *redis.Client
	ttl    time.Duration
}

func NewCatalogCache(inner repository.CatalogRepositoryI, client *redis.Client, ttl time.Duration) *CatalogCache {
	if inner == nil || client == nil {
		log.Fatal("on catalog cache provided nil dependencies")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &CatalogCache{
		inner:  inner,
		client: client,
		ttl:    ttl,
	}
}

func (cc *CatalogCache) GetExercise(ctx context.Context, id string) (*entity.Exercise, error) {
	var ex entity.Exercise
	if cc.getJSON(ctx, exerciseKeyPrefix+id, &ex) {
		return &ex, nil
	}
	fresh, err := cc.inner.GetExercise(ctx, id)
	if err != nil {
		return nil, err
	}
	cc.setJSON(ctx, exerciseKeyPrefix+id, fresh)
	return fresh, nil
}

func (cc *CatalogCache) GetExercises(ctx context.Context, ids []string) ([]*entity.Exercise, error) {
	result := make([]*entity.Exercise, 0, len(ids))
	for _, id := range ids {
		ex, err := cc.GetExercise(ctx, id)
		if err != nil {
			// stale template references are tolerated here like in the
			// underlying repository
			if errors.Is(err, errorvalues.ErrExerciseNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, ex)
	}
	return result, nil
}

func (cc *CatalogCache) ListCategories(ctx context.Context) ([]*entity.ExerciseCategory, error) {
	var cats []*entity.ExerciseCategory
	if cc.getJSON(ctx, categoriesKey, &cats) {
		return cats, nil
	}
	fresh, err := cc.inner.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	cc.setJSON(ctx, categoriesKey, fresh)
	return fresh, nil
}

func (cc *CatalogCache) GetTemplate(ctx context.Context, id string) (*entity.ExerciseTemplate, error) {
	var tmpl entity.ExerciseTemplate
	if cc.getJSON(ctx, templateKeyPrefix+id, &tmpl) {
		return &tmpl, nil
	}
	fresh, err := cc.inner.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	cc.setJSON(ctx, templateKeyPrefix+id, fresh)
	return fresh, nil
}

func (cc *CatalogCache) getJSON(ctx context.Context, key string, v any) bool {
	rctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	raw, err := cc.client.Get(rctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("catalog cache get failed", slog.String("key", key), slog.String("error", err.Error()))
		}
		return false
	}
	if err := sonic.Unmarshal(raw, v); err != nil {
		slog.Warn("catalog cache entry corrupt", slog.String("key", key))
		return false
	}
	return true
}

func (cc *CatalogCache) setJSON(ctx context.Context, key string, v any) {
	raw, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	rctx, cancel := context.WithTimeout(ctx, redisTimeout)
	defer cancel()
	if err := cc.client.Set(rctx, key, raw, cc.ttl).Err(); err != nil {
		slog.Warn("catalog cache set failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}
