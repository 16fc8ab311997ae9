package service

import (
	"context"
	"errors"
	"log"

	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
)

type RadarService struct {
	users   repository.UsersRepositoryI
	catalog repository.CatalogRepositoryI
}

func NewRadarService(users repository.UsersRepositoryI, catalog repository.CatalogRepositoryI) *RadarService {
	if users == nil || catalog == nil {
		log.Fatal("on radar service provided nil repos")
	}
	return &RadarService{
		users:   users,
		catalog: catalog,
	}
}

// GetCategoryDistribution charts the static category composition of the
// assigned template, not the user's completion progress within it. Every
// known category appears exactly once, in display order, so the polygon
// keeps a constant vertex count across calls.
func (rs *RadarService) GetCategoryDistribution(ctx context.Context, userID string) ([]entity.CategoryScore, error) {
	user, err := rs.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("users repository error: " + err.Error())
	}
	if user.TemplateID == "" {
		return nil, errorvalues.ErrNoTemplateAssigned
	}
	tmpl, err := rs.catalog.GetTemplate(ctx, user.TemplateID)
	if err != nil {
		if errors.Is(err, errorvalues.ErrTemplateNotFound) {
			return nil, err
		}
		return nil, errors.New("catalog repository error: " + err.Error())
	}
	if len(tmpl.ExerciseIDs) == 0 {
		return nil, errorvalues.ErrEmptyTemplate
	}
	exercises, err := rs.catalog.GetExercises(ctx, tmpl.ExerciseIDs)
	if err != nil {
		return nil, errors.New("catalog repository error: " + err.Error())
	}
	counts := make(map[string]int)
	total := 0
	for _, ex := range exercises {
		if ex.CategoryID == "" {
			continue
		}
		counts[ex.CategoryID]++
		total++
	}
	if total == 0 {
		return nil, errorvalues.ErrEmptyTemplate
	}
	categories, err := rs.catalog.ListCategories(ctx)
	if err != nil {
		return nil, errors.New("catalog repository error: " + err.Error())
	}
	result := make([]entity.CategoryScore, 0, len(categories))
	for _, cat := range categories {
		result = append(result, entity.CategoryScore{
			Label: cat.Label,
			Value: float64(counts[cat.ID]) / float64(total),
		})
	}
	return result, nil
}
