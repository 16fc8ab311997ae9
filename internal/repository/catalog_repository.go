package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/limbo/serenity/internal/docstore"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/pkg/entity"
)

// CatalogRepository serves the read-only reference data: exercises,
// categories and templates.
type CatalogRepository struct {
	store docstore.Store
}

func NewCatalogRepo(store docstore.Store) *CatalogRepository {
	if store == nil {
		log.Fatal("provided nil store for catalogRepo")
	}
	return &CatalogRepository{
		store: store,
	}
}

func (cr *CatalogRepository) GetExercise(ctx context.Context, id string) (*entity.Exercise, error) {
	doc, err := cr.store.Get(ctx, CollectionExercises, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, errorvalues.ErrExerciseNotFound
		}
		return nil, errors.New("searching exercise by id error: " + err.Error())
	}
	var ex entity.Exercise
	if err := doc.Decode(&ex); err != nil {
		return nil, errors.New("exercise document parsing error: " + err.Error())
	}
	ex.ID = doc.ID
	return &ex, nil
}

func (cr *CatalogRepository) GetExercises(ctx context.Context, ids []string) ([]*entity.Exercise, error) {
	result := make([]*entity.Exercise, 0, len(ids))
	for _, id := range ids {
		ex, err := cr.GetExercise(ctx, id)
		if err != nil {
			// stale template references are tolerated, everything else is not
			if errors.Is(err, errorvalues.ErrExerciseNotFound) {
				continue
			}
			return nil, err
		}
		result = append(result, ex)
	}
	return result, nil
}

func (cr *CatalogRepository) ListCategories(ctx context.Context) ([]*entity.ExerciseCategory, error) {
	docs, err := cr.store.Query(ctx, CollectionCategories, docstore.Query{
		OrderBy:   "order",
		OrderKind: docstore.SortNumeric,
	})
	if err != nil {
		return nil, errors.New("listing categories error: " + err.Error())
	}
	result := make([]*entity.ExerciseCategory, 0, len(docs))
	for _, doc := range docs {
		var cat entity.ExerciseCategory
		if err := doc.Decode(&cat); err != nil {
			return nil, errors.New("category document parsing error: " + err.Error())
		}
		cat.ID = doc.ID
		result = append(result, &cat)
	}
	return result, nil
}

// templateDoc is the raw storage shape: the exercise list is sometimes a
// native array and sometimes a delimited string.
type templateDoc struct {
	Name      string `json:"name"`
	Exercises any    `json:"exercises"`
}

func (cr *CatalogRepository) GetTemplate(ctx context.Context, id string) (*entity.ExerciseTemplate, error) {
	doc, err := cr.store.Get(ctx, CollectionTemplates, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, errorvalues.ErrTemplateNotFound
		}
		return nil, errors.New("searching template by id error: " + err.Error())
	}
	var raw templateDoc
	if err := doc.Decode(&raw); err != nil {
		return nil, errors.New("template document parsing error: " + err.Error())
	}
	return &entity.ExerciseTemplate{
		ID:          doc.ID,
		Name:        raw.Name,
		ExerciseIDs: normalizeExerciseIDs(raw.Exercises),
	}, nil
}

// normalizeExerciseIDs accepts both storage shapes of a template's
// exercise list and emits one trimmed, ordered id slice.
func normalizeExerciseIDs(raw any) []string {
	switch v := raw.(type) {
	case []any:
		ids := make([]string, 0, len(v))
		for _, item := range v {
			id := strings.TrimSpace(fmt.Sprint(item))
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	case string:
		parts := strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ';'
		})
		ids := make([]string, 0, len(parts))
		for _, part := range parts {
			id := strings.TrimSpace(part)
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids
	default:
		return nil
	}
}
