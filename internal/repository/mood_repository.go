package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/pkg/entity"
)

type MoodRepository struct {
	store docstore.Store
}

func NewMoodRepo(store docstore.Store) *MoodRepository {
	if store == nil {
		log.Fatal("provided nil store for moodRepo")
	}
	return &MoodRepository{
		store: store,
	}
}

func (mr *MoodRepository) Append(ctx context.Context, m *entity.MoodEntry) error {
	if m == nil {
		return errors.New("mood entry is nil")
	}
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	err := mr.store.Set(ctx, CollectionMoods, m.ID, m, false)
	if err != nil {
		return errors.New("appending mood entry error: " + err.Error())
	}
	return nil
}

func (mr *MoodRepository) ByUserSince(ctx context.Context, userID string, since time.Time) ([]*entity.MoodEntry, error) {
	docs, err := mr.store.Query(ctx, CollectionMoods, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "userId", Op: docstore.OpEqual, Value: userID},
			{Field: "timestamp", Op: docstore.OpGreaterOrEqual, Value: since},
		},
		OrderBy:   "timestamp",
		OrderKind: docstore.SortTime,
	})
	if err != nil {
		return nil, errors.New("getting mood entries error: " + err.Error())
	}
	result := make([]*entity.MoodEntry, 0, len(docs))
	for _, doc := range docs {
		var m entity.MoodEntry
		if err := doc.Decode(&m); err != nil {
			return nil, errors.New("mood entry parsing error: " + err.Error())
		}
		m.ID = doc.ID
		result = append(result, &m)
	}
	return result, nil
}
