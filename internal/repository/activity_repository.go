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

type ActivityRepository struct {
	store docstore.Store
}

func NewActivityRepo(store docstore.Store) *ActivityRepository {
	if store == nil {
		log.Fatal("provided nil store for activityRepo")
	}
	return &ActivityRepository{
		store: store,
	}
}

func (ar *ActivityRepository) Append(ctx context.Context, rec *entity.ActivityRecord) error {
	if rec == nil {
		return errors.New("activity record is nil")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	if rec.Day == "" {
		rec.Day = rec.Timestamp.Format(entity.DayFormat)
	}
	err := ar.store.Set(ctx, CollectionActivity, rec.ID, rec, false)
	if err != nil {
		return errors.New("appending activity record error: " + err.Error())
	}
	return nil
}

func (ar *ActivityRepository) ByUserAndDay(ctx context.Context, userID, day string) ([]*entity.ActivityRecord, error) {
	docs, err := ar.store.Query(ctx, CollectionActivity, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "userId", Op: docstore.OpEqual, Value: userID},
			{Field: "day", Op: docstore.OpEqual, Value: day},
		},
	})
	if err != nil {
		return nil, errors.New("getting activity for day error: " + err.Error())
	}
	result := make([]*entity.ActivityRecord, 0, len(docs))
	for _, doc := range docs {
		var rec entity.ActivityRecord
		if err := doc.Decode(&rec); err != nil {
			return nil, errors.New("activity record parsing error: " + err.Error())
		}
		rec.ID = doc.ID
		result = append(result, &rec)
	}
	return result, nil
}
