package repository

import (
	"context"
	"errors"
	"log"

	"github.com/limbo/serenity/internal/docstore"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/pkg/entity"
)

type SnapshotsRepository struct {
	store docstore.Store
}

func NewSnapshotsRepo(store docstore.Store) *SnapshotsRepository {
	if store == nil {
		log.Fatal("provided nil store for snapshotsRepo")
	}
	return &SnapshotsRepository{
		store: store,
	}
}

func (sr *SnapshotsRepository) Get(ctx context.Context, date string) (*entity.DailyStatsSnapshot, error) {
	doc, err := sr.store.Get(ctx, CollectionDailyStats, date)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.New("getting daily snapshot error: " + err.Error())
	}
	var snap entity.DailyStatsSnapshot
	if err := doc.Decode(&snap); err != nil {
		return nil, errors.New("daily snapshot parsing error: " + err.Error())
	}
	return &snap, nil
}

func (sr *SnapshotsRepository) Write(ctx context.Context, snap *entity.DailyStatsSnapshot, force bool) error {
	if snap == nil || snap.Date == "" {
		return errors.New("snapshot must carry a date")
	}
	if !force {
		existing, err := sr.Get(ctx, snap.Date)
		if err != nil {
			return err
		}
		if existing != nil {
			return errorvalues.ErrSnapshotExists
		}
	}
	err := sr.store.Set(ctx, CollectionDailyStats, snap.Date, snap, false)
	if err != nil {
		return errors.New("writing daily snapshot error: " + err.Error())
	}
	return nil
}
