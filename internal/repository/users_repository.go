package repository

import (
	"context"
	"errors"
	"log"

	"github.com/limbo/serenity/internal/docstore"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/pkg/entity"
)

type UsersRepository struct {
	store docstore.Store
}

func NewUsersRepo(store docstore.Store) *UsersRepository {
	if store == nil {
		log.Fatal("provided nil store for usersRepo")
	}
	return &UsersRepository{
		store: store,
	}
}

func (ur *UsersRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	doc, err := ur.store.Get(ctx, CollectionUsers, id)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, errorvalues.ErrUserNotFound
		}
		return nil, errors.New("searching user by id error: " + err.Error())
	}
	var user entity.User
	if err := doc.Decode(&user); err != nil {
		return nil, errors.New("user document parsing error: " + err.Error())
	}
	user.ID = doc.ID
	return &user, nil
}

func (ur *UsersRepository) All(ctx context.Context) ([]*entity.User, error) {
	docs, err := ur.store.Query(ctx, CollectionUsers, docstore.Query{})
	if err != nil {
		return nil, errors.New("listing users error: " + err.Error())
	}
	result := make([]*entity.User, 0, len(docs))
	for _, doc := range docs {
		var user entity.User
		if err := doc.Decode(&user); err != nil {
			return nil, errors.New("user document parsing error: " + err.Error())
		}
		user.ID = doc.ID
		result = append(result, &user)
	}
	return result, nil
}

func (ur *UsersRepository) RegisterExerciseCompleted(ctx context.Context, id, day string) error {
	err := ur.store.AtomicIncrement(ctx, CollectionUsers, id, "stats.exercisesCompleted", 1)
	if err != nil {
		return errors.New("incrementing exercises completed error: " + err.Error())
	}
	err = ur.store.Set(ctx, CollectionUsers, id, map[string]any{
		"stats": map[string]any{"lastActiveDate": day},
	}, true)
	if err != nil {
		return errors.New("refreshing last active date error: " + err.Error())
	}
	return nil
}

func (ur *UsersRepository) UpdateStreak(ctx context.Context, id string, streak int, lastActiveDate string) error {
	err := ur.store.Set(ctx, CollectionUsers, id, map[string]any{
		"stats": map[string]any{
			"streak":         streak,
			"lastActiveDate": lastActiveDate,
		},
	}, true)
	if err != nil {
		return errors.New("updating streak error: " + err.Error())
	}
	return nil
}
