package service

import (
	"context"
	"errors"
	"log"

	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
)

type UserService struct {
	users    repository.UsersRepositoryI
	progress repository.ProgressRepositoryI
}

func NewUserService(users repository.UsersRepositoryI, progress repository.ProgressRepositoryI) *UserService {
	if users == nil || progress == nil {
		log.Fatal("on user service provided nil repos")
	}
	return &UserService{
		users:    users,
		progress: progress,
	}
}

func (us *UserService) GetByID(ctx context.Context, id string) (*entity.User, error) {
	user, err := us.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errorvalues.ErrUserNotFound) {
			return nil, err
		}
		return nil, errors.New("users repository error: " + err.Error())
	}
	return user, nil
}

func (us *UserService) GetStats(ctx context.Context, id string) (*UserStatsResult, error) {
	user, err := us.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	overview, err := us.progress.GetOverview(ctx, id)
	if err != nil {
		return nil, errors.New("progress repository error: " + err.Error())
	}
	return &UserStatsResult{
		Stats:    user.Stats,
		Overview: overview,
	}, nil
}
