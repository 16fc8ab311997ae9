package service

import (
	"context"
	"errors"
	"log"
	"math"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	"github.com/limbo/serenity/internal/repository"
	"github.com/limbo/serenity/pkg/entity"
)

const rateLimitWindow = 24 * time.Hour

// RateLimitService counts calls per (user, operation) over a sliding
// 24h window. The filter-decide-write sequence runs inside one store
// transaction, so two concurrent calls can never both take the last slot.
type RateLimitService struct {
	store docstore.Store
}

func NewRateLimitService(store docstore.Store) *RateLimitService {
	if store == nil {
		log.Fatal("on rate limit service provided nil store")
	}
	return &RateLimitService{
		store: store,
	}
}

func (rl *RateLimitService) CheckAndRecord(ctx context.Context, userID, operation string, maxPerDay int) (*entity.RateLimitDecision, error) {
	if maxPerDay <= 0 {
		// non-positive quota means the operation is not limited
		return &entity.RateLimitDecision{Allowed: true}, nil
	}
	key := repository.DocKey(userID, operation)
	decision := &entity.RateLimitDecision{}
	err := rl.store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		var counter entity.RateLimitCounter
		doc, err := tx.Get(ctx, repository.CollectionRateLimits, key)
		switch {
		case err == nil:
			if err := doc.Decode(&counter); err != nil {
				return errors.New("rate limit counter parsing error: " + err.Error())
			}
		case errors.Is(err, docstore.ErrNotFound):
		default:
			return err
		}
		now := time.Now()
		windowStart := now.Add(-rateLimitWindow)
		kept := counter.Calls[:0]
		for _, call := range counter.Calls {
			if call.After(windowStart) {
				kept = append(kept, call)
			}
		}
		if len(kept) >= maxPerDay {
			oldest := kept[0]
			for _, call := range kept[1:] {
				if call.Before(oldest) {
					oldest = call
				}
			}
			decision.Allowed = false
			decision.MinutesToReset = int(math.Ceil(oldest.Add(rateLimitWindow).Sub(now).Minutes()))
			// denied calls never append, the read state is left as is
			return nil
		}
		if len(kept) == 0 {
			counter.LastReset = now
		}
		counter.Calls = append(kept, now)
		decision.Allowed = true
		return tx.Set(ctx, repository.CollectionRateLimits, key, counter, false)
	})
	if err != nil {
		return nil, errors.New("rate limit transaction error: " + err.Error())
	}
	return decision, nil
}
