package errorvalues

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound       = errors.New("user doesn't exists")
	ErrExerciseNotFound   = errors.New("exercise doesn't exists")
	ErrTemplateNotFound   = errors.New("exercise template doesn't exists")
	ErrNoTemplateAssigned = errors.New("user has no assigned template")
	ErrEmptyTemplate      = errors.New("assigned template has no exercises")
	ErrSnapshotExists     = errors.New("daily snapshot for this date already exists")
	ErrInvalidTimeframe   = errors.New("timeframe must be one of week, month, year")
	ErrInvalidToken       = errors.New("invalid token")
	ErrStoreUnavailable   = errors.New("document store unavailable")
)

// RateLimitedError is returned when a per-user operation quota is
// exhausted. MinutesToReset tells the caller when the oldest window
// entry expires.
type RateLimitedError struct {
	MinutesToReset int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry in %d minutes", e.MinutesToReset)
}
