package docstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/limbo/serenity/internal/docstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	t.Run("not found", func(t *testing.T) {
		_, err := store.Get(ctx, "users", "missing")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
	t.Run("set and get", func(t *testing.T) {
		err := store.Set(ctx, "users", "u1", map[string]any{"name": "anna"}, false)
		require.NoError(t, err)
		doc, err := store.Get(ctx, "users", "u1")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, "anna", got["name"])
	})
	t.Run("non-map value rejected", func(t *testing.T) {
		err := store.Set(ctx, "users", "u1", []string{"not", "an", "object"}, false)
		assert.Error(t, err)
	})
	t.Run("replace drops old fields", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "users", "u2", map[string]any{"a": 1, "b": 2}, false))
		require.NoError(t, store.Set(ctx, "users", "u2", map[string]any{"a": 3}, false))
		doc, err := store.Get(ctx, "users", "u2")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, float64(3), got["a"])
		assert.NotContains(t, got, "b")
	})
}

func TestMemoryMerge(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{
		"name": "anna",
		"stats": map[string]any{
			"streak":             4,
			"exercisesCompleted": 10,
		},
	}, false))
	// nested objects merge key by key, untouched siblings survive
	require.NoError(t, store.Set(ctx, "users", "u1", map[string]any{
		"stats": map[string]any{"lastActiveDate": "2026-08-27"},
	}, true))
	doc, err := store.Get(ctx, "users", "u1")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, doc.Decode(&got))
	assert.Equal(t, "anna", got["name"])
	stats := got["stats"].(map[string]any)
	assert.Equal(t, float64(4), stats["streak"])
	assert.Equal(t, float64(10), stats["exercisesCompleted"])
	assert.Equal(t, "2026-08-27", stats["lastActiveDate"])
}

func TestMemoryAtomicIncrement(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	t.Run("creates document and parents", func(t *testing.T) {
		require.NoError(t, store.AtomicIncrement(ctx, "progress", "u1", "categories.breathing", 1))
		require.NoError(t, store.AtomicIncrement(ctx, "progress", "u1", "categories.breathing", 1))
		doc, err := store.Get(ctx, "progress", "u1")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, doc.Decode(&got))
		cats := got["categories"].(map[string]any)
		assert.Equal(t, float64(2), cats["breathing"])
	})
	t.Run("sibling counters stay independent", func(t *testing.T) {
		require.NoError(t, store.AtomicIncrement(ctx, "progress", "u1", "categories.mindfulness", 5))
		doc, err := store.Get(ctx, "progress", "u1")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, doc.Decode(&got))
		cats := got["categories"].(map[string]any)
		assert.Equal(t, float64(2), cats["breathing"])
		assert.Equal(t, float64(5), cats["mindfulness"])
	})
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	records := []map[string]any{
		{"userId": "u1", "value": 80, "timestamp": base.Format(time.RFC3339Nano)},
		{"userId": "u1", "value": 20, "timestamp": base.AddDate(0, 0, 1).Format(time.RFC3339Nano)},
		{"userId": "u2", "value": 50, "timestamp": base.AddDate(0, 0, 2).Format(time.RFC3339Nano)},
	}
	for i, rec := range records {
		require.NoError(t, store.Set(ctx, "moods", string(rune('a'+i)), rec, false))
	}
	t.Run("equality filter", func(t *testing.T) {
		docs, err := store.Query(ctx, "moods", docstore.Query{
			Filters: []docstore.Filter{{Field: "userId", Op: docstore.OpEqual, Value: "u1"}},
		})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
	t.Run("time filter is inclusive", func(t *testing.T) {
		docs, err := store.Query(ctx, "moods", docstore.Query{
			Filters: []docstore.Filter{{Field: "timestamp", Op: docstore.OpGreaterOrEqual, Value: base.AddDate(0, 0, 1)}},
		})
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})
	t.Run("numeric ordering descending with limit", func(t *testing.T) {
		docs, err := store.Query(ctx, "moods", docstore.Query{
			OrderBy:    "value",
			OrderKind:  docstore.SortNumeric,
			Descending: true,
			Limit:      2,
		})
		require.NoError(t, err)
		require.Len(t, docs, 2)
		var first, second map[string]any
		require.NoError(t, docs[0].Decode(&first))
		require.NoError(t, docs[1].Decode(&second))
		assert.Equal(t, float64(80), first["value"])
		assert.Equal(t, float64(50), second["value"])
	})
	t.Run("missing field never matches", func(t *testing.T) {
		docs, err := store.Query(ctx, "moods", docstore.Query{
			Filters: []docstore.Filter{{Field: "nope", Op: docstore.OpEqual, Value: "x"}},
		})
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}

func TestMemoryRunTransaction(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	t.Run("read-decide-write", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			_, err := tx.Get(ctx, "counters", "c1")
			if err != nil {
				return tx.Set(ctx, "counters", "c1", map[string]any{"n": 1}, false)
			}
			return nil
		})
		require.NoError(t, err)
		doc, err := store.Get(ctx, "counters", "c1")
		require.NoError(t, err)
		var got map[string]any
		require.NoError(t, doc.Decode(&got))
		assert.Equal(t, float64(1), got["n"])
	})
	t.Run("callback error surfaces", func(t *testing.T) {
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
	})
}
