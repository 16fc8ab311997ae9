package docstore_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/limbo/serenity/internal/docstore"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	selectDoc = regexp.QuoteMeta(`SELECT data FROM documents WHERE collection = $1 AND id = $2;`)
	lockDoc   = regexp.QuoteMeta(`SELECT pg_advisory_xact_lock(hashtextextended($1, 0));`)
	upsertDoc = regexp.QuoteMeta(`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)`)
)

func TestPostgresGet(t *testing.T) {
	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	ctx := context.Background()
	store := docstore.NewPostgresStoreWithConn(conn)
	t.Run("found", func(t *testing.T) {
		conn.ExpectQuery(selectDoc).
			WithArgs("users", "u1").
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"name":"anna"}`)))
		doc, err := store.Get(ctx, "users", "u1")
		assert.NoError(t, err)
		assert.Equal(t, "u1", doc.ID)
		assert.JSONEq(t, `{"name":"anna"}`, string(doc.Data))
	})
	t.Run("not found", func(t *testing.T) {
		conn.ExpectQuery(selectDoc).
			WithArgs("users", "missing").
			WillReturnError(pgx.ErrNoRows)
		_, err := store.Get(ctx, "users", "missing")
		assert.ErrorIs(t, err, docstore.ErrNotFound)
	})
	t.Run("db error", func(t *testing.T) {
		conn.ExpectQuery(selectDoc).
			WithArgs("users", "u1").
			WillReturnError(errors.New("db error"))
		_, err := store.Get(ctx, "users", "u1")
		assert.Error(t, err)
	})
}

func TestPostgresSet(t *testing.T) {
	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	ctx := context.Background()
	store := docstore.NewPostgresStoreWithConn(conn)
	t.Run("plain upsert", func(t *testing.T) {
		conn.ExpectExec(upsertDoc).
			WithArgs("users", "u1", `{"name":"anna"}`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err := store.Set(ctx, "users", "u1", map[string]any{"name": "anna"}, false)
		assert.NoError(t, err)
	})
	t.Run("merge reads under the document lock", func(t *testing.T) {
		conn.ExpectBegin()
		conn.ExpectExec(lockDoc).
			WithArgs("users/u1").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		conn.ExpectQuery(selectDoc).
			WithArgs("users", "u1").
			WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"name":"anna","stats":{"streak":2}}`)))
		conn.ExpectExec(upsertDoc).
			WithArgs("users", "u1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		conn.ExpectCommit()
		err := store.Set(ctx, "users", "u1", map[string]any{
			"stats": map[string]any{"lastActiveDate": "2026-08-27"},
		}, true)
		assert.NoError(t, err)
		assert.NoError(t, conn.ExpectationsWereMet())
	})
	t.Run("merge of an absent document inserts", func(t *testing.T) {
		conn.ExpectBegin()
		conn.ExpectExec(lockDoc).
			WithArgs("users/u2").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		conn.ExpectQuery(selectDoc).
			WithArgs("users", "u2").
			WillReturnError(pgx.ErrNoRows)
		conn.ExpectExec(upsertDoc).
			WithArgs("users", "u2", `{"name":"boris"}`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		conn.ExpectCommit()
		err := store.Set(ctx, "users", "u2", map[string]any{"name": "boris"}, true)
		assert.NoError(t, err)
		assert.NoError(t, conn.ExpectationsWereMet())
	})
}

func TestPostgresAtomicIncrement(t *testing.T) {
	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	ctx := context.Background()
	store := docstore.NewPostgresStoreWithConn(conn)
	t.Run("nested field rebuilds parents in one statement", func(t *testing.T) {
		update := regexp.QuoteMeta(`DO UPDATE SET data = jsonb_set(jsonb_set(documents.data, '{stats}', COALESCE(documents.data #> '{stats}', '{}'::jsonb), true), '{stats,exercisesCompleted}', to_jsonb(COALESCE((documents.data #>> '{stats,exercisesCompleted}')::numeric, 0) + $4::numeric), true), updated_at = now();`)
		conn.ExpectExec(update).
			WithArgs("users", "u1", `{"stats":{"exercisesCompleted":1}}`, int64(1)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err := store.AtomicIncrement(ctx, "users", "u1", "stats.exercisesCompleted", 1)
		assert.NoError(t, err)
		assert.NoError(t, conn.ExpectationsWereMet())
	})
	t.Run("top-level field", func(t *testing.T) {
		update := regexp.QuoteMeta(`DO UPDATE SET data = jsonb_set(documents.data, '{count}', to_jsonb(COALESCE((documents.data #>> '{count}')::numeric, 0) + $4::numeric), true), updated_at = now();`)
		conn.ExpectExec(update).
			WithArgs("counters", "c1", `{"count":3}`, int64(3)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		err := store.AtomicIncrement(ctx, "counters", "c1", "count", 3)
		assert.NoError(t, err)
	})
	t.Run("invalid field path rejected", func(t *testing.T) {
		err := store.AtomicIncrement(ctx, "users", "u1", "stats'; DROP TABLE documents; --", 1)
		assert.Error(t, err)
	})
}

func TestPostgresQuery(t *testing.T) {
	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	ctx := context.Background()
	store := docstore.NewPostgresStoreWithConn(conn)
	since := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	t.Run("filters pick casts from value types", func(t *testing.T) {
		query := regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1 AND data #>> '{userId}' = $2 AND (data #>> '{timestamp}')::timestamptz >= $3 ORDER BY (data #>> '{timestamp}')::timestamptz;`)
		conn.ExpectQuery(query).
			WithArgs("mood_entries", "u1", since).
			WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
				AddRow("m1", []byte(`{"userId":"u1","value":80}`)).
				AddRow("m2", []byte(`{"userId":"u1","value":20}`)))
		docs, err := store.Query(ctx, "mood_entries", docstore.Query{
			Filters: []docstore.Filter{
				{Field: "userId", Op: docstore.OpEqual, Value: "u1"},
				{Field: "timestamp", Op: docstore.OpGreaterOrEqual, Value: since},
			},
			OrderBy:   "timestamp",
			OrderKind: docstore.SortTime,
		})
		assert.NoError(t, err)
		assert.Len(t, docs, 2)
		assert.Equal(t, "m1", docs[0].ID)
	})
	t.Run("numeric order descending with limit", func(t *testing.T) {
		query := regexp.QuoteMeta(`SELECT id, data FROM documents WHERE collection = $1 ORDER BY (data #>> '{order}')::numeric DESC LIMIT 5;`)
		conn.ExpectQuery(query).
			WithArgs("exercise_categories").
			WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))
		_, err := store.Query(ctx, "exercise_categories", docstore.Query{
			OrderBy:    "order",
			OrderKind:  docstore.SortNumeric,
			Descending: true,
			Limit:      5,
		})
		assert.NoError(t, err)
	})
	t.Run("invalid filter path rejected", func(t *testing.T) {
		_, err := store.Query(ctx, "users", docstore.Query{
			Filters: []docstore.Filter{{Field: "a b", Op: docstore.OpEqual, Value: "x"}},
		})
		assert.Error(t, err)
	})
}

func TestPostgresRunTransaction(t *testing.T) {
	conn, err := pgxmock.NewPool()
	require.NoError(t, err)
	ctx := context.Background()
	store := docstore.NewPostgresStoreWithConn(conn)
	t.Run("read miss then insert commits", func(t *testing.T) {
		conn.ExpectBegin()
		conn.ExpectExec(lockDoc).
			WithArgs("rate_limits/u1_generate_insights").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		conn.ExpectQuery(selectDoc).
			WithArgs("rate_limits", "u1_generate_insights").
			WillReturnError(pgx.ErrNoRows)
		conn.ExpectExec(lockDoc).
			WithArgs("rate_limits/u1_generate_insights").
			WillReturnResult(pgxmock.NewResult("SELECT", 1))
		conn.ExpectExec(upsertDoc).
			WithArgs("rate_limits", "u1_generate_insights", `{"n":1}`).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		conn.ExpectCommit()
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			_, err := tx.Get(ctx, "rate_limits", "u1_generate_insights")
			if errors.Is(err, docstore.ErrNotFound) {
				return tx.Set(ctx, "rate_limits", "u1_generate_insights", map[string]any{"n": 1}, false)
			}
			return err
		})
		assert.NoError(t, err)
		assert.NoError(t, conn.ExpectationsWereMet())
	})
	t.Run("callback error rolls back", func(t *testing.T) {
		conn.ExpectBegin()
		conn.ExpectRollback()
		err := store.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
			return errors.New("boom")
		})
		assert.Error(t, err)
		assert.NoError(t, conn.ExpectationsWereMet())
	})
}
