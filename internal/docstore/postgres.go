package docstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/limbo/serenity/internal/error_values"
	"github.com/limbo/serenity/pkg/cleanup"
)

type DBConfig interface {
	ConnString() string
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const schema = `CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id text NOT NULL,
	data jsonb NOT NULL DEFAULT '{}'::jsonb,
	updated_at timestamptz NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
);`

// PostgresStore keeps every document as one jsonb row keyed by
// (collection, id). Timestamps inside documents are RFC3339 strings and
// compare through ::timestamptz casts.
type PostgresStore struct {
	conn PgConnection
}

func NewPostgresStore(cfg DBConfig) *PostgresStore {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for document store error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for document store: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &PostgresStore{
		conn: pool,
	}
}

func NewPostgresStoreWithConn(conn PgConnection) *PostgresStore {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for document store: " + err.Error())
	}
	return &PostgresStore{
		conn: conn,
	}
}

// EnsureSchema creates the documents table when missing.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, schema); err != nil {
		return storeErr("ensuring documents schema error", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	row := p.conn.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2;`, collection, id)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, storeErr("getting document error", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (p *PostgresStore) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	m, err := encode(value)
	if err != nil {
		return err
	}
	if !merge {
		raw, err := sonic.Marshal(m)
		if err != nil {
			return errors.New("encoding document error: " + err.Error())
		}
		_, err = p.conn.Exec(ctx,
			`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = now();`,
			collection, id, string(raw),
		)
		if err != nil {
			return storeErr("setting document error", err)
		}
		return nil
	}
	// Merge runs as its own short transaction: deep merge happens in Go,
	// the advisory lock keeps concurrent merges on the same key ordered.
	txn, err := p.conn.Begin(ctx)
	if err != nil {
		return storeErr("beginning merge transaction error", err)
	}
	defer txn.Rollback(ctx)
	if err := acquireDocLock(ctx, txn, collection, id); err != nil {
		return err
	}
	merged := m
	var data []byte
	err = txn.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2;`, collection, id).Scan(&data)
	switch {
	case err == nil:
		var existing map[string]any
		if err := sonic.Unmarshal(data, &existing); err != nil {
			return errors.New("decoding stored document error: " + err.Error())
		}
		merged = deepMerge(existing, m)
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return storeErr("reading document for merge error", err)
	}
	raw, err := sonic.Marshal(merged)
	if err != nil {
		return errors.New("encoding merged document error: " + err.Error())
	}
	_, err = txn.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = now();`,
		collection, id, string(raw),
	)
	if err != nil {
		return storeErr("writing merged document error", err)
	}
	if err := txn.Commit(ctx); err != nil {
		return storeErr("committing merge transaction error", err)
	}
	return nil
}

var fieldSegmentRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func fieldPath(field string) ([]string, error) {
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if !fieldSegmentRe.MatchString(part) {
			return nil, fmt.Errorf("invalid document field path %q", field)
		}
	}
	return parts, nil
}

func pgPath(parts []string) string {
	return "{" + strings.Join(parts, ",") + "}"
}

func (p *PostgresStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error {
	parts, err := fieldPath(field)
	if err != nil {
		return err
	}
	// Skeleton document for the insert branch: nested objects down to the
	// counter already holding delta.
	skeleton := map[string]any{parts[len(parts)-1]: delta}
	for i := len(parts) - 2; i >= 0; i-- {
		skeleton = map[string]any{parts[i]: skeleton}
	}
	rawSkeleton, err := sonic.Marshal(skeleton)
	if err != nil {
		return errors.New("encoding increment skeleton error: " + err.Error())
	}
	// The update branch rebuilds missing parent objects before setting
	// the leaf, all inside one statement so the increment stays atomic.
	ensured := "documents.data"
	for i := 1; i < len(parts); i++ {
		pp := pgPath(parts[:i])
		ensured = fmt.Sprintf("jsonb_set(%s, '%s', COALESCE(documents.data #> '%s', '{}'::jsonb), true)", ensured, pp, pp)
	}
	path := pgPath(parts)
	sql := fmt.Sprintf(
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = jsonb_set(%s, '%s', to_jsonb(COALESCE((documents.data #>> '%s')::numeric, 0) + $4::numeric), true), updated_at = now();`,
		ensured, path, path,
	)
	if _, err := p.conn.Exec(ctx, sql, collection, id, string(rawSkeleton), delta); err != nil {
		return storeErr("incrementing document field error", err)
	}
	return nil
}

func (p *PostgresStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, data FROM documents WHERE collection = $1`)
	args := []any{collection}
	for _, f := range q.Filters {
		parts, err := fieldPath(f.Field)
		if err != nil {
			return nil, err
		}
		op, err := sqlOp(f.Op)
		if err != nil {
			return nil, err
		}
		path := pgPath(parts)
		n := len(args) + 1
		switch v := f.Value.(type) {
		case time.Time:
			fmt.Fprintf(&sb, " AND (data #>> '%s')::timestamptz %s $%d", path, op, n)
			args = append(args, v)
		case int, int64, float64:
			fmt.Fprintf(&sb, " AND (data #>> '%s')::numeric %s $%d", path, op, n)
			args = append(args, v)
		default:
			fmt.Fprintf(&sb, " AND data #>> '%s' %s $%d", path, op, n)
			args = append(args, fmt.Sprint(v))
		}
	}
	if q.OrderBy != "" {
		parts, err := fieldPath(q.OrderBy)
		if err != nil {
			return nil, err
		}
		path := pgPath(parts)
		expr := fmt.Sprintf("data #>> '%s'", path)
		switch q.OrderKind {
		case SortNumeric:
			expr = fmt.Sprintf("(data #>> '%s')::numeric", path)
		case SortTime:
			expr = fmt.Sprintf("(data #>> '%s')::timestamptz", path)
		}
		sb.WriteString(" ORDER BY " + expr)
		if q.Descending {
			sb.WriteString(" DESC")
		}
	}
	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}
	sb.WriteString(";")
	rows, err := p.conn.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, storeErr("querying documents error", err)
	}
	defer rows.Close()
	result := make([]Document, 0, 8)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Data); err != nil {
			return nil, errors.New("document row parsing error: " + err.Error())
		}
		result = append(result, doc)
	}
	if rows.Err() != nil {
		return nil, storeErr("unexpected document rows error", rows.Err())
	}
	return result, nil
}

func (p *PostgresStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	txn, err := p.conn.Begin(ctx)
	if err != nil {
		return storeErr("beginning transaction error", err)
	}
	t := &postgresTx{tx: txn}
	if err := fn(ctx, t); err != nil {
		_ = txn.Rollback(ctx)
		return err
	}
	if err := txn.Commit(ctx); err != nil {
		return storeErr("committing transaction error", err)
	}
	return nil
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) Get(ctx context.Context, collection, id string) (Document, error) {
	// The advisory lock serializes transactions on the key even when the
	// row doesn't exist yet, which FOR UPDATE cannot do.
	if err := acquireDocLock(ctx, t.tx, collection, id); err != nil {
		return Document{}, err
	}
	row := t.tx.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2;`, collection, id)
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Document{}, ErrNotFound
		}
		return Document{}, storeErr("getting document in transaction error", err)
	}
	return Document{ID: id, Data: data}, nil
}

func (t *postgresTx) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	m, err := encode(value)
	if err != nil {
		return err
	}
	if err := acquireDocLock(ctx, t.tx, collection, id); err != nil {
		return err
	}
	if merge {
		var data []byte
		err := t.tx.QueryRow(ctx, `SELECT data FROM documents WHERE collection = $1 AND id = $2;`, collection, id).Scan(&data)
		switch {
		case err == nil:
			var existing map[string]any
			if err := sonic.Unmarshal(data, &existing); err != nil {
				return errors.New("decoding stored document error: " + err.Error())
			}
			m = deepMerge(existing, m)
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return storeErr("reading document for merge error", err)
		}
	}
	raw, err := sonic.Marshal(m)
	if err != nil {
		return errors.New("encoding document error: " + err.Error())
	}
	_, err = t.tx.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = now();`,
		collection, id, string(raw),
	)
	if err != nil {
		return storeErr("setting document in transaction error", err)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func acquireDocLock(ctx context.Context, ex execer, collection, id string) error {
	_, err := ex.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0));`, collection+"/"+id)
	if err != nil {
		return storeErr("locking document error", err)
	}
	return nil
}

func sqlOp(op Op) (string, error) {
	switch op {
	case OpEqual:
		return "=", nil
	case OpGreaterOrEqual:
		return ">=", nil
	case OpLessOrEqual:
		return "<=", nil
	}
	return "", fmt.Errorf("unsupported query op %q", op)
}

func storeErr(op string, err error) error {
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%s: %w", op, errorvalues.ErrStoreUnavailable)
	}
	return errors.New(op + ": " + err.Error())
}
