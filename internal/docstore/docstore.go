// Package docstore provides the document-store boundary the analytics
// engine is built on: keyed JSON documents grouped into collections with
// merge-writes, atomic field increments, field queries and
// single-document transactions.
package docstore

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID   string
	Data []byte
}

func (d Document) Decode(v any) error {
	return sonic.Unmarshal(d.Data, v)
}

type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
)

// Filter compares a dotted field path against a value. Comparison type
// follows the value: time.Time compares as timestamps, numeric kinds as
// numbers, everything else as text.
type Filter struct {
	Field string
	Op    Op
	Value any
}

type SortKind int

const (
	SortText SortKind = iota
	SortNumeric
	SortTime
)

type Query struct {
	Filters    []Filter
	OrderBy    string
	OrderKind  SortKind
	Descending bool
	Limit      int
}

// Tx exposes the transactional subset of the store. Get takes the
// document lock, so the read-decide-write sequence of the callback runs
// under mutual exclusion with concurrent transactions on the same key.
type Tx interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, value any, merge bool) error
}

type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	// Set writes value marshaled as JSON. With merge, existing fields
	// not present in value survive (deep merge on nested objects).
	Set(ctx context.Context, collection, id string, value any, merge bool) error
	// AtomicIncrement adds delta to a numeric field (dotted path),
	// creating the document and missing parent objects when absent.
	// The increment is a single atomic storage operation.
	AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error
	Query(ctx context.Context, collection string, q Query) ([]Document, error)
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

func encode(value any) (map[string]any, error) {
	raw, err := sonic.Marshal(value)
	if err != nil {
		return nil, errors.New("encoding document error: " + err.Error())
	}
	var m map[string]any
	if err := sonic.Unmarshal(raw, &m); err != nil {
		return nil, errors.New("document must encode to a JSON object: " + err.Error())
	}
	return m, nil
}

// deepMerge overlays src onto dst. Nested objects merge key by key,
// any other value in src replaces the one in dst.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		srcMap, srcIsMap := v.(map[string]any)
		dstMap, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dstMap, srcMap)
			continue
		}
		dst[k] = v
	}
	return dst
}
