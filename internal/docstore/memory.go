package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
)

// MemoryStore keeps documents as decoded maps guarded by one mutex. It
// backs unit tests and local development; semantics mirror the Postgres
// implementation.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]map[string]map[string]any),
	}
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(collection, id)
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(collection, id, value, merge)
}

func (s *MemoryStore) AtomicIncrement(ctx context.Context, collection, id, field string, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	col := s.data[collection]
	if col == nil {
		col = make(map[string]map[string]any)
		s.data[collection] = col
	}
	doc := col[id]
	if doc == nil {
		doc = make(map[string]any)
		col[id] = doc
	}
	parts := strings.Split(field, ".")
	node := doc
	for _, p := range parts[:len(parts)-1] {
		child, ok := node[p].(map[string]any)
		if !ok {
			child = make(map[string]any)
			node[p] = child
		}
		node = child
	}
	leaf := parts[len(parts)-1]
	current, _ := node[leaf].(float64)
	node[leaf] = current + float64(delta)
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type candidate struct {
		id  string
		doc map[string]any
	}
	var matched []candidate
	for id, doc := range s.data[collection] {
		ok := true
		for _, f := range q.Filters {
			if !matches(doc, f) {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, candidate{id: id, doc: doc})
		}
	}
	if q.OrderBy != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			less := lessByField(matched[i].doc, matched[j].doc, q.OrderBy, q.OrderKind)
			if q.Descending {
				return !less && !equalByField(matched[i].doc, matched[j].doc, q.OrderBy, q.OrderKind)
			}
			return less
		})
	} else {
		// stable output regardless of map iteration order
		sort.Slice(matched, func(i, j int) bool { return matched[i].id < matched[j].id })
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	result := make([]Document, 0, len(matched))
	for _, c := range matched {
		raw, err := sonic.Marshal(c.doc)
		if err != nil {
			return nil, errors.New("encoding stored document error: " + err.Error())
		}
		result = append(result, Document{ID: c.id, Data: raw})
	}
	return result, nil
}

func (s *MemoryStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &memoryTx{store: s})
}

type memoryTx struct {
	store *MemoryStore
}

func (t *memoryTx) Get(ctx context.Context, collection, id string) (Document, error) {
	return t.store.getLocked(collection, id)
}

func (t *memoryTx) Set(ctx context.Context, collection, id string, value any, merge bool) error {
	return t.store.setLocked(collection, id, value, merge)
}

func (s *MemoryStore) getLocked(collection, id string) (Document, error) {
	doc, ok := s.data[collection][id]
	if !ok {
		return Document{}, ErrNotFound
	}
	raw, err := sonic.Marshal(doc)
	if err != nil {
		return Document{}, errors.New("encoding stored document error: " + err.Error())
	}
	return Document{ID: id, Data: raw}, nil
}

func (s *MemoryStore) setLocked(collection, id string, value any, merge bool) error {
	m, err := encode(value)
	if err != nil {
		return err
	}
	col := s.data[collection]
	if col == nil {
		col = make(map[string]map[string]any)
		s.data[collection] = col
	}
	if merge {
		if existing, ok := col[id]; ok {
			col[id] = deepMerge(existing, m)
			return nil
		}
	}
	col[id] = m
	return nil
}

func lookupPath(doc map[string]any, field string) (any, bool) {
	parts := strings.Split(field, ".")
	var current any = doc
	for _, p := range parts {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

func matches(doc map[string]any, f Filter) bool {
	v, ok := lookupPath(doc, f.Field)
	if !ok {
		return false
	}
	cmp, ok := compareValues(v, f.Value)
	if !ok {
		return false
	}
	switch f.Op {
	case OpEqual:
		return cmp == 0
	case OpGreaterOrEqual:
		return cmp >= 0
	case OpLessOrEqual:
		return cmp <= 0
	}
	return false
}

// compareValues compares a stored value against a filter value; the
// filter value's type picks the comparison domain.
func compareValues(stored, want any) (int, bool) {
	switch w := want.(type) {
	case time.Time:
		s, ok := stored.(string)
		if !ok {
			return 0, false
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return 0, false
		}
		return t.Compare(w), true
	case int:
		return compareFloat(stored, float64(w))
	case int64:
		return compareFloat(stored, float64(w))
	case float64:
		return compareFloat(stored, w)
	case string:
		s, ok := stored.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(s, w), true
	default:
		return strings.Compare(fmt.Sprint(stored), fmt.Sprint(want)), true
	}
}

func compareFloat(stored any, want float64) (int, bool) {
	f, ok := stored.(float64)
	if !ok {
		return 0, false
	}
	switch {
	case f < want:
		return -1, true
	case f > want:
		return 1, true
	default:
		return 0, true
	}
}

func lessByField(a, b map[string]any, field string, kind SortKind) bool {
	return orderCompare(a, b, field, kind) < 0
}

func equalByField(a, b map[string]any, field string, kind SortKind) bool {
	return orderCompare(a, b, field, kind) == 0
}

func orderCompare(a, b map[string]any, field string, kind SortKind) int {
	av, aok := lookupPath(a, field)
	bv, bok := lookupPath(b, field)
	if !aok || !bok {
		switch {
		case aok:
			return 1
		case bok:
			return -1
		default:
			return 0
		}
	}
	switch kind {
	case SortNumeric:
		af, _ := av.(float64)
		bf, _ := bv.(float64)
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case SortTime:
		at, aerr := time.Parse(time.RFC3339Nano, fmt.Sprint(av))
		bt, berr := time.Parse(time.RFC3339Nano, fmt.Sprint(bv))
		if aerr != nil || berr != nil {
			return strings.Compare(fmt.Sprint(av), fmt.Sprint(bv))
		}
		return at.Compare(bt)
	default:
		return strings.Compare(fmt.Sprint(av), fmt.Sprint(bv))
	}
}
