package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is a deterministic in-process Store. It backs the test suite
// and offline development: ids are monotonic ("doc-0001", "doc-0002", ...),
// snapshots are delivered synchronously after each committed write, and
// writes can be counted or failed on demand.
type MemoryStore struct {
	mu          sync.Mutex
	seq         int
	collections map[string]map[string]map[string]any
	subs        []*memorySub
	uniques     map[string][]string

	// Writes counts every mutating call that reached the store, batch
	// commits included. Tests use it as a write spy.
	Writes int
	// WriteErr, when set, fails every subsequent mutating call.
	WriteErr error
	// BatchErr, when set, fails Batch.Commit before any buffered
	// operation is applied.
	BatchErr error
}

type memorySub struct {
	collection string
	filters    []Filter
	orderBy    []Order
	limit      int
	onSnapshot func([]Document)
	active     bool
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
		uniques:     make(map[string][]string),
	}
}

// Unique declares a unique constraint on a field, enforced on Add and Set.
func (s *MemoryStore) Unique(collection, field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uniques[collection] = append(s.uniques[collection], field)
}

func (s *MemoryStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	s.mu.Lock()
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		return "", err
	}
	if err := s.checkUniqueLocked(collection, "", data); err != nil {
		s.mu.Unlock()
		return "", err
	}
	s.seq++
	id := fmt.Sprintf("doc-%04d", s.seq)
	s.putLocked(collection, id, data)
	s.Writes++
	pending := s.snapshotsLocked(collection)
	s.mu.Unlock()
	deliver(pending)
	return id, nil
}

func (s *MemoryStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		return err
	}
	if err := s.checkUniqueLocked(collection, id, data); err != nil {
		s.mu.Unlock()
		return err
	}
	s.putLocked(collection, id, data)
	s.Writes++
	pending := s.snapshotsLocked(collection)
	s.mu.Unlock()
	deliver(pending)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	col, ok := s.collections[collection]
	if !ok {
		return Document{}, ErrNotFound
	}
	data, ok := col[id]
	if !ok {
		return Document{}, ErrNotFound
	}
	return Document{ID: id, Data: cloneData(data)}, nil
}

func (s *MemoryStore) Query(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queryLocked(collection, filters, orderBy, limit), nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int,
	onSnapshot func([]Document), onError func(error)) (UnsubscribeFunc, error) {
	sub := &memorySub{
		collection: collection,
		filters:    filters,
		orderBy:    orderBy,
		limit:      limit,
		onSnapshot: onSnapshot,
		active:     true,
	}
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	initial := s.queryLocked(collection, filters, orderBy, limit)
	s.mu.Unlock()

	onSnapshot(initial)

	var once sync.Once
	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			sub.active = false
			s.mu.Unlock()
		})
	}
	return stop, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		return err
	}
	if err := s.applyUpdateLocked(collection, id, fields); err != nil {
		s.mu.Unlock()
		return err
	}
	s.Writes++
	pending := s.snapshotsLocked(collection)
	s.mu.Unlock()
	deliver(pending)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		return err
	}
	if col, ok := s.collections[collection]; ok {
		delete(col, id)
	}
	s.Writes++
	pending := s.snapshotsLocked(collection)
	s.mu.Unlock()
	deliver(pending)
	return nil
}

func (s *MemoryStore) Batch() Batch {
	return &memoryBatch{store: s}
}

type batchOp struct {
	collection string
	id         string
	fields     map[string]any // nil means delete
}

type memoryBatch struct {
	store *MemoryStore
	ops   []batchOp
}

func (b *memoryBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *memoryBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id})
}

// Commit applies all buffered operations or none. Validation runs before
// any mutation so a mid-batch failure cannot leave a mixed state.
func (b *memoryBatch) Commit(ctx context.Context) error {
	s := b.store
	s.mu.Lock()
	if s.BatchErr != nil {
		err := s.BatchErr
		s.mu.Unlock()
		return err
	}
	if s.WriteErr != nil {
		err := s.WriteErr
		s.mu.Unlock()
		return err
	}
	for _, op := range b.ops {
		if op.fields == nil {
			continue
		}
		if _, ok := s.collections[op.collection][op.id]; !ok {
			s.mu.Unlock()
			return fmt.Errorf("batch update: %s/%s: %w", op.collection, op.id, ErrNotFound)
		}
	}
	touched := make(map[string]bool)
	for _, op := range b.ops {
		if op.fields == nil {
			delete(s.collections[op.collection], op.id)
		} else {
			// Existence was checked above.
			_ = s.applyUpdateLocked(op.collection, op.id, op.fields)
		}
		touched[op.collection] = true
	}
	s.Writes++
	var pending []func()
	for collection := range touched {
		pending = append(pending, s.snapshotsLocked(collection)...)
	}
	s.mu.Unlock()
	deliver(pending)
	return nil
}

func (s *MemoryStore) putLocked(collection, id string, data map[string]any) {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}
	col[id] = resolveSentinels(cloneData(data), nil)
}

func (s *MemoryStore) applyUpdateLocked(collection, id string, fields map[string]any) error {
	col, ok := s.collections[collection]
	if !ok {
		return ErrNotFound
	}
	data, ok := col[id]
	if !ok {
		return ErrNotFound
	}
	col[id] = resolveSentinels(fields, data)
	return nil
}

func (s *MemoryStore) checkUniqueLocked(collection, id string, data map[string]any) error {
	for _, field := range s.uniques[collection] {
		value, ok := data[field]
		if !ok {
			continue
		}
		for otherID, other := range s.collections[collection] {
			if otherID == id {
				continue
			}
			if equalValues(other[field], value) {
				return fmt.Errorf("unique constraint on %s.%s violated", collection, field)
			}
		}
	}
	return nil
}

func (s *MemoryStore) queryLocked(collection string, filters []Filter, orderBy []Order, limit int) []Document {
	var docs []Document
	for id, data := range s.collections[collection] {
		if matchesFilters(data, filters) {
			docs = append(docs, Document{ID: id, Data: cloneData(data)})
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		for _, ord := range orderBy {
			c := compareValues(docs[i].Data[ord.Field], docs[j].Data[ord.Field])
			if c == 0 {
				continue
			}
			if ord.Desc {
				return c > 0
			}
			return c < 0
		}
		// Stable tiebreak on the store-assigned id.
		return docs[i].ID < docs[j].ID
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs
}

// snapshotsLocked collects the deliveries owed to live subscribers of a
// collection. Callbacks run after the lock is released so a subscriber may
// call back into the store.
func (s *MemoryStore) snapshotsLocked(collection string) []func() {
	var pending []func()
	for _, sub := range s.subs {
		if !sub.active || sub.collection != collection {
			continue
		}
		sub := sub
		docs := s.queryLocked(sub.collection, sub.filters, sub.orderBy, sub.limit)
		pending = append(pending, func() {
			s.mu.Lock()
			active := sub.active
			s.mu.Unlock()
			if active {
				sub.onSnapshot(docs)
			}
		})
	}
	return pending
}

func deliver(pending []func()) {
	for _, fn := range pending {
		fn()
	}
}

func resolveSentinels(fields map[string]any, existing map[string]any) map[string]any {
	out := make(map[string]any, len(fields)+len(existing))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range fields {
		switch sv := v.(type) {
		case arrayUnion:
			current := toSlice(out[k])
			for _, value := range sv.values {
				if !containsValue(current, value) {
					current = append(current, value)
				}
			}
			out[k] = current
		case arrayRemove:
			current := toSlice(out[k])
			var kept []any
			for _, value := range current {
				if !containsValue(sv.values, value) {
					kept = append(kept, value)
				}
			}
			out[k] = kept
		case serverTimestamp:
			out[k] = time.Now().UTC()
		default:
			out[k] = v
		}
	}
	return out
}

func toSlice(v any) []any {
	switch sv := v.(type) {
	case nil:
		return nil
	case []any:
		return append([]any(nil), sv...)
	case []string:
		out := make([]any, len(sv))
		for i, s := range sv {
			out[i] = s
		}
		return out
	default:
		return []any{sv}
	}
}

func containsValue(values []any, target any) bool {
	for _, v := range values {
		if equalValues(v, target) {
			return true
		}
	}
	return false
}

func matchesFilters(data map[string]any, filters []Filter) bool {
	for _, f := range filters {
		value, ok := data[f.Field]
		if !ok {
			return false
		}
		c := compareValues(value, f.Value)
		switch f.Op {
		case "==":
			if c != 0 {
				return false
			}
		case "!=":
			if c == 0 {
				return false
			}
		case "<":
			if c >= 0 {
				return false
			}
		case "<=":
			if c > 0 {
				return false
			}
		case ">":
			if c <= 0 {
				return false
			}
		case ">=":
			if c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equalValues(a, b any) bool { return compareValues(a, b) == 0 }

func compareValues(a, b any) int {
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if an, aok := toFloat(a); aok {
		if bn, bok := toFloat(b); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			default:
				return 1
			}
		}
	}
	return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func cloneData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if s, ok := v.([]any); ok {
			out[k] = append([]any(nil), s...)
			continue
		}
		out[k] = v
	}
	return out
}
