package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist in a collection.
var ErrNotFound = errors.New("document not found")

// Document is a single record read from a collection.
type Document struct {
	ID   string
	Data map[string]any
}

// Filter is one query predicate. Op uses Firestore-style operators:
// "==", "!=", "<", "<=", ">", ">=".
type Filter struct {
	Field string
	Op    string
	Value any
}

// Order describes the sort key of a query.
type Order struct {
	Field string
	Desc  bool
}

// Where is shorthand for building a Filter.
func Where(field, op string, value any) Filter {
	return Filter{Field: field, Op: op, Value: value}
}

// UnsubscribeFunc tears down a live subscription. It is safe to call more
// than once; after the first call no further snapshot or error callbacks
// are delivered.
type UnsubscribeFunc func()

// Store is the durable, queryable, subscribable document database this
// module is layered on. Implementations: FirestoreStore, MongoStore and
// the in-memory MemoryStore used in tests.
type Store interface {
	// Add creates a document with a store-assigned id.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	// Set creates or replaces the document with the given id.
	Set(ctx context.Context, collection, id string, data map[string]any) error
	// Get reads a single document. Returns ErrNotFound when missing.
	Get(ctx context.Context, collection, id string) (Document, error)
	// Query runs a one-shot read. A limit <= 0 means no limit.
	Query(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int) ([]Document, error)
	// Subscribe opens a live query. onSnapshot receives the full current
	// result set on every change, including the initial state. Snapshots
	// for one subscription are delivered in order and never concurrently.
	// onError is invoked at most once if the stream fails; the
	// subscription is then terminal and must be reopened by the caller.
	Subscribe(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int,
		onSnapshot func([]Document), onError func(error)) (UnsubscribeFunc, error)
	// Update applies a partial write to an existing document.
	Update(ctx context.Context, collection, id string, fields map[string]any) error
	// Delete removes a document.
	Delete(ctx context.Context, collection, id string) error
	// Batch starts an atomic multi-write. Commit applies every buffered
	// operation or none of them.
	Batch() Batch
}

// Batch buffers writes that commit atomically.
type Batch interface {
	Update(collection, id string, fields map[string]any)
	Delete(collection, id string)
	Commit(ctx context.Context) error
}

// Field-value sentinels, interpreted by each backend at write time.

type arrayUnion struct{ values []any }

type arrayRemove struct{ values []any }

type serverTimestamp struct{}

// ArrayUnion appends values to an array field, skipping ones already present.
func ArrayUnion(values ...any) any { return arrayUnion{values: values} }

// ArrayRemove removes every occurrence of the given values from an array field.
func ArrayRemove(values ...any) any { return arrayRemove{values: values} }

// ServerTimestamp resolves to the store's own clock at write time.
var ServerTimestamp any = serverTimestamp{}
