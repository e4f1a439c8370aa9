package store

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore implements Store on Cloud Firestore, the backend the
// production app runs against.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore wraps an initialized Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

func (s *FirestoreStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, translateFirestoreData(data))
	if err != nil {
		return "", fmt.Errorf("firestore add %s: %w", collection, err)
	}
	return ref.ID, nil
}

func (s *FirestoreStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Set(ctx, translateFirestoreData(data))
	if err != nil {
		return fmt.Errorf("firestore set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, id string) (Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("firestore get %s/%s: %w", collection, id, err)
	}
	return Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *FirestoreStore) Query(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int) ([]Document, error) {
	iter := s.buildQuery(collection, filters, orderBy, limit).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore query %s: %w", collection, err)
		}
		docs = append(docs, Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return docs, nil
}

func (s *FirestoreStore) Subscribe(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int,
	onSnapshot func([]Document), onError func(error)) (UnsubscribeFunc, error) {
	ctx, cancel := context.WithCancel(ctx)
	snapshots := s.buildQuery(collection, filters, orderBy, limit).Snapshots(ctx)

	go func() {
		defer snapshots.Stop()
		for {
			snap, err := snapshots.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled && onError != nil {
					onError(err)
				}
				return
			}
			var docs []Document
			docIter := snap.Documents
			for {
				ds, err := docIter.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					if onError != nil {
						onError(err)
					}
					return
				}
				docs = append(docs, Document{ID: ds.Ref.ID, Data: ds.Data()})
			}
			onSnapshot(docs)
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (s *FirestoreStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, firestoreUpdates(fields))
	if err != nil {
		return fmt.Errorf("firestore update %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Delete(ctx context.Context, collection, id string) error {
	_, err := s.client.Collection(collection).Doc(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("firestore delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *FirestoreStore) Batch() Batch {
	return &firestoreBatch{client: s.client, batch: s.client.Batch()}
}

type firestoreBatch struct {
	client *firestore.Client
	batch  *firestore.WriteBatch
}

func (b *firestoreBatch) Update(collection, id string, fields map[string]any) {
	b.batch.Update(b.client.Collection(collection).Doc(id), firestoreUpdates(fields))
}

func (b *firestoreBatch) Delete(collection, id string) {
	b.batch.Delete(b.client.Collection(collection).Doc(id))
}

func (b *firestoreBatch) Commit(ctx context.Context) error {
	if _, err := b.batch.Commit(ctx); err != nil {
		return fmt.Errorf("firestore batch commit: %w", err)
	}
	return nil
}

func (s *FirestoreStore) buildQuery(collection string, filters []Filter, orderBy []Order, limit int) firestore.Query {
	q := s.client.Collection(collection).Query
	for _, f := range filters {
		q = q.Where(f.Field, f.Op, f.Value)
	}
	for _, ord := range orderBy {
		dir := firestore.Asc
		if ord.Desc {
			dir = firestore.Desc
		}
		q = q.OrderBy(ord.Field, dir)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

func translateFirestoreData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = translateFirestoreValue(v)
	}
	return out
}

func firestoreUpdates(fields map[string]any) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for k, v := range fields {
		updates = append(updates, firestore.Update{Path: k, Value: translateFirestoreValue(v)})
	}
	return updates
}

func translateFirestoreValue(v any) any {
	switch sv := v.(type) {
	case arrayUnion:
		return firestore.ArrayUnion(sv.values...)
	case arrayRemove:
		return firestore.ArrayRemove(sv.values...)
	case serverTimestamp:
		return firestore.ServerTimestamp
	default:
		return v
	}
}
