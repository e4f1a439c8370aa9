package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements Store on MongoDB. Live subscriptions are driven by
// change streams: each event re-runs the registered query and emits a full
// snapshot, matching the push semantics of the Firestore backend.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore wraps a connected client. dbName selects the database.
func NewMongoStore(client *mongo.Client, dbName string) *MongoStore {
	return &MongoStore{client: client, db: client.Database(dbName)}
}

// EnsureIndexes creates the unique index on users.username. Uniqueness is
// enforced here rather than by an application-level pre-check so that two
// concurrent sign-ups cannot both pass.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection("users").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	id := primitive.NewObjectID()
	doc := mongoInsertDoc(data)
	doc["_id"] = id
	if _, err := s.db.Collection(collection).InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("mongo insert %s: %w", collection, err)
	}
	return id.Hex(), nil
}

func (s *MongoStore) Set(ctx context.Context, collection, id string, data map[string]any) error {
	doc := mongoInsertDoc(data)
	doc["_id"] = id
	_, err := s.db.Collection(collection).ReplaceOne(ctx,
		bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": mongoID(id)}).Decode(&raw)
	if err == mongo.ErrNoDocuments {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("mongo get %s/%s: %w", collection, id, err)
	}
	return mongoDocument(raw), nil
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int) ([]Document, error) {
	findOptions := options.Find()
	if len(orderBy) > 0 {
		findOptions.SetSort(mongoSort(orderBy))
	}
	if limit > 0 {
		findOptions.SetLimit(int64(limit))
	}

	cursor, err := s.db.Collection(collection).Find(ctx, mongoFilter(filters), findOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo query %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []Document
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("mongo query %s: decode: %w", collection, err)
		}
		docs = append(docs, mongoDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("mongo query %s: %w", collection, err)
	}
	return docs, nil
}

func (s *MongoStore) Subscribe(ctx context.Context, collection string, filters []Filter, orderBy []Order, limit int,
	onSnapshot func([]Document), onError func(error)) (UnsubscribeFunc, error) {
	ctx, cancel := context.WithCancel(ctx)

	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("mongo watch %s: %w", collection, err)
	}

	emit := func() bool {
		docs, err := s.Query(ctx, collection, filters, orderBy, limit)
		if err != nil {
			if ctx.Err() == nil && onError != nil {
				onError(err)
			}
			return false
		}
		onSnapshot(docs)
		return true
	}

	go func() {
		defer stream.Close(context.Background())
		if !emit() {
			return
		}
		for stream.Next(ctx) {
			if !emit() {
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func (s *MongoStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": mongoID(id)}, mongoUpdate(fields))
	if err != nil {
		return fmt.Errorf("mongo update %s/%s: %w", collection, id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": mongoID(id)}); err != nil {
		return fmt.Errorf("mongo delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *MongoStore) Batch() Batch {
	return &mongoBatch{store: s}
}

type mongoBatch struct {
	store *MongoStore
	ops   []batchOp
}

func (b *mongoBatch) Update(collection, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id, fields: fields})
}

func (b *mongoBatch) Delete(collection, id string) {
	b.ops = append(b.ops, batchOp{collection: collection, id: id})
}

// Commit runs every buffered operation inside one multi-document
// transaction, so a mid-batch failure rolls the whole set back.
func (b *mongoBatch) Commit(ctx context.Context) error {
	session, err := b.store.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongo batch: start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range b.ops {
			coll := b.store.db.Collection(op.collection)
			if op.fields == nil {
				if _, err := coll.DeleteOne(sc, bson.M{"_id": mongoID(op.id)}); err != nil {
					return nil, err
				}
				continue
			}
			if _, err := coll.UpdateOne(sc, bson.M{"_id": mongoID(op.id)}, mongoUpdate(op.fields)); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("mongo batch commit: %w", err)
	}
	return nil
}

// mongoID accepts both store-assigned ObjectID hex strings and caller
// supplied string ids (user documents are keyed by the identity uid).
func mongoID(id string) any {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return oid
	}
	return id
}

// mongoSort renders the sort spec with a trailing _id key, following the
// direction of the last sort field. MongoDB leaves the relative order of
// equal keys unspecified, so without the tiebreak two documents sharing a
// createdAt value could flip order between reads.
func mongoSort(orderBy []Order) bson.D {
	sortSpec := bson.D{}
	dir := 1
	for _, ord := range orderBy {
		dir = 1
		if ord.Desc {
			dir = -1
		}
		sortSpec = append(sortSpec, bson.E{Key: ord.Field, Value: dir})
	}
	return append(sortSpec, bson.E{Key: "_id", Value: dir})
}

func mongoFilter(filters []Filter) bson.M {
	query := bson.M{}
	for _, f := range filters {
		switch f.Op {
		case "==":
			query[f.Field] = f.Value
		case "!=":
			query[f.Field] = bson.M{"$ne": f.Value}
		case "<":
			query[f.Field] = bson.M{"$lt": f.Value}
		case "<=":
			query[f.Field] = bson.M{"$lte": f.Value}
		case ">":
			query[f.Field] = bson.M{"$gt": f.Value}
		case ">=":
			query[f.Field] = bson.M{"$gte": f.Value}
		}
	}
	return query
}

func mongoUpdate(fields map[string]any) bson.M {
	set := bson.M{}
	addToSet := bson.M{}
	pull := bson.M{}
	currentDate := bson.M{}
	for k, v := range fields {
		switch sv := v.(type) {
		case arrayUnion:
			addToSet[k] = bson.M{"$each": sv.values}
		case arrayRemove:
			pull[k] = bson.M{"$in": sv.values}
		case serverTimestamp:
			currentDate[k] = true
		default:
			set[k] = v
		}
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(addToSet) > 0 {
		update["$addToSet"] = addToSet
	}
	if len(pull) > 0 {
		update["$pull"] = pull
	}
	if len(currentDate) > 0 {
		update["$currentDate"] = currentDate
	}
	return update
}

// mongoInsertDoc resolves sentinels for inserts, where update operators are
// not available.
func mongoInsertDoc(data map[string]any) bson.M {
	doc := bson.M{}
	for k, v := range data {
		switch sv := v.(type) {
		case arrayUnion:
			doc[k] = sv.values
		case arrayRemove:
			doc[k] = []any{}
		case serverTimestamp:
			doc[k] = time.Now().UTC()
		default:
			doc[k] = v
		}
	}
	return doc
}

func mongoDocument(raw bson.M) Document {
	doc := Document{Data: make(map[string]any, len(raw))}
	for k, v := range raw {
		if k == "_id" {
			switch id := v.(type) {
			case primitive.ObjectID:
				doc.ID = id.Hex()
			case string:
				doc.ID = id
			default:
				doc.ID = fmt.Sprintf("%v", id)
			}
			continue
		}
		doc.Data[k] = mongoValue(v)
	}
	return doc
}

func mongoValue(v any) any {
	switch tv := v.(type) {
	case primitive.DateTime:
		return tv.Time()
	case primitive.A:
		out := make([]any, len(tv))
		for i, item := range tv {
			out[i] = mongoValue(item)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(tv))
		for k, item := range tv {
			out[k] = mongoValue(item)
		}
		return out
	default:
		return v
	}
}
