package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAddAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	id1, err := s.Add(ctx, "posts", map[string]any{"content": "a"})
	require.NoError(t, err)
	id2, err := s.Add(ctx, "posts", map[string]any{"content": "b"})
	require.NoError(t, err)

	assert.Equal(t, "doc-0001", id1)
	assert.Equal(t, "doc-0002", id2)
	assert.Equal(t, 2, s.Writes)
}

func TestMemoryStoreGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	_, err := s.Get(ctx, "posts", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "posts", "p1", map[string]any{"content": "olá"}))
	doc, err := s.Get(ctx, "posts", "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", doc.ID)
	assert.Equal(t, "olá", doc.Data["content"])
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "n", "a", map[string]any{"user": "u1", "rank": 3}))
	require.NoError(t, s.Set(ctx, "n", "b", map[string]any{"user": "u1", "rank": 1}))
	require.NoError(t, s.Set(ctx, "n", "c", map[string]any{"user": "u2", "rank": 2}))

	t.Run("filter", func(t *testing.T) {
		docs, err := s.Query(ctx, "n", []Filter{Where("user", "==", "u1")}, nil, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 2)
	})

	t.Run("order desc with limit", func(t *testing.T) {
		docs, err := s.Query(ctx, "n", nil, []Order{{Field: "rank", Desc: true}}, 2)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "a", docs[0].ID)
		assert.Equal(t, "c", docs[1].ID)
	})

	t.Run("equal sort keys fall back to id order", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "n", "d", map[string]any{"user": "u3", "rank": 1}))
		docs, err := s.Query(ctx, "n", nil, []Order{{Field: "rank"}}, 0)
		require.NoError(t, err)
		require.Len(t, docs, 4)
		assert.Equal(t, "b", docs[0].ID)
		assert.Equal(t, "d", docs[1].ID)
	})

	t.Run("range operator", func(t *testing.T) {
		docs, err := s.Query(ctx, "n", []Filter{Where("rank", "<", 3)}, nil, 0)
		require.NoError(t, err)
		assert.Len(t, docs, 3)
	})
}

func TestMemoryStoreUpdateSentinels(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "posts", "p1", map[string]any{"likes": []any{"u1"}}))

	t.Run("array union skips duplicates", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, "posts", "p1", map[string]any{"likes": ArrayUnion("u2")}))
		require.NoError(t, s.Update(ctx, "posts", "p1", map[string]any{"likes": ArrayUnion("u2")}))
		doc, err := s.Get(ctx, "posts", "p1")
		require.NoError(t, err)
		assert.Equal(t, []any{"u1", "u2"}, doc.Data["likes"])
	})

	t.Run("array remove", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, "posts", "p1", map[string]any{"likes": ArrayRemove("u1")}))
		doc, err := s.Get(ctx, "posts", "p1")
		require.NoError(t, err)
		assert.Equal(t, []any{"u2"}, doc.Data["likes"])
	})

	t.Run("server timestamp resolves to a time", func(t *testing.T) {
		require.NoError(t, s.Update(ctx, "posts", "p1", map[string]any{"editedAt": ServerTimestamp}))
		doc, err := s.Get(ctx, "posts", "p1")
		require.NoError(t, err)
		assert.NotNil(t, doc.Data["editedAt"])
	})

	t.Run("update of a missing document", func(t *testing.T) {
		err := s.Update(ctx, "posts", "nope", map[string]any{"x": 1})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreSubscribe(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "n", "a", map[string]any{"user": "u1"}))

	var snapshots [][]Document
	stop, err := s.Subscribe(ctx, "n", []Filter{Where("user", "==", "u1")}, nil, 0,
		func(docs []Document) { snapshots = append(snapshots, docs) }, nil)
	require.NoError(t, err)

	// Initial state arrives synchronously.
	require.Len(t, snapshots, 1)
	assert.Len(t, snapshots[0], 1)

	require.NoError(t, s.Set(ctx, "n", "b", map[string]any{"user": "u1"}))
	require.Len(t, snapshots, 2)
	assert.Len(t, snapshots[1], 2)

	// Writes outside the filter still push the (unchanged) result set.
	require.NoError(t, s.Set(ctx, "n", "c", map[string]any{"user": "u2"}))
	require.Len(t, snapshots, 3)
	assert.Len(t, snapshots[2], 2)

	stop()
	stop() // idempotent
	require.NoError(t, s.Set(ctx, "n", "d", map[string]any{"user": "u1"}))
	assert.Len(t, snapshots, 3)
}

func TestMemoryStoreBatchAtomicity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Set(ctx, "n", "a", map[string]any{"read": false}))
	require.NoError(t, s.Set(ctx, "n", "b", map[string]any{"read": false}))

	t.Run("injected failure applies nothing", func(t *testing.T) {
		s.BatchErr = errors.New("unavailable")
		b := s.Batch()
		b.Update("n", "a", map[string]any{"read": true})
		b.Update("n", "b", map[string]any{"read": true})
		require.Error(t, b.Commit(ctx))
		s.BatchErr = nil

		doc, err := s.Get(ctx, "n", "a")
		require.NoError(t, err)
		assert.Equal(t, false, doc.Data["read"])
	})

	t.Run("missing target fails the whole batch", func(t *testing.T) {
		b := s.Batch()
		b.Update("n", "a", map[string]any{"read": true})
		b.Update("n", "ghost", map[string]any{"read": true})
		require.ErrorIs(t, b.Commit(ctx), ErrNotFound)

		doc, err := s.Get(ctx, "n", "a")
		require.NoError(t, err)
		assert.Equal(t, false, doc.Data["read"])
	})

	t.Run("mixed update and delete commits as one write", func(t *testing.T) {
		before := s.Writes
		b := s.Batch()
		b.Update("n", "a", map[string]any{"read": true})
		b.Delete("n", "b")
		require.NoError(t, b.Commit(ctx))
		assert.Equal(t, before+1, s.Writes)

		doc, err := s.Get(ctx, "n", "a")
		require.NoError(t, err)
		assert.Equal(t, true, doc.Data["read"])
		_, err = s.Get(ctx, "n", "b")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStoreUniqueConstraint(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.Unique("users", "username")

	require.NoError(t, s.Set(ctx, "users", "u1", map[string]any{"username": "italo"}))

	err := s.Set(ctx, "users", "u2", map[string]any{"username": "italo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique constraint")

	// Re-writing the same document keeps its own value.
	require.NoError(t, s.Set(ctx, "users", "u1", map[string]any{"username": "italo", "bio": "oi"}))
}

func TestMemoryStoreWriteErr(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.WriteErr = errors.New("down")

	_, err := s.Add(ctx, "posts", map[string]any{})
	assert.Error(t, err)
	assert.Error(t, s.Set(ctx, "posts", "p1", map[string]any{}))
	assert.Error(t, s.Delete(ctx, "posts", "p1"))
	assert.Equal(t, 0, s.Writes)
}
