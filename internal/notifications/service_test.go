package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/store"
)

func newTestService() (*Service, *store.MemoryStore) {
	st := store.NewMemoryStore()
	return NewService(st, nil), st
}

func likeFromMaria(ownerID string) LikeEvent {
	return LikeEvent{
		PostOwnerID: ownerID,
		LikerID:     "maria",
		LikerName:   "Maria Silva",
		LikerAvatar: "https://i.pravatar.cc/150?img=3",
		PostID:      "post-1",
		PostImage:   "https://cdn.example.com/post-1.jpg",
	}
}

func TestCreateLikeNotification(t *testing.T) {
	ctx := context.Background()

	t.Run("writes a record for the post owner", func(t *testing.T) {
		svc, _ := newTestService()
		result, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
		require.NoError(t, err)
		assert.False(t, result.Skipped)
		assert.NotEmpty(t, result.ID)

		list, err := svc.FetchNotifications(ctx, "joao", 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		n := list[0]
		assert.Equal(t, "joao", n.RecipientID)
		assert.Equal(t, "maria", n.SenderID)
		assert.Equal(t, "Maria Silva", n.SenderName)
		assert.Equal(t, models.NotificationLike, n.Type)
		assert.Equal(t, "curtiu seu post", n.Message)
		assert.False(t, n.Read)
		assert.NotEmpty(t, n.CreatedAt)
	})

	t.Run("liking your own post writes nothing", func(t *testing.T) {
		svc, st := newTestService()
		result, err := svc.CreateLikeNotification(ctx, likeFromMaria("maria"))
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Empty(t, result.ID)
		assert.Equal(t, 0, st.Writes)
	})

	t.Run("store failure surfaces as an error", func(t *testing.T) {
		svc, st := newTestService()
		st.WriteErr = errors.New("unavailable")
		_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
		assert.Error(t, err)
	})
}

func TestCreateCommentNotification(t *testing.T) {
	ctx := context.Background()

	event := func(text string) CommentEvent {
		return CommentEvent{
			PostOwnerID:   "joao",
			CommenterID:   "maria",
			CommenterName: "Maria Silva",
			PostID:        "post-1",
			CommentText:   text,
		}
	}

	t.Run("short comments appear verbatim", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CreateCommentNotification(ctx, event("que foto linda!"))
		require.NoError(t, err)

		list, err := svc.FetchNotifications(ctx, "joao", 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, models.NotificationComment, list[0].Type)
		assert.Equal(t, `comentou: "que foto linda!"`, list[0].Message)
	})

	t.Run("long comments are previewed at 50 characters", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CreateCommentNotification(ctx, event(strings.Repeat("á", 60)))
		require.NoError(t, err)

		list, err := svc.FetchNotifications(ctx, "joao", 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		want := `comentou: "` + strings.Repeat("á", 50) + `..."`
		assert.Equal(t, want, list[0].Message)
	})

	t.Run("exactly 50 characters is not truncated", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CreateCommentNotification(ctx, event(strings.Repeat("x", 50)))
		require.NoError(t, err)

		list, err := svc.FetchNotifications(ctx, "joao", 0)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.NotContains(t, list[0].Message, "...")
	})

	t.Run("commenting on your own post writes nothing", func(t *testing.T) {
		svc, st := newTestService()
		e := event("oi")
		e.CommenterID = "joao"
		result, err := svc.CreateCommentNotification(ctx, e)
		require.NoError(t, err)
		assert.True(t, result.Skipped)
		assert.Equal(t, 0, st.Writes)
	})
}

func TestFetchNotifications(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		svc.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_, err := svc.CreateLikeNotification(ctx, LikeEvent{
			PostOwnerID: "joao",
			LikerID:     "maria",
			LikerName:   "Maria Silva",
			PostID:      "post-1",
		})
		require.NoError(t, err)
	}

	t.Run("defaults to 20, newest first", func(t *testing.T) {
		list, err := svc.FetchNotifications(ctx, "joao", 0)
		require.NoError(t, err)
		require.Len(t, list, DefaultFetchLimit)
		assert.True(t, list[0].CreatedAt > list[1].CreatedAt)
		for i := 1; i < len(list); i++ {
			assert.GreaterOrEqual(t, list[i-1].CreatedAt, list[i].CreatedAt)
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		list, err := svc.FetchNotifications(ctx, "joao", 5)
		require.NoError(t, err)
		assert.Len(t, list, 5)
	})

	t.Run("other recipients see nothing", func(t *testing.T) {
		list, err := svc.FetchNotifications(ctx, "maria", 0)
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}

func TestSubscribe(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	var snapshots [][]models.Notification
	stop, err := svc.Subscribe(ctx, "joao", func(list []models.Notification) {
		snapshots = append(snapshots, list)
	})
	require.NoError(t, err)
	defer stop()

	require.Len(t, snapshots, 1)
	assert.Empty(t, snapshots[0])

	_, err = svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	require.Len(t, snapshots[1], 1)
	assert.Equal(t, "curtiu seu post", snapshots[1][0].Message)

	stop()
	_, err = svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)
	assert.Len(t, snapshots, 2)
}

func TestSubscribeCapsLiveList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	createAt := func(offset int) {
		svc.now = func() time.Time { return base.Add(time.Duration(offset) * time.Second) }
		_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
		require.NoError(t, err)
	}
	for i := 0; i < LiveLimit+1; i++ {
		createAt(i)
	}

	var latest []models.Notification
	stop, err := svc.Subscribe(ctx, "joao", func(list []models.Notification) {
		latest = list
	})
	require.NoError(t, err)
	defer stop()

	// The list holds the LiveLimit newest records; the oldest fell off.
	require.Len(t, latest, LiveLimit)
	oldest := base.UTC().Format(isoFormat)
	newest := base.Add(time.Duration(LiveLimit) * time.Second).UTC().Format(isoFormat)
	assert.Equal(t, newest, latest[0].CreatedAt)
	for _, n := range latest {
		assert.NotEqual(t, oldest, n.CreatedAt)
	}

	// Another write pushes a fresh snapshot, still capped.
	createAt(LiveLimit + 1)
	require.Len(t, latest, LiveLimit)
	assert.Equal(t, base.Add(time.Duration(LiveLimit+1)*time.Second).UTC().Format(isoFormat), latest[0].CreatedAt)
}

func TestMarkAsRead(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	result, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)

	require.NoError(t, svc.MarkAsRead(ctx, result.ID))
	// Monotonic flag: marking again is still fine.
	require.NoError(t, svc.MarkAsRead(ctx, result.ID))

	list, err := svc.FetchNotifications(ctx, "joao", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)

	assert.Error(t, svc.MarkAsRead(ctx, "missing-id"))
}

func TestMarkAllAsRead(t *testing.T) {
	ctx := context.Background()

	t.Run("flips every unread record", func(t *testing.T) {
		svc, _ := newTestService()
		for i := 0; i < 3; i++ {
			_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
			require.NoError(t, err)
		}
		require.NoError(t, svc.MarkAllAsRead(ctx, "joao"))

		count, err := svc.UnreadCount(ctx, "joao")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("nothing unread issues no write", func(t *testing.T) {
		svc, st := newTestService()
		result, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
		require.NoError(t, err)
		require.NoError(t, svc.MarkAsRead(ctx, result.ID))

		before := st.Writes
		require.NoError(t, svc.MarkAllAsRead(ctx, "joao"))
		assert.Equal(t, before, st.Writes)
	})

	t.Run("batch failure leaves every record unread", func(t *testing.T) {
		svc, st := newTestService()
		for i := 0; i < 3; i++ {
			_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
			require.NoError(t, err)
		}
		st.BatchErr = errors.New("unavailable")
		require.Error(t, svc.MarkAllAsRead(ctx, "joao"))
		st.BatchErr = nil

		count, err := svc.UnreadCount(ctx, "joao")
		require.NoError(t, err)
		assert.Equal(t, 3, count)
	})

	t.Run("scoped to the recipient", func(t *testing.T) {
		svc, _ := newTestService()
		_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
		require.NoError(t, err)
		_, err = svc.CreateLikeNotification(ctx, LikeEvent{PostOwnerID: "ana", LikerID: "maria", PostID: "post-2"})
		require.NoError(t, err)

		require.NoError(t, svc.MarkAllAsRead(ctx, "joao"))

		count, err := svc.UnreadCount(ctx, "ana")
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestUnreadCount(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	count, err := svc.UnreadCount(ctx, "joao")
	require.NoError(t, err)
	assert.Zero(t, count)

	first, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)
	_, err = svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)

	count, err = svc.UnreadCount(ctx, "joao")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, svc.MarkAsRead(ctx, first.ID))
	count, err = svc.UnreadCount(ctx, "joao")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDeleteOldNotifications(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	// Two stale records, one from yesterday.
	svc.now = func() time.Time { return now.AddDate(0, 0, -40) }
	_, err := svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)
	svc.now = func() time.Time { return now.AddDate(0, 0, -31) }
	_, err = svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)
	svc.now = func() time.Time { return now.AddDate(0, 0, -1) }
	_, err = svc.CreateLikeNotification(ctx, likeFromMaria("joao"))
	require.NoError(t, err)

	svc.now = func() time.Time { return now }
	deleted, err := svc.DeleteOldNotifications(ctx, "joao", 0)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	list, err := svc.FetchNotifications(ctx, "joao", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)

	// Second sweep finds nothing and is a no-op.
	deleted, err = svc.DeleteOldNotifications(ctx, "joao", 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
