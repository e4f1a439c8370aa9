// Package notifications implements like/comment fan-out and the unread
// read model. A user action on someone else's post creates one
// notification record for the post owner; the owner's clients follow a
// live, capped view of their records and flip read flags through the
// service.
package notifications

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/store"
)

const (
	collection = "notifications"

	// DefaultFetchLimit bounds one-shot paged reads.
	DefaultFetchLimit = 20
	// LiveLimit caps the live-subscribed list per recipient.
	LiveLimit = 30
	// DefaultRetentionDays is the age cutoff for the retention sweep.
	DefaultRetentionDays = 30

	likeMessage          = "curtiu seu post"
	commentPreviewLength = 50

	// isoFormat is a fixed-width RFC 3339 rendering with milliseconds, so
	// createdAt strings sort chronologically as plain strings.
	isoFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Service owns the notifications collection. Every method returns a plain
// error on store failure; nothing panics across this boundary.
type Service struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
}

// NewService creates a Service. A nil logger disables logging.
func NewService(st store.Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, log: log, now: time.Now}
}

// CreateResult reports the outcome of a create call. Skipped is set when
// self-action suppression applied and nothing was written.
type CreateResult struct {
	ID      string
	Skipped bool
}

// LikeEvent carries the actor snapshot for a like fan-out.
type LikeEvent struct {
	PostOwnerID string
	LikerID     string
	LikerName   string
	LikerAvatar string
	PostID      string
	PostImage   string
}

// CreateLikeNotification writes a like record for the post owner. Liking
// your own post is a silent no-op.
func (s *Service) CreateLikeNotification(ctx context.Context, event LikeEvent) (CreateResult, error) {
	if event.PostOwnerID == event.LikerID {
		return CreateResult{Skipped: true}, nil
	}

	record := models.Notification{
		RecipientID:  event.PostOwnerID,
		SenderID:     event.LikerID,
		SenderName:   event.LikerName,
		SenderAvatar: event.LikerAvatar,
		Type:         models.NotificationLike,
		PostID:       event.PostID,
		PostImage:    event.PostImage,
		Message:      likeMessage,
		Read:         false,
		CreatedAt:    s.now().UTC().Format(isoFormat),
	}

	id, err := s.store.Add(ctx, collection, record.Map())
	if err != nil {
		s.log.Error("failed to create like notification", zap.Error(err), zap.String("postId", event.PostID))
		return CreateResult{}, fmt.Errorf("create like notification: %w", err)
	}
	return CreateResult{ID: id}, nil
}

// CommentEvent carries the actor snapshot and text for a comment fan-out.
type CommentEvent struct {
	PostOwnerID     string
	CommenterID     string
	CommenterName   string
	CommenterAvatar string
	PostID          string
	CommentText     string
	PostImage       string
}

// CreateCommentNotification writes a comment record for the post owner
// with a preview of the comment text. Commenting on your own post is a
// silent no-op.
func (s *Service) CreateCommentNotification(ctx context.Context, event CommentEvent) (CreateResult, error) {
	if event.PostOwnerID == event.CommenterID {
		return CreateResult{Skipped: true}, nil
	}

	record := models.Notification{
		RecipientID:  event.PostOwnerID,
		SenderID:     event.CommenterID,
		SenderName:   event.CommenterName,
		SenderAvatar: event.CommenterAvatar,
		Type:         models.NotificationComment,
		PostID:       event.PostID,
		PostImage:    event.PostImage,
		Message:      fmt.Sprintf("comentou: \"%s\"", commentPreview(event.CommentText)),
		Read:         false,
		CreatedAt:    s.now().UTC().Format(isoFormat),
	}

	id, err := s.store.Add(ctx, collection, record.Map())
	if err != nil {
		s.log.Error("failed to create comment notification", zap.Error(err), zap.String("postId", event.PostID))
		return CreateResult{}, fmt.Errorf("create comment notification: %w", err)
	}
	return CreateResult{ID: id}, nil
}

// commentPreview truncates to the first 50 characters plus an ellipsis.
func commentPreview(text string) string {
	runes := []rune(text)
	if len(runes) <= commentPreviewLength {
		return text
	}
	return string(runes[:commentPreviewLength]) + "..."
}

// FetchNotifications is the one-shot paged read, newest first. A limit
// <= 0 falls back to DefaultFetchLimit.
func (s *Service) FetchNotifications(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultFetchLimit
	}
	docs, err := s.store.Query(ctx, collection,
		[]store.Filter{store.Where("recipientId", "==", userID)},
		[]store.Order{{Field: "createdAt", Desc: true}},
		limit)
	if err != nil {
		return nil, fmt.Errorf("fetch notifications: %w", err)
	}
	return fromDocs(docs), nil
}

// Subscribe opens the live view of a recipient's newest records, capped at
// LiveLimit. onChange receives the full current list on every store push,
// including the initial snapshot. Stream errors are logged and leave the
// subscription terminal; reconnection is the caller's decision.
func (s *Service) Subscribe(ctx context.Context, userID string, onChange func([]models.Notification)) (store.UnsubscribeFunc, error) {
	stop, err := s.store.Subscribe(ctx, collection,
		[]store.Filter{store.Where("recipientId", "==", userID)},
		[]store.Order{{Field: "createdAt", Desc: true}},
		LiveLimit,
		func(docs []store.Document) {
			onChange(fromDocs(docs))
		},
		func(err error) {
			s.log.Error("notification subscription failed", zap.Error(err), zap.String("userId", userID))
		})
	if err != nil {
		return nil, fmt.Errorf("subscribe to notifications: %w", err)
	}
	return stop, nil
}

// MarkAsRead flips a record to read. The flag is monotonic, so marking an
// already-read record again succeeds without effect.
func (s *Service) MarkAsRead(ctx context.Context, notificationID string) error {
	if err := s.store.Update(ctx, collection, notificationID, map[string]any{"read": true}); err != nil {
		return fmt.Errorf("mark notification as read: %w", err)
	}
	return nil
}

// MarkAllAsRead flips every unread record of a recipient in one atomic
// batch. With nothing unread it returns without issuing a write.
func (s *Service) MarkAllAsRead(ctx context.Context, userID string) error {
	docs, err := s.store.Query(ctx, collection, []store.Filter{
		store.Where("recipientId", "==", userID),
		store.Where("read", "==", false),
	}, nil, 0)
	if err != nil {
		return fmt.Errorf("mark all as read: %w", err)
	}
	if len(docs) == 0 {
		return nil
	}

	batch := s.store.Batch()
	for _, doc := range docs {
		batch.Update(collection, doc.ID, map[string]any{"read": true})
	}
	if err := batch.Commit(ctx); err != nil {
		return fmt.Errorf("mark all as read: %w", err)
	}
	return nil
}

// UnreadCount is the one-shot badge count, independent of any live
// subscription.
func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	docs, err := s.store.Query(ctx, collection, []store.Filter{
		store.Where("recipientId", "==", userID),
		store.Where("read", "==", false),
	}, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return len(docs), nil
}

// DeleteOldNotifications batch-deletes a recipient's records older than
// daysOld days (DefaultRetentionDays when <= 0) and reports how many went.
func (s *Service) DeleteOldNotifications(ctx context.Context, userID string, daysOld int) (int, error) {
	if daysOld <= 0 {
		daysOld = DefaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -daysOld).Format(isoFormat)

	docs, err := s.store.Query(ctx, collection, []store.Filter{
		store.Where("recipientId", "==", userID),
		store.Where("createdAt", "<", cutoff),
	}, nil, 0)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := s.store.Batch()
	for _, doc := range docs {
		batch.Delete(collection, doc.ID)
	}
	if err := batch.Commit(ctx); err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	return len(docs), nil
}

func fromDocs(docs []store.Document) []models.Notification {
	out := make([]models.Notification, len(docs))
	for i, doc := range docs {
		out[i] = models.NotificationFromDoc(doc)
	}
	return out
}
