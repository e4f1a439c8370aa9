// Package feed owns posts: creation, the timeline, likes and comments.
// Like and comment writes fan out notifications to the post owner through
// the notifications service.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/notifications"
	"github.com/italosonotos/RelatoRapido/internal/store"
	"github.com/italosonotos/RelatoRapido/internal/validation"
)

const (
	postsCollection = "posts"

	// DefaultFeedLimit bounds the timeline read.
	DefaultFeedLimit = 50

	isoFormat = "2006-01-02T15:04:05.000Z07:00"
)

// ErrNotPostOwner is returned when a user tries to delete someone else's
// post.
var ErrNotPostOwner = errors.New("only the post owner can delete a post")

// Service performs post operations against the store.
type Service struct {
	store         store.Store
	notifications *notifications.Service
	log           *zap.Logger
}

// NewService creates a feed service. A nil logger disables logging.
func NewService(st store.Store, notif *notifications.Service, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, notifications: notif, log: log}
}

// CreatePostInput is a candidate post from the composer.
type CreatePostInput struct {
	Content  string
	ImageURL string
	Location string
}

// CreatePost validates and stores a new post. The timestamp is assigned
// by the store; likes and comments start empty.
func (s *Service) CreatePost(ctx context.Context, author models.User, input CreatePostInput) (string, error) {
	result := validation.ValidatePost(validation.PostInput{
		Content:  input.Content,
		ImageURL: input.ImageURL,
	})
	if err := validation.ErrorFromResult(result); err != nil {
		return "", err
	}

	postType := models.PostTypeText
	if input.ImageURL != "" {
		postType = models.PostTypeImage
	}

	id, err := s.store.Add(ctx, postsCollection, map[string]any{
		"userId":    author.ID,
		"content":   input.Content,
		"type":      postType,
		"imageUrl":  input.ImageURL,
		"location":  input.Location,
		"likes":     []any{},
		"comments":  []any{},
		"timestamp": store.ServerTimestamp,
	})
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}
	return id, nil
}

// GetPost reads one post.
func (s *Service) GetPost(ctx context.Context, postID string) (models.Post, error) {
	doc, err := s.store.Get(ctx, postsCollection, postID)
	if err != nil {
		return models.Post{}, fmt.Errorf("get post: %w", err)
	}
	return models.PostFromDoc(doc), nil
}

// FetchFeed reads the timeline, newest first. A limit <= 0 falls back to
// DefaultFeedLimit.
func (s *Service) FetchFeed(ctx context.Context, limit int) ([]models.Post, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	docs, err := s.store.Query(ctx, postsCollection, nil,
		[]store.Order{{Field: "timestamp", Desc: true}}, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	return postsFromDocs(docs), nil
}

// SubscribeFeed opens a live timeline view. Stream errors are logged and
// terminal, same contract as the notification subscription.
func (s *Service) SubscribeFeed(ctx context.Context, limit int, onChange func([]models.Post)) (store.UnsubscribeFunc, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	stop, err := s.store.Subscribe(ctx, postsCollection, nil,
		[]store.Order{{Field: "timestamp", Desc: true}}, limit,
		func(docs []store.Document) {
			onChange(postsFromDocs(docs))
		},
		func(err error) {
			s.log.Error("feed subscription failed", zap.Error(err))
		})
	if err != nil {
		return nil, fmt.Errorf("subscribe to feed: %w", err)
	}
	return stop, nil
}

// ToggleLike adds or removes the actor's like on a post and reports the
// new state. A fresh like fans out a notification to the post owner; a
// fan-out failure is logged but never fails the like itself.
func (s *Service) ToggleLike(ctx context.Context, actor models.User, postID string) (bool, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return false, err
	}

	if post.LikedBy(actor.ID) {
		err := s.store.Update(ctx, postsCollection, postID, map[string]any{
			"likes": store.ArrayRemove(actor.ID),
		})
		if err != nil {
			return false, fmt.Errorf("unlike post: %w", err)
		}
		return false, nil
	}

	err = s.store.Update(ctx, postsCollection, postID, map[string]any{
		"likes": store.ArrayUnion(actor.ID),
	})
	if err != nil {
		return false, fmt.Errorf("like post: %w", err)
	}

	_, err = s.notifications.CreateLikeNotification(ctx, notifications.LikeEvent{
		PostOwnerID: post.UserID,
		LikerID:     actor.ID,
		LikerName:   actor.FullName,
		LikerAvatar: actor.Avatar,
		PostID:      post.ID,
		PostImage:   post.ImageURL,
	})
	if err != nil {
		s.log.Warn("like notification fan-out failed", zap.Error(err), zap.String("postId", postID))
	}
	return true, nil
}

// AddComment validates and appends a comment, then fans out a
// notification carrying the comment preview. The author's name and avatar
// are snapshotted into the comment.
func (s *Service) AddComment(ctx context.Context, actor models.User, postID, text string) (models.Comment, error) {
	result := validation.ValidateComment(text)
	if err := validation.ErrorFromResult(result); err != nil {
		return models.Comment{}, err
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return models.Comment{}, err
	}

	comment := models.Comment{
		ID:         uuid.NewString(),
		Text:       text,
		UserID:     actor.ID,
		UserName:   actor.FullName,
		UserAvatar: actor.Avatar,
		Timestamp:  time.Now().UTC().Format(isoFormat),
	}

	err = s.store.Update(ctx, postsCollection, postID, map[string]any{
		"comments": store.ArrayUnion(comment.Map()),
	})
	if err != nil {
		return models.Comment{}, fmt.Errorf("add comment: %w", err)
	}

	_, err = s.notifications.CreateCommentNotification(ctx, notifications.CommentEvent{
		PostOwnerID:     post.UserID,
		CommenterID:     actor.ID,
		CommenterName:   actor.FullName,
		CommenterAvatar: actor.Avatar,
		PostID:          post.ID,
		CommentText:     text,
		PostImage:       post.ImageURL,
	})
	if err != nil {
		s.log.Warn("comment notification fan-out failed", zap.Error(err), zap.String("postId", postID))
	}
	return comment, nil
}

// DeletePost removes a post. Only the owner may delete.
func (s *Service) DeletePost(ctx context.Context, actor models.User, postID string) error {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return err
	}
	if post.UserID != actor.ID {
		return ErrNotPostOwner
	}
	if err := s.store.Delete(ctx, postsCollection, postID); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

func postsFromDocs(docs []store.Document) []models.Post {
	out := make([]models.Post, len(docs))
	for i, doc := range docs {
		out[i] = models.PostFromDoc(doc)
	}
	return out
}
