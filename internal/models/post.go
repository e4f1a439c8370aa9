package models

import (
	"time"

	"github.com/italosonotos/RelatoRapido/internal/store"
)

// Post types.
const (
	PostTypeText  = "text"
	PostTypeImage = "image"
)

// Post is a feed entry. Likes is a deduplicated set of user ids; Comments
// keeps append order. Timestamp is assigned by the store at creation.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	Likes     []string  `json:"likes"`
	Comments  []Comment `json:"comments"`
	Location  string    `json:"location,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LikedBy reports whether the given user already likes the post.
func (p Post) LikedBy(userID string) bool {
	for _, id := range p.Likes {
		if id == userID {
			return true
		}
	}
	return false
}

// PostFromDoc rebuilds a post from a store document.
func PostFromDoc(doc store.Document) Post {
	post := Post{
		ID:        doc.ID,
		UserID:    docString(doc.Data, "userId"),
		Content:   docString(doc.Data, "content"),
		Type:      docString(doc.Data, "type"),
		ImageURL:  docString(doc.Data, "imageUrl"),
		Likes:     docStringSlice(doc.Data, "likes"),
		Location:  docString(doc.Data, "location"),
		Timestamp: docTime(doc.Data, "timestamp"),
	}
	for _, raw := range docMapSlice(doc.Data, "comments") {
		post.Comments = append(post.Comments, commentFromMap(raw))
	}
	return post
}
