package models

import "github.com/italosonotos/RelatoRapido/internal/store"

// Notification types.
const (
	NotificationLike    = "like"
	NotificationComment = "comment"
)

// Notification is one fan-out record targeted at the owner of the post
// that was acted on. Sender fields are denormalized snapshots taken at
// creation time and intentionally never refreshed.
type Notification struct {
	ID           string `json:"id"`
	RecipientID  string `json:"recipientId"`
	SenderID     string `json:"senderId"`
	SenderName   string `json:"senderName"`
	SenderAvatar string `json:"senderAvatar"`
	Type         string `json:"type"`
	PostID       string `json:"postId"`
	PostImage    string `json:"postImage,omitempty"`
	Message      string `json:"message"`
	Read         bool   `json:"read"`
	CreatedAt    string `json:"createdAt"` // ISO-8601, creation order key
}

// Map renders the notification as store fields, omitting the id.
func (n Notification) Map() map[string]any {
	return map[string]any{
		"recipientId":  n.RecipientID,
		"senderId":     n.SenderID,
		"senderName":   n.SenderName,
		"senderAvatar": n.SenderAvatar,
		"type":         n.Type,
		"postId":       n.PostID,
		"postImage":    n.PostImage,
		"message":      n.Message,
		"read":         n.Read,
		"createdAt":    n.CreatedAt,
	}
}

// NotificationFromDoc rebuilds a notification from a store document.
func NotificationFromDoc(doc store.Document) Notification {
	return Notification{
		ID:           doc.ID,
		RecipientID:  docString(doc.Data, "recipientId"),
		SenderID:     docString(doc.Data, "senderId"),
		SenderName:   docString(doc.Data, "senderName"),
		SenderAvatar: docString(doc.Data, "senderAvatar"),
		Type:         docString(doc.Data, "type"),
		PostID:       docString(doc.Data, "postId"),
		PostImage:    docString(doc.Data, "postImage"),
		Message:      docString(doc.Data, "message"),
		Read:         docBool(doc.Data, "read"),
		CreatedAt:    docString(doc.Data, "createdAt"),
	}
}
