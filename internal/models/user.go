package models

import "github.com/italosonotos/RelatoRapido/internal/store"

// User is the profile document stored under the identity provider's uid.
type User struct {
	ID           string `json:"id"`
	FullName     string `json:"fullName"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	Avatar       string `json:"avatar"`
	Bio          string `json:"bio"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	CreatedAt    string `json:"createdAt"`
}

// SignUpRequest is the payload for creating an account. Tag rules mirror
// the product validation limits; the validation package produces the
// user-facing field messages.
type SignUpRequest struct {
	FullName     string `json:"fullName" validate:"required,min=2,max=100"`
	Username     string `json:"username" validate:"required,min=3,max=30,alphanumunderscore"`
	Email        string `json:"email" validate:"required,email,max=100"`
	Password     string `json:"password" validate:"required,min=6,max=128"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Map renders the user as store fields, omitting the id.
func (u User) Map() map[string]any {
	return map[string]any{
		"fullName":     u.FullName,
		"username":     u.Username,
		"email":        u.Email,
		"avatar":       u.Avatar,
		"bio":          u.Bio,
		"city":         u.City,
		"state":        u.State,
		"neighborhood": u.Neighborhood,
		"createdAt":    u.CreatedAt,
	}
}

// UserFromDoc rebuilds a user from a store document.
func UserFromDoc(doc store.Document) User {
	return User{
		ID:           doc.ID,
		FullName:     docString(doc.Data, "fullName"),
		Username:     docString(doc.Data, "username"),
		Email:        docString(doc.Data, "email"),
		Avatar:       docString(doc.Data, "avatar"),
		Bio:          docString(doc.Data, "bio"),
		City:         docString(doc.Data, "city"),
		State:        docString(doc.Data, "state"),
		Neighborhood: docString(doc.Data, "neighborhood"),
		CreatedAt:    docString(doc.Data, "createdAt"),
	}
}
