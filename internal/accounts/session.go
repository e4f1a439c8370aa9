// Package accounts owns sign-up, sign-in and the authenticated session.
// The session is an explicitly constructed object handed to whatever needs
// the current user; there is no process-wide singleton.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/store"
	"github.com/italosonotos/RelatoRapido/internal/validation"
)

const (
	usersCollection = "users"

	isoFormat = "2006-01-02T15:04:05.000Z07:00"
)

// ErrUsernameTaken is returned when the requested username is already in
// use by another account.
var ErrUsernameTaken = errors.New("este nome de usuário já está em uso")

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not authenticated")

// Session holds the authenticated user and performs account operations
// against the identity provider and the store.
type Session struct {
	provider IdentityProvider
	store    store.Store
	log      *zap.Logger
	user     *models.User
}

// NewSession creates a signed-out session.
func NewSession(provider IdentityProvider, st store.Store, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{provider: provider, store: st, log: log}
}

// SignUp validates the request, claims the username, registers the
// credential with the identity provider and writes the profile document
// under the issued uid.
//
// The username pre-check below is best effort: on backends with a unique
// constraint (Mongo, the in-memory store) the store itself rejects the
// duplicate, which is what actually closes the race between two
// concurrent sign-ups.
func (s *Session) SignUp(ctx context.Context, req models.SignUpRequest) (*models.User, error) {
	result := validation.ValidateUser(validation.UserInput{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: &req.Password,
	})
	if err := validation.ErrorFromResult(result); err != nil {
		return nil, err
	}
	if err := validation.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("invalid sign-up request: %w", err)
	}

	existing, err := s.store.Query(ctx, usersCollection,
		[]store.Filter{store.Where("username", "==", req.Username)}, nil, 1)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrUsernameTaken
	}

	uid, err := s.provider.CreateUser(ctx, req.Email, req.Password)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}

	user := models.User{
		ID:           uid,
		FullName:     req.FullName,
		Username:     req.Username,
		Email:        req.Email,
		Avatar:       randomAvatar(),
		Bio:          "",
		City:         req.City,
		State:        req.State,
		Neighborhood: req.Neighborhood,
		CreatedAt:    time.Now().UTC().Format(isoFormat),
	}
	if err := s.store.Set(ctx, usersCollection, uid, user.Map()); err != nil {
		return nil, fmt.Errorf("save profile: %w", err)
	}

	s.user = &user
	s.log.Info("user signed up", zap.String("userId", uid), zap.String("username", user.Username))
	return &user, nil
}

// SignIn verifies a client-obtained ID token and loads the profile into
// the session.
func (s *Session) SignIn(ctx context.Context, idToken string) (*models.User, error) {
	uid, err := s.provider.VerifyToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("sign in: %w", err)
	}

	doc, err := s.store.Get(ctx, usersCollection, uid)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	user := models.UserFromDoc(doc)
	s.user = &user
	s.log.Info("user signed in", zap.String("userId", uid))
	return &user, nil
}

// SignOut clears the session.
func (s *Session) SignOut() {
	s.user = nil
}

// CurrentUser returns the signed-in user, or nil.
func (s *Session) CurrentUser() *models.User {
	return s.user
}

// UpdateProfileInput carries editable profile fields. Password is absent
// on purpose: the validation engine skips password rules on edits.
type UpdateProfileInput struct {
	FullName     string
	Bio          string
	City         string
	State        string
	Neighborhood string
	Avatar       string
}

// UpdateProfile validates and persists profile edits for the signed-in
// user.
func (s *Session) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*models.User, error) {
	if s.user == nil {
		return nil, ErrNotAuthenticated
	}

	result := validation.ValidateUser(validation.UserInput{
		FullName: input.FullName,
		Username: s.user.Username,
		Email:    s.user.Email,
		Bio:      input.Bio,
	})
	if err := validation.ErrorFromResult(result); err != nil {
		return nil, err
	}

	fields := map[string]any{
		"fullName":     input.FullName,
		"bio":          input.Bio,
		"city":         input.City,
		"state":        input.State,
		"neighborhood": input.Neighborhood,
	}
	if input.Avatar != "" {
		fields["avatar"] = input.Avatar
	}
	if err := s.store.Update(ctx, usersCollection, s.user.ID, fields); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated := *s.user
	updated.FullName = input.FullName
	updated.Bio = input.Bio
	updated.City = input.City
	updated.State = input.State
	updated.Neighborhood = input.Neighborhood
	if input.Avatar != "" {
		updated.Avatar = input.Avatar
	}
	s.user = &updated
	return &updated, nil
}

// randomAvatar picks one of ten placeholder avatars for new accounts.
func randomAvatar() string {
	return fmt.Sprintf("https://i.pravatar.cc/150?img=%d", rand.IntN(10)+1)
}
