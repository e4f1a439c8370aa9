package accounts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"firebase.google.com/go/v4/auth"
	"github.com/google/uuid"
)

// ErrInvalidCredentials is returned by providers when a sign-in attempt
// fails verification.
var ErrInvalidCredentials = errors.New("invalid credentials")

// IdentityProvider issues and verifies the opaque stable user ids the rest
// of the module treats as recipient/sender identity.
type IdentityProvider interface {
	// CreateUser registers a credential and returns the new uid.
	CreateUser(ctx context.Context, email, password string) (string, error)
	// VerifyToken validates a client-obtained ID token and returns the uid.
	VerifyToken(ctx context.Context, idToken string) (string, error)
}

// FirebaseProvider adapts the Firebase Auth admin client.
type FirebaseProvider struct {
	client *auth.Client
}

// NewFirebaseProvider wraps an initialized auth client.
func NewFirebaseProvider(client *auth.Client) *FirebaseProvider {
	return &FirebaseProvider{client: client}
}

func (p *FirebaseProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	record, err := p.client.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		return "", fmt.Errorf("firebase create user: %w", err)
	}
	return record.UID, nil
}

func (p *FirebaseProvider) VerifyToken(ctx context.Context, idToken string) (string, error) {
	token, err := p.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("firebase verify token: %w", err)
	}
	return token.UID, nil
}

// LocalProvider is an in-process provider for tests and offline
// development. Uids are random UUIDs; the "token" accepted by VerifyToken
// is the uid itself.
type LocalProvider struct {
	mu    sync.Mutex
	users map[string]string // uid -> email
}

// NewLocalProvider returns an empty LocalProvider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{users: make(map[string]string)}
}

func (p *LocalProvider) CreateUser(ctx context.Context, email, password string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.users {
		if existing == email {
			return "", fmt.Errorf("email already registered")
		}
	}
	uid := uuid.NewString()
	p.users[uid] = email
	return uid, nil
}

func (p *LocalProvider) VerifyToken(ctx context.Context, idToken string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.users[idToken]; !ok {
		return "", ErrInvalidCredentials
	}
	return idToken, nil
}
