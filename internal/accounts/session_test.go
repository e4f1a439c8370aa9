package accounts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italosonotos/RelatoRapido/internal/models"
	"github.com/italosonotos/RelatoRapido/internal/store"
	"github.com/italosonotos/RelatoRapido/internal/validation"
)

func newTestSession() (*Session, *store.MemoryStore) {
	st := store.NewMemoryStore()
	st.Unique(usersCollection, "username")
	return NewSession(NewLocalProvider(), st, nil), st
}

func signUpRequest() models.SignUpRequest {
	return models.SignUpRequest{
		FullName: "João Pereira",
		Username: "joao_p",
		Email:    "joao@example.com",
		Password: "segredo123",
		City:     "Recife",
		State:    "PE",
	}
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates the account and signs the session in", func(t *testing.T) {
		session, st := newTestSession()
		user, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "joao_p", user.Username)
		assert.True(t, strings.HasPrefix(user.Avatar, "https://i.pravatar.cc/150?img="))
		assert.NotEmpty(t, user.CreatedAt)
		assert.Equal(t, user, session.CurrentUser())

		doc, err := st.Get(ctx, usersCollection, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "João Pereira", doc.Data["fullName"])
		assert.Equal(t, "Recife", doc.Data["city"])
	})

	t.Run("rejects an invalid payload with field messages", func(t *testing.T) {
		session, st := newTestSession()
		req := signUpRequest()
		req.Username = "ab"
		req.Password = "123"

		_, err := session.SignUp(ctx, req)
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, validation.MinLengthMessage("Nome de usuário", 3), verr.Fields["username"])
		assert.Equal(t, validation.MinLengthMessage("Senha", 6), verr.Fields["password"])
		assert.Equal(t, 0, st.Writes)
		assert.Nil(t, session.CurrentUser())
	})

	t.Run("rejects a taken username", func(t *testing.T) {
		session, _ := newTestSession()
		_, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		req := signUpRequest()
		req.Email = "outro@example.com"
		_, err = session.SignUp(ctx, req)
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		session, _ := newTestSession()
		_, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		req := signUpRequest()
		req.Username = "joao_p2"
		_, err = session.SignUp(ctx, req)
		assert.Error(t, err)
	})
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession()

	created, err := session.SignUp(ctx, signUpRequest())
	require.NoError(t, err)
	session.SignOut()
	require.Nil(t, session.CurrentUser())

	t.Run("valid token loads the profile", func(t *testing.T) {
		// The local provider accepts the uid as its token.
		user, err := session.SignIn(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Username, user.Username)
		assert.Equal(t, user, session.CurrentUser())
	})

	t.Run("bad token", func(t *testing.T) {
		session.SignOut()
		_, err := session.SignIn(ctx, "forged-token")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Nil(t, session.CurrentUser())
	})
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a signed-in user", func(t *testing.T) {
		session, _ := newTestSession()
		_, err := session.UpdateProfile(ctx, UpdateProfileInput{FullName: "João Pereira"})
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("rejects an oversized bio", func(t *testing.T) {
		session, _ := newTestSession()
		_, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		_, err = session.UpdateProfile(ctx, UpdateProfileInput{
			FullName: "João Pereira",
			Bio:      strings.Repeat("b", 501),
		})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "bio")
	})

	t.Run("persists edits and refreshes the session", func(t *testing.T) {
		session, st := newTestSession()
		created, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		updated, err := session.UpdateProfile(ctx, UpdateProfileInput{
			FullName:     "João P. Pereira",
			Bio:          "fotógrafo de rua",
			City:         "Olinda",
			State:        "PE",
			Neighborhood: "Carmo",
		})
		require.NoError(t, err)
		assert.Equal(t, "João P. Pereira", updated.FullName)
		assert.Equal(t, "fotógrafo de rua", updated.Bio)
		assert.Equal(t, updated, session.CurrentUser())
		// Untouched fields survive the partial write.
		assert.Equal(t, created.Avatar, updated.Avatar)

		doc, err := st.Get(ctx, usersCollection, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "Olinda", doc.Data["city"])
		assert.Equal(t, created.Username, doc.Data["username"])
	})

	t.Run("avatar changes only when provided", func(t *testing.T) {
		session, _ := newTestSession()
		created, err := session.SignUp(ctx, signUpRequest())
		require.NoError(t, err)

		updated, err := session.UpdateProfile(ctx, UpdateProfileInput{
			FullName: created.FullName,
			Avatar:   "https://cdn.example.com/nova.jpg",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://cdn.example.com/nova.jpg", updated.Avatar)
	})
}
