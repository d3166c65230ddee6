package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/stocklane/stocklane/internal/shared"
)

type fakeUsers struct {
	rows map[string]User
}

func (f *fakeUsers) FindByEmail(ctx context.Context, email string) (User, error) {
	u, ok := f.rows[email]
	if !ok {
		return User{}, ErrInvalidCredentials
	}
	return u, nil
}

func newTestService(t *testing.T) (*Service, *TokenStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)

	users := &fakeUsers{rows: map[string]User{
		"ops@example.com": {ID: 10, Email: "ops@example.com", PasswordHash: string(hash), Active: true},
		"off@example.com": {ID: 11, Email: "off@example.com", PasswordHash: string(hash), Active: false},
	}}
	tokens := NewTokenStore(client, time.Hour)
	return NewService(users, tokens), tokens
}

func TestLoginIssuesResolvableToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, actor, err := svc.Login(ctx, "ops@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, int64(10), actor.ID)

	resolved, err := svc.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, shared.Actor{ID: 10, Email: "ops@example.com"}, resolved)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, "ops@example.com", "wrong-password")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// inactive accounts fail identically to bad passwords
	_, _, err = svc.Login(ctx, "off@example.com", "correct-horse")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, _, err := svc.Login(ctx, "ops@example.com", "correct-horse")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, token))

	_, err = svc.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrTokenNotFound)
}

func TestResolveUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrTokenNotFound)
}
