package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faunatrack/server/internal/db"
	"github.com/faunatrack/server/internal/testutil"
)

func newTestService(t *testing.T) (*Service, *db.DB) {
	t.Helper()
	database := testutil.NewTestDB(t)
	tokens := NewTokenManager(testSecret, "species-tracker", time.Hour)
	return NewService(database, testutil.NewTestUoW(database), tokens, nil), database
}

func TestRegisterLoginMe(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, RegisterInput{Username: "  alice ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, RoleRanger, user.Role)

	result, err := svc.Login(ctx, LoginInput{Username: "alice", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, user.ID, result.User.ID)

	claims, err := svc.tokens.ParseAccessToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Sub)

	me, err := svc.Me(ctx, claims.Sub)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Username)

	events, err := db.ListAuditEvents(ctx, database, db.EventAuthRegister)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, user.ID, events[0].EntityID)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "12345"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Username: " ", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Role: "poacher"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	user, err := svc.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Role: RoleResearcher})
	require.NoError(t, err)
	assert.Equal(t, RoleResearcher, user.Role)

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Password: "another1"})
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLoginFailures(t *testing.T) {
	svc, database := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Username: "carol", Password: "secret1"})
	require.NoError(t, err)
	testutil.SeedUser(t, database, "seeded")

	_, err = svc.Login(ctx, LoginInput{Username: "carol", Password: "wrong-pass"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Username: "seeded", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, LoginInput{Username: "carol"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Me(ctx, "missing-id")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
