package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contextWithClaims(claims *Claims) context.Context {
	return context.WithValue(context.Background(), ClaimsKey, claims)
}

func TestGetUserIDFromContext(t *testing.T) {
	userID := uuid.New().String()
	ctx := contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	})

	assert.Equal(t, userID, GetUserIDFromContext(ctx))
	assert.Empty(t, GetUserIDFromContext(context.Background()))
}

func TestGetEmailFromContext(t *testing.T) {
	ctx := contextWithClaims(&Claims{Email: "buyer@example.com"})

	assert.Equal(t, "buyer@example.com", GetEmailFromContext(ctx))
	assert.Empty(t, GetEmailFromContext(context.Background()))
}

func TestGetUserUUIDFromContext(t *testing.T) {
	userID := uuid.New()
	ctx := contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	})

	got, ok := GetUserUUIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, userID, got)

	// Non-UUID subject
	ctx = contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid"},
	})
	_, ok = GetUserUUIDFromContext(ctx)
	assert.False(t, ok)

	// No claims at all
	_, ok = GetUserUUIDFromContext(context.Background())
	assert.False(t, ok)
}

func TestRequireUserUUIDFromContext(t *testing.T) {
	userID := uuid.New()
	ctx := contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
	})

	got, err := RequireUserUUIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, userID, got)

	_, err = RequireUserUUIDFromContext(context.Background())
	assert.Error(t, err)
}

func TestActorFromContext(t *testing.T) {
	userID := uuid.New().String()

	// Email preferred when present
	ctx := contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
		Email:            "admin@example.com",
	})
	assert.Equal(t, "admin@example.com", ActorFromContext(ctx))

	// Falls back to subject
	ctx = contextWithClaims(&Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID},
	})
	assert.Equal(t, userID, ActorFromContext(ctx))
}
