package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ButtcoinTNB/report-gen-sub001/internal/config"
)

const testSecret = "test-secret-that-is-at-least-32-chars-long"

func newTestService(t *testing.T) *hmacJWTService {
	t.Helper()

	svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
	require.NoError(t, err)
	return svc.(*hmacJWTService)
}

func TestNewJWTService(t *testing.T) {
	t.Parallel()

	t.Run("valid secret", func(t *testing.T) {
		t.Parallel()

		svc, err := NewJWTService(config.AuthConfig{JWTSecret: testSecret})
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("short secret rejected", func(t *testing.T) {
		t.Parallel()

		svc, err := NewJWTService(config.AuthConfig{JWTSecret: "short"})
		assert.Error(t, err)
		assert.Nil(t, svc)
	})
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t)

		token, err := svc.GenerateToken(context.Background(), "report-frontend")
		require.NoError(t, err)
		require.NotEmpty(t, token)

		claims, err := svc.ValidateToken(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "report-frontend", claims.Subject)
		assert.NotEmpty(t, claims.ID)
		assert.True(t, claims.ExpiresAt.After(claims.IssuedAt))
	})

	t.Run("expired token", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t)

		// Issue a token far enough in the past that it is expired even after
		// the clock skew allowance.
		issuedAt := time.Now().Add(-24 * time.Hour)
		svc.timeFunc = func() time.Time { return issuedAt }
		token, err := svc.GenerateToken(context.Background(), "report-frontend")
		require.NoError(t, err)

		svc.timeFunc = time.Now
		claims, err := svc.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrExpiredToken)
		assert.Nil(t, claims)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		t.Parallel()

		issuer := newTestService(t)
		token, err := issuer.GenerateToken(context.Background(), "report-frontend")
		require.NoError(t, err)

		other, err := NewJWTService(config.AuthConfig{
			JWTSecret: "another-secret-that-is-32-chars-aa",
		})
		require.NoError(t, err)

		claims, err := other.ValidateToken(context.Background(), token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})

	t.Run("malformed token", func(t *testing.T) {
		t.Parallel()
		svc := newTestService(t)

		claims, err := svc.ValidateToken(context.Background(), "not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.Nil(t, claims)
	})
}
