package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, clock func() time.Time) *JWTService {
	t.Helper()

	svc, err := NewJWTService(JWTConfig{
		Secret:         "test-secret",
		Issuer:         "contextmeet-test",
		AccessTokenTTL: 15 * time.Minute,
		Clock:          clock,
	})
	require.NoError(t, err)
	return svc
}

func TestGenerateAndValidateTokenPair(t *testing.T) {
	svc := newTestService(t, nil)

	pair, err := svc.GenerateTokenPair("user-1", "alex@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, "alex@example.com", claims.Email)

	refreshClaims, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	require.Equal(t, "user-1", refreshClaims.UserID)
}

func TestTokenTypeEnforced(t *testing.T) {
	svc := newTestService(t, nil)

	pair, err := svc.GenerateTokenPair("user-1", "")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.RefreshToken)
	require.Error(t, err)

	_, err = svc.ValidateRefreshToken(pair.AccessToken)
	require.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := base

	svc := newTestService(t, func() time.Time { return current })

	pair, err := svc.GenerateTokenPair("user-1", "")
	require.NoError(t, err)

	current = base.Add(16 * time.Minute)
	_, err = svc.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
}

func TestIssuerMismatchRejected(t *testing.T) {
	svc := newTestService(t, nil)

	other, err := NewJWTService(JWTConfig{Secret: "test-secret", Issuer: "someone-else"})
	require.NoError(t, err)

	pair, err := other.GenerateTokenPair("user-1", "")
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(pair.AccessToken)
	require.Error(t, err)
}

func TestNewJWTServiceRequiresSecret(t *testing.T) {
	_, err := NewJWTService(JWTConfig{})
	require.Error(t, err)
}
