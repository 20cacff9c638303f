package services_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscale/adops/app/services"
	"github.com/podscale/adops/models"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func newTokenService(t *testing.T, accessTTL, refreshTTL time.Duration) services.TokenService {
	t.Helper()
	svc, err := services.NewTokenService(accessTTL, refreshTTL, "adops", "adops-api", testSecret)
	require.NoError(t, err)
	return svc
}

func TestTokenService(t *testing.T) {
	t.Run("RequiresSecretKey", func(t *testing.T) {
		_, err := services.NewTokenService(time.Hour, 24*time.Hour, "adops", "adops-api", "")
		assert.Error(t, err)
	})

	t.Run("GenerateAndValidate", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)

		access, refresh, err := svc.GenerateTokens(42, 7, models.RoleSales)
		require.NoError(t, err)
		require.NotEmpty(t, access)
		require.NotEmpty(t, refresh)
		assert.NotEqual(t, access, refresh)

		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, uint(7), claims.OrganizationID)
		assert.Equal(t, models.RoleSales, claims.Role)
		assert.Equal(t, "access", claims.TokenType)
		assert.NotEmpty(t, claims.TokenID)

		refreshClaims, err := svc.ValidateToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, "refresh", refreshClaims.TokenType)
	})

	t.Run("PrincipalFromClaims", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		access, _, err := svc.GenerateTokens(42, 7, models.RoleAdmin)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(access)
		require.NoError(t, err)

		principal := claims.Principal()
		assert.Equal(t, uint(42), principal.UserID)
		assert.Equal(t, uint(7), principal.OrganizationID)
		assert.Equal(t, models.RoleAdmin, principal.Role)
	})

	t.Run("RejectsGarbage", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		_, err := svc.ValidateToken("not.a.token")
		assert.ErrorIs(t, err, services.ErrTokenInvalid)
	})

	t.Run("RejectsForeignSignature", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		other, err := services.NewTokenService(time.Hour, 24*time.Hour, "adops", "adops-api",
			"a-completely-different-signing-key-material")
		require.NoError(t, err)

		access, _, err := other.GenerateTokens(42, 7, models.RoleViewer)
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.ErrorIs(t, err, services.ErrTokenInvalid)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		svc := newTokenService(t, -time.Minute, 24*time.Hour)
		access, _, err := svc.GenerateTokens(42, 7, models.RoleViewer)
		require.NoError(t, err)

		_, err = svc.ValidateToken(access)
		assert.ErrorIs(t, err, services.ErrTokenExpired)
	})

	t.Run("RevokedToken", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		access, _, err := svc.GenerateTokens(42, 7, models.RoleViewer)
		require.NoError(t, err)
		require.NoError(t, svc.RevokeToken(access))

		assert.True(t, svc.IsTokenRevoked(access))
		_, err = svc.ValidateToken(access)
		assert.ErrorIs(t, err, services.ErrTokenRevoked)
	})

	t.Run("RefreshRotatesAndRevokes", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		_, refresh, err := svc.GenerateTokens(42, 7, models.RoleSales)
		require.NoError(t, err)

		newAccess, newRefresh, err := svc.RefreshToken(refresh)
		require.NoError(t, err)
		require.NotEmpty(t, newAccess)
		require.NotEmpty(t, newRefresh)

		// The spent refresh token cannot be replayed.
		_, _, err = svc.RefreshToken(refresh)
		assert.ErrorIs(t, err, services.ErrTokenRevoked)

		claims, err := svc.ValidateToken(newAccess)
		require.NoError(t, err)
		assert.Equal(t, uint(42), claims.UserID)
		assert.Equal(t, models.RoleSales, claims.Role)
	})

	t.Run("AccessTokenCannotRefresh", func(t *testing.T) {
		svc := newTokenService(t, time.Hour, 24*time.Hour)
		access, _, err := svc.GenerateTokens(42, 7, models.RoleSales)
		require.NoError(t, err)

		_, _, err = svc.RefreshToken(access)
		assert.ErrorIs(t, err, services.ErrTokenInvalid)
	})
}
