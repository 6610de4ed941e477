package service_test

import (
	"context"
	"testing"
	"time"

	domainErrors "github.com/dmwangi/medsupply/internal/domain/errors"
	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/infrastructure/config"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/dmwangi/medsupply/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() (*service.AuthService, *testutil.MockUserRepository, *testutil.MockTokenBlocklist) {
	users := testutil.NewMockUserRepository()
	blocklist := testutil.NewMockTokenBlocklist()
	cfg := &config.AuthConfig{
		JWTSecret:     "test-secret",
		AccessExpiry:  15 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
	}
	svc := service.NewAuthService(users, blocklist, cfg, zerolog.Nop())
	return svc, users, blocklist
}

func registerAndLogin(t *testing.T, svc *service.AuthService) (*user.User, *service.TokenPair) {
	t.Helper()
	u, err := svc.Register(context.Background(), service.RegisterRequest{
		Email:       "jane.wanjiru@example.com",
		Password:    "s3cret-pass",
		FirstName:   "Jane",
		LastName:    "Wanjiru",
		PhoneNumber: "254712345678",
	})
	require.NoError(t, err)
	_, pair, err := svc.Login(context.Background(), "jane.wanjiru@example.com", "s3cret-pass")
	require.NoError(t, err)
	return u, pair
}

func TestRegister_HashesPassword(t *testing.T) {
	svc, users, _ := newAuthFixture()

	u, err := svc.Register(context.Background(), service.RegisterRequest{
		Email:       "jane.wanjiru@example.com",
		Password:    "s3cret-pass",
		FirstName:   "Jane",
		LastName:    "Wanjiru",
		PhoneNumber: "254712345678",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	assert.Equal(t, user.RoleCustomer, u.Role)

	stored, err := users.GetByEmail(context.Background(), "jane.wanjiru@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newAuthFixture()
	registerAndLogin(t, svc)

	_, err := svc.Register(context.Background(), service.RegisterRequest{
		Email:     "jane.wanjiru@example.com",
		Password:  "another-pass",
		FirstName: "Jane",
		LastName:  "Wanjiru",
	})
	assert.ErrorIs(t, err, domainErrors.ErrUserAlreadyExists)
}

func TestLogin_WrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture()
	registerAndLogin(t, svc)

	_, _, err := svc.Login(context.Background(), "jane.wanjiru@example.com", "wrong")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
}

func TestLogin_UnknownEmailSameError(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, _, err := svc.Login(context.Background(), "nobody@example.com", "whatever")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
}

func TestLogin_InactiveUser(t *testing.T) {
	svc, users, _ := newAuthFixture()
	u, _ := registerAndLogin(t, svc)

	u.IsActive = false
	require.NoError(t, users.Update(context.Background(), u))

	_, _, err := svc.Login(context.Background(), "jane.wanjiru@example.com", "s3cret-pass")
	assert.ErrorIs(t, err, domainErrors.ErrInvalidCredentials)
}

func TestParseToken_RoundTrip(t *testing.T) {
	svc, _, _ := newAuthFixture()
	u, pair := registerAndLogin(t, svc)

	claims, err := svc.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.UserID)
	assert.Equal(t, "access", claims.TokenType)
	assert.NotEmpty(t, claims.ID)

	refreshClaims, err := svc.ParseToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "refresh", refreshClaims.TokenType)
}

func TestParseToken_Garbage(t *testing.T) {
	svc, _, _ := newAuthFixture()
	_, err := svc.ParseToken("not.a.token")
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
}

func TestRefresh_IssuesNewPairAndRevokesOld(t *testing.T) {
	svc, _, blocklist := newAuthFixture()
	_, pair := registerAndLogin(t, svc)

	newPair, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, newPair.RefreshToken)

	// The used refresh token is one-shot.
	oldClaims, err := svc.ParseToken(pair.RefreshToken)
	require.NoError(t, err)
	revoked, err := blocklist.IsRevoked(context.Background(), oldClaims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	assert.ErrorIs(t, err, domainErrors.ErrTokenRevoked)
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	svc, _, _ := newAuthFixture()
	_, pair := registerAndLogin(t, svc)

	_, err := svc.Refresh(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, domainErrors.ErrUnauthorized)
}

func TestLogout_RevokesBothTokens(t *testing.T) {
	svc, _, blocklist := newAuthFixture()
	_, pair := registerAndLogin(t, svc)

	require.NoError(t, svc.Logout(context.Background(), pair.AccessToken, pair.RefreshToken))

	for _, raw := range []string{pair.AccessToken, pair.RefreshToken} {
		claims, err := svc.ParseToken(raw)
		require.NoError(t, err)
		revoked, err := blocklist.IsRevoked(context.Background(), claims.ID)
		require.NoError(t, err)
		assert.True(t, revoked)
	}
}

func TestLogout_IgnoresGarbageTokens(t *testing.T) {
	svc, _, _ := newAuthFixture()
	assert.NoError(t, svc.Logout(context.Background(), "garbage", ""))
}
