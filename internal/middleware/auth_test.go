package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dmwangi/medsupply/internal/domain/user"
	"github.com/dmwangi/medsupply/internal/service"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	claims *service.Claims
	err    error
}

func (s *stubVerifier) ParseToken(raw string) (*service.Claims, error) {
	return s.claims, s.err
}

type stubRevocations struct {
	revoked map[string]bool
}

func (s *stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], nil
}

func accessClaims(userID uuid.UUID, role user.Role, tokenType, jti string) *service.Claims {
	return &service.Claims{
		UserID:    userID.String(),
		Role:      string(role),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID: jti,
		},
	}
}

func requireAuthProbe(t *testing.T, verifier TokenVerifier, revocations RevocationChecker, header string) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()

	var captured *http.Request
	handler := RequireAuth(verifier, revocations)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w, captured
}

func TestRequireAuth_ValidToken(t *testing.T) {
	userID := uuid.New()
	verifier := &stubVerifier{claims: accessClaims(userID, user.RoleCustomer, "access", "jti-1")}
	revocations := &stubRevocations{revoked: map[string]bool{}}

	w, captured := requireAuthProbe(t, verifier, revocations, "Bearer token")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NotNil(t, captured)
	gotID, ok := GetUserID(captured.Context())
	require.True(t, ok)
	assert.Equal(t, userID, gotID)
	role, ok := GetRole(captured.Context())
	require.True(t, ok)
	assert.Equal(t, user.RoleCustomer, role)
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	w, _ := requireAuthProbe(t, &stubVerifier{}, &stubRevocations{}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_WrongScheme(t *testing.T) {
	w, _ := requireAuthProbe(t, &stubVerifier{}, &stubRevocations{}, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_RefreshTokenRejected(t *testing.T) {
	verifier := &stubVerifier{claims: accessClaims(uuid.New(), user.RoleCustomer, "refresh", "jti-1")}
	w, _ := requireAuthProbe(t, verifier, &stubRevocations{}, "Bearer token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAuth_RevokedToken(t *testing.T) {
	verifier := &stubVerifier{claims: accessClaims(uuid.New(), user.RoleCustomer, "access", "jti-1")}
	revocations := &stubRevocations{revoked: map[string]bool{"jti-1": true}}

	w, _ := requireAuthProbe(t, verifier, revocations, "Bearer token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", nil)
	ctx := context.WithValue(req.Context(), RoleKey, user.RoleAdmin)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_RejectsCustomer(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", nil)
	ctx := context.WithValue(req.Context(), RoleKey, user.RoleCustomer)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req.WithContext(ctx))

	assert.Equal(t, http.StatusForbidden, w.Code)
}
