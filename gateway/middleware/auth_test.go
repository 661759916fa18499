package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"devquestvault/crypto"
)

const testSecret = "vault-test-secret"

func testCaller(fill byte) [32]byte {
	var id [32]byte
	for i := range id {
		id[i] = fill
	}
	return id
}

func newTestAuthenticator() *Authenticator {
	return NewAuthenticator(AuthConfig{
		Enabled:    true,
		HMACSecret: testSecret,
		Issuer:     "vault-cli",
		Audience:   "vaultd",
	}, nil)
}

func serveWithToken(t *testing.T, auth *Authenticator, token string, scopes ...string) (*httptest.ResponseRecorder, [32]byte, bool) {
	t.Helper()
	var (
		seen   [32]byte
		called bool
	)
	handler := auth.Middleware(scopes...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, called = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/vaults", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen, called
}

func TestAuthenticatorInjectsCaller(t *testing.T) {
	caller := testCaller(0x42)
	token, err := SignToken(testSecret, TokenRequest{Subject: caller, Issuer: "vault-cli", Audience: "vaultd"})
	require.NoError(t, err)

	rec, seen, ok := serveWithToken(t, newTestAuthenticator(), token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	require.Equal(t, caller, seen)
}

func TestAuthenticatorRejectsMissingAndForeignTokens(t *testing.T) {
	auth := newTestAuthenticator()
	rec, _, _ := serveWithToken(t, auth, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := SignToken("other-secret", TokenRequest{Subject: testCaller(1), Issuer: "vault-cli", Audience: "vaultd"})
	require.NoError(t, err)
	rec, _, _ = serveWithToken(t, auth, forged)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	wrongAudience, err := SignToken(testSecret, TokenRequest{Subject: testCaller(1), Issuer: "vault-cli", Audience: "elsewhere"})
	require.NoError(t, err)
	rec, _, _ = serveWithToken(t, auth, wrongAudience)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorRejectsExpiredToken(t *testing.T) {
	token, err := SignToken(testSecret, TokenRequest{
		Subject:  testCaller(1),
		Issuer:   "vault-cli",
		Audience: "vaultd",
		TTL:      time.Minute,
		Now:      time.Now().Add(-time.Hour),
	})
	require.NoError(t, err)
	rec, _, _ := serveWithToken(t, newTestAuthenticator(), token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticatorEnforcesScopes(t *testing.T) {
	auth := newTestAuthenticator()
	plain, err := SignToken(testSecret, TokenRequest{Subject: testCaller(1), Issuer: "vault-cli", Audience: "vaultd"})
	require.NoError(t, err)
	rec, _, _ := serveWithToken(t, auth, plain, "vault:operator")
	require.Equal(t, http.StatusForbidden, rec.Code)

	operator, err := SignToken(testSecret, TokenRequest{
		Subject:  testCaller(1),
		Issuer:   "vault-cli",
		Audience: "vaultd",
		Scopes:   []string{"vault:operator"},
	})
	require.NoError(t, err)
	rec, _, _ = serveWithToken(t, auth, operator, "vault:operator")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubjectMustBeVaultIdentity(t *testing.T) {
	claims := map[string]interface{}{"sub": "not-an-address"}
	_, err := subjectIdentity(claims)
	require.Error(t, err)

	addr := crypto.FromIdentity(testCaller(7)).String()
	id, err := subjectIdentity(map[string]interface{}{"sub": addr})
	require.NoError(t, err)
	require.Equal(t, testCaller(7), id)
}

func TestDisabledAuthenticatorPassesThrough(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: false}, nil)
	rec, _, ok := serveWithToken(t, auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, ok)
}
