package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Nerzal/gocloak/v13"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

type fakePerms struct {
	perms map[string]*models.UserPermissions
	err   error
	token string
}

func (f *fakePerms) Permissions(ctx context.Context, email string) (*models.UserPermissions, error) {
	f.token, _ = repository.TokenFrom(ctx)
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.perms[email]; ok {
		return p, nil
	}
	return nil, errors.NewNotFoundError("User ID not found for this email", nil)
}

type fakeIntrospector struct {
	active bool
	calls  int
}

func (f *fakeIntrospector) RetrospectToken(ctx context.Context, token, clientID, secret, realm string) (*gocloak.IntroSpectTokenResult, error) {
	f.calls++
	return &gocloak.IntroSpectTokenResult{Active: gocloak.BoolP(f.active)}, nil
}

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)
	return s
}

func sessions() *auth.SessionStore {
	return auth.NewSessionStore(config.SessionConfig{CookieName: "sess", HashKey: "0123456789abcdef0123456789abcdef", MaxAge: time.Hour})
}

func captured(p **auth.Principal) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*p, _ = auth.PrincipalFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errors.APIError {
	t.Helper()
	var body errors.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	a := NewAuthenticator(sessions(), config.KeycloakConfig{}, &fakePerms{})
	var got *auth.Principal

	rec := httptest.NewRecorder()
	a.Authenticate(captured(&got)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/levels", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeError(t, rec)
	assert.Equal(t, errors.ErrorTypeAuth, body.Type)
	assert.NotEmpty(t, body.RequestID)
	assert.Nil(t, got)
}

func TestAuthenticateBearer(t *testing.T) {
	perms := &fakePerms{perms: map[string]*models.UserPermissions{
		"a@x.com": {Permissions: []models.Permission{models.PermNodeView}},
	}}
	a := NewAuthenticator(sessions(), config.KeycloakConfig{}, perms)
	tok := token(t, jwt.MapClaims{"id": "u-1", "email": "a@x.com", "exp": time.Now().Add(time.Hour).Unix()})

	var got *auth.Principal
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "a@x.com", got.Email)
	assert.True(t, got.Permissions.Has(models.PermNodeView))
	assert.Equal(t, tok, perms.token, "permission lookups forward the caller's token")
}

func TestAuthenticateExpiredToken(t *testing.T) {
	a := NewAuthenticator(sessions(), config.KeycloakConfig{}, &fakePerms{})
	tok := token(t, jwt.MapClaims{"email": "a@x.com", "exp": time.Now().Add(-time.Minute).Unix()})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	var got *auth.Principal
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateSessionCookie(t *testing.T) {
	store := sessions()
	a := NewAuthenticator(store, config.KeycloakConfig{}, &fakePerms{})

	saved := httptest.NewRecorder()
	require.NoError(t, store.Save(saved, &auth.Session{Token: "opaque", UserID: "u-9", Email: "b@x.com"}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range saved.Result().Cookies() {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	var got *auth.Principal
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "opaque", got.Token)
	assert.Equal(t, "u-9", got.UserID)
	assert.Empty(t, got.Permissions.Permissions, "unknown users get no permissions")
}

func TestAuthenticatePermissionBackendDown(t *testing.T) {
	a := NewAuthenticator(sessions(), config.KeycloakConfig{}, &fakePerms{err: errors.NewTransientNetworkError("backend down", nil)})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, jwt.MapClaims{"email": "a@x.com"}))
	rec := httptest.NewRecorder()
	var got *auth.Principal
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAuthenticateIntrospection(t *testing.T) {
	a := NewAuthenticator(sessions(), config.KeycloakConfig{}, nil)
	kc := &fakeIntrospector{}
	a.keycloak = kc

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque")
	rec := httptest.NewRecorder()
	var got *auth.Principal
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	kc.active = true
	rec = httptest.NewRecorder()
	a.Authenticate(captured(&got)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 2, kc.calls)
}

func TestRequirePermissions(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	gate := RequirePermissions(models.PermUserView, models.PermUserUpdate)(ok)

	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	serve := func(perms *models.UserPermissions) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithPrincipal(req.Context(), &auth.Principal{Permissions: perms}))
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusForbidden, serve(&models.UserPermissions{Permissions: []models.Permission{models.PermNodeView}}))
	assert.Equal(t, http.StatusOK, serve(&models.UserPermissions{Permissions: []models.Permission{models.PermUserUpdate}}))
	assert.Equal(t, http.StatusOK, serve(&models.UserPermissions{HasRootAccess: true}))
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, extractToken(req))
	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", extractToken(req))
	req.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, extractToken(req))
}
