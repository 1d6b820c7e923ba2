package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Nerzal/gocloak/v13"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

// PermissionSource resolves the effective permissions of a user.
type PermissionSource interface {
	Permissions(ctx context.Context, email string) (*models.UserPermissions, error)
}

// Introspector checks that a token is still active at the identity provider.
type Introspector interface {
	RetrospectToken(ctx context.Context, accessToken, clientID, clientSecret, realm string) (*gocloak.IntroSpectTokenResult, error)
}

// Authenticator resolves the caller of a request from the bearer header or
// the session cookie.
type Authenticator struct {
	sessions *auth.SessionStore
	keycloak Introspector
	config   config.KeycloakConfig
	perms    PermissionSource
	now      func() time.Time
}

// NewAuthenticator builds an Authenticator. Tokens are introspected with
// Keycloak only when kc.URL is set.
func NewAuthenticator(sessions *auth.SessionStore, kc config.KeycloakConfig, perms PermissionSource) *Authenticator {
	a := &Authenticator{
		sessions: sessions,
		config:   kc,
		perms:    perms,
		now:      time.Now,
	}
	if kc.URL != "" {
		a.keycloak = gocloak.NewClient(kc.URL)
	}
	return a
}

// Authenticate validates the token and adds the principal to the context
func (a *Authenticator) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, apiErr := a.principal(r)
		if apiErr != nil {
			handleError(w, apiErr)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
	})
}

func (a *Authenticator) principal(r *http.Request) (*auth.Principal, *errors.APIError) {
	p := &auth.Principal{Token: extractToken(r)}
	if p.Token == "" && a.sessions != nil {
		if sess, err := a.sessions.Load(r); err == nil {
			p.Token = sess.Token
			p.UserID = sess.UserID
			p.Email = sess.Email
			p.Name = sess.Name
		}
	}
	if p.Token == "" {
		return nil, errors.NewAuthError("no token provided", nil)
	}

	if claims, err := auth.ParseClaims(p.Token); err == nil {
		if claims.Expired(a.now()) {
			return nil, errors.NewAuthError("session expired", nil)
		}
		if p.UserID == "" {
			p.UserID = claims.UserID
		}
		if p.Email == "" {
			p.Email = claims.Email
		}
		if p.Name == "" {
			p.Name = claims.Name
		}
	}

	if a.keycloak != nil {
		result, err := a.keycloak.RetrospectToken(r.Context(), p.Token, a.config.ClientID, a.config.ClientSecret, a.config.Realm)
		if err != nil || result == nil || result.Active == nil || !*result.Active {
			return nil, errors.NewAuthError("invalid token", err)
		}
	}

	p.Permissions = &models.UserPermissions{}
	if a.perms != nil && p.Email != "" {
		ctx := repository.WithToken(r.Context(), p.Token)
		perms, err := a.perms.Permissions(ctx, p.Email)
		switch {
		case err == nil:
			p.Permissions = perms
		case errors.IsNotFound(err):
			nuts.L.Warnf("[Auth] No role found for %s", p.Email)
		default:
			return nil, errors.Wrap(err, "failed to resolve permissions")
		}
	}
	return p, nil
}

// RequirePermissions lets a request through when the caller holds at least
// one of perms.
func RequirePermissions(perms ...models.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := auth.PrincipalFrom(r.Context())
			if !ok {
				handleError(w, errors.NewAuthError("no user context found", nil))
				return
			}
			if !p.Permissions.HasAny(perms...) {
				handleError(w, errors.NewAuthorizationError("insufficient permissions", nil).WithDetails(perms))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Helper functions

func extractToken(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return ""
}

func handleError(w http.ResponseWriter, err *errors.APIError) {
	if err.RequestID == "" {
		err.RequestID = nuts.NID("req", 12)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
	nuts.L.Warnf("[Auth] %s", err.Error())
}
