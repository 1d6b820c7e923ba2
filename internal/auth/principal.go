package auth

import (
	"context"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

// RootRole is granted to principals whose role has root access.
const RootRole = "root"

// Principal is the authenticated caller of a request.
type Principal struct {
	Token       string
	UserID      string
	Email       string
	Name        string
	Permissions *models.UserPermissions
}

type principalKey struct{}

// WithPrincipal stores p in ctx and attaches its token for backend calls.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	if p != nil && p.Token != "" {
		ctx = repository.WithToken(ctx, p.Token)
	}
	return ctx
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

// Roles lists the access names of p as used by struct field tags: every
// granted permission, plus RootRole for root access.
func (p *Principal) Roles() []string {
	if p == nil || p.Permissions == nil {
		return nil
	}
	roles := make([]string, 0, len(p.Permissions.Permissions)+1)
	for _, perm := range p.Permissions.Permissions {
		roles = append(roles, string(perm))
	}
	if p.Permissions.HasRootAccess {
		roles = append(roles, RootRole)
	}
	return roles
}

// Identifier is the best user identifier known for p: its id, else its email.
func (p *Principal) Identifier() string {
	if p == nil {
		return ""
	}
	if p.UserID != "" {
		return p.UserID
	}
	return p.Email
}
