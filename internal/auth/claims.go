// Package auth reads what the dashboard needs from backend-issued bearer
// tokens and keeps the session cookie.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// userIDClaims are checked in order for the backend user id.
var userIDClaims = []string{"id", "user_id", "userId", "oid", "sub"}

// Claims is the subset of token claims the dashboard uses.
type Claims struct {
	UserID    string    `json:"user_id,omitempty"`
	Subject   string    `json:"sub,omitempty"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Role      string    `json:"role,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token carried an expiry that has passed.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// ParseClaims decodes the claims of a JWT without verifying its signature.
// The backend verifies tokens on every call; the dashboard only reads them.
// Opaque (non-JWT) tokens yield an error.
func ParseClaims(token string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return Claims{}, fmt.Errorf("failed to parse token: %w", err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("unexpected claims type %T", parsed.Claims)
	}

	c := Claims{
		Email: stringClaim(mc, "email"),
		Name:  stringClaim(mc, "name"),
		Role:  stringClaim(mc, "role"),
	}
	c.Subject, _ = mc.GetSubject()
	for _, key := range userIDClaims {
		if v := stringClaim(mc, key); v != "" {
			c.UserID = v
			break
		}
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}

func stringClaim(mc jwt.MapClaims, key string) string {
	switch v := mc[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	case map[string]any:
		// {"role": {"name": "Admin"}}
		if name, ok := v["name"].(string); ok {
			return name
		}
	}
	return ""
}
