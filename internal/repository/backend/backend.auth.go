// FilePath: internal/repository/backend/backend.auth.go
package backend

import (
	"context"
	"net/http"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

type AuthRepo struct {
	*Client
}

func NewAuthRepository(c *Client) *AuthRepo {
	return &AuthRepo{Client: c}
}

// Login exchanges credentials for a backend token. It is the only call sent
// without a bearer token.
func (r *AuthRepo) Login(ctx context.Context, in *models.LoginRequest) (*models.LoginResult, error) {
	req := r.anonymous(ctx, http.MethodPost).SetBody(in)
	resp, err := r.execute(req, http.MethodPost, "/users/login", "sign in")
	if err != nil {
		if apiErr, ok := errors.As(err); ok && apiErr.Type == errors.ErrorTypeRequest && apiErr.Code == http.StatusBadRequest {
			return nil, errors.NewAuthError("Invalid credentials", err)
		}
		return nil, err
	}

	var result models.LoginResult
	if err := decode(resp.Body(), &result); err != nil {
		return nil, errors.NewRequestError("Invalid response format", http.StatusBadGateway, err)
	}
	if result.Token == "" {
		return nil, errors.NewAuthError("Invalid credentials", nil)
	}
	return &result, nil
}
