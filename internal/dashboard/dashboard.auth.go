package dashboard

import (
	"context"
	"strings"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// Login exchanges credentials for a backend token.
func (s *Service) Login(ctx context.Context, in *models.LoginRequest) (*models.LoginResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	res, err := s.Auth.Login(ctx, in)
	if err != nil {
		nuts.L.Warnf("[DashboardService] Login failed for %s: %v", in.Email, err)
		return nil, err
	}
	if res.User.Email == "" {
		res.User.Email = in.Email
	}
	nuts.L.Infof("[DashboardService] User %s signed in", res.User.ID)
	return res, nil
}
