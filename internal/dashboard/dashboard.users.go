package dashboard

import (
	"context"
	"strings"

	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

func (s *Service) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.Users.List(ctx)
}

func (s *Service) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.Users.Get(ctx, id)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required,email"); err != nil {
		return nil, errors.NewValidationError("a valid email is required", err)
	}
	return s.Users.GetByEmail(ctx, email)
}

func (s *Service) CreateUser(ctx context.Context, in *models.CreateUserInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	user, err := s.Users.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Created user %s", user.ID)
	return user, nil
}

// UpdateUser applies in to the user with role-based field access: changing
// the role needs ROLE_ASSIGN, the name USER_UPDATE.
func (s *Service) UpdateUser(ctx context.Context, id string, in *models.UpdateUserInput) (*models.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	existing, err := s.Users.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := *existing
	updated.Name = in.Name
	updated.RoleID = in.RoleID
	updated.IsADUser = in.IsADUser

	roles := GetUserRoles(ctx)
	roleChanged := updated.RoleID != existing.RoleID || updated.IsADUser != existing.IsADUser
	if roleChanged && !hasAnyRole(roles, string(models.PermRoleAssign), auth.RootRole) {
		return nil, errors.NewAuthorizationError("changing the role of a user requires "+string(models.PermRoleAssign), nil)
	}

	updatedFields, _, err := struccy.UpdateStructFields(existing, &updated, roles, true, true)
	if err != nil {
		return nil, errors.NewAuthorizationError("unauthorized field update", err)
	}

	nuts.L.Infof("[DashboardService] Updating user %s, fields changed: %v", id, updatedFields)
	user, err := s.Users.Update(ctx, id, &models.UpdateUserInput{
		Name:     updated.Name,
		RoleID:   updated.RoleID,
		IsADUser: updated.IsADUser,
	})
	if err != nil {
		return nil, err
	}
	if user.Email != "" {
		s.forgetPermissions(ctx, user.Email)
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) error {
	user, err := s.Users.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Users.Delete(ctx, id); err != nil {
		return err
	}
	nuts.L.Infof("[DashboardService] Deleted user %s", id)
	s.forgetPermissions(ctx, user.Email)
	return nil
}

// Permissions returns the effective permissions of the user with email,
// derived from the actions of their role.
func (s *Service) Permissions(ctx context.Context, email string) (*models.UserPermissions, error) {
	if email == "" {
		return nil, errors.NewAuthError("no user email in session", nil)
	}
	var perms models.UserPermissions
	err := s.cached(ctx, cache.PermissionsKey(strings.ToLower(email)), s.ttl.Permissions, &perms, func(ctx context.Context) (any, error) {
		profile, err := s.Users.GetByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if profile.Role.ID == "" {
			return &models.UserPermissions{}, nil
		}
		role, err := s.Roles.Get(ctx, profile.Role.ID)
		if err != nil {
			return nil, err
		}
		return models.PermissionsFromRole(role), nil
	})
	if err != nil {
		return nil, err
	}
	return &perms, nil
}

func (s *Service) forgetPermissions(ctx context.Context, email string) {
	if s.Cache == nil || email == "" {
		return
	}
	if err := s.Cache.Invalidate(ctx, cache.PermissionsKey(strings.ToLower(email))); err != nil {
		nuts.L.Warnf("[DashboardService] Failed to invalidate permissions of %s: %v", email, err)
	}
}

func hasAnyRole(roles []string, want ...string) bool {
	for _, r := range roles {
		for _, w := range want {
			if r == w {
				return true
			}
		}
	}
	return false
}
