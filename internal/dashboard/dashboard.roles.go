package dashboard

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

func (s *Service) ListRoles(ctx context.Context) ([]*models.Role, error) {
	return s.Roles.List(ctx)
}

func (s *Service) GetRole(ctx context.Context, id string) (*models.Role, error) {
	return s.Roles.Get(ctx, id)
}

func (s *Service) CreateRole(ctx context.Context, in *models.RoleInput) (*models.Role, error) {
	if err := validateRoleInput(in); err != nil {
		return nil, err
	}
	role, err := s.Roles.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Created role %s (%s)", role.Name, role.ID)
	return role, nil
}

// UpdateRole changes a role. Every cached permission set is dropped since
// any user may hold the role.
func (s *Service) UpdateRole(ctx context.Context, id string, in *models.RoleInput) (*models.Role, error) {
	if err := validateRoleInput(in); err != nil {
		return nil, err
	}
	role, err := s.Roles.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Updated role %s", id)
	s.forgetAllPermissions(ctx)
	return role, nil
}

func (s *Service) DeleteRole(ctx context.Context, id string) error {
	if err := s.Roles.Delete(ctx, id); err != nil {
		return err
	}
	nuts.L.Infof("[DashboardService] Deleted role %s", id)
	s.forgetAllPermissions(ctx)
	return nil
}

// validateRoleInput also rejects actions that are not known permissions.
func validateRoleInput(in *models.RoleInput) error {
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	known := make(map[string]bool, len(models.AllPermissions))
	for _, p := range models.AllPermissions {
		known[string(p)] = true
	}
	for _, ra := range in.RoleActions {
		for _, a := range ra.Actions {
			if !known[a] {
				return errors.NewValidationError("unknown permission "+a, nil)
			}
		}
	}
	return nil
}

func (s *Service) forgetAllPermissions(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.InvalidatePattern(ctx, "permissions:*"); err != nil {
		nuts.L.Warnf("[DashboardService] Failed to invalidate permissions: %v", err)
	}
}
