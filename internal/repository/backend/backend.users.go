// FilePath: internal/repository/backend/backend.users.go
package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

type UserRepo struct {
	*Client
}

func NewUserRepository(c *Client) *UserRepo {
	return &UserRepo{Client: c}
}

func (r *UserRepo) List(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := r.call(ctx, http.MethodGet, "/users", "fetch users", nil, &users, "users"); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *UserRepo) Get(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.call(ctx, http.MethodGet, "/users/{id}", "fetch user",
		func(req *resty.Request) { req.SetPathParam("id", id) }, &user, "user")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail looks a user profile up by email. A profile without an id is
// reported as not found.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := r.call(ctx, http.MethodGet, "/users/email/{email}", "fetch user",
		func(req *resty.Request) { req.SetPathParam("email", email) }, &profile, "user")
	if err != nil {
		return nil, err
	}
	if profile.ID == "" {
		return nil, errors.NewNotFoundError("User ID not found for this email", nil)
	}
	return &profile, nil
}

func (r *UserRepo) Create(ctx context.Context, in *models.CreateUserInput) (*models.User, error) {
	var user models.User
	err := r.call(ctx, http.MethodPost, "/users", "create user",
		func(req *resty.Request) { req.SetBody(in) }, &user, "user")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, in *models.UpdateUserInput) (*models.User, error) {
	var user models.User
	err := r.call(ctx, http.MethodPut, "/users/{id}", "update user",
		func(req *resty.Request) { req.SetPathParam("id", id).SetBody(in) }, &user, "user")
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return r.call(ctx, http.MethodDelete, "/users/{id}", "delete user",
		func(req *resty.Request) { req.SetPathParam("id", id) }, nil)
}

// RoleRepo serves /roles
type RoleRepo struct {
	*Client
}

func NewRoleRepository(c *Client) *RoleRepo {
	return &RoleRepo{Client: c}
}

func (r *RoleRepo) List(ctx context.Context) ([]*models.Role, error) {
	var roles []*models.Role
	if err := r.call(ctx, http.MethodGet, "/roles", "fetch roles", nil, &roles, "roles"); err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *RoleRepo) Get(ctx context.Context, id string) (*models.Role, error) {
	var role models.Role
	err := r.call(ctx, http.MethodGet, "/roles/{id}", "fetch role",
		func(req *resty.Request) { req.SetPathParam("id", id) }, &role, "role")
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) Create(ctx context.Context, in *models.RoleInput) (*models.Role, error) {
	var role models.Role
	err := r.call(ctx, http.MethodPost, "/roles", "create role",
		func(req *resty.Request) { req.SetBody(in) }, &role, "role")
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) Update(ctx context.Context, id string, in *models.RoleInput) (*models.Role, error) {
	var role models.Role
	err := r.call(ctx, http.MethodPut, "/roles/{id}", "update role",
		func(req *resty.Request) { req.SetPathParam("id", id).SetBody(in) }, &role, "role")
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *RoleRepo) Delete(ctx context.Context, id string) error {
	return r.call(ctx, http.MethodDelete, "/roles/{id}", "delete role",
		func(req *resty.Request) { req.SetPathParam("id", id) }, nil)
}
