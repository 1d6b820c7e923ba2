// Package dashboard holds the business logic behind the dashboard routes:
// cached tree reads, navigation, node, sensor, user and role management.
package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cleanup"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

var validate = validator.New()

// Cache is the read-through cache the service keeps backend reads in.
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, dest any, load cache.Loader) error
	Invalidate(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// TTLs of the cached reads.
type TTLs struct {
	Levels      time.Duration
	Summary     time.Duration
	Permissions time.Duration
}

func (t TTLs) withDefaults() TTLs {
	if t.Levels <= 0 {
		t.Levels = 60 * time.Second
	}
	if t.Summary <= 0 {
		t.Summary = 30 * time.Second
	}
	if t.Permissions <= 0 {
		t.Permissions = 30 * time.Second
	}
	return t
}

// Service contains all repositories and service-wide dependencies
type Service struct {
	Levels  repository.LevelRepository
	Sensors repository.SensorRepository
	Users   repository.UserRepository
	Roles   repository.RoleRepository
	Auth    repository.AuthRepository
	Cache   Cache
	Cleanup *cleanup.CleanupService
	ttl     TTLs
}

// New creates a new Service instance
func New(
	levels repository.LevelRepository,
	sensors repository.SensorRepository,
	users repository.UserRepository,
	roles repository.RoleRepository,
	authRepo repository.AuthRepository,
	c Cache,
	cleaner *cleanup.CleanupService,
	ttl TTLs,
) *Service {
	if cleaner == nil {
		cleaner = cleanup.New(levels, sensors, c, nil)
	}
	return &Service{
		Levels:  levels,
		Sensors: sensors,
		Users:   users,
		Roles:   roles,
		Auth:    authRepo,
		Cache:   c,
		Cleanup: cleaner,
		ttl:     ttl.withDefaults(),
	}
}

// Validate checks if all required repositories are initialized
func (s *Service) Validate() error {
	if s.Levels == nil {
		return ErrMissingRepository("levels")
	}
	if s.Sensors == nil {
		return ErrMissingRepository("sensors")
	}
	if s.Users == nil {
		return ErrMissingRepository("users")
	}
	if s.Roles == nil {
		return ErrMissingRepository("roles")
	}
	if s.Auth == nil {
		return ErrMissingRepository("auth")
	}
	if s.Cache == nil {
		return ErrMissingRepository("cache")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}

// cached reads key through the cache, or straight from load without one.
func (s *Service) cached(ctx context.Context, key string, ttl time.Duration, dest any, load cache.Loader) error {
	if s.Cache == nil {
		v, err := load(ctx)
		if err != nil {
			return err
		}
		return assign(dest, v)
	}
	return s.Cache.GetOrLoad(ctx, key, ttl, dest, load)
}

// ownerOf names whose view of the levels a read belongs to: the principal,
// else the bearer token.
func ownerOf(ctx context.Context) string {
	if p, ok := auth.PrincipalFrom(ctx); ok && p.Identifier() != "" {
		return cache.Owner(p.Identifier())
	}
	if token, ok := repository.TokenFrom(ctx); ok && token != "" {
		return cache.Owner(token)
	}
	return cache.Owner("")
}

// assign copies v into dest the way a cache round trip would.
func assign(dest, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	details := map[string]string{}
	if ves, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ves {
			details[fe.Field()] = fe.Tag()
		}
	}
	return errors.NewValidationError("invalid input", err).WithDetails(details)
}

// GetUserRoles retrieves the access names of the caller from context
func GetUserRoles(ctx context.Context) []string {
	if p, ok := auth.PrincipalFrom(ctx); ok {
		if roles := p.Roles(); len(roles) > 0 {
			return roles
		}
	}
	return []string{"guest"}
}
