// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"io"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

type tokenKey struct{}

// WithToken attaches the session bearer token every backend call forwards.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the bearer token attached to ctx.
func TokenFrom(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey{}).(string)
	return token, ok && token != ""
}

// LevelRepository defines the operations on the organisation tree
type LevelRepository interface {
	Tree(ctx context.Context) ([]*models.Level, error)
	Summary(ctx context.Context, levelID string) (*models.DetailedLevelSummary, error)
	GetNode(ctx context.Context, id string) (*models.Node, error)
	CreateNode(ctx context.Context, in *models.NodeInput) (*models.Node, error)
	UpdateNode(ctx context.Context, id string, in *models.NodeInput) (*models.Node, error)
	DeleteNode(ctx context.Context, id string) error
}

// SensorRepository defines the interface for sensor operations
type SensorRepository interface {
	List(ctx context.Context) ([]*models.Sensor, error)
	Get(ctx context.Context, id string) (*models.Sensor, error)
	Create(ctx context.Context, in *models.SensorInput) (*models.Sensor, error)
	Update(ctx context.Context, id string, in *models.SensorInput) (*models.Sensor, error)
	Delete(ctx context.Context, id string) error
	Filter(ctx context.Context, filter models.SensorReportFilter) (*models.SensorReportResponse, error)
}

type UserRepository interface {
	List(ctx context.Context) ([]*models.User, error)
	Get(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
	Create(ctx context.Context, in *models.CreateUserInput) (*models.User, error)
	Update(ctx context.Context, id string, in *models.UpdateUserInput) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

type RoleRepository interface {
	List(ctx context.Context) ([]*models.Role, error)
	Get(ctx context.Context, id string) (*models.Role, error)
	Create(ctx context.Context, in *models.RoleInput) (*models.Role, error)
	Update(ctx context.Context, id string, in *models.RoleInput) (*models.Role, error)
	Delete(ctx context.Context, id string) error
}

// ExportRepository talks to the asynchronous report export endpoints
type ExportRepository interface {
	Submit(ctx context.Context, req *models.ExportRequest) (*models.GenerateReportResponse, error)
	Job(ctx context.Context, jobID string) (*models.ExportJob, error)
	UserJobs(ctx context.Context, userID string) ([]*models.ExportJob, error)
	// Download streams the report payload into w and returns the bytes written.
	Download(ctx context.Context, jobID string, w io.Writer) (int64, error)
}

type AuthRepository interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResult, error)
}
