// FilePath: internal/repository/backend/backend.levels.go
package backend

import (
	"context"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// LevelRepo serves the tree, summaries and node CRUD
type LevelRepo struct {
	*Client
}

func NewLevelRepository(c *Client) *LevelRepo {
	return &LevelRepo{Client: c}
}

func (r *LevelRepo) Tree(ctx context.Context) ([]*models.Level, error) {
	var levels []*models.Level
	if err := r.call(ctx, http.MethodGet, "/levels", "fetch levels", nil, &levels, "levels"); err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *LevelRepo) Summary(ctx context.Context, levelID string) (*models.DetailedLevelSummary, error) {
	var summary models.DetailedLevelSummary
	err := r.call(ctx, http.MethodGet, "/levels/{id}/summary", "fetch level summary",
		func(req *resty.Request) { req.SetPathParam("id", levelID) }, &summary)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *LevelRepo) GetNode(ctx context.Context, id string) (*models.Node, error) {
	var node models.Node
	err := r.call(ctx, http.MethodGet, "/nodes/{id}", "fetch node",
		func(req *resty.Request) { req.SetPathParam("id", id) }, &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *LevelRepo) CreateNode(ctx context.Context, in *models.NodeInput) (*models.Node, error) {
	var node models.Node
	err := r.call(ctx, http.MethodPost, "/nodes", "create level",
		func(req *resty.Request) { req.SetBody(in) }, &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *LevelRepo) UpdateNode(ctx context.Context, id string, in *models.NodeInput) (*models.Node, error) {
	var node models.Node
	err := r.call(ctx, http.MethodPut, "/nodes/{id}", "update level",
		func(req *resty.Request) { req.SetPathParam("id", id).SetBody(in) }, &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (r *LevelRepo) DeleteNode(ctx context.Context, id string) error {
	return r.call(ctx, http.MethodDelete, "/nodes/{id}", "delete level",
		func(req *resty.Request) { req.SetPathParam("id", id) }, nil)
}
