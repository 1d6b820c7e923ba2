package dashboard

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/diagram"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/navigation"
)

// Browse is one rendering of the levels browser.
type Browse struct {
	navigation.Selection
	Summary *models.DetailedLevelSummary `json:"summary,omitempty"`
}

// DeleteResult tells the caller to reload before navigating again.
type DeleteResult struct {
	ID       string              `json:"id"`
	Reload   bool                `json:"reload"`
	Location navigation.Location `json:"location"`
}

// Tree returns the organisation tree as the caller sees it, cached per
// caller for the cache window.
func (s *Service) Tree(ctx context.Context) ([]*models.Level, error) {
	var tree []*models.Level
	err := s.cached(ctx, cache.TreeKey(ownerOf(ctx)), s.ttl.Levels, &tree, func(ctx context.Context) (any, error) {
		return s.Levels.Tree(ctx)
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// RefreshTree drops the cached tree and loads it again.
func (s *Service) RefreshTree(ctx context.Context) ([]*models.Level, error) {
	if err := s.Cleanup.InvalidateTree(ctx); err != nil {
		nuts.L.Warnf("[DashboardService] Failed to invalidate tree: %v", err)
	}
	return s.Tree(ctx)
}

// Browse resolves loc against the tree. When withSummary is set the summary
// of the resolved target is attached; failing to load it leaves it empty.
func (s *Service) Browse(ctx context.Context, loc navigation.Location, withSummary bool) (*Browse, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}

	out := &Browse{Selection: navigation.Resolve(tree, loc)}
	if out.ParentMissing {
		nuts.L.Warnf("[DashboardService] Level %s is not in the tree", loc.ParentID)
	}
	if withSummary && out.SummaryTarget != nil {
		summary, err := s.Summary(ctx, out.SummaryTarget.ID)
		if err != nil {
			nuts.L.Warnf("[DashboardService] Failed to load summary of %s: %v", out.SummaryTarget.ID, err)
		} else {
			out.Summary = summary
		}
	}
	return out, nil
}

// Summary returns the aggregated counts and alerts below a level.
func (s *Service) Summary(ctx context.Context, levelID string) (*models.DetailedLevelSummary, error) {
	if levelID == "" {
		return nil, errors.NewValidationError("level id is required", nil)
	}
	var summary models.DetailedLevelSummary
	err := s.cached(ctx, cache.SummaryKey(ownerOf(ctx), levelID), s.ttl.Summary, &summary, func(ctx context.Context) (any, error) {
		return s.Levels.Summary(ctx, levelID)
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Diagram lays out the cached tree.
func (s *Service) Diagram(ctx context.Context) (*diagram.Diagram, error) {
	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	d := diagram.Build(tree)
	return &d, nil
}

func (s *Service) GetNode(ctx context.Context, id string) (*models.Node, error) {
	return s.Levels.GetNode(ctx, id)
}

// CreateNode creates a node; the tree is refetched on the next read.
func (s *Service) CreateNode(ctx context.Context, in *models.NodeInput) (*models.Node, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.ParentID != "" {
		tree, err := s.Tree(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := navigation.FindByID(tree, in.ParentID); !ok {
			return nil, errors.NewValidationError("parent level does not exist", nil)
		}
	}

	node, err := s.Levels.CreateNode(ctx, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Created node %s (%s)", node.Name, node.ID)
	s.invalidateTree(ctx)
	return node, nil
}

func (s *Service) UpdateNode(ctx context.Context, id string, in *models.NodeInput) (*models.Node, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.ParentID == id {
		return nil, errors.NewValidationError("a level cannot be its own parent", nil)
	}

	node, err := s.Levels.UpdateNode(ctx, id, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Updated node %s", id)
	s.invalidateTree(ctx)
	return node, nil
}

// DeleteNode deletes a level. The returned location is loc with the deleted
// level and everything below it deselected.
func (s *Service) DeleteNode(ctx context.Context, id string, loc navigation.Location) (*DeleteResult, error) {
	var below map[string]bool
	if tree, err := s.Tree(ctx); err == nil {
		if m, ok := navigation.FindByID(tree, id); ok {
			below = map[string]bool{}
			navigation.Walk([]*models.Level{m.Node}, func(l *models.Level, _ int) {
				below[l.ID] = true
			})
		}
	}

	if err := s.Cleanup.DeleteLevel(ctx, id); err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Deleted node %s", id)

	next := loc
	switch {
	case below[loc.ParentID] || loc.ParentID == id:
		next = navigation.Location{}
	case below[loc.ChildID] || loc.ChildID == id:
		next = navigation.Location{ParentID: loc.ParentID}
	}
	return &DeleteResult{ID: id, Reload: true, Location: next}, nil
}

func (s *Service) invalidateTree(ctx context.Context) {
	if err := s.Cleanup.InvalidateTree(ctx); err != nil {
		nuts.L.Warnf("[DashboardService] Failed to invalidate tree: %v", err)
	}
}
