package navigation

import "github.com/itsatony/w4b_v3/server/dashboard/internal/models"

// Selection is everything the browser renders for one location.
type Selection struct {
	// Location is the requested location with stale child and sensor ids
	// dropped.
	Location Location `json:"location"`

	Parent *models.Level      `json:"parent"`
	Child  *models.Level      `json:"child"`
	Sensor *models.SensorData `json:"sensor"`

	// PanelOne holds the siblings of the focused parent.
	PanelOne []*models.Level `json:"panel_one"`
	// Children and Sensors fill the second panel.
	Children []*models.Level     `json:"children"`
	Sensors  []models.SensorData `json:"sensors"`

	Breadcrumbs   []*models.Level `json:"breadcrumbs"`
	SummaryTarget *models.Level   `json:"summary_target"`

	// ParentMissing is set when pid names a level that is not in the tree.
	ParentMissing bool `json:"parent_missing"`
}

// Empty reports whether nothing is selected ("No level selected").
func (s Selection) Empty() bool {
	return s.Parent == nil
}

// ResolveParent returns the level named by pid, searched at any depth, or
// the first top-level entry when pid is empty. nil when the tree is empty
// or pid is unknown.
func ResolveParent(tree []*models.Level, pid string) *models.Level {
	if pid != "" {
		if m, ok := FindByID(tree, pid); ok {
			return m.Node
		}
		return nil
	}
	if len(tree) > 0 {
		return tree[0]
	}
	return nil
}

// ResolveChild returns the descendant of parent with id cid.
func ResolveChild(parent *models.Level, cid string) *models.Level {
	if parent == nil || cid == "" {
		return nil
	}
	if m, ok := FindByID(parent.Children, cid); ok {
		return m.Node
	}
	return nil
}

// ResolvePanelOneItems returns the sibling set of the focused parent.
func ResolvePanelOneItems(tree []*models.Level, parent *models.Level) []*models.Level {
	if parent == nil || IsTopLevel(tree, parent) {
		return tree
	}
	if p, ok := FindParentOf(tree, parent.ID); ok {
		return p.Children
	}
	return tree
}

// ResolveBreadcrumbs returns the display path: the top-level ancestor of the
// parent (when the parent is nested), the parent, then the child if any.
func ResolveBreadcrumbs(tree []*models.Level, parent, child *models.Level) []*models.Level {
	if parent == nil {
		return nil
	}
	crumbs := make([]*models.Level, 0, 3)
	if !IsTopLevel(tree, parent) {
		if m, ok := FindByID(tree, parent.ID); ok && m.Root() != parent {
			crumbs = append(crumbs, m.Root())
		}
	}
	crumbs = append(crumbs, parent)
	if child != nil {
		crumbs = append(crumbs, child)
	}
	return crumbs
}

// ResolveSensor looks sid up among the sensors of the effective level.
func ResolveSensor(effective *models.Level, sid string) *models.SensorData {
	if effective == nil || sid == "" {
		return nil
	}
	for i := range effective.SensorData {
		if effective.SensorData[i].SensorID == sid {
			return &effective.SensorData[i]
		}
	}
	return nil
}

// Resolve derives the whole selection from the tree and a location. It
// resolves parent, child, sensor and summary target in that order, and a
// dependent that does not resolve is dropped from the returned location.
func Resolve(tree []*models.Level, loc Location) Selection {
	sel := Selection{}

	sel.Parent = ResolveParent(tree, loc.ParentID)
	if sel.Parent == nil {
		sel.ParentMissing = loc.ParentID != ""
		sel.Location = Location{ParentID: loc.ParentID}
		sel.PanelOne = tree
		return sel
	}
	sel.Location.ParentID = sel.Parent.ID

	sel.Child = ResolveChild(sel.Parent, loc.ChildID)
	if sel.Child != nil {
		sel.Location.ChildID = sel.Child.ID
	}

	effective := sel.Parent
	if sel.Child != nil {
		effective = sel.Child
	}
	sel.Sensor = ResolveSensor(effective, loc.SensorID)
	if sel.Sensor != nil {
		sel.Location.SensorID = sel.Sensor.SensorID
	}

	sel.SummaryTarget = effective
	sel.PanelOne = ResolvePanelOneItems(tree, sel.Parent)
	sel.Children = sel.Parent.Children
	sel.Sensors = effective.SensorData
	sel.Breadcrumbs = ResolveBreadcrumbs(tree, sel.Parent, sel.Child)
	return sel
}
