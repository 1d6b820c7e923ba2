// Package navigation resolves what the three-panel levels browser shows
// from the level tree and the location's query parameters.
package navigation

import "github.com/itsatony/w4b_v3/server/dashboard/internal/models"

// Match is the result of a tree search: the matched node and its ancestors,
// ordered from the top-level entry down to the node's immediate parent.
type Match struct {
	Node *models.Level
	Path []*models.Level
}

// Parent returns the matched node's immediate parent, nil for top-level nodes.
func (m Match) Parent() *models.Level {
	if len(m.Path) == 0 {
		return nil
	}
	return m.Path[len(m.Path)-1]
}

// Root returns the top-level ancestor of the match (the node itself when it
// is top-level).
func (m Match) Root() *models.Level {
	if len(m.Path) == 0 {
		return m.Node
	}
	return m.Path[0]
}

// Find walks roots depth-first, pre-order, and returns the first node for
// which pred holds. Nesting depth is unbounded.
func Find(roots []*models.Level, pred func(*models.Level) bool) (Match, bool) {
	var path []*models.Level
	var walk func(nodes []*models.Level) (Match, bool)
	walk = func(nodes []*models.Level) (Match, bool) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			if pred(n) {
				return Match{Node: n, Path: append([]*models.Level(nil), path...)}, true
			}
			path = append(path, n)
			if m, ok := walk(n.Children); ok {
				return m, true
			}
			path = path[:len(path)-1]
		}
		return Match{}, false
	}
	return walk(roots)
}

// FindByID finds the node with the given id anywhere in roots.
func FindByID(roots []*models.Level, id string) (Match, bool) {
	if id == "" {
		return Match{}, false
	}
	return Find(roots, func(l *models.Level) bool { return l.ID == id })
}

// FindParentOf returns the node whose children contain id. Top-level and
// unknown ids yield false.
func FindParentOf(roots []*models.Level, id string) (*models.Level, bool) {
	m, ok := FindByID(roots, id)
	if !ok || m.Parent() == nil {
		return nil, false
	}
	return m.Parent(), true
}

// AncestorsOf returns the ancestor chain of id, top-level first.
func AncestorsOf(roots []*models.Level, id string) ([]*models.Level, bool) {
	m, ok := FindByID(roots, id)
	if !ok {
		return nil, false
	}
	return m.Path, true
}

// IsTopLevel reports whether level is one of the roots.
func IsTopLevel(roots []*models.Level, level *models.Level) bool {
	if level == nil {
		return false
	}
	for _, r := range roots {
		if r != nil && r.ID == level.ID {
			return true
		}
	}
	return false
}

// Walk visits every node depth-first with its depth (roots are depth 0).
func Walk(roots []*models.Level, visit func(l *models.Level, depth int)) {
	var walk func(nodes []*models.Level, depth int)
	walk = func(nodes []*models.Level, depth int) {
		for _, n := range nodes {
			if n == nil {
				continue
			}
			visit(n, depth)
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
}
