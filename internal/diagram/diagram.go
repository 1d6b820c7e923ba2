// Package diagram lays out the organisation tree as a node-link diagram.
package diagram

import (
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// Layout spacing in diagram units.
const (
	ColumnWidth = 260
	RowHeight   = 120
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one level placed on the canvas.
type Node struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Depth       int      `json:"depth"`
	HasSensor   bool     `json:"has_sensor"`
	Position    Position `json:"position"`
}

// Link joins a parent to one of its children.
type Link struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type Diagram struct {
	Nodes []Node `json:"nodes"`
	Links []Link `json:"links"`
}

// Build places every level of tree: columns by depth, leaves on consecutive
// rows in depth-first order, each parent centred over its children.
func Build(tree []*models.Level) Diagram {
	d := Diagram{Nodes: []Node{}, Links: []Link{}}
	row := 0

	var place func(l *models.Level, depth int) float64
	place = func(l *models.Level, depth int) float64 {
		idx := len(d.Nodes)
		d.Nodes = append(d.Nodes, Node{
			ID:          l.ID,
			Label:       l.Name,
			Description: l.Description,
			Depth:       depth,
			HasSensor:   l.HasSensors(),
		})

		var first, last float64
		placed := 0
		for _, c := range l.Children {
			if c == nil {
				continue
			}
			d.Links = append(d.Links, Link{ID: l.ID + "-" + c.ID, Source: l.ID, Target: c.ID})
			y := place(c, depth+1)
			if placed == 0 {
				first = y
			}
			last = y
			placed++
		}

		var y float64
		if placed == 0 {
			y = float64(row * RowHeight)
			row++
		} else {
			y = (first + last) / 2
		}
		d.Nodes[idx].Position = Position{X: float64(depth * ColumnWidth), Y: y}
		return y
	}

	for _, root := range tree {
		if root != nil {
			place(root, 0)
		}
	}
	return d
}
