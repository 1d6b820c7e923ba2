package navigation

import (
	"net/url"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// Query parameter names carrying the selection.
const (
	ParamParent = "pid"
	ParamChild  = "cid"
	ParamSensor = "sid"
)

// Location is the serializable selection: the only selection state there is.
type Location struct {
	ParentID string `json:"pid,omitempty"`
	ChildID  string `json:"cid,omitempty"`
	SensorID string `json:"sid,omitempty"`
}

// ParseLocation reads pid, cid and sid from query values.
func ParseLocation(q url.Values) Location {
	return Location{
		ParentID: q.Get(ParamParent),
		ChildID:  q.Get(ParamChild),
		SensorID: q.Get(ParamSensor),
	}
}

// Values returns the location as query values, omitting empty parameters.
func (l Location) Values() url.Values {
	q := url.Values{}
	if l.ParentID != "" {
		q.Set(ParamParent, l.ParentID)
	}
	if l.ChildID != "" {
		q.Set(ParamChild, l.ChildID)
	}
	if l.SensorID != "" {
		q.Set(ParamSensor, l.SensorID)
	}
	return q
}

// Encode returns the location as an encoded query string.
func (l Location) Encode() string {
	return l.Values().Encode()
}

// Href joins base and the encoded location.
func (l Location) Href(base string) string {
	if q := l.Encode(); q != "" {
		return base + "?" + q
	}
	return base
}

// SelectParent focuses a new parent. Child and sensor are always cleared.
func (l Location) SelectParent(id string) Location {
	return Location{ParentID: id}
}

// SelectChild selects a child of the current parent and clears the sensor.
func (l Location) SelectChild(id string) Location {
	return Location{ParentID: l.ParentID, ChildID: id}
}

// SelectSensor selects a sensor of the effective level.
func (l Location) SelectSensor(id string) Location {
	l.SensorID = id
	return l
}

// ViewMore drills one level deeper: level becomes the focused parent.
func (l Location) ViewMore(level *models.Level) Location {
	return l.SelectParent(level.ID)
}

// ViewSensors focuses level so its sensors fill the second panel.
func (l Location) ViewSensors(level *models.Level) Location {
	return l.SelectParent(level.ID)
}

// Action is what a double click on a card did.
type Action string

const (
	ActionNone        Action = "none"
	ActionViewMore    Action = "view_more"
	ActionViewSensors Action = "view_sensors"
)

// DoubleClick navigates deeper from a card: cards with children drill in,
// leaves with sensors open their sensor list, anything else is a no-op.
func (l Location) DoubleClick(level *models.Level) (Location, Action) {
	switch {
	case level.HasChildren():
		return l.ViewMore(level), ActionViewMore
	case level.HasSensors():
		return l.ViewSensors(level), ActionViewSensors
	default:
		return l, ActionNone
	}
}
