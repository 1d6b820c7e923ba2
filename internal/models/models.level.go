// FilePath: internal/models/models.level.go
package models

// Level is one node of the organisational tree as returned by GET /levels.
type Level struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Type         string        `json:"type,omitempty"`
	Children     []*Level      `json:"children"`
	HasSensor    bool          `json:"has_sensor,omitempty"`
	SensorData   []SensorData  `json:"sensor_data,omitempty"`
	LevelSummary *LevelSummary `json:"level_summary,omitempty"`
}

// HasChildren reports whether the level has at least one child level.
func (l *Level) HasChildren() bool {
	return l != nil && len(l.Children) > 0
}

// HasSensors reports whether the level has sensors attached.
func (l *Level) HasSensors() bool {
	return l != nil && (l.HasSensor || len(l.SensorData) > 0)
}

// SensorData is a sensor reading attached to a level card.
type SensorData struct {
	SensorID    string  `json:"sensor_id"`
	SensorType  string  `json:"sensor_type"`
	SensorValue *string `json:"sensor_value"`
	WidgetURL   string  `json:"widget_url"`
	Warning     bool    `json:"warning,omitempty"`
}

// LevelSummary holds sensor counts aggregated below a level.
type LevelSummary struct {
	Active   int `json:"active"`
	Inactive int `json:"inactive"`
	Normal   int `json:"normal"`
	Warnings int `json:"warnings"`
	Critical int `json:"critical"`
}

// Node is the flat record served by /nodes.
type Node struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ParentID    string `json:"parent_id,omitempty"`
	Type        string `json:"type"`
	Level       int    `json:"level"`
	HasSensor   bool   `json:"has_sensor"`
}

// NodeInput is the body of create and update node calls.
type NodeInput struct {
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=1000"`
	ParentID    string `json:"parent_id,omitempty"`
}

// DetailedLevelSummary is served by /levels/{id}/summary.
type DetailedLevelSummary struct {
	ID        string              `json:"id"`
	Name      string              `json:"name"`
	Type      string              `json:"type"`
	Levels    []LevelSummaryEntry `json:"levels"`
	Alerts    []LevelAlert        `json:"alerts"`
	WidgetURL string              `json:"widget_url"`
}

type LevelSummaryEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	LevelSummary
}

type LevelAlert struct {
	LevelID   string        `json:"level_id"`
	LevelName string        `json:"level_name"`
	Sensors   []SensorAlert `json:"sensors"`
}

type SensorAlert struct {
	Severity string  `json:"severity"`
	Value    float64 `json:"value"`
}
