package models

// SensorReportFilter holds the report filters. The same struct is decoded
// from the incoming query (schema tags), encoded onto the backend query
// (url tags) and embedded in export requests (json tags).
type SensorReportFilter struct {
	Limit       int      `json:"limit,omitempty" schema:"limit" url:"limit,omitempty" validate:"omitempty,min=1,max=1000"`
	Value       *float64 `json:"value,omitempty" schema:"value" url:"value,omitempty"`
	Operator    string   `json:"operator,omitempty" schema:"operator" url:"operator,omitempty" validate:"omitempty,oneof=greater less equal"`
	FromDate    string   `json:"fromDate,omitempty" schema:"fromDate" url:"fromDate,omitempty"`
	ToDate      string   `json:"toDate,omitempty" schema:"toDate" url:"toDate,omitempty"`
	Aggregation string   `json:"aggregation,omitempty" schema:"aggregation" url:"aggregation,omitempty" validate:"omitempty,oneof=max min avg"`
	Location    string   `json:"location,omitempty" schema:"location" url:"location,omitempty"`
	Cursor      string   `json:"cursor,omitempty" schema:"cursor" url:"cursor,omitempty"`
}
