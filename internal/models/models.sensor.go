// FilePath: internal/models/models.sensor.go
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type SensorStatus string

const (
	SensorActive   SensorStatus = "Active"
	SensorInactive SensorStatus = "Inactive"
)

// Sensor is a configured sensor attached to a node.
type Sensor struct {
	ID            string              `json:"id"`
	SensorType    string              `json:"sensor_type"`
	SubType       string              `json:"sub_type"`
	Configuration SensorConfiguration `json:"configuration"`
	Node          string              `json:"node"`
	Thresholds    Thresholds          `json:"thresholds"`
	Status        SensorStatus        `json:"status"`
	LastUpdated   *string             `json:"last_updated"`
}

// Thresholds holds the warning and critical limits of a sensor.
type Thresholds struct {
	Warning  ThresholdValue `json:"warning"`
	Critical ThresholdValue `json:"critical"`
}

// ThresholdValue accepts both JSON numbers and numeric strings.
type ThresholdValue float64

func (t *ThresholdValue) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", s, err)
	}
	*t = ThresholdValue(f)
	return nil
}

// UnmarshalJSON decodes the configuration according to sensor type and sub type.
func (s *Sensor) UnmarshalJSON(data []byte) error {
	type alias Sensor
	aux := struct {
		*alias
		SensorType    *string         `json:"sensor_type"`
		SubType       *string         `json:"sub_type"`
		Configuration json.RawMessage `json:"configuration"`
	}{alias: (*alias)(s)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.SensorType != nil {
		s.SensorType = *aux.SensorType
	}
	if aux.SubType != nil {
		s.SubType = *aux.SubType
	}

	cfg, err := DecodeSensorConfiguration(s.SensorType, s.SubType, aux.Configuration)
	if err != nil {
		return err
	}
	s.Configuration = cfg
	return nil
}

// SensorInput is the body of create and update sensor calls.
type SensorInput struct {
	SensorType    string              `json:"sensor_type" validate:"required"`
	SubType       string              `json:"sub_type"`
	Configuration SensorConfiguration `json:"configuration" validate:"required"`
	Node          string              `json:"node" validate:"required"`
	Thresholds    Thresholds          `json:"thresholds"`
}

func (in *SensorInput) UnmarshalJSON(data []byte) error {
	type alias SensorInput
	aux := struct {
		*alias
		Configuration json.RawMessage `json:"configuration"`
	}{alias: (*alias)(in)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	cfg, err := DecodeSensorConfiguration(in.SensorType, in.SubType, aux.Configuration)
	if err != nil {
		return err
	}
	if _, unclassified := cfg.(UnclassifiedConfig); unclassified {
		return fmt.Errorf("unsupported sensor type %q/%q", in.SensorType, in.SubType)
	}
	in.Configuration = cfg
	return nil
}

// SensorReport is one row of the filtered sensor report.
type SensorReport struct {
	SensorID    string  `json:"sensor_id"`
	Name        string  `json:"name"`
	Location    string  `json:"location"`
	Value       float64 `json:"value"`
	Type        string  `json:"type"`
	LastUpdated string  `json:"last_updated"`
	Status      string  `json:"status"`
}

type SensorReportPagination struct {
	NextCursor  *string `json:"nextCursor"`
	HasNextPage bool    `json:"hasNextPage"`
}

type SensorReportResponse struct {
	Data       []SensorReport         `json:"data"`
	Pagination SensorReportPagination `json:"pagination"`
}
