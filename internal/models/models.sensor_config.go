// FilePath: internal/models/models.sensor_config.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Known sensor types and sub types.
const (
	SensorTypeTemperature = "Temperature"
	SensorTypeDecibel     = "Decibel"

	SubTypeWialon    = "wialon"
	SubTypeTeltonika = "teltonika"
	SubTypeLoRaWAN4G = "lorawan_4G"
)

// SensorKind identifies a configuration variant.
type SensorKind struct {
	Type    string `json:"type"`
	SubType string `json:"sub_type,omitempty"`
}

func (k SensorKind) String() string {
	if k.SubType == "" {
		return k.Type
	}
	return k.Type + "/" + k.SubType
}

// SensorConfiguration is the per-kind configuration of a sensor. Every
// variant declares its required fields through validate tags.
type SensorConfiguration interface {
	Kind() SensorKind
}

// WialonConfig configures a Temperature sensor read through Wialon.
type WialonConfig struct {
	SectionName   string `json:"section_name" validate:"required"`
	VehicleNo     string `json:"vehicle_no" validate:"required"`
	UnitID        string `json:"unit_id" validate:"required"`
	LocationIndex string `json:"location_index" validate:"required"`
}

func (WialonConfig) Kind() SensorKind {
	return SensorKind{Type: SensorTypeTemperature, SubType: SubTypeWialon}
}

// TeltonikaConfig configures a Temperature sensor on a Teltonika unit.
type TeltonikaConfig struct {
	SectionName   string `json:"section_name" validate:"required"`
	UnitID        string `json:"unit_id" validate:"required"`
	LocationIndex string `json:"location_index" validate:"required"`
}

func (TeltonikaConfig) Kind() SensorKind {
	return SensorKind{Type: SensorTypeTemperature, SubType: SubTypeTeltonika}
}

// LoRaWAN4GConfig configures a Temperature sensor on a LoRaWAN 4G gateway.
type LoRaWAN4GConfig struct {
	SectionName string `json:"section_name" validate:"required"`
	UnitID      string `json:"unit_id" validate:"required"`
	UnitSubID   string `json:"unit_sub_id" validate:"required"`
}

func (LoRaWAN4GConfig) Kind() SensorKind {
	return SensorKind{Type: SensorTypeTemperature, SubType: SubTypeLoRaWAN4G}
}

// DecibelConfig configures a Decibel sensor.
type DecibelConfig struct {
	SectionName string `json:"section_name" validate:"required"`
	Department  string `json:"department" validate:"required"`
	UnitID      string `json:"unit_id" validate:"required"`
}

func (DecibelConfig) Kind() SensorKind {
	return SensorKind{Type: SensorTypeDecibel}
}

// UnclassifiedConfig keeps the raw configuration of sensors whose type is
// unset or unknown, so listings never fail on them.
type UnclassifiedConfig struct {
	SensorType string
	SubType    string
	Raw        map[string]any
}

func (u UnclassifiedConfig) Kind() SensorKind {
	return SensorKind{Type: u.SensorType, SubType: u.SubType}
}

func (u UnclassifiedConfig) MarshalJSON() ([]byte, error) {
	if u.Raw == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(u.Raw)
}

// SensorKindSpec describes a supported kind and its required fields, for forms.
type SensorKindSpec struct {
	Kind   SensorKind `json:"kind"`
	Label  string     `json:"label"`
	Fields []string   `json:"fields"`
}

// SupportedSensorKinds lists every configuration variant.
func SupportedSensorKinds() []SensorKindSpec {
	return []SensorKindSpec{
		{Kind: WialonConfig{}.Kind(), Label: "Temperature / Wialon", Fields: []string{"section_name", "vehicle_no", "unit_id", "location_index"}},
		{Kind: TeltonikaConfig{}.Kind(), Label: "Temperature / Teltonika", Fields: []string{"section_name", "unit_id", "location_index"}},
		{Kind: LoRaWAN4GConfig{}.Kind(), Label: "Temperature / LoRaWAN 4G", Fields: []string{"section_name", "unit_id", "unit_sub_id"}},
		{Kind: DecibelConfig{}.Kind(), Label: "Decibel", Fields: []string{"section_name", "department", "unit_id"}},
	}
}

// DecodeSensorConfiguration picks the variant for sensorType/subType and
// decodes raw into it. Unknown kinds decode into UnclassifiedConfig.
func DecodeSensorConfiguration(sensorType, subType string, raw json.RawMessage) (SensorConfiguration, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}

	var target SensorConfiguration
	switch {
	case strings.EqualFold(sensorType, SensorTypeTemperature) && subType == SubTypeWialon:
		target = &WialonConfig{}
	case strings.EqualFold(sensorType, SensorTypeTemperature) && subType == SubTypeTeltonika:
		target = &TeltonikaConfig{}
	case strings.EqualFold(sensorType, SensorTypeTemperature) && subType == SubTypeLoRaWAN4G:
		target = &LoRaWAN4GConfig{}
	case strings.EqualFold(sensorType, SensorTypeDecibel):
		target = &DecibelConfig{}
	default:
		u := UnclassifiedConfig{SensorType: sensorType, SubType: subType}
		if err := json.Unmarshal(raw, &u.Raw); err != nil {
			return nil, fmt.Errorf("invalid sensor configuration: %w", err)
		}
		return u, nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("invalid %s configuration: %w", target.Kind(), err)
	}

	switch c := target.(type) {
	case *WialonConfig:
		return *c, nil
	case *TeltonikaConfig:
		return *c, nil
	case *LoRaWAN4GConfig:
		return *c, nil
	case *DecibelConfig:
		return *c, nil
	}
	return target, nil
}
