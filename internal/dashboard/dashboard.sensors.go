package dashboard

import (
	"context"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

const (
	defaultReportLimit = 50
	maxReportLimit     = 1000
)

func (s *Service) ListSensors(ctx context.Context) ([]*models.Sensor, error) {
	return s.Sensors.List(ctx)
}

func (s *Service) GetSensor(ctx context.Context, id string) (*models.Sensor, error) {
	return s.Sensors.Get(ctx, id)
}

// CreateSensor validates the configuration variant of in before creating it.
func (s *Service) CreateSensor(ctx context.Context, in *models.SensorInput) (*models.Sensor, error) {
	if err := validateSensorInput(in); err != nil {
		return nil, err
	}
	sensor, err := s.Sensors.Create(ctx, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Created %s sensor %s on node %s", in.Configuration.Kind(), sensor.ID, in.Node)
	s.invalidateTree(ctx)
	return sensor, nil
}

func (s *Service) UpdateSensor(ctx context.Context, id string, in *models.SensorInput) (*models.Sensor, error) {
	if err := validateSensorInput(in); err != nil {
		return nil, err
	}
	sensor, err := s.Sensors.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}
	nuts.L.Infof("[DashboardService] Updated sensor %s", id)
	s.invalidateTree(ctx)
	return sensor, nil
}

func (s *Service) DeleteSensor(ctx context.Context, id string) error {
	if err := s.Cleanup.DeleteSensor(ctx, id); err != nil {
		return err
	}
	nuts.L.Infof("[DashboardService] Deleted sensor %s", id)
	return nil
}

// FilterSensors returns one page of the sensor report. Pages are chained by
// the cursor the backend returns.
func (s *Service) FilterSensors(ctx context.Context, filter models.SensorReportFilter) (*models.SensorReportResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultReportLimit
	}
	if filter.Limit > maxReportLimit {
		filter.Limit = maxReportLimit
	}
	if err := ValidateReportFilter(filter); err != nil {
		return nil, err
	}
	return s.Sensors.Filter(ctx, filter)
}

// ValidateReportFilter checks the filter fields and that a value comparison
// names both the value and the operator.
func ValidateReportFilter(filter models.SensorReportFilter) error {
	if err := validate.Struct(filter); err != nil {
		return validationError(err)
	}
	if (filter.Value != nil) != (filter.Operator != "") {
		return errors.NewValidationError("value and operator must be given together", nil)
	}
	return nil
}

// SensorKinds lists the configuration variants sensors can be created with.
func (s *Service) SensorKinds() []models.SensorKindSpec {
	return models.SupportedSensorKinds()
}

func validateSensorInput(in *models.SensorInput) error {
	if in == nil {
		return errors.NewValidationError("sensor is required", nil)
	}
	if err := validate.Struct(in); err != nil {
		return validationError(err)
	}
	if _, ok := in.Configuration.(models.UnclassifiedConfig); ok {
		return errors.NewValidationError("unsupported sensor type", nil)
	}
	if err := validate.Struct(in.Configuration); err != nil {
		return validationError(err)
	}
	return nil
}
