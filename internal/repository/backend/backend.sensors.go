// FilePath: internal/repository/backend/backend.sensors.go
package backend

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-querystring/query"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

type SensorRepo struct {
	*Client
}

func NewSensorRepository(c *Client) *SensorRepo {
	return &SensorRepo{Client: c}
}

func (r *SensorRepo) List(ctx context.Context) ([]*models.Sensor, error) {
	var sensors []*models.Sensor
	if err := r.call(ctx, http.MethodGet, "/sensors", "fetch sensors", nil, &sensors, "sensors"); err != nil {
		return nil, err
	}
	return sensors, nil
}

func (r *SensorRepo) Get(ctx context.Context, id string) (*models.Sensor, error) {
	var sensor models.Sensor
	err := r.call(ctx, http.MethodGet, "/sensors/{id}", "fetch sensor",
		func(req *resty.Request) { req.SetPathParam("id", id) }, &sensor, "sensor")
	if err != nil {
		return nil, err
	}
	return &sensor, nil
}

func (r *SensorRepo) Create(ctx context.Context, in *models.SensorInput) (*models.Sensor, error) {
	var sensor models.Sensor
	err := r.call(ctx, http.MethodPost, "/sensors", "create sensor",
		func(req *resty.Request) { req.SetBody(in) }, &sensor, "sensor")
	if err != nil {
		return nil, err
	}
	return &sensor, nil
}

func (r *SensorRepo) Update(ctx context.Context, id string, in *models.SensorInput) (*models.Sensor, error) {
	var sensor models.Sensor
	err := r.call(ctx, http.MethodPut, "/sensors/{id}", "update sensor",
		func(req *resty.Request) { req.SetPathParam("id", id).SetBody(in) }, &sensor, "sensor")
	if err != nil {
		return nil, err
	}
	return &sensor, nil
}

func (r *SensorRepo) Delete(ctx context.Context, id string) error {
	return r.call(ctx, http.MethodDelete, "/sensors/{id}", "delete sensor",
		func(req *resty.Request) { req.SetPathParam("id", id) }, nil)
}

// Filter runs the cursor-paginated sensor report. The answer carries both
// "data" and "pagination", so it is decoded as a whole.
func (r *SensorRepo) Filter(ctx context.Context, filter models.SensorReportFilter) (*models.SensorReportResponse, error) {
	params, err := query.Values(filter)
	if err != nil {
		return nil, errors.NewValidationError("invalid report filter", err)
	}
	req, err := r.request(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	resp, err := r.execute(req.SetQueryParamsFromValues(params), http.MethodGet, "/sensors/filter", "fetch sensor reports")
	if err != nil {
		return nil, err
	}
	var out models.SensorReportResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, errors.NewRequestError("Invalid response format", http.StatusBadGateway, err)
	}
	if out.Data == nil {
		out.Data = []models.SensorReport{}
	}
	return &out, nil
}
