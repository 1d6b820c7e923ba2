package resources

import (
	"net/http"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// SensorHandlers encapsulates the sensor-related HTTP handlers
type SensorHandlers struct {
	service *dashboard.Service
}

// @Summary List sensors
// @Tags sensors
// @Produce json
// @Success 200 {array} models.Sensor
// @Router /sensors [get]
// @Security BearerAuth
func (h *SensorHandlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	sensors, err := h.service.ListSensors(r.Context())
	if err != nil {
		fail(w, err, "failed to list sensors", requestID)
		return
	}
	if sensors == nil {
		sensors = []*models.Sensor{}
	}
	respondWithJSON(w, http.StatusOK, sensors)
}

// @Summary Supported sensor kinds
// @Description Configuration variants and their required fields
// @Tags sensors
// @Produce json
// @Success 200 {array} models.SensorKindSpec
// @Router /sensors/kinds [get]
func (h *SensorHandlers) SensorKinds(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.service.SensorKinds())
}

// @Summary Get a sensor
// @Tags sensors
// @Produce json
// @Param id path string true "Sensor ID"
// @Success 200 {object} models.Sensor
// @Failure 404 {object} errors.APIError
// @Router /sensors/{id} [get]
// @Security BearerAuth
func (h *SensorHandlers) GetSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	sensor, err := h.service.GetSensor(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load sensor", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, sensor)
}

// @Summary Create a sensor
// @Tags sensors
// @Accept json
// @Produce json
// @Param sensor body models.SensorInput true "Sensor"
// @Success 201 {object} models.Sensor
// @Failure 400 {object} errors.APIError
// @Router /sensors [post]
// @Security BearerAuth
func (h *SensorHandlers) CreateSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.SensorInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	sensor, err := h.service.CreateSensor(r.Context(), &in)
	if err != nil {
		fail(w, err, "failed to create sensor", requestID)
		return
	}
	respondWithJSON(w, http.StatusCreated, sensor)
}

// @Summary Update a sensor
// @Tags sensors
// @Accept json
// @Produce json
// @Param id path string true "Sensor ID"
// @Param sensor body models.SensorInput true "Sensor"
// @Success 200 {object} models.Sensor
// @Router /sensors/{id} [put]
// @Security BearerAuth
func (h *SensorHandlers) UpdateSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var in models.SensorInput
	if apiErr := decodeBody(r, &in); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	sensor, err := h.service.UpdateSensor(r.Context(), mux.Vars(r)["id"], &in)
	if err != nil {
		fail(w, err, "failed to update sensor", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, sensor)
}

// @Summary Delete a sensor
// @Tags sensors
// @Param id path string true "Sensor ID"
// @Success 200 {object} map[string]any
// @Router /sensors/{id} [delete]
// @Security BearerAuth
func (h *SensorHandlers) DeleteSensor(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	id := mux.Vars(r)["id"]

	if err := h.service.DeleteSensor(r.Context(), id); err != nil {
		fail(w, err, "failed to delete sensor", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"id": id, "reload": true})
}

// @Summary Sensor report
// @Description One cursor-paginated page of filtered sensor readings
// @Tags sensors
// @Produce json
// @Param limit query int false "Page size"
// @Param value query number false "Threshold value"
// @Param operator query string false "greater, less or equal"
// @Param fromDate query string false "Start date"
// @Param toDate query string false "End date"
// @Param aggregation query string false "max, min or avg"
// @Param location query string false "Location"
// @Param cursor query string false "Cursor of the page"
// @Success 200 {object} models.SensorReportResponse
// @Router /sensors/filter [get]
// @Security BearerAuth
func (h *SensorHandlers) FilterSensors(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filter models.SensorReportFilter
	if err := decoder.Decode(&filter, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid filter", err).WithRequestID(requestID))
		return
	}

	page, err := h.service.FilterSensors(r.Context(), filter)
	if err != nil {
		fail(w, err, "failed to filter sensors", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}
