package resources

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/dashboard"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/exports"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// ReportHandlers drive report exports of the signed-in user
type ReportHandlers struct {
	exports *exports.Manager
}

type exportBody struct {
	models.SensorReportFilter
	// User overrides the identifier the report is generated for.
	User string `json:"user,omitempty"`
}

type watchView struct {
	Jobs    []*models.ExportJob `json:"jobs"`
	Polling []string            `json:"polling"`
}

func (h *ReportHandlers) controller(p *auth.Principal) *exports.Controller {
	c := h.exports.Controller(p.Identifier())
	c.SetSession(p.Token, p.Email)
	return c
}

// @Summary Generate a report
// @Description Submit an export job; progress is reported through notifications
// @Tags reports
// @Accept json
// @Produce json
// @Param filters body models.SensorReportFilter true "Report filters"
// @Success 202 {object} models.GenerateReportResponse
// @Failure 422 {object} errors.APIError
// @Router /reports/export [post]
// @Security BearerAuth
func (h *ReportHandlers) GenerateReport(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	var body exportBody
	if apiErr := decodeBody(r, &body); apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	if err := dashboard.ValidateReportFilter(body.SensorReportFilter); err != nil {
		fail(w, err, "invalid filters", requestID)
		return
	}

	ident := body.User
	if ident == "" {
		ident = p.Identifier()
	}
	resp, err := h.controller(p).GenerateReport(r.Context(), ident, body.SensorReportFilter)
	if err != nil {
		fail(w, err, "failed to generate report", requestID)
		return
	}
	respondWithJSON(w, http.StatusAccepted, resp)
}

// @Summary List export jobs
// @Tags reports
// @Produce json
// @Success 200 {array} models.ExportJob
// @Router /reports/jobs [get]
// @Security BearerAuth
func (h *ReportHandlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	jobs, err := h.controller(p).ListJobs(r.Context(), p.Identifier())
	if err != nil {
		fail(w, err, "failed to list export jobs", requestID)
		return
	}
	if jobs == nil {
		jobs = []*models.ExportJob{}
	}
	respondWithJSON(w, http.StatusOK, jobs)
}

// @Summary Get an export job
// @Tags reports
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} models.ExportJob
// @Router /reports/jobs/{id} [get]
// @Security BearerAuth
func (h *ReportHandlers) GetJob(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	job, err := h.controller(p).CheckJobStatus(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		fail(w, err, "failed to load export job", requestID)
		return
	}
	respondWithJSON(w, http.StatusOK, job)
}

// @Summary Download a report
// @Tags reports
// @Produce text/csv
// @Param id path string true "Job ID"
// @Success 200 {file} file
// @Failure 409 {object} errors.APIError
// @Router /reports/jobs/{id}/download [get]
// @Security BearerAuth
func (h *ReportHandlers) Download(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}
	jobID := mux.Vars(r)["id"]

	started := false
	err := h.controller(p).DownloadReport(r.Context(), jobID, w, func(d exports.Download) {
		started = true
		w.Header().Set("Content-Type", d.ContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", d.Filename))
		w.Header().Set("Content-Length", strconv.FormatInt(d.Size, 10))
		w.WriteHeader(http.StatusOK)
	})
	if err == nil {
		return
	}
	if started {
		nuts.L.Errorf("[API] Streaming report %s broke off: %v", jobID, err)
		return
	}
	fail(w, err, "failed to download report", requestID)
}

// @Summary Watch export jobs
// @Description Start polling every active export job of the user
// @Tags reports
// @Produce json
// @Success 200 {object} watchView
// @Router /reports/watch [post]
// @Security BearerAuth
func (h *ReportHandlers) Watch(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	c := h.controller(p)
	jobs, err := c.Mount(r.Context(), p.Identifier())
	if err != nil {
		fail(w, err, "failed to watch export jobs", requestID)
		return
	}
	if jobs == nil {
		jobs = []*models.ExportJob{}
	}
	respondWithJSON(w, http.StatusOK, watchView{Jobs: jobs, Polling: c.Registry().Keys()})
}

// @Summary Stop watching export jobs
// @Tags reports
// @Produce json
// @Success 200 {object} map[string]int
// @Router /reports/watch [delete]
// @Security BearerAuth
func (h *ReportHandlers) Unwatch(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)
	p, apiErr := principal(r)
	if apiErr != nil {
		respondWithError(w, apiErr.WithRequestID(requestID))
		return
	}

	n := h.exports.Controller(p.Identifier()).Unmount()
	respondWithJSON(w, http.StatusOK, map[string]int{"canceled": n})
}
