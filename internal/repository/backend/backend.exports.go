// FilePath: internal/repository/backend/backend.exports.go
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
)

// ExportRepo drives the asynchronous report export endpoints
type ExportRepo struct {
	*Client
}

func NewExportRepository(c *Client) *ExportRepo {
	return &ExportRepo{Client: c}
}

// Submit posts an export request. An answer without a job id is a rejected
// submission.
func (r *ExportRepo) Submit(ctx context.Context, in *models.ExportRequest) (*models.GenerateReportResponse, error) {
	var out models.GenerateReportResponse
	err := r.call(ctx, http.MethodPost, "/sensors/export", "generate report",
		func(req *resty.Request) { req.SetBody(in) }, &out)
	if err != nil {
		return nil, err
	}
	if (out.Success != nil && !*out.Success) || out.JobID == "" {
		msg := out.Message
		if msg == "" {
			msg = "Failed to generate report"
		}
		return nil, errors.NewRequestError(msg, http.StatusBadGateway, nil)
	}
	return &out, nil
}

func (r *ExportRepo) Job(ctx context.Context, jobID string) (*models.ExportJob, error) {
	var job models.ExportJob
	err := r.call(ctx, http.MethodGet, "/sensors/export/job/{id}", "check job status",
		func(req *resty.Request) { req.SetPathParam("id", jobID) }, &job)
	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	return &job, nil
}

func (r *ExportRepo) UserJobs(ctx context.Context, userID string) ([]*models.ExportJob, error) {
	var jobs []*models.ExportJob
	err := r.call(ctx, http.MethodGet, "/sensors/export/user/{id}", "fetch export jobs",
		func(req *resty.Request) { req.SetPathParam("id", userID) }, &jobs, "jobs")
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Download streams the binary report into w. Payloads above the configured
// limit are cut off and reported as an error.
func (r *ExportRepo) Download(ctx context.Context, jobID string, w io.Writer) (int64, error) {
	req, err := r.request(ctx, http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.SetPathParam("id", jobID).
		SetHeader("Accept", "text/csv, application/octet-stream").
		SetDoNotParseResponse(true)

	resp, err := req.Get("/sensors/export/download/{id}")
	if err != nil {
		return 0, errors.NewTransientNetworkError("Failed to download report", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		data, _ := io.ReadAll(io.LimitReader(body, maxErrorBodyLen))
		return 0, statusError(resp.StatusCode(), data, "download report")
	}

	src := io.Reader(body)
	if r.downloadLimit > 0 {
		src = io.LimitReader(body, r.downloadLimit+1)
	}
	n, err := io.Copy(w, src)
	if err != nil {
		return n, errors.NewTransientNetworkError("Failed to download report", err)
	}
	if r.downloadLimit > 0 && n > r.downloadLimit {
		return n, errors.NewRequestError(fmt.Sprintf("Report exceeds %d bytes", r.downloadLimit), http.StatusBadGateway, nil)
	}
	return n, nil
}
