package exports

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	nuts "github.com/vaudience/go-nuts"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/files"
)

const (
	DefaultPollInterval = 5 * time.Second
	defaultPollTimeout  = 10 * time.Second
	displayTimeLayout   = "2006-01-02 15:04"

	// Settled jobs remembered per controller; the oldest are forgotten first.
	maxSettled = 1024

	msgGenerateFailed = "Failed to generate report"
	msgJobFailed      = "Report generation failed"
)

// EmailLookup resolves a user profile from an email address.
type EmailLookup interface {
	GetByEmail(ctx context.Context, email string) (*models.UserProfile, error)
}

// Options tune a controller.
type Options struct {
	// Interval between two status polls of a job.
	Interval time.Duration
	// Timeout of a single status poll.
	Timeout time.Duration
	// Location used for filenames and messages; UTC when nil.
	Location *time.Location
	// DownloadHref builds the link of the "Download" action.
	DownloadHref func(jobID string) string
	// OnEvent receives export.submitted, export.completed and export.failed.
	OnEvent func(name string, labels map[string]string)
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultPollTimeout
	}
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.DownloadHref == nil {
		o.DownloadHref = func(id string) string { return "/api/v1/reports/jobs/" + id + "/download" }
	}
	return o
}

// Download describes a staged report about to be streamed.
type Download struct {
	Filename    string
	ContentType string
	Size        int64
}

// Controller runs the export lifecycle of one user.
type Controller struct {
	exports  repository.ExportRepository
	users    EmailLookup
	spool    *files.Spool
	inbox    *notify.Inbox
	opts     Options
	registry *Registry
	life     context.Context

	mu       sync.Mutex
	token    string
	email    string
	terminal map[string]models.ExportStatus
	settled  []string
}

func NewController(exports repository.ExportRepository, users EmailLookup, spool *files.Spool, inbox *notify.Inbox, opts Options) *Controller {
	return &Controller{
		exports:  exports,
		users:    users,
		spool:    spool,
		inbox:    inbox,
		opts:     opts.withDefaults(),
		registry: NewRegistry(),
		life:     context.Background(),
		terminal: make(map[string]models.ExportStatus),
	}
}

// SetSession records the credentials background polls are sent with and the
// session email used as the last identity fallback.
func (c *Controller) SetSession(token, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.email = email
}

// Registry exposes the poll tasks of this controller.
func (c *Controller) Registry() *Registry {
	return c.registry
}

func (c *Controller) withToken(ctx context.Context) context.Context {
	if _, ok := repository.TokenFrom(ctx); ok {
		return ctx
	}
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	return repository.WithToken(ctx, token)
}

// GenerateReport submits an export for filters and starts polling the
// returned job. Identity failures and rejected submissions are returned
// and surfaced in the inbox; neither is retried.
func (c *Controller) GenerateReport(ctx context.Context, userIdentifier string, filters models.SensorReportFilter) (*models.GenerateReportResponse, error) {
	ctx = c.withToken(ctx)

	userID, err := c.ResolveUserID(ctx, userIdentifier)
	if err != nil {
		jobsSubmittedTotal.WithLabelValues("identity_error").Inc()
		c.notifyError(err, msgGenerateFailed)
		return nil, err
	}

	resp, err := c.exports.Submit(ctx, &models.ExportRequest{SensorReportFilter: filters, UserID: userID})
	if err != nil {
		jobsSubmittedTotal.WithLabelValues("rejected").Inc()
		nuts.L.Errorf("[Exports] Submitting report for user %s failed: %v", userID, err)
		c.notifyError(err, msgGenerateFailed)
		return nil, err
	}
	jobsSubmittedTotal.WithLabelValues("accepted").Inc()
	nuts.L.Infof("[Exports] Job %s submitted for user %s", resp.JobID, userID)
	c.emit("export.submitted", resp.JobID)

	c.StartPolling(&models.ExportJob{
		ID:        resp.JobID,
		UserID:    userID,
		Status:    models.ExportPending,
		CreatedAt: time.Now(),
	})
	return resp, nil
}

// ResolveUserID determines the backend user id: a non-email identifier is
// used as is and an email identifier is looked up. Without an identifier the
// session token's id claim is used, then a lookup of the session email.
func (c *Controller) ResolveUserID(ctx context.Context, userIdentifier string) (string, error) {
	ident := strings.TrimSpace(userIdentifier)
	if ident != "" && !isEmail(ident) {
		return ident, nil
	}

	email := ident
	if email == "" {
		c.mu.Lock()
		token, sessionEmail := c.token, c.email
		c.mu.Unlock()
		if t, ok := repository.TokenFrom(ctx); ok {
			token = t
		}
		if claims, err := auth.ParseClaims(token); err == nil && claims.UserID != "" {
			return claims.UserID, nil
		}
		email = sessionEmail
	}
	if email == "" {
		return "", errors.NewIdentityResolutionError("Could not determine user identifier", nil)
	}
	profile, err := c.users.GetByEmail(c.withToken(ctx), email)
	if err != nil {
		nuts.L.Warnf("[Exports] Resolving user id for %s failed: %v", email, err)
		return "", errors.NewIdentityResolutionError("Could not determine user ID from email", err)
	}
	return profile.ID, nil
}

func isEmail(s string) bool {
	return strings.Contains(s, "@")
}

// StartPolling begins polling job every interval unless it is already being
// polled or has already been settled. Jobs that are already terminal are
// settled right away. It reports whether a poller was started.
func (c *Controller) StartPolling(job *models.ExportJob) bool {
	if job.Status.IsTerminal() {
		c.settle(job)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, done := c.terminal[job.ID]; done || c.registry.Active(job.ID) {
		return false
	}

	c.inbox.Push(notify.Notification{
		ID:          job.ID,
		Kind:        notify.KindLoading,
		Message:     fmt.Sprintf("Generating report from %s...", c.displayTime(job.CreatedAt)),
		Description: "This may take a few moments",
		Persistent:  true,
	})

	id := job.ID
	return c.registry.Start(c.life, id, func(ctx context.Context) {
		c.poll(ctx, id)
	})
}

func (c *Controller) poll(ctx context.Context, jobID string) {
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.tick(ctx, jobID) {
				return
			}
		}
	}
}

// tick runs one poll and reports whether polling is over.
func (c *Controller) tick(ctx context.Context, jobID string) bool {
	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	job, err := c.CheckJobStatus(callCtx, jobID)
	if ctx.Err() != nil {
		return true
	}
	if err != nil {
		pollsTotal.WithLabelValues("error").Inc()
		nuts.L.Warnf("[Exports] Error polling job %s: %v", jobID, err)
		return false
	}
	pollsTotal.WithLabelValues(string(job.Status)).Inc()
	if !job.Status.IsTerminal() {
		return false
	}
	c.settle(job)
	return true
}

// settle surfaces the outcome of a terminal job once. Later observations of
// the same job are ignored.
func (c *Controller) settle(job *models.ExportJob) {
	c.mu.Lock()
	if _, done := c.terminal[job.ID]; done {
		c.mu.Unlock()
		return
	}
	c.terminal[job.ID] = job.Status
	c.settled = append(c.settled, job.ID)
	if len(c.settled) > maxSettled {
		delete(c.terminal, c.settled[0])
		c.settled = c.settled[1:]
	}
	c.mu.Unlock()

	switch job.Status {
	case models.ExportCompleted:
		nuts.L.Infof("[Exports] Job %s completed", job.ID)
		c.inbox.Push(notify.Notification{
			ID:         job.ID,
			Kind:       notify.KindSuccess,
			Message:    fmt.Sprintf("Report from %s ready for download", c.displayTime(job.CreatedAt)),
			Persistent: true,
			Action: &notify.Action{
				Label:  "Download",
				Method: http.MethodGet,
				Href:   c.opts.DownloadHref(job.ID),
			},
		})
		c.emit("export.completed", job.ID)
	case models.ExportFailed:
		msg := job.ErrorMessage(msgJobFailed)
		nuts.L.Warnf("[Exports] Job %s failed: %s", job.ID, msg)
		c.inbox.Push(notify.Notification{
			ID:      job.ID,
			Kind:    notify.KindError,
			Message: msg,
		})
		c.emit("export.failed", job.ID)
	}
}

// Settled returns the terminal status recorded for jobID.
func (c *Controller) Settled(jobID string) (models.ExportStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.terminal[jobID]
	return s, ok
}

// CheckJobStatus fetches the job once. Errors are returned untouched and do
// not change polling state.
func (c *Controller) CheckJobStatus(ctx context.Context, jobID string) (*models.ExportJob, error) {
	return c.exports.Job(c.withToken(ctx), jobID)
}

// ListJobs returns the export jobs of the user.
func (c *Controller) ListJobs(ctx context.Context, userIdentifier string) ([]*models.ExportJob, error) {
	ctx = c.withToken(ctx)
	userID, err := c.ResolveUserID(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	return c.exports.UserJobs(ctx, userID)
}

// DownloadReport fetches the job, spools its payload to a staging file and
// streams it to w. ready is called with the file name before the first byte
// is written. The staging file is removed whatever happens.
func (c *Controller) DownloadReport(ctx context.Context, jobID string, w io.Writer, ready func(Download)) (err error) {
	ctx = c.withToken(ctx)
	defer func() {
		if err != nil {
			downloadsTotal.WithLabelValues("failed").Inc()
			c.notifyError(err, "Download failed")
			return
		}
		downloadsTotal.WithLabelValues("ok").Inc()
		c.inbox.Push(notify.Notification{Kind: notify.KindSuccess, Message: "Report downloaded successfully"})
	}()

	job, err := c.CheckJobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != models.ExportCompleted {
		return errors.NewRequestError("Report is not ready yet", http.StatusConflict, nil)
	}

	staged, err := c.spool.Stage(jobID)
	if err != nil {
		return err
	}
	defer staged.Remove()

	if _, err := c.exports.Download(ctx, jobID, staged); err != nil {
		return err
	}
	contentType, err := c.spool.ContentType(staged)
	if err != nil {
		return err
	}

	if ready != nil {
		ready(Download{
			Filename:    job.DownloadFilename(c.opts.Location),
			ContentType: contentType,
			Size:        staged.Size(),
		})
	}
	if err := c.spool.StreamFile(ctx, staged, w); err != nil {
		return err
	}
	c.inbox.Dismiss(jobID)
	nuts.L.Infof("[Exports] Job %s downloaded (%d bytes)", jobID, staged.Size())
	return nil
}

// Mount attaches the report view: every active job of the user gets a
// poller unless it already has one, and completed jobs that were never
// downloaded are offered for download again.
func (c *Controller) Mount(ctx context.Context, userIdentifier string) ([]*models.ExportJob, error) {
	jobs, err := c.ListJobs(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	started := 0
	for _, job := range jobs {
		switch {
		case !job.Status.IsTerminal():
			if c.StartPolling(job) {
				started++
			}
		case job.Status == models.ExportCompleted && !job.Downloaded:
			c.settle(job)
		}
	}
	nuts.L.Infof("[Exports] Mounted with %d jobs, %d new pollers", len(jobs), started)
	return jobs, nil
}

// Unmount cancels every poller and waits for them to stop. No poll runs
// and no notification is pushed once it returns.
func (c *Controller) Unmount() int {
	n := c.registry.Drain()
	if n > 0 {
		nuts.L.Infof("[Exports] Unmounted, canceled %d pollers", n)
	}
	return n
}

func (c *Controller) displayTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.In(c.opts.Location).Format(displayTimeLayout)
}

func (c *Controller) notifyError(err error, fallback string) {
	msg := fallback
	if apiErr, ok := errors.As(err); ok && apiErr.Message != "" {
		msg = apiErr.Message
	}
	c.inbox.Push(notify.Notification{Kind: notify.KindError, Message: msg})
}

func (c *Controller) emit(event, jobID string) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(event, map[string]string{"job_id": jobID})
	}
}
