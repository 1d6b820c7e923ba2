package exports

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/config"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/notify"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/backend"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository/files"
)

const (
	testInterval = 10 * time.Millisecond
	waitFor      = 2 * time.Second
)

type fakeExports struct {
	mu          sync.Mutex
	jobs        map[string]*models.ExportJob
	userJobs    []*models.ExportJob
	submitted   []*models.ExportRequest
	failPolls   int
	polls       map[string]int
	payload     string
	downloadErr error
}

func newFakeExports() *fakeExports {
	return &fakeExports{jobs: make(map[string]*models.ExportJob), polls: make(map[string]int)}
}

func (f *fakeExports) set(job models.ExportJob) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = &job
}

func (f *fakeExports) pollCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[id]
}

func (f *fakeExports) Submit(ctx context.Context, req *models.ExportRequest) (*models.GenerateReportResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	f.jobs["J1"] = &models.ExportJob{ID: "J1", Status: models.ExportPending}
	return &models.GenerateReportResponse{JobID: "J1"}, nil
}

func (f *fakeExports) Job(ctx context.Context, id string) (*models.ExportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls[id]++
	if f.failPolls > 0 {
		f.failPolls--
		return nil, errors.NewTransientNetworkError("Failed to check job status", io.ErrUnexpectedEOF)
	}
	job, ok := f.jobs[id]
	if !ok {
		return nil, errors.NewNotFoundError("Job not found", nil)
	}
	cp := *job
	return &cp, nil
}

func (f *fakeExports) UserJobs(ctx context.Context, userID string) ([]*models.ExportJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userJobs, nil
}

func (f *fakeExports) Download(ctx context.Context, id string, w io.Writer) (int64, error) {
	n, err := io.WriteString(w, f.payload)
	if err != nil {
		return int64(n), err
	}
	return int64(n), f.downloadErr
}

type fakeUsers struct {
	calls int
	id    string
}

func (u *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	u.calls++
	if u.id == "" {
		return nil, errors.NewNotFoundError("User not found", nil)
	}
	return &models.UserProfile{ID: u.id, Email: email}, nil
}

type fixture struct {
	repo    *fakeExports
	users   *fakeUsers
	inbox   *notify.Inbox
	ctrl    *Controller
	staging string
	events  chan string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	staging := t.TempDir()
	spool, err := files.NewSpool(files.FileConfig{BasePath: staging, MaxFileSize: 1 << 20, AllowedMime: []string{"text/plain", "text/csv"}})
	require.NoError(t, err)

	f := &fixture{
		repo:    newFakeExports(),
		users:   &fakeUsers{},
		inbox:   notify.NewInbox(),
		staging: staging,
		events:  make(chan string, 32),
	}
	f.ctrl = NewController(f.repo, f.users, spool, f.inbox, Options{
		Interval: testInterval,
		OnEvent:  func(name string, _ map[string]string) { f.events <- name },
	})
	f.ctrl.SetSession("opaque-token", "")
	t.Cleanup(func() { f.ctrl.Unmount() })
	return f
}

func (f *fixture) settled(id string) func() bool {
	return func() bool {
		_, ok := f.ctrl.Settled(id)
		return ok && !f.ctrl.Registry().Active(id)
	}
}

func TestGenerateReportResolvesEmailAndPolls(t *testing.T) {
	var exportBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer opaque-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/users/email/a@x.com":
			_, _ = w.Write([]byte(`{"status":"success","data":{"id":"u-7","email":"a@x.com"}}`))
		case "/sensors/export":
			exportBody, _ = io.ReadAll(r.Body)
			_, _ = w.Write([]byte(`{"message":"queued","success":true,"jobId":"J1"}`))
		case "/sensors/export/job/J1":
			_, _ = w.Write([]byte(`{"id":"J1","status":"processing","createdAt":"2024-01-01T00:00:00Z"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := backend.New(config.BackendConfig{URL: srv.URL, Timeout: time.Second})
	inbox := notify.NewInbox()
	ctrl := NewController(backend.NewExportRepository(client), backend.NewUserRepository(client), nil, inbox, Options{Interval: testInterval})
	defer ctrl.Unmount()

	ctx := repository.WithToken(context.Background(), "opaque-token")
	resp, err := ctrl.GenerateReport(ctx, "a@x.com", models.SensorReportFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, "J1", resp.JobID)
	assert.JSONEq(t, `{"limit":50,"userId":"u-7"}`, string(exportBody))

	assert.True(t, ctrl.Registry().Active("J1"))
	n, ok := inbox.Get("J1")
	require.True(t, ok)
	assert.Equal(t, notify.KindLoading, n.Kind)
}

func TestCompletedJobNotifiesAndStops(t *testing.T) {
	f := newFixture(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing, CreatedAt: created})

	require.True(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending, CreatedAt: created}))
	assert.Eventually(t, func() bool { return f.repo.pollCount("J1") >= 2 }, waitFor, time.Millisecond)
	assert.True(t, f.ctrl.Registry().Active("J1"), "processing keeps polling")

	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportCompleted, CreatedAt: created})
	require.Eventually(t, f.settled("J1"), waitFor, time.Millisecond)

	n, ok := f.inbox.Get("J1")
	require.True(t, ok)
	assert.Equal(t, notify.KindSuccess, n.Kind)
	assert.True(t, n.Persistent)
	assert.Equal(t, "Report from 2024-01-01 00:00 ready for download", n.Message)
	require.NotNil(t, n.Action)
	assert.Equal(t, "/api/v1/reports/jobs/J1/download", n.Action.Href)
	assert.Equal(t, "export.completed", <-f.events)

	polls := f.repo.pollCount("J1")
	time.Sleep(5 * testInterval)
	assert.Equal(t, polls, f.repo.pollCount("J1"), "no polls after the terminal status")
}

func TestFailedJobNotifiesError(t *testing.T) {
	f := newFixture(t)
	msg := "disk full"
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportFailed, Error: &msg})

	require.True(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending}))
	require.Eventually(t, f.settled("J1"), waitFor, time.Millisecond)

	n, ok := f.inbox.Get("J1")
	require.True(t, ok)
	assert.Equal(t, notify.KindError, n.Kind)
	assert.Equal(t, "disk full", n.Message)

	status, _ := f.ctrl.Settled("J1")
	assert.Equal(t, models.ExportFailed, status)
}

func TestFailedJobWithoutMessageUsesFallback(t *testing.T) {
	f := newFixture(t)
	f.ctrl.StartPolling(&models.ExportJob{ID: "J2", Status: models.ExportFailed})

	n, ok := f.inbox.Get("J2")
	require.True(t, ok)
	assert.Equal(t, "Report generation failed", n.Message)
}

func TestTerminalStatusNotifiesOnce(t *testing.T) {
	f := newFixture(t)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportCompleted})
	f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending})
	require.Eventually(t, f.settled("J1"), waitFor, time.Millisecond)
	require.True(t, f.inbox.Dismiss("J1"))

	// later observations of the same completed job
	assert.False(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportCompleted}))
	assert.False(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending}))
	f.ctrl.settle(&models.ExportJob{ID: "J1", Status: models.ExportCompleted})

	assert.Empty(t, f.inbox.List())
	assert.Len(t, f.events, 1)
}

func TestPollErrorsKeepPolling(t *testing.T) {
	f := newFixture(t)
	f.repo.failPolls = 3
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportCompleted})

	f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending})
	require.Eventually(t, f.settled("J1"), waitFor, time.Millisecond)
	assert.GreaterOrEqual(t, f.repo.pollCount("J1"), 4)
}

func TestOnePollerPerJob(t *testing.T) {
	f := newFixture(t)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing})

	assert.True(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending}))
	assert.False(t, f.ctrl.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportProcessing}))
	assert.Equal(t, []string{"J1"}, f.ctrl.Registry().Keys())
}

func TestUnmountCancelsEveryPoller(t *testing.T) {
	f := newFixture(t)
	ids := []string{"A", "B", "C"}
	for _, id := range ids {
		f.repo.set(models.ExportJob{ID: id, Status: models.ExportProcessing})
		require.True(t, f.ctrl.StartPolling(&models.ExportJob{ID: id, Status: models.ExportPending}))
	}
	assert.Eventually(t, func() bool { return f.repo.pollCount("C") > 0 }, waitFor, time.Millisecond)

	assert.Equal(t, 3, f.ctrl.Unmount())
	assert.Zero(t, f.ctrl.Registry().Len())

	before := map[string]int{}
	for _, id := range ids {
		before[id] = f.repo.pollCount(id)
	}
	time.Sleep(5 * testInterval)
	for _, id := range ids {
		assert.Equal(t, before[id], f.repo.pollCount(id), id)
	}
}

func TestMountStartsMissingPollers(t *testing.T) {
	f := newFixture(t)
	f.repo.userJobs = []*models.ExportJob{
		{ID: "J1", Status: models.ExportProcessing},
		{ID: "J2", Status: models.ExportCompleted},
		{ID: "J3", Status: models.ExportFailed},
		{ID: "J4", Status: models.ExportCompleted, Downloaded: true},
	}
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing})

	jobs, err := f.ctrl.Mount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, jobs, 4)
	assert.Equal(t, []string{"J1"}, f.ctrl.Registry().Keys())

	n, ok := f.inbox.Get("J2")
	require.True(t, ok)
	assert.Equal(t, notify.KindSuccess, n.Kind)
	_, ok = f.inbox.Get("J3")
	assert.False(t, ok)
	_, ok = f.inbox.Get("J4")
	assert.False(t, ok)

	_, err = f.ctrl.Mount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.ctrl.Registry().Len(), "remount does not duplicate pollers")
}

func TestDownloadReport(t *testing.T) {
	f := newFixture(t)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportCompleted, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})
	f.repo.payload = "time,value\n00:00,3.9\n"
	f.inbox.Push(notify.Notification{ID: "J1", Kind: notify.KindSuccess, Persistent: true})

	var out bytes.Buffer
	var got Download
	err := f.ctrl.DownloadReport(context.Background(), "J1", &out, func(d Download) { got = d })
	require.NoError(t, err)

	assert.Equal(t, "sensor_report_2024-01-01_00-00.csv", got.Filename)
	assert.Equal(t, "text/csv", got.ContentType)
	assert.EqualValues(t, len(f.repo.payload), got.Size)
	assert.Equal(t, f.repo.payload, out.String())
	assertEmptyDir(t, f.staging)

	_, ok := f.inbox.Get("J1")
	assert.False(t, ok, "the ready notification is replaced by the download confirmation")
	list := f.inbox.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Report downloaded successfully", list[0].Message)
}

func TestDownloadReportCleansUpOnFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportCompleted})
	f.repo.payload = "partial"
	f.repo.downloadErr = errors.NewTransientNetworkError("Failed to download report", io.ErrUnexpectedEOF)

	called := false
	err := f.ctrl.DownloadReport(context.Background(), "J1", io.Discard, func(Download) { called = true })
	assert.True(t, errors.IsTransient(err))
	assert.False(t, called)
	assertEmptyDir(t, f.staging)

	list := f.inbox.List()
	require.Len(t, list, 1)
	assert.Equal(t, notify.KindError, list[0].Kind)
}

func TestDownloadReportNotReady(t *testing.T) {
	f := newFixture(t)
	f.repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing})

	err := f.ctrl.DownloadReport(context.Background(), "J1", io.Discard, nil)
	assert.True(t, errors.IsRequest(err))
	assertEmptyDir(t, f.staging)
}

func TestResolveUserID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, err := f.ctrl.ResolveUserID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)

	_, err = f.ctrl.ResolveUserID(ctx, "a@x.com")
	assert.True(t, errors.IsIdentityResolution(err))
	assert.Equal(t, 1, f.users.calls)

	_, err = f.ctrl.ResolveUserID(ctx, "")
	assert.True(t, errors.IsIdentityResolution(err), "no identifier, no claim, no session email")

	f.users.id = "u-from-email"
	f.ctrl.SetSession("opaque-token", "b@x.com")
	id, err = f.ctrl.ResolveUserID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "u-from-email", id)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-claim"}).SignedString([]byte("k"))
	require.NoError(t, err)
	f.ctrl.SetSession(token, "b@x.com")
	calls := f.users.calls
	id, err = f.ctrl.ResolveUserID(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "u-claim", id)
	assert.Equal(t, calls, f.users.calls, "without an identifier the token claim wins over the session email")

	id, err = f.ctrl.ResolveUserID(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-from-email", id, "an explicit email is always looked up")
	assert.Equal(t, calls+1, f.users.calls)
}

func TestResolveUserIDLooksUpEmailOfAnotherUser(t *testing.T) {
	f := newFixture(t)
	f.users.id = "u-target"
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "u-admin"}).SignedString([]byte("k"))
	require.NoError(t, err)
	ctx := repository.WithToken(context.Background(), token)

	id, err := f.ctrl.ResolveUserID(ctx, "target@x.com")
	require.NoError(t, err)
	assert.Equal(t, "u-target", id)
	assert.Equal(t, 1, f.users.calls)

	f.users.id = ""
	_, err = f.ctrl.ResolveUserID(ctx, "gone@x.com")
	assert.True(t, errors.IsIdentityResolution(err), "a failed lookup is not replaced by the token claim")
}

func TestGenerateReportIdentityFailureIsSurfaced(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.GenerateReport(context.Background(), "nobody@x.com", models.SensorReportFilter{})
	assert.True(t, errors.IsIdentityResolution(err))
	assert.Empty(t, f.repo.submitted, "nothing is submitted")
	list := f.inbox.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Could not determine user ID from email", list[0].Message)
}

func TestManager(t *testing.T) {
	repo := newFakeExports()
	repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing})
	hub := notify.NewHub()
	m := NewManager(repo, &fakeUsers{}, nil, hub, Options{Interval: testInterval})

	a := m.Controller("a@x.com")
	assert.Same(t, a, m.Controller("a@x.com"))
	assert.NotSame(t, a, m.Controller("b@x.com"))

	a.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending})
	m.Controller("b@x.com").StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending})
	assert.Equal(t, 2, m.ActivePollers())
	_, ok := hub.Inbox("a@x.com").Get("J1")
	assert.True(t, ok)

	m.Shutdown()
	assert.Zero(t, m.ActivePollers())
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	block := make(chan struct{})
	started := r.Start(context.Background(), "k", func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-block:
		}
	})
	assert.True(t, started)
	assert.False(t, r.Start(context.Background(), "k", func(context.Context) {}))

	assert.True(t, r.Cancel("k"))
	assert.False(t, r.Cancel("k"))
	r.Wait()

	// a finished task releases its key
	r.Start(context.Background(), "k", func(context.Context) {})
	r.Wait()
	assert.False(t, r.Active("k"))
	close(block)
}

func TestManagerRelease(t *testing.T) {
	repo := newFakeExports()
	repo.set(models.ExportJob{ID: "J1", Status: models.ExportProcessing})
	m := NewManager(repo, &fakeUsers{}, nil, notify.NewHub(), Options{Interval: testInterval})

	a := m.Controller("a@x.com")
	a.StartPolling(&models.ExportJob{ID: "J1", Status: models.ExportPending})
	assert.Equal(t, 1, m.ActivePollers())

	assert.Equal(t, 1, m.Release("a@x.com"))
	assert.Zero(t, m.ActivePollers())
	assert.NotSame(t, a, m.Controller("a@x.com"), "a released user starts over")
	assert.Zero(t, m.Release("nobody@x.com"))
	m.Shutdown()
}

func TestSettledJobsAreBounded(t *testing.T) {
	c := NewController(newFakeExports(), &fakeUsers{}, nil, notify.NewInbox(), Options{Interval: testInterval})
	for i := 0; i < maxSettled+10; i++ {
		c.settle(&models.ExportJob{ID: fmt.Sprintf("J%d", i), Status: models.ExportFailed})
	}

	_, ok := c.Settled("J0")
	assert.False(t, ok, "the oldest settled jobs are forgotten")
	status, ok := c.Settled(fmt.Sprintf("J%d", maxSettled+9))
	assert.True(t, ok)
	assert.Equal(t, models.ExportFailed, status)

	c.mu.Lock()
	assert.Len(t, c.terminal, maxSettled)
	assert.Len(t, c.settled, maxSettled)
	c.mu.Unlock()
}

func TestRegistryRefusesStartWhileDraining(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	running := make(chan struct{})
	require.True(t, r.Start(context.Background(), "k", func(ctx context.Context) {
		close(running)
		<-ctx.Done()
		<-release
	}))
	<-running

	drained := make(chan int, 1)
	go func() { drained <- r.Drain() }()

	assert.Eventually(t, func() bool { return !r.Active("k") }, waitFor, time.Millisecond)
	assert.False(t, r.Start(context.Background(), "other", func(context.Context) {}),
		"no task starts while a drain waits")
	close(release)

	select {
	case n := <-drained:
		assert.Equal(t, 1, n)
	case <-time.After(waitFor):
		t.Fatal("drain did not return")
	}
	assert.True(t, r.Start(context.Background(), "k", func(context.Context) {}), "starts are accepted again")
	r.Wait()
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Empty(t, names)
}
