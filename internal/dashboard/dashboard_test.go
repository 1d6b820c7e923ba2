package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itsatony/w4b_v3/server/dashboard/internal/auth"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/cache"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/errors"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/models"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/navigation"
	"github.com/itsatony/w4b_v3/server/dashboard/internal/repository"
)

type fakeLevels struct {
	repository.LevelRepository
	tree      []*models.Level
	byToken   map[string][]*models.Level
	treeCalls int32
	summaries map[string]*models.DetailedLevelSummary
	created   []*models.NodeInput
	deleted   []string
}

func (f *fakeLevels) Tree(ctx context.Context) ([]*models.Level, error) {
	atomic.AddInt32(&f.treeCalls, 1)
	if token, ok := repository.TokenFrom(ctx); ok {
		if tree, ok := f.byToken[token]; ok {
			return tree, nil
		}
	}
	return f.tree, nil
}

func (f *fakeLevels) Summary(ctx context.Context, id string) (*models.DetailedLevelSummary, error) {
	if s, ok := f.summaries[id]; ok {
		return s, nil
	}
	return nil, errors.NewNotFoundError("Level not found", nil)
}

func (f *fakeLevels) CreateNode(ctx context.Context, in *models.NodeInput) (*models.Node, error) {
	f.created = append(f.created, in)
	return &models.Node{ID: "new", Name: in.Name, ParentID: in.ParentID}, nil
}

func (f *fakeLevels) DeleteNode(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeSensors struct {
	repository.SensorRepository
	created []*models.SensorInput
	filter  models.SensorReportFilter
}

func (f *fakeSensors) Create(ctx context.Context, in *models.SensorInput) (*models.Sensor, error) {
	f.created = append(f.created, in)
	return &models.Sensor{ID: "s-new", Node: in.Node}, nil
}

func (f *fakeSensors) Filter(ctx context.Context, filter models.SensorReportFilter) (*models.SensorReportResponse, error) {
	f.filter = filter
	return &models.SensorReportResponse{Data: []models.SensorReport{}}, nil
}

type fakeUsers struct {
	repository.UserRepository
	users       map[string]*models.User
	profiles    map[string]*models.UserProfile
	updated     *models.UpdateUserInput
	emailLookup int32
}

func (f *fakeUsers) Get(ctx context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, errors.NewNotFoundError("User not found", nil)
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*models.UserProfile, error) {
	atomic.AddInt32(&f.emailLookup, 1)
	if p, ok := f.profiles[email]; ok {
		return p, nil
	}
	return nil, errors.NewNotFoundError("User ID not found for this email", nil)
}

func (f *fakeUsers) Update(ctx context.Context, id string, in *models.UpdateUserInput) (*models.User, error) {
	f.updated = in
	u := *f.users[id]
	u.Name, u.RoleID, u.IsADUser = in.Name, in.RoleID, in.IsADUser
	return &u, nil
}

type fakeRoles struct {
	repository.RoleRepository
	roles map[string]*models.Role
}

func (f *fakeRoles) Get(ctx context.Context, id string) (*models.Role, error) {
	if r, ok := f.roles[id]; ok {
		return r, nil
	}
	return nil, errors.NewNotFoundError("Role not found", nil)
}

type fakeAuth struct{}

func (fakeAuth) Login(ctx context.Context, in *models.LoginRequest) (*models.LoginResult, error) {
	if in.Password != "secret" {
		return nil, errors.NewAuthError("Invalid credentials", nil)
	}
	return &models.LoginResult{Token: "tok", User: models.UserProfile{ID: "u1", Email: in.Email}}, nil
}

func treeKey(ctx context.Context) string {
	return "t:" + cache.TreeKey(ownerOf(ctx))
}

func testTree() []*models.Level {
	return []*models.Level{
		{ID: "A", Name: "Region A", Children: []*models.Level{
			{ID: "B", Name: "Warehouse B", Children: []*models.Level{
				{ID: "C", Name: "Fridge C", HasSensor: true, SensorData: []models.SensorData{{SensorID: "s1"}}},
			}},
		}},
		{ID: "D", Name: "Region D"},
	}
}

type fixture struct {
	svc     *Service
	levels  *fakeLevels
	sensors *fakeSensors
	users   *fakeUsers
	roles   *fakeRoles
	mr      *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := &fixture{
		levels: &fakeLevels{tree: testTree(), summaries: map[string]*models.DetailedLevelSummary{
			"A": {ID: "A", Name: "Region A"},
			"B": {ID: "B", Name: "Warehouse B"},
			"C": {ID: "C", Name: "Fridge C"},
		}},
		sensors: &fakeSensors{},
		users: &fakeUsers{
			users: map[string]*models.User{"u1": {ID: "u1", Name: "Ann", Email: "ann@x.com", RoleID: "r-view"}},
			profiles: map[string]*models.UserProfile{
				"ann@x.com": {ID: "u1", Email: "ann@x.com", Role: models.RoleRef{ID: "r-view"}},
			},
		},
		roles: &fakeRoles{roles: map[string]*models.Role{
			"r-view": {ID: "r-view", RoleActions: []models.RoleAction{{Actions: []string{"NODE_VIEW", "REPORT_VIEW"}}}},
		}},
		mr: mr,
	}
	f.svc = New(f.levels, f.sensors, f.users, f.roles, &fakeAuth{}, cache.New(client, "t:"), nil, TTLs{})
	require.NoError(t, f.svc.Validate())
	return f
}

func asRoot(ctx context.Context) context.Context {
	return auth.WithPrincipal(ctx, &auth.Principal{Token: "tok", Permissions: &models.UserPermissions{HasRootAccess: true}})
}

func TestTreeIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Tree(ctx)
	require.NoError(t, err)
	tree, err := f.svc.Tree(ctx)
	require.NoError(t, err)
	assert.Len(t, tree, 2)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.levels.treeCalls))

	_, err = f.svc.RefreshTree(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.levels.treeCalls))
}

func TestTreeIsCachedPerCaller(t *testing.T) {
	f := newFixture(t)
	f.levels.byToken = map[string][]*models.Level{
		"tok-alice": {{ID: "A", Name: "Region A"}},
		"tok-bob":   {{ID: "D", Name: "Region D"}},
	}
	alice := auth.WithPrincipal(repository.WithToken(context.Background(), "tok-alice"),
		&auth.Principal{Token: "tok-alice", UserID: "u-alice"})
	bob := auth.WithPrincipal(repository.WithToken(context.Background(), "tok-bob"),
		&auth.Principal{Token: "tok-bob", UserID: "u-bob"})

	aliceTree, err := f.svc.Tree(alice)
	require.NoError(t, err)
	bobTree, err := f.svc.Tree(bob)
	require.NoError(t, err)

	require.Len(t, aliceTree, 1)
	require.Len(t, bobTree, 1)
	assert.Equal(t, "A", aliceTree[0].ID)
	assert.Equal(t, "D", bobTree[0].ID)
	assert.NotEqual(t, treeKey(alice), treeKey(bob))
	assert.True(t, f.mr.Exists(treeKey(alice)))
	assert.True(t, f.mr.Exists(treeKey(bob)))

	again, err := f.svc.Tree(bob)
	require.NoError(t, err)
	assert.Equal(t, "D", again[0].ID)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.levels.treeCalls))

	// A tree change drops every caller's copy.
	_, err = f.svc.DeleteNode(alice, "A", navigation.Location{})
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(treeKey(alice)))
	assert.False(t, f.mr.Exists(treeKey(bob)))
}

func TestTreeCacheFallsBackToToken(t *testing.T) {
	a := repository.WithToken(context.Background(), "tok-a")
	b := repository.WithToken(context.Background(), "tok-b")
	assert.NotEqual(t, ownerOf(a), ownerOf(b))
	assert.Equal(t, ownerOf(a), ownerOf(repository.WithToken(context.Background(), "tok-a")))
}

func TestBrowseResolvesLocation(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Browse(context.Background(), navigation.Location{ParentID: "B", ChildID: "C", SensorID: "s1"}, true)
	require.NoError(t, err)
	require.NotNil(t, b.Parent)
	assert.Equal(t, "B", b.Parent.ID)
	assert.Equal(t, "C", b.Child.ID)
	require.NotNil(t, b.Sensor)
	assert.Equal(t, "s1", b.Sensor.SensorID)
	require.NotNil(t, b.Summary)
	assert.Equal(t, b.SummaryTarget.ID, b.Summary.ID)
}

func TestBrowseStaleParent(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Browse(context.Background(), navigation.Location{ParentID: "gone"}, true)
	require.NoError(t, err)
	assert.True(t, b.ParentMissing)
	assert.Nil(t, b.Parent)
	assert.Nil(t, b.Summary)
}

func TestBrowseSummaryFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)

	b, err := f.svc.Browse(context.Background(), navigation.Location{ParentID: "D"}, true)
	require.NoError(t, err)
	assert.Equal(t, "D", b.Parent.ID)
	assert.Nil(t, b.Summary)
}

func TestDeleteNodeForcesReload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Tree(ctx)
	require.NoError(t, err)
	require.True(t, f.mr.Exists(treeKey(ctx)))

	res, err := f.svc.DeleteNode(ctx, "B", navigation.Location{ParentID: "B", ChildID: "C"})
	require.NoError(t, err)
	assert.True(t, res.Reload)
	assert.Equal(t, navigation.Location{}, res.Location)
	assert.Equal(t, []string{"B"}, f.levels.deleted)
	assert.False(t, f.mr.Exists(treeKey(ctx)))

	f.levels.tree = []*models.Level{{ID: "A", Name: "Region A"}, {ID: "D"}}
	b, err := f.svc.Browse(ctx, navigation.Location{ParentID: "B"}, false)
	require.NoError(t, err)
	assert.True(t, b.ParentMissing, "browsing after delete sees the refetched tree")
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.levels.treeCalls))
}

func TestDeleteNodeKeepsUnrelatedSelection(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.DeleteNode(context.Background(), "C", navigation.Location{ParentID: "B", ChildID: "C"})
	require.NoError(t, err)
	assert.Equal(t, navigation.Location{ParentID: "B"}, res.Location)

	res, err = f.svc.DeleteNode(context.Background(), "D", navigation.Location{ParentID: "A"})
	require.NoError(t, err)
	assert.Equal(t, navigation.Location{ParentID: "A"}, res.Location)
}

func TestCreateNodeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateNode(ctx, &models.NodeInput{})
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.CreateNode(ctx, &models.NodeInput{Name: "X", ParentID: "nope"})
	assert.True(t, errors.IsValidation(err))

	node, err := f.svc.CreateNode(ctx, &models.NodeInput{Name: "X", ParentID: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", node.ParentID)
	assert.False(t, f.mr.Exists(treeKey(ctx)))
}

func TestCreateSensorValidatesConfiguration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateSensor(ctx, &models.SensorInput{
		SensorType:    models.SensorTypeTemperature,
		SubType:       models.SubTypeWialon,
		Node:          "C",
		Configuration: models.WialonConfig{SectionName: "S", UnitID: "1", LocationIndex: "2"},
	})
	require.Error(t, err)
	apiErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeValidation, apiErr.Type)
	assert.Contains(t, apiErr.Details, "VehicleNo")

	_, err = f.svc.CreateSensor(ctx, &models.SensorInput{
		SensorType:    "Humidity",
		Node:          "C",
		Configuration: models.UnclassifiedConfig{SensorType: "Humidity"},
	})
	assert.True(t, errors.IsValidation(err))

	s, err := f.svc.CreateSensor(ctx, &models.SensorInput{
		SensorType:    models.SensorTypeDecibel,
		Node:          "C",
		Configuration: models.DecibelConfig{SectionName: "S", Department: "D", UnitID: "U"},
	})
	require.NoError(t, err)
	assert.Equal(t, "s-new", s.ID)
	assert.Len(t, f.sensors.created, 1)
}

func TestFilterSensors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.FilterSensors(ctx, models.SensorReportFilter{})
	require.NoError(t, err)
	assert.Equal(t, defaultReportLimit, f.sensors.filter.Limit)

	_, err = f.svc.FilterSensors(ctx, models.SensorReportFilter{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, maxReportLimit, f.sensors.filter.Limit)

	v := 8.0
	_, err = f.svc.FilterSensors(ctx, models.SensorReportFilter{Value: &v})
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.FilterSensors(ctx, models.SensorReportFilter{Value: &v, Operator: "between"})
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.FilterSensors(ctx, models.SensorReportFilter{Value: &v, Operator: "greater", Aggregation: "max"})
	assert.NoError(t, err)
}

func TestPermissionsAreCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	perms, err := f.svc.Permissions(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.True(t, perms.Has(models.PermReportView))
	assert.False(t, perms.Has(models.PermUserDelete))

	_, err = f.svc.Permissions(ctx, "ANN@x.com")
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&f.users.emailLookup))

	f.mr.FastForward(time.Minute)
	_, err = f.svc.Permissions(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&f.users.emailLookup))

	_, err = f.svc.Permissions(ctx, "")
	assert.True(t, errors.IsAuth(err))
	_, err = f.svc.Permissions(ctx, "nobody@x.com")
	assert.True(t, errors.IsNotFound(err))
}

func TestUpdateUserRoleNeedsRoleAssign(t *testing.T) {
	f := newFixture(t)
	ctx := auth.WithPrincipal(context.Background(), &auth.Principal{
		Permissions: &models.UserPermissions{Permissions: []models.Permission{models.PermUserUpdate}},
	})

	_, err := f.svc.UpdateUser(ctx, "u1", &models.UpdateUserInput{Name: "Ann", RoleID: "r-admin"})
	apiErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrorTypeAuthorize, apiErr.Type)
	assert.Nil(t, f.users.updated)
}

func TestUpdateUserAsRoot(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Permissions(context.Background(), "ann@x.com")
	require.NoError(t, err)

	user, err := f.svc.UpdateUser(asRoot(context.Background()), "u1", &models.UpdateUserInput{Name: "Anna", RoleID: "r-admin"})
	require.NoError(t, err)
	assert.Equal(t, "Anna", user.Name)
	assert.Equal(t, &models.UpdateUserInput{Name: "Anna", RoleID: "r-admin"}, f.users.updated)
	assert.False(t, f.mr.Exists("t:permissions:ann@x.com"))
}

func TestValidateRoleInput(t *testing.T) {
	assert.True(t, errors.IsValidation(validateRoleInput(&models.RoleInput{})))
	assert.True(t, errors.IsValidation(validateRoleInput(&models.RoleInput{
		Name:        "ops",
		RoleActions: []models.RoleAction{{Actions: []string{"FLY"}}},
	})))
	assert.NoError(t, validateRoleInput(&models.RoleInput{
		Name:        "ops",
		RoleActions: []models.RoleAction{{Actions: []string{"NODE_VIEW"}}},
	}))
}

func TestGetUserRoles(t *testing.T) {
	assert.Equal(t, []string{"guest"}, GetUserRoles(context.Background()))
	assert.Contains(t, GetUserRoles(asRoot(context.Background())), auth.RootRole)
}

func TestServiceWithoutCache(t *testing.T) {
	levels := &fakeLevels{tree: testTree()}
	svc := New(levels, &fakeSensors{}, &fakeUsers{}, &fakeRoles{}, &fakeAuth{}, nil, nil, TTLs{})
	assert.Error(t, svc.Validate())

	d, err := svc.Diagram(context.Background())
	require.NoError(t, err)
	assert.Len(t, d.Nodes, 4)
}

func TestLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, &models.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, errors.IsValidation(err))

	_, err = f.svc.Login(ctx, &models.LoginRequest{Email: "ann@x.com", Password: "wrong"})
	assert.True(t, errors.IsAuth(err))

	res, err := f.svc.Login(ctx, &models.LoginRequest{Email: " Ann@x.com ", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok", res.Token)
	assert.Equal(t, "ann@x.com", res.User.Email)
}
