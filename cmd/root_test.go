package cmd

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/coreapi/internal/clock/system"
	"github.com/JakeFAU/coreapi/internal/config"
	"github.com/JakeFAU/coreapi/internal/database"
	"github.com/JakeFAU/coreapi/internal/hash/bcrypt"
	"github.com/JakeFAU/coreapi/internal/users"
)

type fakeApp struct {
	store  *users.Store
	runErr error
	ran    bool
	closed bool
}

func (f *fakeApp) Run(context.Context) error   { f.ran = true; return f.runErr }
func (f *fakeApp) Close(context.Context) error { f.closed = true; return nil }
func (f *fakeApp) Users() *users.Store         { return f.store }
func (f *fakeApp) Logger() *zap.Logger         { return zap.NewNop() }

type collectionSource struct{ coll database.Collection }

func (s collectionSource) Collection(context.Context, string) (database.Collection, error) {
	return s.coll, nil
}

func withFakeApp(t *testing.T, app *fakeApp, buildErr error) {
	t.Helper()
	prev := newApp
	newApp = func(context.Context, *config.Config) (App, error) {
		if buildErr != nil {
			return nil, buildErr
		}
		return app, nil
	}
	t.Cleanup(func() { newApp = prev })
}

func execute(args ...string) (string, error) {
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoutesPrintsTable(t *testing.T) {
	out, err := execute("routes")
	require.NoError(t, err)

	assert.Contains(t, out, "PRIORITY")
	assert.Contains(t, out, "core/options")
	assert.Contains(t, out, "GET,POST")
	assert.Contains(t, out, "/assets/<file:(.*)>")
	assert.Less(t, bytes.Index([]byte(out), []byte("core/options")), bytes.Index([]byte(out), []byte("core/index")))
}

func TestRoutesResolves(t *testing.T) {
	out, err := execute("routes", "get", "/assets/css/site.css")
	require.NoError(t, err)
	assert.Contains(t, out, "target: core/assets")
	assert.Contains(t, out, `param file="css/site.css"`)

	_, err = execute("routes", "GET", "/nonexistent")
	require.ErrorIs(t, err, errNoRoute)

	_, err = execute("routes", "GET")
	require.Error(t, err)
}

func TestUserAdd(t *testing.T) {
	coll := new(database.MockCollection)
	coll.On("Count", mock.Anything, database.Filter{"username": "alice"}).Return(int64(0), nil)
	coll.On("InsertOne", mock.Anything, mock.AnythingOfType("*users.User")).Return("id-9", nil)
	app := &fakeApp{store: users.NewStore(collectionSource{coll: coll}, bcrypt.New("", 4), system.New())}
	withFakeApp(t, app, nil)

	out, err := execute("user", "add", "--username", "alice", "--password", "s3cret")
	require.NoError(t, err)
	assert.Contains(t, out, "created user alice (id id-9)")
	assert.True(t, app.closed)
	coll.AssertExpectations(t)
}

func TestUserAddRequiresFlags(t *testing.T) {
	withFakeApp(t, &fakeApp{}, nil)

	_, err := execute("user", "add", "--username", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestServe(t *testing.T) {
	app := &fakeApp{}
	withFakeApp(t, app, nil)

	_, err := execute("serve")
	require.NoError(t, err)
	assert.True(t, app.ran)

	withFakeApp(t, nil, errors.New("mongo provider init failed"))
	_, err = execute("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize application services")
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute("--config", filepath.Join(t.TempDir(), "missing.yaml"), "routes")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
