/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/todoprovider/database"
	"github.com/tomoncle/todoprovider/database/mocks"
	"github.com/tomoncle/todoprovider/utils"
	"github.com/uptrace/bun"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"
)

// countingEngine wraps an Engine, counts Open calls and slows them down so
// concurrent callers pile up on the slow path.
type countingEngine struct {
	database.Engine
	delay time.Duration
	calls atomic.Int32
}

func (e *countingEngine) Open(ctx context.Context, path string, version int, hooks database.SchemaHooks) (*bun.DB, error) {
	e.calls.Add(1)
	time.Sleep(e.delay)
	return e.Engine.Open(ctx, path, version, hooks)
}

// flakyHooks fails OnCreate the first `failures` times.
type flakyHooks struct {
	database.BaseSchemaHooks
	failures int
	creates  int
}

var errCreateFailed = errors.New("create failed")

func (h *flakyHooks) OnCreate(ctx context.Context, db bun.IDB, version int) error {
	h.creates++
	if h.failures > 0 {
		h.failures--
		if _, err := db.ExecContext(ctx, "CREATE TABLE partial (id INTEGER PRIMARY KEY)"); err != nil {
			return err
		}
		return errCreateFailed
	}
	return nil
}

func TestNewConnectionFactoryValidatesConfig(t *testing.T) {
	_, err := database.NewConnectionFactory(nil, nil)
	assert.Error(t, err)

	_, err = database.NewConnectionFactory(database.DefaultConfig("", 1), nil)
	assert.Error(t, err)

	_, err = database.NewConnectionFactory(database.DefaultConfig(testDBName, 0), nil)
	assert.ErrorIs(t, err, database.ErrInvalidVersion)
}

func TestFactoryAccessors(t *testing.T) {
	dir := t.TempDir()
	f := newFactory(t, dir, 3, nil)

	assert.Equal(t, 3, f.Version())
	assert.Equal(t, testDBName, f.DatabaseName())
	path, err := f.Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, testDBName), path)
	assert.False(t, f.IsOpen())
}

func TestOpenConnectionReturnsSameHandle(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)
	ctx := context.Background()

	first, err := f.OpenConnection(ctx)
	require.NoError(t, err)
	second, err := f.OpenConnection(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.True(t, f.IsOpen())
	assert.EqualValues(t, 1, f.Stats().Opens)
}

func TestConcurrentOpenRunsEngineOnce(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir, 1)
	f := newFactory(t, dir, 1, nil)
	engine := &countingEngine{
		Engine: database.NewSQLiteEngine(&cfg.ConnectionConfig, database.NopLogger()),
		delay:  50 * time.Millisecond,
	}
	f.SetEngine(engine)

	const callers = 32
	handles := make([]*bun.DB, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			db, err := f.OpenConnection(context.Background())
			handles[i] = db
			return err
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 1, engine.calls.Load())
	for _, db := range handles {
		assert.Same(t, handles[0], db)
	}
	assert.Equal(t, 1, storedVersion(t, dir))
}

func TestCloseThenOpenYieldsNewHandle(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)
	ctx := context.Background()

	first, err := f.OpenConnection(ctx)
	require.NoError(t, err)
	f.CloseConnection()
	assert.False(t, f.IsOpen())

	second, err := f.OpenConnection(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Error(t, first.PingContext(ctx))
	assert.NoError(t, second.PingContext(ctx))
}

func TestCloseConnectionIsIdempotent(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)

	assert.NotPanics(t, f.CloseConnection)
	assert.False(t, f.IsOpen())

	_, err := f.OpenConnection(context.Background())
	require.NoError(t, err)
	f.CloseConnection()
	assert.NotPanics(t, f.CloseConnection)
	assert.False(t, f.IsOpen())
}

func TestOpenFailureLeavesFactoryRetryable(t *testing.T) {
	dir := t.TempDir()
	hooks := &flakyHooks{failures: 1}
	f := newFactory(t, dir, 1, hooks)
	ctx := context.Background()

	db, err := f.OpenConnection(ctx)
	assert.Nil(t, db)
	var openErr *database.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, filepath.Join(dir, testDBName), openErr.Path)
	assert.ErrorIs(t, err, errCreateFailed)
	assert.False(t, f.IsOpen())
	assert.EqualValues(t, 1, f.Stats().FailedOpens)

	// The failed create was rolled back together with the version bump.
	assert.Equal(t, 0, storedVersion(t, dir))

	db, err = f.OpenConnection(ctx)
	require.NoError(t, err)
	assert.True(t, f.IsOpen())
	assert.Equal(t, 2, hooks.creates)
	assert.False(t, tableExists(t, db, "partial"))
	assert.Equal(t, 1, storedVersion(t, dir))
}

func TestOpenIgnoresCallerCancellation(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db, err := f.OpenConnection(ctx)
	require.NoError(t, err)
	assert.NotNil(t, db)
}

func TestDefaultHooksRejectDowngrade(t *testing.T) {
	dir := t.TempDir()
	openAt(t, dir, 2, nil)

	f := newFactory(t, dir, 1, nil)
	_, err := f.OpenConnection(context.Background())

	var downgradeErr *database.DowngradeError
	require.ErrorAs(t, err, &downgradeErr)
	assert.Equal(t, 2, downgradeErr.OldVersion)
	assert.Equal(t, 1, downgradeErr.NewVersion)
	assert.False(t, f.IsOpen())
	assert.Equal(t, 2, storedVersion(t, dir))
}

func TestOpenReportsDataDirFailure(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)
	errNoDir := errors.New("no data dir")
	f.SetDataDirResolver(func() (string, error) { return "", errNoDir })

	_, err := f.OpenConnection(context.Background())
	var openErr *database.OpenError
	require.ErrorAs(t, err, &openErr)
	assert.ErrorIs(t, err, errNoDir)
	assert.False(t, f.IsOpen())
}

func TestOpenWithMockEngine(t *testing.T) {
	ctrl := gomock.NewController(t)
	dir := t.TempDir()
	f := newFactory(t, dir, 4, nil)
	engine := mocks.NewMockEngine(ctrl)
	f.SetEngine(engine)

	errEngine := errors.New("engine down")
	gomock.InOrder(
		engine.EXPECT().Open(gomock.Any(), filepath.Join(dir, testDBName), 4, gomock.Any()).Return(nil, errEngine),
		engine.EXPECT().Open(gomock.Any(), gomock.Any(), 4, gomock.Any()).Return(nil, nil),
	)

	_, err := f.OpenConnection(context.Background())
	assert.ErrorIs(t, err, errEngine)

	_, err = f.OpenConnection(context.Background())
	var openErr *database.OpenError
	assert.ErrorAs(t, err, &openErr)
	assert.False(t, f.IsOpen())
	assert.EqualValues(t, 2, f.Stats().FailedOpens)
}

func TestHealthCheck(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)
	ctx := context.Background()

	status := f.HealthCheck(ctx)
	assert.False(t, status.Healthy)
	assert.False(t, status.Connected)
	assert.Equal(t, "database not opened", status.LastError)
	assert.False(t, f.IsOpen(), "health check must not open the database")

	_, err := f.OpenConnection(ctx)
	require.NoError(t, err)

	status = f.HealthCheck(ctx)
	assert.True(t, status.Healthy)
	assert.True(t, status.Connected)
	assert.Empty(t, status.LastError)
	assert.Equal(t, 1, status.Version)
}

func TestStats(t *testing.T) {
	f := newFactory(t, t.TempDir(), 1, nil)

	stats := f.Stats()
	assert.Zero(t, stats.Opens)
	assert.Zero(t, stats.OpenConns)

	_, err := f.OpenConnection(context.Background())
	require.NoError(t, err)

	stats = f.Stats()
	assert.EqualValues(t, 1, stats.Opens)
	assert.LessOrEqual(t, stats.OpenConns, 1)
}

func TestDatabaseFilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := filepath.Join(t.TempDir(), "nested", "data")
	f := newFactory(t, dir, 1, nil)
	_, err := f.OpenConnection(context.Background())
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, testDBName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	_, err = os.Stat(filepath.Join(dir, testDBName+".lock"))
	assert.NoError(t, err)
}

func TestFactoryLogLevelStaysLocal(t *testing.T) {
	database.GetLogger()
	shared := utils.NewLogger("DATABASE")
	before := shared.GetLevel()

	cfg := testConfig(t.TempDir(), 1)
	cfg.DataMigrateConfig.LogLevel = "error"
	f, err := database.NewConnectionFactory(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(f.CloseConnection)

	assert.Equal(t, before, shared.GetLevel())
	assert.Equal(t, logrus.ErrorLevel, utils.NewLogger("DATABASE:"+testDBName).GetLevel())
}
