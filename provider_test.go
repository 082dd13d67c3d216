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

package todoprovider

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/todoprovider/database"
	"github.com/tomoncle/todoprovider/utils"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"
)

// resetProvider drops the process-wide factory before and after a test.
func resetProvider(t *testing.T) {
	t.Helper()
	reset := func() {
		if factory != nil {
			factory.CloseConnection()
		}
		factoryOnce = sync.Once{}
		factory, factoryErr = nil, nil
		configMu.Lock()
		pendingConfig, initialized = nil, false
		configMu.Unlock()
	}
	reset()
	t.Cleanup(reset)
}

func configureTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := database.DefaultConfig(DatabaseName, DatabaseVersion)
	cfg.ConnectionConfig.DataDir = dir
	require.NoError(t, Configure(cfg))
	return dir
}

func TestGetConnectionFactoryIsSingleton(t *testing.T) {
	resetProvider(t)
	configureTempDir(t)

	first, err := GetConnectionFactory()
	require.NoError(t, err)
	second, err := GetConnectionFactory()
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, DatabaseName, first.DatabaseName())
	assert.Equal(t, DatabaseVersion, first.Version())
}

func TestConfigureAfterFirstUse(t *testing.T) {
	resetProvider(t)
	configureTempDir(t)

	_, err := GetConnectionFactory()
	require.NoError(t, err)

	cfg := database.DefaultConfig(DatabaseName, DatabaseVersion)
	cfg.ConnectionConfig.DataDir = t.TempDir()
	assert.ErrorIs(t, Configure(cfg), ErrAlreadyInitialized)
}

func TestConfigureRejectsInvalidConfig(t *testing.T) {
	resetProvider(t)

	assert.Error(t, Configure(nil))
	assert.ErrorIs(t, Configure(database.DefaultConfig(DatabaseName, 0)), database.ErrInvalidVersion)
}

func TestConfigureFromFile(t *testing.T) {
	resetProvider(t)
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "todo.yaml")
	content := "connection:\n  data_dir: " + dataDir + "\n  journal_mode: delete\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	require.NoError(t, ConfigureFromFile(path))

	f, err := GetConnectionFactory()
	require.NoError(t, err)
	got, err := f.Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, DatabaseName), got)
}

func TestOpenAndCloseConnection(t *testing.T) {
	resetProvider(t)
	dir := configureTempDir(t)
	ctx := context.Background()

	const callers = 16
	handles := make([]*bun.DB, callers)
	var g errgroup.Group
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			db, err := OpenConnection(ctx)
			handles[i] = db
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, db := range handles {
		assert.Same(t, handles[0], db)
	}

	_, err := os.Stat(filepath.Join(dir, DatabaseName))
	require.NoError(t, err)

	var count int
	err = handles[0].QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name IN ('todo_lists', 'todo_items')").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	CloseConnection()
	CloseConnection()

	reopened, err := OpenConnection(ctx)
	require.NoError(t, err)
	assert.NotSame(t, handles[0], reopened)
}

func TestDefaultPathUsesPlatformDataDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_DATA_HOME is only honored on linux")
	}
	resetProvider(t)
	dir := t.TempDir()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_DATA_HOME", dir)
	xdg.Reload()

	f, err := GetConnectionFactory()
	require.NoError(t, err)
	path, err := f.Path()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "TODO_LIST_PROVIDER.db"), path)
	assert.Equal(t, 1, f.Version())
}

func TestConfigureAppliesLogSettings(t *testing.T) {
	resetProvider(t)
	t.Cleanup(func() {
		utils.ConfigureLogFormat("text")
		utils.ConfigureLogOutput(os.Stdout)
	})

	cfg := database.DefaultConfig(DatabaseName, DatabaseVersion)
	cfg.ConnectionConfig.DataDir = t.TempDir()
	cfg.DataMigrateConfig.LogFormat = "json"
	cfg.DataMigrateConfig.LogOutput = "stderr"
	require.NoError(t, Configure(cfg))

	_, err := GetConnectionFactory()
	require.NoError(t, err)

	lg := utils.NewLogger("DATABASE")
	assert.IsType(t, &utils.JSONLogFormatter{}, lg.Formatter)
	assert.Equal(t, os.Stderr, lg.Out)
}
