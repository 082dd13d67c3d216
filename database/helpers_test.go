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
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/todoprovider/database"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const testDBName = "test.db"

func testConfig(dir string, version int) *database.Config {
	cfg := database.DefaultConfig(testDBName, version)
	cfg.ConnectionConfig.DataDir = dir
	cfg.ConnectionConfig.SlowQueryTime = 0
	cfg.ConnectionConfig.LockTimeout = 5 * time.Second
	return cfg
}

// newFactory returns a quiet factory over dir that is closed when the test ends.
func newFactory(t *testing.T, dir string, version int, hooks database.SchemaHooks) *database.ConnectionFactory {
	t.Helper()
	f, err := database.NewConnectionFactory(testConfig(dir, version), hooks)
	require.NoError(t, err)
	f.SetLogger(database.NopLogger())
	t.Cleanup(f.CloseConnection)
	return f
}

// openAt opens dir at version with hooks and closes the handle again.
func openAt(t *testing.T, dir string, version int, hooks database.SchemaHooks) {
	t.Helper()
	f := newFactory(t, dir, version, hooks)
	_, err := f.OpenConnection(context.Background())
	require.NoError(t, err)
	f.CloseConnection()
}

// storedVersion reads user_version through a connection of its own.
func storedVersion(t *testing.T, dir string) int {
	t.Helper()
	sqlDB, err := sql.Open(sqliteshim.ShimName, filepath.Join(dir, testDBName))
	require.NoError(t, err)
	defer func() { _ = sqlDB.Close() }()

	var version int
	require.NoError(t, sqlDB.QueryRow("PRAGMA user_version").Scan(&version))
	return version
}

func tableExists(t *testing.T, db bun.IConn, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name).Scan(&n)
	require.NoError(t, err)
	return n > 0
}
