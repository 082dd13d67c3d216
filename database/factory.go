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

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/uptrace/bun"
)

// ConnectionFactory lazily opens one database handle and shares it with every
// caller until CloseConnection.
//
// OpenConnection is safe for concurrent use: at most one Engine.Open runs at a
// time and all callers get the same handle. CloseConnection is not
// synchronized with OpenConnection; callers must not close while an open may
// be in flight.
type ConnectionFactory struct {
	handle atomic.Pointer[bun.DB]
	mu     sync.Mutex

	databaseName string
	version      int

	engine  Engine
	hooks   SchemaHooks
	dataDir DataDirResolver
	logger  Logger

	opens       atomic.Int64
	failedOpens atomic.Int64
}

// NewConnectionFactory builds a factory from cfg. A nil hooks value falls back
// to BaseSchemaHooks.
func NewConnectionFactory(cfg *Config, hooks SchemaHooks) (*ConnectionFactory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if hooks == nil {
		hooks = BaseSchemaHooks{}
	}
	conn := cfg.ConnectionConfig
	logger := GetLogger()
	if lvl := cfg.DataMigrateConfig.LogLevel; lvl != "" {
		// A logger of its own, so the package logger keeps its level.
		own := NewDefaultLogger(factoryLoggerName(conn.DBName))
		own.SetLevel(ParseLevel(lvl))
		logger = own
	}
	return &ConnectionFactory{
		databaseName: conn.DBName,
		version:      conn.Version,
		engine:       NewSQLiteEngine(&conn, logger),
		hooks:        hooks,
		dataDir:      resolveDataDir(&conn),
		logger:       logger,
	}, nil
}

func factoryLoggerName(dbName string) string {
	return loggerName + ":" + dbName
}

// SetLogger replaces the factory logger.
func (f *ConnectionFactory) SetLogger(logger Logger) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if logger == nil {
		logger = NopLogger()
	}
	f.logger = logger
	if e, ok := f.engine.(*sqliteEngine); ok {
		e.logger = logger
	}
}

// SetEngine replaces the storage engine. It has no effect on an open handle.
func (f *ConnectionFactory) SetEngine(engine Engine) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engine = engine
}

// SetDataDirResolver replaces the data directory lookup.
func (f *ConnectionFactory) SetDataDirResolver(resolver DataDirResolver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dataDir = resolver
}

// Version returns the schema version the factory opens databases at.
func (f *ConnectionFactory) Version() int { return f.version }

// DatabaseName returns the database file name.
func (f *ConnectionFactory) DatabaseName() string { return f.databaseName }

// Path resolves the data directory and joins it with the database file name.
func (f *ConnectionFactory) Path() (string, error) {
	dir, err := f.dataDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve data directory: %w", err)
	}
	return filepath.Join(dir, f.databaseName), nil
}

// IsOpen reports whether a handle is currently held.
func (f *ConnectionFactory) IsOpen() bool {
	return f.handle.Load() != nil
}

// OpenConnection returns the shared handle, opening the database on first use.
//
// The open itself runs detached from ctx cancellation: once started it runs
// to completion so the file is never left half-migrated by a cancelled
// caller. On failure an *OpenError is returned and the factory stays unopened.
func (f *ConnectionFactory) OpenConnection(ctx context.Context) (*bun.DB, error) {
	if db := f.handle.Load(); db != nil {
		return db, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if db := f.handle.Load(); db != nil {
		return db, nil
	}

	path, err := f.Path()
	if err != nil {
		f.failedOpens.Add(1)
		return nil, &OpenError{Path: f.databaseName, Err: err}
	}

	start := time.Now()
	db, err := f.engine.Open(context.WithoutCancel(ctx), path, f.version, f.hooks)
	if err != nil {
		f.failedOpens.Add(1)
		f.logger.Error("Failed to open database", "path", path, "version", f.version, "error", err)
		return nil, &OpenError{Path: path, Err: err}
	}
	if db == nil {
		f.failedOpens.Add(1)
		return nil, &OpenError{Path: path, Err: fmt.Errorf("engine returned no handle")}
	}

	f.handle.Store(db)
	f.opens.Add(1)
	f.logger.Info("Database opened", "path", path, "version", f.version, "duration", time.Since(start))
	return db, nil
}

// CloseConnection closes the shared handle, if any, and forgets it. Close
// errors are logged and dropped; the handle is cleared either way.
func (f *ConnectionFactory) CloseConnection() {
	db := f.handle.Swap(nil)
	if db == nil {
		return
	}
	if err := db.Close(); err != nil {
		f.logger.Warn("Failed to close database connection", "error", err)
		return
	}
	f.logger.Info("Database connection closed")
}

// HealthCheck pings the current handle. It never opens the database.
func (f *ConnectionFactory) HealthCheck(ctx context.Context) *HealthStatus {
	start := time.Now()
	status := &HealthStatus{LastCheckTime: start, Version: f.version}
	if path, err := f.Path(); err == nil {
		status.Path = path
	}

	db := f.handle.Load()
	if db == nil {
		status.LastError = "database not opened"
		return status
	}
	status.Connected = true

	ctxTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := db.PingContext(ctxTimeout)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
		return status
	}
	status.Healthy = true
	return status
}

// Stats returns connection statistics together with the open counters.
func (f *ConnectionFactory) Stats() *DBStats {
	stats := &DBStats{
		Opens:       f.opens.Load(),
		FailedOpens: f.failedOpens.Load(),
	}
	db := f.handle.Load()
	if db == nil {
		return stats
	}
	s := db.Stats()
	stats.OpenConns = s.OpenConnections
	stats.InUse = s.InUse
	stats.Idle = s.Idle
	stats.WaitCount = s.WaitCount
	stats.WaitDuration = s.WaitDuration
	stats.MaxIdleClosed = s.MaxIdleClosed
	stats.MaxLifetimeClosed = s.MaxLifetimeClosed
	return stats
}
