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
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	lockRetryDelay = 100 * time.Millisecond
)

type sqliteEngine struct {
	config *ConnectionConfig
	logger Logger
	writer io.Writer
}

// NewSQLiteEngine returns the default Engine: a single-connection SQLite
// database opened through sqliteshim, which picks mattn/go-sqlite3 when cgo is
// available and modernc.org/sqlite otherwise.
func NewSQLiteEngine(cfg *ConnectionConfig, logger Logger) Engine {
	if cfg == nil {
		c := DefaultConnectionConfig()
		cfg = &c
	}
	if logger == nil {
		logger = GetLogger()
	}
	return &sqliteEngine{config: cfg, logger: logger, writer: os.Stdout}
}

func (e *sqliteEngine) Open(ctx context.Context, path string, version int, hooks SchemaHooks) (*bun.DB, error) {
	if version < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	if hooks == nil {
		hooks = BaseSchemaHooks{}
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	if e.config.EnableFileLock {
		unlock, err := e.lock(ctx, path)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	sqlDB, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}
	e.configureConnection(sqlDB)

	db := bun.NewDB(sqlDB, sqlitedialect.New())
	for _, h := range queryHooks(e.config, e.writer) {
		db.AddQueryHook(h)
	}

	if err := e.prepare(ctx, db, version, hooks); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			e.logger.Warn("Failed to close database after open error", "path", path, "error", closeErr)
		}
		return nil, err
	}

	// The file exists by now; keep it private to the owner.
	if err := os.Chmod(path, filePermissions); err != nil {
		e.logger.Debug("Failed to restrict database file permissions", "path", path, "error", err)
	}
	return db, nil
}

// configureConnection pins the pool to one long-lived connection so that the
// pragmas applied in prepare and OnConfigure stay in force.
func (e *sqliteEngine) configureConnection(sqlDB *sql.DB) {
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
}

func (e *sqliteEngine) prepare(ctx context.Context, db *bun.DB, version int, hooks SchemaHooks) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	if err := e.applyPragmas(ctx, db); err != nil {
		return err
	}
	if err := hooks.OnConfigure(ctx, db); err != nil {
		return fmt.Errorf("configure: %w", err)
	}

	stored, err := UserVersion(ctx, db)
	if err != nil {
		return err
	}

	t := PlanTransition(stored, version)
	if t.Kind != TransitionNoOp {
		e.logger.Info("Migrating database schema", "transition", t.String())
		err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
			if err := t.Apply(ctx, tx, hooks); err != nil {
				return err
			}
			return SetUserVersion(ctx, tx, version)
		})
		if err != nil {
			return err
		}
	}

	if observer, ok := hooks.(OpenObserver); ok {
		if err := observer.OnOpen(ctx, db); err != nil {
			return fmt.Errorf("open: %w", err)
		}
	}
	return nil
}

func (e *sqliteEngine) applyPragmas(ctx context.Context, db *bun.DB) error {
	if e.config.BusyTimeout > 0 {
		stmt := fmt.Sprintf("PRAGMA busy_timeout = %d", e.config.BusyTimeout.Milliseconds())
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to set busy timeout: %w", err)
		}
	}
	if mode := strings.TrimSpace(e.config.JournalMode); mode != "" {
		var applied string
		stmt := fmt.Sprintf("PRAGMA journal_mode = %s", strings.ToUpper(mode))
		if err := db.QueryRowContext(ctx, stmt).Scan(&applied); err != nil {
			return fmt.Errorf("failed to set journal mode: %w", err)
		}
		if !strings.EqualFold(applied, mode) {
			e.logger.Warn("Journal mode not applied", "requested", mode, "applied", applied)
		}
	}
	return nil
}

// lock takes the cross-process lock guarding open and migration of path.
func (e *sqliteEngine) lock(ctx context.Context, path string) (func(), error) {
	fileLock := flock.New(path + ".lock")

	timeout := e.config.LockTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	lockCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	locked, err := fileLock.TryLockContext(lockCtx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire database lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("failed to acquire database lock: timeout after %v", timeout)
	}
	return func() {
		if err := fileLock.Unlock(); err != nil {
			e.logger.Warn("Failed to release database lock", "path", fileLock.Path(), "error", err)
		}
	}, nil
}
