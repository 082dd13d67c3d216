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

//go:generate mockgen -destination=mocks/mock_callbacks.go -package=mocks github.com/tomoncle/todoprovider/database Engine,SchemaHooks

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

// SchemaHooks are invoked by the Engine while a database is being opened.
//
// OnConfigure runs first on every open, outside any transaction, and must not
// assume the schema exists. Exactly one of OnCreate, OnUpgrade and OnDowngrade
// then runs inside a transaction, or none when the stored version already
// matches. Hooks must issue their statements through the db they are given:
// the engine keeps a single connection, so using the outer handle from inside
// a transactional hook blocks.
type SchemaHooks interface {
	OnConfigure(ctx context.Context, db *bun.DB) error
	OnCreate(ctx context.Context, db bun.IDB, version int) error
	OnUpgrade(ctx context.Context, db bun.IDB, oldVersion, newVersion int) error
	OnDowngrade(ctx context.Context, db bun.IDB, oldVersion, newVersion int) error
}

// OpenObserver is implemented by hooks that want a callback once the schema
// is at the requested version.
type OpenObserver interface {
	OnOpen(ctx context.Context, db *bun.DB) error
}

// BaseSchemaHooks enables foreign keys, leaves create and upgrade empty and
// rejects every downgrade. Embed it to override only what is needed.
type BaseSchemaHooks struct{}

var _ SchemaHooks = BaseSchemaHooks{}

func (BaseSchemaHooks) OnConfigure(ctx context.Context, db *bun.DB) error {
	return EnableForeignKeys(ctx, db)
}

func (BaseSchemaHooks) OnCreate(context.Context, bun.IDB, int) error { return nil }

func (BaseSchemaHooks) OnUpgrade(context.Context, bun.IDB, int, int) error { return nil }

func (BaseSchemaHooks) OnDowngrade(_ context.Context, _ bun.IDB, oldVersion, newVersion int) error {
	return &DowngradeError{OldVersion: oldVersion, NewVersion: newVersion}
}

// EnableForeignKeys turns on referential-integrity enforcement for the
// connection. SQLite ignores the pragma inside a transaction, so call it from
// OnConfigure.
func EnableForeignKeys(ctx context.Context, db bun.IConn) error {
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return nil
}

// UserVersion reads the schema version stored in the database file.
func UserVersion(ctx context.Context, db bun.IConn) (int, error) {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion stores version in the database file. PRAGMA does not take
// bind parameters, hence the formatted statement.
func SetUserVersion(ctx context.Context, db bun.IConn, version int) error {
	if version < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, version)
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return fmt.Errorf("failed to write user_version: %w", err)
	}
	return nil
}
