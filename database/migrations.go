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
	"sort"
	"time"

	"github.com/uptrace/bun"
)

// Migration is the record of an applied migration step.
type Migration struct {
	bun.BaseModel `bun:"table:schema_migrations"`

	Version     int       `bun:"version,pk"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description"`
	AppliedAt   time.Time `bun:"applied_at,notnull"`
}

// MigrationFunc is a migration step executed within the open transaction.
type MigrationFunc func(ctx context.Context, db bun.IDB) error

// MigrationItem describes the schema change that brings the database to
// Version. Down reverts it and may be nil.
type MigrationItem struct {
	Version     int
	Name        string
	Description string
	Up          MigrationFunc
	Down        MigrationFunc
}

// Migrator implements SchemaHooks on top of an ordered list of versioned
// steps. Applied steps are recorded in schema_migrations so a step is never
// applied twice.
type Migrator struct {
	BaseSchemaHooks

	logger     Logger
	policy     DowngradePolicy
	migrations []MigrationItem
}

var _ SchemaHooks = (*Migrator)(nil)

// NewMigrator sorts items by version. Versions must be unique and positive.
func NewMigrator(logger Logger, policy DowngradePolicy, items ...MigrationItem) (*Migrator, error) {
	if logger == nil {
		logger = GetLogger()
	}
	if policy == "" {
		policy = DowngradeReject
	}
	if _, err := ParseDowngradePolicy(string(policy)); err != nil {
		return nil, err
	}

	migrations := make([]MigrationItem, len(items))
	copy(migrations, items)
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	for i, m := range migrations {
		if m.Version < 1 {
			return nil, fmt.Errorf("%w: migration %q has version %d", ErrInvalidVersion, m.Name, m.Version)
		}
		if m.Up == nil {
			return nil, fmt.Errorf("migration %d (%s) has no up step", m.Version, m.Name)
		}
		if i > 0 && migrations[i-1].Version == m.Version {
			return nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
	}

	return &Migrator{logger: logger, policy: policy, migrations: migrations}, nil
}

// LatestVersion returns the highest registered version, or 0 without steps.
func (mm *Migrator) LatestVersion() int {
	if len(mm.migrations) == 0 {
		return 0
	}
	return mm.migrations[len(mm.migrations)-1].Version
}

// OnCreate applies every step up to version on a fresh database.
func (mm *Migrator) OnCreate(ctx context.Context, db bun.IDB, version int) error {
	if err := mm.createMigrationTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return mm.migrateUp(ctx, db, 0, version)
}

// OnUpgrade applies the steps in (oldVersion, newVersion].
func (mm *Migrator) OnUpgrade(ctx context.Context, db bun.IDB, oldVersion, newVersion int) error {
	if err := mm.createMigrationTable(ctx, db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return mm.migrateUp(ctx, db, oldVersion, newVersion)
}

// OnDowngrade reverts the steps in (newVersion, oldVersion] when every version
// in that range is registered with a Down step. Otherwise the policy decides:
// reject returns a *DowngradeError, reset drops every table and recreates the
// schema.
func (mm *Migrator) OnDowngrade(ctx context.Context, db bun.IDB, oldVersion, newVersion int) error {
	steps := mm.between(newVersion, oldVersion)
	if reversible(steps, newVersion, oldVersion) {
		return mm.migrateDown(ctx, db, steps)
	}

	switch mm.policy {
	case DowngradeReset:
		mm.logger.Warn("Resetting database schema on downgrade", "from", oldVersion, "to", newVersion)
		if err := DropAllTables(ctx, db); err != nil {
			return err
		}
		return mm.OnCreate(ctx, db, newVersion)
	default:
		return &DowngradeError{OldVersion: oldVersion, NewVersion: newVersion}
	}
}

// GetAppliedMigrations returns migration records ordered by version.
func (mm *Migrator) GetAppliedMigrations(ctx context.Context, db bun.IDB) ([]Migration, error) {
	var migrations []Migration
	err := db.NewSelect().
		Model(&migrations).
		Order("version ASC").
		Scan(ctx)
	return migrations, err
}

func (mm *Migrator) createMigrationTable(ctx context.Context, db bun.IDB) error {
	_, err := db.NewCreateTable().
		Model((*Migration)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}

// between returns the steps with from < Version <= to in ascending order.
func (mm *Migrator) between(from, to int) []MigrationItem {
	var steps []MigrationItem
	for _, m := range mm.migrations {
		if m.Version > from && m.Version <= to {
			steps = append(steps, m)
		}
	}
	return steps
}

// reversible reports whether steps, as returned by between(from, to), cover
// every version in (from, to] and can all be reverted. Versions are unique, so
// a full range has exactly to-from steps.
func reversible(steps []MigrationItem, from, to int) bool {
	if len(steps) == 0 || len(steps) != to-from {
		return false
	}
	for _, m := range steps {
		if m.Down == nil {
			return false
		}
	}
	return true
}

func (mm *Migrator) migrateUp(ctx context.Context, db bun.IDB, from, to int) error {
	for _, migration := range mm.between(from, to) {
		if err := mm.runMigration(ctx, db, migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}
	}
	return nil
}

func (mm *Migrator) runMigration(ctx context.Context, db bun.IDB, migration MigrationItem) error {
	exists, err := db.NewSelect().
		Model((*Migration)(nil)).
		Where("version = ?", migration.Version).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		mm.logger.Debug("Migration already applied", "version", migration.Version, "name", migration.Name)
		return nil
	}

	if err := migration.Up(ctx, db); err != nil {
		return err
	}

	record := &Migration{
		Version:     migration.Version,
		Name:        migration.Name,
		Description: migration.Description,
		AppliedAt:   time.Now(),
	}
	if _, err := db.NewInsert().Model(record).Exec(ctx); err != nil {
		return err
	}
	mm.logger.Info("Migration executed successfully", "version", migration.Version, "name", migration.Name)
	return nil
}

func (mm *Migrator) migrateDown(ctx context.Context, db bun.IDB, steps []MigrationItem) error {
	for i := len(steps) - 1; i >= 0; i-- {
		migration := steps[i]
		if err := migration.Down(ctx, db); err != nil {
			return fmt.Errorf("failed to revert migration %d: %w", migration.Version, err)
		}
		_, err := db.NewDelete().
			Model((*Migration)(nil)).
			Where("version = ?", migration.Version).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete migration record %d: %w", migration.Version, err)
		}
		mm.logger.Info("Migration reverted", "version", migration.Version, "name", migration.Name)
	}
	return nil
}

// DropAllTables removes every user table. Foreign key checks are deferred to
// commit so tables can be dropped in any order.
func DropAllTables(ctx context.Context, db bun.IDB) error {
	if _, err := db.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to defer foreign keys: %w", err)
	}

	var tables []string
	err := db.NewSelect().
		Table("sqlite_master").
		Column("name").
		Where("type = 'table'").
		Where("name NOT LIKE 'sqlite_%'").
		Scan(ctx, &tables)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	for _, table := range tables {
		if _, err := db.NewDropTable().Table(table).IfExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
