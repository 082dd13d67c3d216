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

package schema

import (
	"embed"
	"fmt"

	"github.com/tomoncle/todoprovider/database"
)

//go:embed sql/*.sql
var sqlFS embed.FS

// Version is the schema version produced by Migrations.
const Version = 1

// Migrations returns the versioned steps of the todo schema.
func Migrations() ([]database.MigrationItem, error) {
	scripts, err := database.LoadSQLScripts(sqlFS, "sql")
	if err != nil {
		return nil, err
	}
	return []database.MigrationItem{
		{
			Version:     1,
			Name:        "create_todo_tables",
			Description: "Create todo lists and items with their indexes",
			Up: database.Steps(
				database.CreateTables(Models),
				database.ScriptsStep(scripts, 1),
			),
		},
	}, nil
}

// NewHooks returns the schema hooks for the todo database.
func NewHooks(logger database.Logger, policy database.DowngradePolicy) (database.SchemaHooks, error) {
	items, err := Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load todo schema: %w", err)
	}
	migrator, err := database.NewMigrator(logger, policy, items...)
	if err != nil {
		return nil, err
	}
	return migrator, nil
}
