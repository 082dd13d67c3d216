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
	"errors"
	"fmt"
	"sync"

	"github.com/tomoncle/todoprovider/database"
	"github.com/tomoncle/todoprovider/schema"
	"github.com/tomoncle/todoprovider/utils"
	"github.com/uptrace/bun"
)

const (
	// DatabaseName is the file name inside the platform data directory.
	DatabaseName = "TODO_LIST_PROVIDER.db"
	// DatabaseVersion is the schema version the application expects.
	DatabaseVersion = schema.Version
)

// ErrAlreadyInitialized is returned by Configure once the factory exists.
var ErrAlreadyInitialized = errors.New("connection factory already initialized")

var (
	factoryOnce sync.Once
	factory     *database.ConnectionFactory
	factoryErr  error

	configMu      sync.Mutex
	pendingConfig *database.Config
	initialized   bool
)

// Configure sets the configuration used when the factory is first created.
// It must be called before GetConnectionFactory or OpenConnection. The log
// format and output of cfg apply to every logger in the process.
func Configure(cfg *database.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	configMu.Lock()
	defer configMu.Unlock()
	if initialized {
		return ErrAlreadyInitialized
	}
	pendingConfig = cfg
	return nil
}

// ConfigureFromFile loads a YAML configuration and passes it to Configure.
func ConfigureFromFile(path string) error {
	cfg, err := database.LoadConfig(path, DatabaseName, DatabaseVersion)
	if err != nil {
		return err
	}
	return Configure(cfg)
}

// GetConnectionFactory returns the process-wide factory, creating it on first
// call. Every call returns the same instance.
func GetConnectionFactory() (*database.ConnectionFactory, error) {
	factoryOnce.Do(func() {
		configMu.Lock()
		cfg := pendingConfig
		initialized = true
		configMu.Unlock()

		if cfg == nil {
			cfg = database.DefaultConfig(DatabaseName, DatabaseVersion)
		}
		factory, factoryErr = newFactory(cfg)
	})
	return factory, factoryErr
}

// configureLogging applies the process-wide log settings of cfg.
func configureLogging(cfg database.DataMigrateConfig) error {
	if cfg.LogFormat != "" {
		utils.ConfigureLogFormat(cfg.LogFormat)
	}
	w, err := utils.ParseLogOutput(cfg.LogOutput)
	if err != nil {
		return err
	}
	if w != nil {
		utils.ConfigureLogOutput(w)
	}
	return nil
}

func newFactory(cfg *database.Config) (*database.ConnectionFactory, error) {
	if err := configureLogging(cfg.DataMigrateConfig); err != nil {
		return nil, err
	}
	logger := database.GetLogger()
	hooks, err := schema.NewHooks(logger, cfg.DataMigrateConfig.DowngradePolicy)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema hooks: %w", err)
	}
	f, err := database.NewConnectionFactory(cfg, hooks)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection factory: %w", err)
	}
	return f, nil
}

// OpenConnection returns the shared database handle, opening it on first use.
func OpenConnection(ctx context.Context) (*bun.DB, error) {
	f, err := GetConnectionFactory()
	if err != nil {
		return nil, err
	}
	return f.OpenConnection(ctx)
}

// CloseConnection closes the shared handle. It is a no-op when nothing is
// open and never fails. Do not call it while OpenConnection may be running.
func CloseConnection() {
	f, err := GetConnectionFactory()
	if err != nil || f == nil {
		return
	}
	f.CloseConnection()
}
