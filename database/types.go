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
	"os"
	"strings"
	"time"

	"github.com/tomoncle/todoprovider/utils"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// Engine opens a file-backed database at path, drives the schema hooks for the
// requested version and returns the ready handle. Closing is done through
// (*bun.DB).Close.
type Engine interface {
	Open(ctx context.Context, path string, version int, hooks SchemaHooks) (*bun.DB, error)
}

// DataDirResolver returns the directory the database file lives in.
type DataDirResolver func() (string, error)

// HealthStatus holds the result of a health check against the database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Connected     bool          `json:"connected"`
	Path          string        `json:"path,omitempty"`
	Version       int           `json:"version"`
	ResponseTime  time.Duration `json:"response_time"`
	LastError     string        `json:"last_error,omitempty"`
	LastCheckTime time.Time     `json:"last_check_time"`
}

// DBStats mirrors database/sql stats plus the factory's own open counters.
type DBStats struct {
	Opens             int64         `json:"opens"`
	FailedOpens       int64         `json:"failed_opens"`
	OpenConns         int           `json:"open_conns"`
	InUse             int           `json:"in_use"`
	Idle              int           `json:"idle"`
	WaitCount         int64         `json:"wait_count"`
	WaitDuration      time.Duration `json:"wait_duration"`
	MaxIdleClosed     int64         `json:"max_idle_closed"`
	MaxLifetimeClosed int64         `json:"max_lifetime_closed"`
}

// DowngradePolicy selects what the migrator does when the stored schema
// version is newer than the requested one and no down steps cover the gap.
type DowngradePolicy string

const (
	DowngradeReject DowngradePolicy = "reject"
	DowngradeReset  DowngradePolicy = "reset"
)

// ParseDowngradePolicy accepts "reject" and "reset" (case-insensitive). The
// empty string maps to DowngradeReject.
func ParseDowngradePolicy(s string) (DowngradePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(DowngradeReject):
		return DowngradeReject, nil
	case string(DowngradeReset):
		return DowngradeReset, nil
	default:
		return "", fmt.Errorf("unknown downgrade policy: %q", s)
	}
}

// ConnectionConfig describes where the database file lives and how the single
// connection is tuned.
type ConnectionConfig struct {
	DBName         string        `yaml:"dbname"`
	Version        int           `yaml:"version"`
	DataDir        string        `yaml:"data_dir"` // empty: platform data directory
	BusyTimeout    time.Duration `yaml:"busy_timeout"`
	JournalMode    string        `yaml:"journal_mode"`
	EnableFileLock bool          `yaml:"enable_file_lock"`
	LockTimeout    time.Duration `yaml:"lock_timeout"`
	EnableQueryLog bool          `yaml:"enable_query_log"`
	VerboseLog     bool          `yaml:"verbose_log"`
	SlowQueryTime  time.Duration `yaml:"slow_query_time"`
}

// DataMigrateConfig controls schema migration behavior during open and the
// logging around it. LogLevel applies to the factory's own logger; LogFormat
// ("text" or "json") and LogOutput ("stdout" or "stderr") are process-wide and
// are applied by the caller that owns the process, see utils.ConfigureLogFormat.
type DataMigrateConfig struct {
	DowngradePolicy DowngradePolicy `yaml:"downgrade_policy"`
	LogLevel        string          `yaml:"log_level"`
	LogFormat       string          `yaml:"log_format"`
	LogOutput       string          `yaml:"log_output"`
}

// Config aggregates connection and migration settings.
type Config struct {
	ConnectionConfig  ConnectionConfig  `yaml:"connection"`
	DataMigrateConfig DataMigrateConfig `yaml:"migrate"`
}

// DefaultConnectionConfig returns a connection config with sensible defaults.
// DBName and Version are left for the caller.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		BusyTimeout:    5 * time.Second,
		JournalMode:    "WAL",
		EnableFileLock: true,
		LockTimeout:    30 * time.Second,
		SlowQueryTime:  2 * time.Second,
	}
}

// DefaultConfig returns a Config for the given database file name and version.
func DefaultConfig(dbName string, version int) *Config {
	conn := DefaultConnectionConfig()
	conn.DBName = dbName
	conn.Version = version
	return &Config{
		ConnectionConfig:  conn,
		DataMigrateConfig: DataMigrateConfig{DowngradePolicy: DowngradeReject},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig(dbName, version).
// Durations are written as Go duration strings ("5s", "250ms").
func LoadConfig(path, dbName string, version int) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig(dbName, version)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	policy, err := ParseDowngradePolicy(string(cfg.DataMigrateConfig.DowngradePolicy))
	if err != nil {
		return nil, err
	}
	cfg.DataMigrateConfig.DowngradePolicy = policy
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the fields the factory cannot run without.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("database configuration cannot be empty")
	}
	if strings.TrimSpace(c.ConnectionConfig.DBName) == "" {
		return fmt.Errorf("database name cannot be empty")
	}
	if c.ConnectionConfig.Version < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, c.ConnectionConfig.Version)
	}
	if _, err := ParseDowngradePolicy(string(c.DataMigrateConfig.DowngradePolicy)); err != nil {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(c.DataMigrateConfig.LogFormat)) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", c.DataMigrateConfig.LogFormat)
	}
	if _, err := utils.ParseLogOutput(c.DataMigrateConfig.LogOutput); err != nil {
		return err
	}
	return nil
}
