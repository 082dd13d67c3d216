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
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
)

// PlatformDataDir returns the per-user data directory of the platform:
// $XDG_DATA_HOME on Linux, ~/Library/Application Support on macOS and
// %LOCALAPPDATA% on Windows.
func PlatformDataDir() (string, error) {
	if xdg.DataHome == "" {
		return "", fmt.Errorf("platform data directory is not available")
	}
	return xdg.DataHome, nil
}

// StaticDataDir returns a resolver that always yields dir.
func StaticDataDir(dir string) DataDirResolver {
	return func() (string, error) {
		if dir == "" {
			return "", fmt.Errorf("data directory cannot be empty")
		}
		return filepath.Clean(dir), nil
	}
}

func resolveDataDir(cfg *ConnectionConfig) DataDirResolver {
	if cfg.DataDir != "" {
		return StaticDataDir(cfg.DataDir)
	}
	return PlatformDataDir
}
