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
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidVersion is returned for schema versions below 1.
var ErrInvalidVersion = errors.New("invalid database version")

// OpenError reports a failed open. The factory stays unopened, so the call
// may be retried.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("failed to open database %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// DowngradeError is returned when the stored schema version is newer than the
// requested one and there is no safe way back.
type DowngradeError struct {
	OldVersion int
	NewVersion int
}

func (e *DowngradeError) Error() string {
	return fmt.Sprintf("cannot downgrade database from version %d to %d", e.OldVersion, e.NewVersion)
}

type SQLError int

const (
	UnknownErr SQLError = iota
	NoColumnErr
	NoIndexErr
	NoTableErr
	ExistColumnErr
	ExistIndexErr
	ExistTableErr
	DuplicateKeyErr
	NotNullViolationErr
	ForeignKeyViolationErr
	CheckConstraintViolationErr
	DatabaseLockedErr
	NotADatabaseErr
)

// IsSqlError classifies SQLite error messages. Both sqliteshim backends
// (modernc and mattn) report the engine's text, so matching is done on it.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "no such column"):
		return true, NoColumnErr
	case strings.Contains(s, "no such index"):
		return true, NoIndexErr
	case strings.Contains(s, "no such table"):
		return true, NoTableErr
	case strings.Contains(s, "duplicate column name"):
		return true, ExistColumnErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "index"):
		return true, ExistIndexErr
	case strings.Contains(s, "already exists") && strings.Contains(s, "table"):
		return true, ExistTableErr
	case strings.Contains(s, "unique constraint failed"):
		return true, DuplicateKeyErr
	case strings.Contains(s, "not null constraint failed"):
		return true, NotNullViolationErr
	case strings.Contains(s, "foreign key constraint failed"):
		return true, ForeignKeyViolationErr
	case strings.Contains(s, "check constraint failed"):
		return true, CheckConstraintViolationErr
	case strings.Contains(s, "database is locked"), strings.Contains(s, "database table is locked"):
		return true, DatabaseLockedErr
	case strings.Contains(s, "file is not a database"), strings.Contains(s, "malformed"):
		return true, NotADatabaseErr
	}
	return false, UnknownErr
}

// IgnoreExisting swallows "already exists" errors so additive migration steps
// can be re-run safely.
func IgnoreExisting(err error) error {
	if err == nil {
		return nil
	}
	if ok, kind := IsSqlError(err); ok {
		switch kind {
		case ExistColumnErr, ExistIndexErr, ExistTableErr:
			return nil
		}
	}
	return err
}
