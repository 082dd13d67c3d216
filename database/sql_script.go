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
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/uptrace/bun"
)

const unorderedScript = 999

var scriptOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SQLScript is a parsed .sql file.
type SQLScript struct {
	Name       string
	Order      int
	Statements []string
}

// LoadSQLScripts reads every .sql file directly under dir in fsys. Scripts are
// ordered by their numeric "NNN_" prefix; files without one sort last.
func LoadSQLScripts(fsys fs.FS, dir string) ([]SQLScript, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read SQL directory %s: %w", dir, err)
	}

	var scripts []SQLScript
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read SQL file %s: %w", entry.Name(), err)
		}
		scripts = append(scripts, SQLScript{
			Name:       entry.Name(),
			Order:      parseScriptOrder(entry.Name()),
			Statements: SplitSQLStatements(string(content)),
		})
	}

	sort.SliceStable(scripts, func(i, j int) bool {
		if scripts[i].Order != scripts[j].Order {
			return scripts[i].Order < scripts[j].Order
		}
		return scripts[i].Name < scripts[j].Name
	})
	return scripts, nil
}

func parseScriptOrder(filename string) int {
	matches := scriptOrderPattern.FindStringSubmatch(filename)
	if len(matches) < 2 {
		return unorderedScript
	}
	order, err := strconv.Atoi(matches[1])
	if err != nil {
		return unorderedScript
	}
	return order
}

// SplitSQLStatements splits on lines ending with ';' outside a quoted literal.
// "--" comments are dropped, whole-line or trailing, unless they sit inside
// quotes. Lines are trimmed and joined with a single space, so whitespace
// inside a multi-line literal is not preserved.
func SplitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder
	var quote rune

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		var line string
		line, quote = stripSQLComment(scanner.Text(), quote)
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		current.WriteString(line)
		current.WriteString(" ")

		if quote == 0 && strings.HasSuffix(line, ";") {
			if stmt := strings.TrimSpace(current.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			current.Reset()
		}
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

// stripSQLComment cuts a "--" comment that starts outside quotes. quote is the
// literal still open from the previous line (0 for none); the one open at the
// end of line is returned. A doubled '' escape closes and reopens, which
// leaves the state unchanged.
func stripSQLComment(line string, quote rune) (string, rune) {
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '-' && strings.HasPrefix(line[i:], "--"):
			return line[:i], quote
		}
	}
	return line, quote
}

// Exec runs the script's statements in order.
func (s SQLScript) Exec(ctx context.Context, db bun.IDB) error {
	for _, stmt := range s.Statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute %s: %s: %w", s.Name, stmt, err)
		}
	}
	return nil
}

// ScriptsStep returns a MigrationFunc running the scripts with the given
// order prefix.
func ScriptsStep(scripts []SQLScript, order int) MigrationFunc {
	return func(ctx context.Context, db bun.IDB) error {
		for _, script := range scripts {
			if script.Order != order {
				continue
			}
			if err := script.Exec(ctx, db); err != nil {
				return err
			}
		}
		return nil
	}
}

// Steps chains migration functions.
func Steps(fns ...MigrationFunc) MigrationFunc {
	return func(ctx context.Context, db bun.IDB) error {
		for _, fn := range fns {
			if err := fn(ctx, db); err != nil {
				return err
			}
		}
		return nil
	}
}
