// Package shadow materializes a "next" schema without a datamodel file:
// it replays an ordered list of migration scripts into a throwaway shadow
// database and introspects the result. The shadow database is reset
// through the engine's own pipeline (diff against an empty schema, render,
// apply) rather than a hand-rolled drop loop, so resets honor the same
// dependency ordering as any other migration.
package shadow

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/schemadrift/schemadrift/apply"
	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/describe"
	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/render"
	"github.com/schemadrift/schemadrift/schema"
)

// MigrationDirectory is one migration script, named so replay order and
// error messages can refer to it.
type MigrationDirectory struct {
	Name       string
	ScriptText string
}

// LoadDirectories reads migration scripts under root, sorted by name.
// Two layouts are recognized: a subdirectory per migration containing a
// migration.sql file, or flat <name>.sql files directly under root.
func LoadDirectories(root string) ([]MigrationDirectory, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("shadow: read migrations directory %s: %w", root, err)
	}

	var dirs []MigrationDirectory
	for _, entry := range entries {
		name := entry.Name()
		var scriptPath string
		switch {
		case entry.IsDir():
			scriptPath = filepath.Join(root, name, "migration.sql")
			if _, err := os.Stat(scriptPath); err != nil {
				continue
			}
		case strings.HasSuffix(name, ".sql"):
			scriptPath = filepath.Join(root, name)
			name = strings.TrimSuffix(name, ".sql")
		default:
			continue
		}
		text, err := os.ReadFile(scriptPath)
		if err != nil {
			return nil, fmt.Errorf("shadow: read %s: %w", scriptPath, err)
		}
		dirs = append(dirs, MigrationDirectory{Name: name, ScriptText: string(text)})
	}

	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	return dirs, nil
}

// Reset empties the shadow database: it introspects the current state,
// diffs it against an empty schema, and applies the rendered drops. The
// destructive-change checker is deliberately bypassed — dropping
// everything is the point of a shadow reset.
func Reset(ctx context.Context, db *sql.DB, f flavor.Flavor, schemaName string) error {
	describer, err := describe.New(f, db)
	if err != nil {
		return err
	}
	current, err := describer.Describe(ctx, schemaName)
	if err != nil {
		return fmt.Errorf("shadow: describe before reset: %w", err)
	}

	empty := &schema.Schema{}
	steps, err := diff.New(f).Diff(current, empty)
	if err != nil {
		return fmt.Errorf("shadow: plan reset: %w", err)
	}
	script := render.Render(f, schema.MakePair(current, empty), steps, check.Diagnostics{})
	if script.IsEmpty() {
		return nil
	}
	if err := apply.Apply(ctx, db, script, apply.Options{}); err != nil {
		return fmt.Errorf("shadow: reset: %w", err)
	}
	return nil
}

// Replay executes each migration's script text in order, one statement at
// a time. Execution stops at the first failure, identified by migration
// name and statement.
func Replay(ctx context.Context, db *sql.DB, dirs []MigrationDirectory) error {
	for _, dir := range dirs {
		for _, stmt := range SplitStatements(dir.ScriptText) {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("shadow: replay %s: statement %q: %w", dir.Name, stmt, err)
			}
		}
	}
	return nil
}

// Materialize resets the shadow database, replays dirs into it, and
// introspects the result. The returned schema is the "next" input to the
// differ, exactly as if a datamodel compiler had produced it.
func Materialize(ctx context.Context, db *sql.DB, f flavor.Flavor, schemaName string, dirs []MigrationDirectory) (*schema.Schema, error) {
	if err := Reset(ctx, db, f, schemaName); err != nil {
		return nil, err
	}
	if err := Replay(ctx, db, dirs); err != nil {
		return nil, err
	}
	describer, err := describe.New(f, db)
	if err != nil {
		return nil, err
	}
	next, err := describer.Describe(ctx, schemaName)
	if err != nil {
		return nil, fmt.Errorf("shadow: describe after replay: %w", err)
	}
	return next, nil
}

// SplitStatements splits a migration script into individual statements on
// semicolons, skipping semicolons inside quoted strings, quoted
// identifiers, and line comments. Drivers differ on multi-statement
// support (go-sql-driver/mysql refuses them without a DSN opt-in), so
// replay always executes one statement per call.
func SplitStatements(script string) []string {
	var statements []string
	var b strings.Builder

	flush := func() {
		stmt := strings.TrimSpace(b.String())
		b.Reset()
		if stmt != "" {
			statements = append(statements, stmt)
		}
	}

	var quote byte // active quote character, 0 when outside
	inLineComment := false
	for i := 0; i < len(script); i++ {
		c := script[i]
		switch {
		case inLineComment:
			b.WriteByte(c)
			if c == '\n' {
				inLineComment = false
			}
		case quote != 0:
			b.WriteByte(c)
			if c == quote {
				// Doubled quote is an escape, not a terminator.
				if i+1 < len(script) && script[i+1] == quote {
					b.WriteByte(script[i+1])
					i++
				} else {
					quote = 0
				}
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
			b.WriteByte(c)
		case c == '[':
			quote = ']'
			b.WriteByte(c)
		case c == '-' && i+1 < len(script) && script[i+1] == '-':
			inLineComment = true
			b.WriteByte(c)
		case c == ';':
			flush()
		default:
			b.WriteByte(c)
		}
	}
	flush()
	return statements
}
