// Package render turns the step list produced by package diff into the SQL
// text that applies it, one flavor-specific renderer per engine. Each
// renderer is a struct with one method per DDL concern, building
// statements with fmt.Sprintf rather than a query builder.
package render

import (
	"fmt"
	"strings"

	"github.com/schemadrift/schemadrift/check"
	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// RenderedStep is one step's rendered SQL, with a human-readable
// description carried alongside the SQL itself.
type RenderedStep struct {
	Description string
	Statements  []string
}

// Script is the full rendered migration: one RenderedStep per diff.Step,
// plus the checker's findings so a caller can decide whether to proceed,
// warn, or refuse.
type Script struct {
	Steps       []RenderedStep
	Diagnostics check.Diagnostics
}

// IsEmpty reports whether the script has no statements to run at all.
func (s Script) IsEmpty() bool {
	for _, step := range s.Steps {
		if len(step.Statements) > 0 {
			return false
		}
	}
	return true
}

// SQL renders the full migration as one text document: a leading comment
// block listing warnings and unexecutables (if any), then per step a
// "-- <description>" comment followed by its statements. An empty script
// (no step carries any statement) renders as a single placeholder comment.
func (s Script) SQL() string {
	if s.IsEmpty() {
		return "-- This is an empty migration.\n"
	}

	var b strings.Builder
	if !s.Diagnostics.IsEmpty() {
		b.WriteString("/*\n")
		if len(s.Diagnostics.Warnings) > 0 {
			b.WriteString("  Warnings:\n")
			for _, w := range s.Diagnostics.Warnings {
				fmt.Fprintf(&b, "  - %s\n", w.Message)
			}
		}
		if len(s.Diagnostics.Unexecutables) > 0 {
			b.WriteString("  Unexecutable:\n")
			for _, u := range s.Diagnostics.Unexecutables {
				fmt.Fprintf(&b, "  - %s\n", u.Message)
			}
		}
		b.WriteString("*/\n\n")
	}

	for _, step := range s.Steps {
		if len(step.Statements) == 0 {
			continue
		}
		fmt.Fprintf(&b, "-- %s\n", step.Description)
		for _, stmt := range step.Statements {
			b.WriteString(stmt)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Renderer turns one diff.Step into SQL text for a specific flavor.
type Renderer interface {
	RenderStep(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep
}

// New returns the Renderer for f.
func New(f flavor.Flavor) Renderer {
	switch f {
	case flavor.Postgres:
		return &postgresRenderer{}
	case flavor.MySQL, flavor.MariaDB:
		return &mysqlRenderer{}
	case flavor.SQLite:
		return &sqliteRenderer{}
	case flavor.MSSQL:
		return &mssqlRenderer{}
	default:
		return nil
	}
}

// Render builds a full Script: one RenderedStep per diff.Step, in the
// order the Differ produced them, plus the checker's diagnostics. Assembly
// never reorders steps; the Differ already produced a dependency-safe
// order.
func Render(f flavor.Flavor, schemas schema.Pair[*schema.Schema], steps []diff.Step, diagnostics check.Diagnostics) Script {
	r := New(f)
	script := Script{Diagnostics: diagnostics}
	for _, step := range steps {
		script.Steps = append(script.Steps, r.RenderStep(schemas, step))
	}
	return script
}

// joinColumns renders a comma-separated, quoted column list.
func joinColumns(quote func(string) string, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = quote(c)
	}
	return strings.Join(parts, ", ")
}

func referentialAction(a schema.ReferentialAction) string { return a.String() }

func fkClause(quote func(string) string, fk schema.ForeignKey) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FOREIGN KEY (%s) REFERENCES %s (%s)",
		joinColumns(quote, fk.Columns), quote(fk.ReferencedTable), joinColumns(quote, fk.ReferencedColumns))
	if fk.OnDelete != schema.NoAction {
		fmt.Fprintf(&b, " ON DELETE %s", referentialAction(fk.OnDelete))
	}
	if fk.OnUpdate != schema.NoAction {
		fmt.Fprintf(&b, " ON UPDATE %s", referentialAction(fk.OnUpdate))
	}
	return b.String()
}
