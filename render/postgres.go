package render

import (
	"fmt"
	"strings"

	"github.com/schemadrift/schemadrift/diff"
	"github.com/schemadrift/schemadrift/schema"
)

// postgresRenderer renders steps as Postgres DDL: double-quoted
// identifiers, SERIAL/BIGSERIAL shortcut for autoincrement columns, the
// CREATE TYPE tmp -> cast -> drop -> rename enum-rebuild protocol, and
// render_default's exhaustive match per DefaultKind.
type postgresRenderer struct{}

func pgQuote(name string) string { return `"` + strings.ReplaceAll(name, `"`, `""`) + `"` }

func (r *postgresRenderer) RenderStep(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
	switch step.Kind {
	case diff.CreateEnum:
		return r.renderCreateEnum(schemas.Next, step.CreateEnumPayload)
	case diff.DropEnum:
		return r.renderDropEnum(schemas.Previous, step.DropEnumPayload)
	case diff.AlterEnum:
		return r.renderAlterEnum(schemas, step.AlterEnumPayload)
	case diff.CreateTable:
		return r.renderCreateTable(schemas.Next, step.CreateTablePayload)
	case diff.DropTable:
		return r.renderDropTable(schemas.Previous, step.DropTablePayload)
	case diff.AlterTable:
		return r.renderAlterTable(schemas, step.AlterTablePayload)
	case diff.AddForeignKey:
		return r.renderAddForeignKey(schemas.Next, step.AddFKPayload)
	case diff.DropForeignKey:
		return r.renderDropForeignKey(schemas.Previous, step.DropFKPayload)
	case diff.CreateIndex:
		return r.renderCreateIndex(schemas.Next, step.CreateIndexPayload)
	case diff.DropIndex:
		return r.renderDropIndex(schemas.Previous, step.DropIndexPayload)
	case diff.AlterIndex, diff.RedefineIndex:
		return r.renderRedefineIndex(schemas, step)
	case diff.RedefineTables:
		return RenderedStep{Description: "redefine tables", Statements: []string{"-- unreachable on postgres: table rebuild is never required"}}
	default:
		return RenderedStep{Description: "unknown step"}
	}
}

func (r *postgresRenderer) renderCreateEnum(next *schema.Schema, s *diff.CreateEnumStep) RenderedStep {
	e := next.Enums[s.Enum]
	variants := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		variants[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return RenderedStep{
		Description: fmt.Sprintf("create enum %q", e.Name),
		Statements:  []string{fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", pgQuote(e.Name), strings.Join(variants, ", "))},
	}
}

func (r *postgresRenderer) renderDropEnum(previous *schema.Schema, s *diff.DropEnumStep) RenderedStep {
	e := previous.Enums[s.Enum]
	return RenderedStep{
		Description: fmt.Sprintf("drop enum %q", e.Name),
		Statements:  []string{fmt.Sprintf("DROP TYPE %s;", pgQuote(e.Name))},
	}
}

// renderAlterEnum implements the Postgres enum-rebuild protocol: when
// variants were only added (no drop, no reorder) a plain ADD VALUE
// suffices; otherwise the type is rebuilt under a temporary name and every
// column using it is cast across.
func (r *postgresRenderer) renderAlterEnum(schemas schema.Pair[*schema.Schema], s *diff.AlterEnumStep) RenderedStep {
	e := schemas.Next.Enums[s.Enums.Next]
	if len(s.DroppedVariants) == 0 && !s.OrderChanged {
		var stmts []string
		for _, v := range s.AddedVariants {
			stmts = append(stmts, fmt.Sprintf("ALTER TYPE %s ADD VALUE '%s';", pgQuote(e.Name), strings.ReplaceAll(v, "'", "''")))
		}
		return RenderedStep{Description: fmt.Sprintf("add values to enum %q", e.Name), Statements: stmts}
	}

	tmpName := e.Name + "_new"
	variants := make([]string, len(e.Variants))
	for i, v := range e.Variants {
		variants[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	stmts := []string{
		"BEGIN;",
		fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", pgQuote(tmpName), strings.Join(variants, ", ")),
	}
	for ti := range schemas.Next.Tables {
		t := &schemas.Next.Tables[ti]
		for _, c := range t.Columns {
			if c.Type.Family == schema.FamilyEnum && c.Type.EnumName == e.Name {
				stmts = append(stmts,
					fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING (%s::text::%s);",
						pgQuote(t.Name), pgQuote(c.Name), pgQuote(tmpName), pgQuote(c.Name), pgQuote(tmpName)))
			}
		}
	}
	stmts = append(stmts,
		fmt.Sprintf("DROP TYPE %s;", pgQuote(e.Name)),
		fmt.Sprintf("ALTER TYPE %s RENAME TO %s;", pgQuote(tmpName), pgQuote(e.Name)),
		"COMMIT;",
	)
	return RenderedStep{Description: fmt.Sprintf("rebuild enum %q", e.Name), Statements: stmts}
}

func (r *postgresRenderer) renderCreateTable(next *schema.Schema, s *diff.CreateTableStep) RenderedStep {
	t := next.Tables[s.Table]
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, r.renderColumnDefinition(c))
	}
	if t.PrimaryKey != nil {
		clause := fmt.Sprintf("PRIMARY KEY (%s)", joinColumns(pgQuote, t.PrimaryKey.Columns))
		if t.PrimaryKey.ConstraintName != nil {
			clause = fmt.Sprintf("CONSTRAINT %s %s", pgQuote(*t.PrimaryKey.ConstraintName), clause)
		}
		cols = append(cols, clause)
	}
	stmt := fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", pgQuote(t.Name), strings.Join(cols, ",\n  "))

	stmts := []string{stmt}
	for _, idx := range t.Indexes {
		stmts = append(stmts, r.indexStatement(t.Name, idx))
	}
	if t.RLSEnabled {
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ENABLE ROW LEVEL SECURITY;", pgQuote(t.Name)))
	}
	return RenderedStep{Description: fmt.Sprintf("create table %q", t.Name), Statements: stmts}
}

func (r *postgresRenderer) renderColumnDefinition(c schema.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", pgQuote(c.Name), r.renderColumnType(c))
	if c.Type.Arity.IsRequired() {
		b.WriteString(" NOT NULL")
	}
	// A sequence default renders nothing here: the nextval(...) call is
	// carried by the column's SERIAL type.
	if c.Default != nil && c.Default.Kind != schema.DefaultKindSequence {
		fmt.Fprintf(&b, " DEFAULT %s", r.renderDefault(c.Default))
	}
	return b.String()
}

// renderColumnType maps a Family to its Postgres spelling. SERIAL/BIGSERIAL
// are used as a shortcut for an autoincrement Int/BigInt column instead of
// an explicit sequence + default.
func (r *postgresRenderer) renderColumnType(c schema.Column) string {
	if c.AutoIncrement {
		switch c.Type.Family {
		case schema.FamilyInt:
			return "SERIAL"
		case schema.FamilyBigInt:
			return "BIGSERIAL"
		}
	}
	switch c.Type.Family {
	case schema.FamilyBoolean:
		return "BOOLEAN"
	case schema.FamilyInt:
		return "INTEGER"
	case schema.FamilyBigInt:
		return "BIGINT"
	case schema.FamilyFloat:
		return "DOUBLE PRECISION"
	case schema.FamilyDecimal:
		return "DECIMAL(65,30)"
	case schema.FamilyString:
		if c.Type.CharacterMaximumLength != nil {
			return fmt.Sprintf("VARCHAR(%d)", *c.Type.CharacterMaximumLength)
		}
		return "TEXT"
	case schema.FamilyDateTime:
		return "TIMESTAMP(3)"
	case schema.FamilyBinary:
		return "BYTEA"
	case schema.FamilyJSON:
		return "JSONB"
	case schema.FamilyUUID:
		return "UUID"
	case schema.FamilyEnum:
		return pgQuote(c.Type.EnumName)
	default:
		return "TEXT"
	}
}

// renderDefault is an exhaustive match over DefaultKind:
// strings/enums are single-quote escaped, bytes render as hex, NOW()
// becomes CURRENT_TIMESTAMP, and a sequence default renders nothing (the
// nextval(...) call is carried by the column's SERIAL type instead).
func (r *postgresRenderer) renderDefault(d *schema.Default) string {
	switch d.Kind {
	case schema.DefaultKindValue:
		return renderValue(d.Value)
	case schema.DefaultKindNow:
		return "CURRENT_TIMESTAMP"
	case schema.DefaultKindDBGenerated:
		return d.Expr
	case schema.DefaultKindSequence:
		return ""
	default:
		return "NULL"
	}
}

func renderValue(v schema.Value) string {
	switch v.Kind {
	case schema.ValueString, schema.ValueEnum:
		return "'" + strings.ReplaceAll(v.Str, "'", "''") + "'"
	case schema.ValueInt:
		return fmt.Sprintf("%d", v.Int)
	case schema.ValueFloat:
		return fmt.Sprintf("%v", v.Float)
	case schema.ValueBoolean:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case schema.ValueBytes:
		return fmt.Sprintf("'\\x%x'", v.Bytes)
	case schema.ValueNull:
		return "NULL"
	default:
		return "NULL"
	}
}

func (r *postgresRenderer) renderDropTable(previous *schema.Schema, s *diff.DropTableStep) RenderedStep {
	t := previous.Tables[s.Table]
	return RenderedStep{Description: fmt.Sprintf("drop table %q", t.Name), Statements: []string{fmt.Sprintf("DROP TABLE %s;", pgQuote(t.Name))}}
}

func (r *postgresRenderer) renderAlterTable(schemas schema.Pair[*schema.Schema], s *diff.AlterTableStep) RenderedStep {
	prevTable := schemas.Previous.Tables[s.Tables.Previous]
	nextTable := schemas.Next.Tables[s.Tables.Next]
	var stmts []string
	for _, change := range s.Changes {
		stmts = append(stmts, r.renderTableChange(schemas.Previous, prevTable, nextTable, change)...)
	}
	return RenderedStep{Description: fmt.Sprintf("alter table %q", nextTable.Name), Statements: stmts}
}

func (r *postgresRenderer) renderTableChange(previous *schema.Schema, prevTable, nextTable schema.Table, change diff.TableChange) []string {
	switch change.Kind {
	case diff.AddColumn:
		col := nextTable.Columns[change.Columns.Next]
		return []string{fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", pgQuote(nextTable.Name), r.renderColumnDefinition(col))}

	case diff.DropColumn:
		col := prevTable.Columns[change.Columns.Previous]
		return []string{fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", pgQuote(prevTable.Name), pgQuote(col.Name))}

	case diff.AlterColumn:
		return r.renderAlterColumn(previous, prevTable, nextTable, change)

	case diff.DropAndRecreateColumn:
		prevCol := prevTable.Columns[change.Columns.Previous]
		nextCol := nextTable.Columns[change.Columns.Next]
		return []string{
			fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", pgQuote(prevTable.Name), pgQuote(prevCol.Name)),
			fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", pgQuote(nextTable.Name), r.renderColumnDefinition(nextCol)),
		}

	case diff.AddPrimaryKey:
		if nextTable.PrimaryKey == nil {
			return nil
		}
		return []string{fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", pgQuote(nextTable.Name), joinColumns(pgQuote, nextTable.PrimaryKey.Columns))}

	case diff.DropPrimaryKey:
		if prevTable.PrimaryKey == nil || prevTable.PrimaryKey.ConstraintName == nil {
			return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", pgQuote(prevTable.Name), pgQuote(prevTable.Name+"_pkey"))}
		}
		return []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", pgQuote(prevTable.Name), pgQuote(*prevTable.PrimaryKey.ConstraintName))}

	default:
		return nil
	}
}

// renderAlterColumn splits a single logical column change into a sequence
// of ALTER COLUMN clauses: TYPE, SET/DROP NOT NULL, SET/DROP DEFAULT. A
// column gaining an autoincrement/sequence default synthesizes a CREATE
// SEQUENCE before the SET DEFAULT nextval(...) and an ALTER SEQUENCE ...
// OWNED BY after; a column losing one drops the default and then the
// sequence itself, unless another column still references it.
func (r *postgresRenderer) renderAlterColumn(previous *schema.Schema, prevTable, nextTable schema.Table, change diff.TableChange) []string {
	prevCol := prevTable.Columns[change.Columns.Previous]
	nextCol := nextTable.Columns[change.Columns.Next]
	var stmts []string
	table := pgQuote(nextTable.Name)
	column := pgQuote(nextCol.Name)

	prevSeq := sequenceDefaultName(prevTable, prevCol)
	nextSeq := sequenceDefaultName(nextTable, nextCol)
	gainsSequence := nextSeq != "" && nextSeq != prevSeq
	losesSequence := prevSeq != "" && prevSeq != nextSeq

	if gainsSequence {
		stmts = append(stmts, fmt.Sprintf("CREATE SEQUENCE %s;", pgQuote(nextSeq)))
	}

	for _, c := range change.Changes {
		switch c.Kind {
		case diff.ColumnTypeChanged:
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING (%s::text::%s);",
				table, column, r.renderColumnType(nextCol), column, r.renderColumnType(nextCol)))
		case diff.ColumnArityChanged:
			if nextCol.Type.Arity.IsRequired() {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", table, column))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", table, column))
			}
		case diff.ColumnDefaultChanged:
			// Sequence transitions are rendered outside this loop, where
			// the CREATE/DROP SEQUENCE bookkeeping lives.
			if gainsSequence || losesSequence {
				continue
			}
			if nextCol.Default == nil {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, column))
			} else {
				stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", table, column, r.renderDefault(nextCol.Default)))
			}
		}
	}

	if gainsSequence {
		stmts = append(stmts,
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT nextval('%s');", table, column, pgQuote(nextSeq)),
			fmt.Sprintf("ALTER SEQUENCE %s OWNED BY %s.%s;", pgQuote(nextSeq), table, column),
		)
	}
	if losesSequence {
		// When the column switched to a different sequence, the SET
		// DEFAULT above already replaced the old default.
		if nextSeq == "" {
			stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", table, column))
		}
		if !sequenceReferencedElsewhere(previous, prevTable.Name, prevCol.Name, prevSeq) {
			stmts = append(stmts, fmt.Sprintf("DROP SEQUENCE %s;", pgQuote(prevSeq)))
		}
	}
	return stmts
}

// sequenceDefaultName resolves the sequence backing a column's
// autoincrement/sequence default, or "" when the column has neither. An
// unnamed sequence falls back to Postgres's <table>_<column>_seq
// convention, the name SERIAL itself would synthesize.
func sequenceDefaultName(t schema.Table, c schema.Column) string {
	if c.Default != nil && c.Default.Kind == schema.DefaultKindSequence {
		if c.Default.Seq != "" {
			return c.Default.Seq
		}
		return fmt.Sprintf("%s_%s_seq", t.Name, c.Name)
	}
	if c.AutoIncrement {
		return fmt.Sprintf("%s_%s_seq", t.Name, c.Name)
	}
	return ""
}

// sequenceReferencedElsewhere reports whether any column other than
// (tableName, columnName) carries a sequence default resolving to seq.
func sequenceReferencedElsewhere(s *schema.Schema, tableName, columnName, seq string) bool {
	if s == nil {
		return false
	}
	for ti := range s.Tables {
		t := &s.Tables[ti]
		for _, c := range t.Columns {
			if t.Name == tableName && c.Name == columnName {
				continue
			}
			if sequenceDefaultName(*t, c) == seq {
				return true
			}
		}
	}
	return false
}

func (r *postgresRenderer) renderAddForeignKey(next *schema.Schema, s *diff.AddForeignKeyStep) RenderedStep {
	t := next.Tables[s.Table]
	fk := t.ForeignKeys[s.ForeignKey]
	name := fk.ConstraintName
	constraintName := fmt.Sprintf("%s_%s_fkey", t.Name, strings.Join(fk.Columns, "_"))
	if name != nil {
		constraintName = *name
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", pgQuote(t.Name), pgQuote(constraintName), fkClause(pgQuote, fk))
	return RenderedStep{Description: fmt.Sprintf("add foreign key on %q", t.Name), Statements: []string{stmt}}
}

func (r *postgresRenderer) renderDropForeignKey(previous *schema.Schema, s *diff.DropForeignKeyStep) RenderedStep {
	t := previous.Tables[s.Table]
	fk := t.ForeignKeys[s.ForeignKey]
	name := fmt.Sprintf("%s_%s_fkey", t.Name, strings.Join(fk.Columns, "_"))
	if fk.ConstraintName != nil {
		name = *fk.ConstraintName
	}
	return RenderedStep{
		Description: fmt.Sprintf("drop foreign key on %q", t.Name),
		Statements:  []string{fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", pgQuote(t.Name), pgQuote(name))},
	}
}

func (r *postgresRenderer) indexStatement(tableName string, idx schema.Index) string {
	unique := ""
	if idx.Kind == schema.IndexUnique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s);", unique, pgQuote(idx.Name), pgQuote(tableName), joinColumns(pgQuote, idx.Columns))
}

func (r *postgresRenderer) renderCreateIndex(next *schema.Schema, s *diff.CreateIndexStep) RenderedStep {
	t := next.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{Description: fmt.Sprintf("create index %q", idx.Name), Statements: []string{r.indexStatement(t.Name, idx)}}
}

func (r *postgresRenderer) renderDropIndex(previous *schema.Schema, s *diff.DropIndexStep) RenderedStep {
	t := previous.Tables[s.Table]
	idx := t.Indexes[s.Index]
	return RenderedStep{Description: fmt.Sprintf("drop index %q", idx.Name), Statements: []string{fmt.Sprintf("DROP INDEX %s;", pgQuote(idx.Name))}}
}

func (r *postgresRenderer) renderRedefineIndex(schemas schema.Pair[*schema.Schema], step diff.Step) RenderedStep {
	var tables schema.Pair[schema.TableIndex]
	var indexes schema.Pair[int]
	if step.Kind == diff.AlterIndex {
		tables, indexes = step.AlterIndexPayload.Tables, step.AlterIndexPayload.Indexes
	} else {
		tables, indexes = step.RedefineIndexPay.Tables, step.RedefineIndexPay.Indexes
	}
	prevTable := schemas.Previous.Tables[tables.Previous]
	nextTable := schemas.Next.Tables[tables.Next]
	prevIdx := prevTable.Indexes[indexes.Previous]
	nextIdx := nextTable.Indexes[indexes.Next]
	return RenderedStep{
		Description: fmt.Sprintf("rename index %q to %q", prevIdx.Name, nextIdx.Name),
		Statements:  []string{fmt.Sprintf("ALTER INDEX %s RENAME TO %s;", pgQuote(prevIdx.Name), pgQuote(nextIdx.Name))},
	}
}
