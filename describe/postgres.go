package describe

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// postgresDescriber introspects via information_schema plus a handful of
// pg_catalog lookups the information_schema views can't express (RLS
// status, real index definitions): tables, then per-table columns,
// indexes, and foreign keys, recognizing SERIAL columns from their
// nextval() default and reading row-level-security status off
// pg_class.relrowsecurity.
type postgresDescriber struct {
	db *sql.DB
}

var pgSerialDefault = regexp.MustCompile(`^nextval\('"?([^"']+)"?'::regclass\)$`)

func (d *postgresDescriber) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema')
		  AND schema_name NOT LIKE 'pg_toast%'
		ORDER BY schema_name`)
	if err != nil {
		return nil, connErr("list_schemas", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, catalogErr("list_schemas", err)
		}
		names = append(names, name)
	}
	return names, catalogErr("list_schemas", rows.Err())
}

func (d *postgresDescriber) Version(ctx context.Context) (string, error) {
	var v string
	if err := d.db.QueryRowContext(ctx, "SELECT version()").Scan(&v); err != nil {
		return "", connErr("version", err)
	}
	return v, nil
}

func (d *postgresDescriber) Metadata(ctx context.Context, schemaName string) (Metadata, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	v, err := d.Version(ctx)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Flavor: flavor.Postgres, Version: v, DefaultSchema: "public"}
	err = d.db.QueryRowContext(ctx, `
		SELECT count(*),
		       coalesce(sum(pg_total_relation_size(format('%I.%I', table_schema, table_name))), 0)::bigint
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'`, schemaName,
	).Scan(&m.TableCount, &m.SizeInBytes)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	return m, nil
}

func (d *postgresDescriber) Describe(ctx context.Context, schemaName string) (*schema.Schema, error) {
	if schemaName == "" {
		schemaName = "public"
	}
	s := &schema.Schema{}

	enums, err := d.getEnums(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	s.Enums = enums

	tableNames, err := d.getTableNames(ctx, schemaName)
	if err != nil {
		return nil, err
	}
	for _, name := range tableNames {
		table := schema.Table{Name: name}

		cols, err := d.getColumns(ctx, schemaName, name, s.Enums)
		if err != nil {
			return nil, err
		}
		table.Columns = cols

		pk, err := d.getPrimaryKey(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.PrimaryKey = pk

		idx, err := d.getIndexes(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.Indexes = idx

		fks, err := d.getForeignKeys(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = fks

		rls, err := d.GetRLSEnabled(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		table.RLSEnabled = rls

		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

func (d *postgresDescriber) getEnums(ctx context.Context, schemaName string) ([]schema.Enum, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder`, schemaName)
	if err != nil {
		return nil, connErr("get_enums", err)
	}
	defer rows.Close()

	byName := map[string]*schema.Enum{}
	var order []string
	for rows.Next() {
		var typeName, label string
		if err := rows.Scan(&typeName, &label); err != nil {
			return nil, catalogErr("get_enums", err)
		}
		e, ok := byName[typeName]
		if !ok {
			order = append(order, typeName)
			e = &schema.Enum{Name: typeName}
			byName[typeName] = e
		}
		e.Variants = append(e.Variants, label)
	}
	var out []schema.Enum
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, catalogErr("get_enums", rows.Err())
}

func (d *postgresDescriber) getTableNames(ctx context.Context, schemaName string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schemaName)
	if err != nil {
		return nil, connErr("get_tables", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, catalogErr("get_tables", err)
		}
		names = append(names, name)
	}
	return names, catalogErr("get_tables", rows.Err())
}

func (d *postgresDescriber) getColumns(ctx context.Context, schemaName, table string, enums []schema.Enum) ([]schema.Column, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable, column_default, character_maximum_length
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`, schemaName, table)
	if err != nil {
		return nil, connErr("get_columns", err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var name, dataType, udtName, isNullable string
		var def sql.NullString
		var maxLen sql.NullInt64
		if err := rows.Scan(&name, &dataType, &udtName, &isNullable, &def, &maxLen); err != nil {
			return nil, catalogErr("get_columns", err)
		}

		col := schema.Column{Name: name}
		col.Type = d.columnType(dataType, udtName, enums)
		if isNullable == "YES" {
			col.Type.Arity = schema.Nullable
		} else {
			col.Type.Arity = schema.Required
		}
		if maxLen.Valid {
			n := int(maxLen.Int64)
			col.Type.CharacterMaximumLength = &n
		}

		if def.Valid {
			if seq, ok := serialSequence(def.String); ok {
				col.AutoIncrement = true
				col.Default = &schema.Default{Kind: schema.DefaultKindSequence, Seq: seq}
			} else {
				col.Default = parsePostgresDefault(normalizePostgresDefault(def.String))
			}
		}
		cols = append(cols, col)
	}
	return cols, catalogErr("get_columns", rows.Err())
}

func (d *postgresDescriber) columnType(dataType, udtName string, enums []schema.Enum) schema.ColumnType {
	for _, e := range enums {
		if e.Name == udtName {
			return schema.ColumnType{Family: schema.FamilyEnum, EnumName: e.Name, FullDataType: udtName}
		}
	}
	t := schema.ColumnType{FullDataType: dataType}
	switch dataType {
	case "boolean":
		t.Family = schema.FamilyBoolean
	case "integer", "smallint":
		t.Family = schema.FamilyInt
	case "bigint":
		t.Family = schema.FamilyBigInt
	case "double precision", "real":
		t.Family = schema.FamilyFloat
	case "numeric", "decimal":
		t.Family = schema.FamilyDecimal
	case "character varying", "text", "character":
		t.Family = schema.FamilyString
	case "timestamp without time zone", "timestamp with time zone", "date":
		t.Family = schema.FamilyDateTime
	case "bytea":
		t.Family = schema.FamilyBinary
	case "jsonb", "json":
		t.Family = schema.FamilyJSON
	case "uuid":
		t.Family = schema.FamilyUUID
	default:
		t.Family = schema.FamilyUnsupported
	}
	return t
}

// serialSequence recognizes a SERIAL/BIGSERIAL column from its
// nextval('name'::regclass) default, since Postgres has no SERIAL catalog
// flag of its own.
func serialSequence(def string) (string, bool) {
	m := pgSerialDefault.FindStringSubmatch(strings.TrimSpace(def))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// normalizePostgresDefault strips the redundant ::type casts Postgres
// echoes back in pg_get_expr output for literal defaults (e.g.
// "'active'::character varying" -> "'active'").
func normalizePostgresDefault(def string) string {
	if i := strings.LastIndex(def, "::"); i >= 0 {
		return def[:i]
	}
	return def
}

func parsePostgresDefault(def string) *schema.Default {
	trimmed := strings.TrimSpace(def)
	switch {
	case trimmed == "now()" || trimmed == "CURRENT_TIMESTAMP":
		return &schema.Default{Kind: schema.DefaultKindNow}
	case strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'"):
		return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueString, Str: strings.Trim(trimmed, "'")}}
	case trimmed == "true" || trimmed == "false":
		return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueBoolean, Bool: trimmed == "true"}}
	default:
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueInt, Int: n}}
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueFloat, Float: f}}
		}
		return &schema.Default{Kind: schema.DefaultKindDBGenerated, Expr: trimmed}
	}
}

func (d *postgresDescriber) getPrimaryKey(ctx context.Context, schemaName, table string) (*schema.PrimaryKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT kcu.column_name, tc.constraint_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`, schemaName, table)
	if err != nil {
		return nil, connErr("get_primary_key", err)
	}
	defer rows.Close()

	var cols []string
	var constraintName string
	for rows.Next() {
		var col, name string
		if err := rows.Scan(&col, &name); err != nil {
			return nil, catalogErr("get_primary_key", err)
		}
		cols = append(cols, col)
		constraintName = name
	}
	if err := rows.Err(); err != nil {
		return nil, catalogErr("get_primary_key", err)
	}
	if len(cols) == 0 {
		return nil, nil
	}
	return &schema.PrimaryKey{Columns: cols, ConstraintName: &constraintName}, nil
}

// getIndexes excludes indexes that merely back a unique/primary key
// constraint. The primary key is reported through getPrimaryKey; an index
// backing a UNIQUE constraint is not reported at all.
func (d *postgresDescriber) getIndexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT i.relname, array_agg(a.attname ORDER BY array_position(ix.indkey, a.attnum)), ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = $1 AND t.relname = $2 AND NOT ix.indisprimary
		  AND NOT EXISTS (
		    SELECT 1 FROM pg_constraint c
		    WHERE c.conindid = ix.indexrelid AND c.contype IN ('p', 'u')
		  )
		GROUP BY i.relname, ix.indisunique`, schemaName, table)
	if err != nil {
		return nil, connErr("get_indexes", err)
	}
	defer rows.Close()

	var out []schema.Index
	for rows.Next() {
		var name string
		var cols pq.StringArray
		var unique bool
		if err := rows.Scan(&name, &cols, &unique); err != nil {
			return nil, catalogErr("get_indexes", err)
		}
		kind := schema.IndexNormal
		if unique {
			kind = schema.IndexUnique
		}
		out = append(out, schema.Index{Name: name, Columns: []string(cols), Kind: kind})
	}
	return out, catalogErr("get_indexes", rows.Err())
}

func (d *postgresDescriber) getForeignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name,
		       rc.delete_rule, rc.update_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.referential_constraints rc
		  ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON ccu.constraint_name = rc.unique_constraint_name
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name, kcu.ordinal_position`, schemaName, table)
	if err != nil {
		return nil, connErr("get_foreign_keys", err)
	}
	defer rows.Close()

	byName := map[string]*schema.ForeignKey{}
	var order []string
	for rows.Next() {
		var name, col, refTable, refCol, deleteRule, updateRule string
		if err := rows.Scan(&name, &col, &refTable, &refCol, &deleteRule, &updateRule); err != nil {
			return nil, catalogErr("get_foreign_keys", err)
		}
		fk, ok := byName[name]
		if !ok {
			order = append(order, name)
			constraintName := name
			fk = &schema.ForeignKey{
				ConstraintName:  &constraintName,
				ReferencedTable: refTable,
				OnDelete:        referentialActionFromRule(deleteRule),
				OnUpdate:        referentialActionFromRule(updateRule),
			}
			byName[name] = fk
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	var out []schema.ForeignKey
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out, catalogErr("get_foreign_keys", rows.Err())
}

func referentialActionFromRule(rule string) schema.ReferentialAction {
	switch rule {
	case "CASCADE":
		return schema.Cascade
	case "SET NULL":
		return schema.SetNull
	case "SET DEFAULT":
		return schema.SetDefault
	case "RESTRICT":
		return schema.Restrict
	default:
		return schema.NoAction
	}
}

// GetRLSEnabled reports whether row-level security is enabled on the named
// table, read off pg_class.relrowsecurity.
func (d *postgresDescriber) GetRLSEnabled(ctx context.Context, schemaName, table string) (bool, error) {
	var enabled bool
	err := d.db.QueryRowContext(ctx, `
		SELECT c.relrowsecurity FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2`, schemaName, table).Scan(&enabled)
	if err != nil {
		return false, connErr("get_rls_enabled", err)
	}
	return enabled, nil
}
