package describe

import (
	"context"
	"database/sql"
	"regexp"
	"strconv"
	"strings"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// sqliteDescriber introspects via sqlite_master and the PRAGMA
// table_info/foreign_key_list/index_list/index_info family, the only
// introspection surface SQLite exposes (it has no information_schema). A
// libsql:// URL opens through the "libsql" driver instead (sqlDriverName in
// cmd/helpers.go) but parses to the same flavor, so this describer is
// shared by both schemes.
type sqliteDescriber struct {
	db *sql.DB
}

func (d *sqliteDescriber) ListSchemas(ctx context.Context) ([]string, error) {
	return []string{"main"}, nil
}

func (d *sqliteDescriber) Version(ctx context.Context) (string, error) {
	var v string
	if err := d.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&v); err != nil {
		return "", connErr("version", err)
	}
	return v, nil
}

func (d *sqliteDescriber) Metadata(ctx context.Context, schemaName string) (Metadata, error) {
	v, err := d.Version(ctx)
	if err != nil {
		return Metadata{}, err
	}
	m := Metadata{Flavor: flavor.SQLite, Version: v, DefaultSchema: "main"}
	err = d.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`,
	).Scan(&m.TableCount)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	// The database file's size is page_count * page_size; SQLite has no
	// per-table accounting without the dbstat extension.
	err = d.db.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`,
	).Scan(&m.SizeInBytes)
	if err != nil {
		return Metadata{}, catalogErr("metadata", err)
	}
	return m, nil
}

func (d *sqliteDescriber) Describe(ctx context.Context, schemaName string) (*schema.Schema, error) {
	s := &schema.Schema{}

	rows, err := d.db.QueryContext(ctx, `
		SELECT name, sql FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
	if err != nil {
		return nil, connErr("get_tables", err)
	}
	var names []string
	var createSQL = map[string]string{}
	for rows.Next() {
		var name, sqlText string
		if err := rows.Scan(&name, &sqlText); err != nil {
			rows.Close()
			return nil, catalogErr("get_tables", err)
		}
		names = append(names, name)
		createSQL[name] = sqlText
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, catalogErr("get_tables", err)
	}

	for _, name := range names {
		table := schema.Table{Name: name}

		cols, pk, err := d.getColumns(ctx, name, createSQL[name])
		if err != nil {
			return nil, err
		}
		table.Columns = cols
		table.PrimaryKey = pk

		idx, err := d.getIndexes(ctx, name)
		if err != nil {
			return nil, err
		}
		table.Indexes = idx

		fks, err := d.getForeignKeys(ctx, name)
		if err != nil {
			return nil, err
		}
		table.ForeignKeys = fks

		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

var sqliteAutoincrementRE = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)

func (d *sqliteDescriber) getColumns(ctx context.Context, table, createSQL string) ([]schema.Column, *schema.PrimaryKey, error) {
	rows, err := d.db.QueryContext(ctx, `PRAGMA table_info(`+quoteIdentForPragma(table)+`)`)
	if err != nil {
		return nil, nil, connErr("table_info", err)
	}
	defer rows.Close()

	var cols []schema.Column
	var pkCols []struct {
		seq  int
		name string
	}
	autoincrement := sqliteAutoincrementRE.MatchString(createSQL)

	for rows.Next() {
		var cid int
		var name, declType string
		var notNull int
		var def sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &declType, &notNull, &def, &pk); err != nil {
			return nil, nil, catalogErr("table_info", err)
		}

		col := schema.Column{Name: name}
		col.Type = sqliteColumnType(declType)
		if notNull != 0 || pk > 0 {
			col.Type.Arity = schema.Required
		} else {
			col.Type.Arity = schema.Nullable
		}
		if def.Valid {
			col.Default = parseSQLiteDefault(def.String)
		}
		if pk > 0 {
			pkCols = append(pkCols, struct {
				seq  int
				name string
			}{pk, name})
			if autoincrement && strings.EqualFold(declType, "integer") {
				col.AutoIncrement = true
			}
		}
		cols = append(cols, col)
	}

	var pkNames []string
	for _, p := range pkCols {
		pkNames = append(pkNames, p.name)
	}
	var pkOut *schema.PrimaryKey
	if len(pkNames) > 0 {
		pkOut = &schema.PrimaryKey{Columns: pkNames}
	}
	return cols, pkOut, catalogErr("table_info", rows.Err())
}

func quoteIdentForPragma(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func sqliteColumnType(declType string) schema.ColumnType {
	t := schema.ColumnType{FullDataType: declType}
	upper := strings.ToUpper(declType)
	switch {
	case strings.Contains(upper, "BOOL"):
		t.Family = schema.FamilyBoolean
	case strings.Contains(upper, "INT"):
		t.Family = schema.FamilyInt
	case strings.Contains(upper, "REAL") || strings.Contains(upper, "FLOA") || strings.Contains(upper, "DOUB"):
		t.Family = schema.FamilyFloat
	case strings.Contains(upper, "CHAR") || strings.Contains(upper, "TEXT") || strings.Contains(upper, "CLOB"):
		t.Family = schema.FamilyString
	case strings.Contains(upper, "DATE") || strings.Contains(upper, "TIME"):
		t.Family = schema.FamilyDateTime
	case strings.Contains(upper, "BLOB") || upper == "":
		t.Family = schema.FamilyBinary
	default:
		t.Family = schema.FamilyString
	}
	return t
}

func parseSQLiteDefault(def string) *schema.Default {
	trimmed := strings.TrimSpace(def)
	upper := strings.ToUpper(trimmed)
	switch {
	case upper == "CURRENT_TIMESTAMP":
		return &schema.Default{Kind: schema.DefaultKindNow}
	case strings.HasPrefix(trimmed, "'") && strings.HasSuffix(trimmed, "'"):
		return &schema.Default{Kind: schema.DefaultKindValue, Value: schema.Value{Kind: schema.ValueString, Str: strings.Trim(trimmed, "'")}}
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

func (d *sqliteDescriber) getIndexes(ctx context.Context, table string) ([]schema.Index, error) {
	rows, err := d.db.QueryContext(ctx, `PRAGMA index_list(`+quoteIdentForPragma(table)+`)`)
	if err != nil {
		return nil, connErr("index_list", err)
	}
	defer rows.Close()

	type idxMeta struct {
		name   string
		unique bool
		origin string
	}
	var metas []idxMeta
	for rows.Next() {
		var seq int
		var name, origin string
		var unique, partial int
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			return nil, catalogErr("index_list", err)
		}
		metas = append(metas, idxMeta{name: name, unique: unique != 0, origin: origin})
	}
	if err := rows.Err(); err != nil {
		return nil, catalogErr("index_list", err)
	}

	var out []schema.Index
	for _, m := range metas {
		if m.origin == "pk" {
			continue
		}
		cols, err := d.indexColumns(ctx, m.name)
		if err != nil {
			return nil, err
		}
		kind := schema.IndexNormal
		if m.unique {
			kind = schema.IndexUnique
		}
		out = append(out, schema.Index{Name: m.name, Columns: cols, Kind: kind})
	}
	return out, nil
}

func (d *sqliteDescriber) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `PRAGMA index_info(`+quoteIdentForPragma(index)+`)`)
	if err != nil {
		return nil, connErr("index_info", err)
	}
	defer rows.Close()
	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name string
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, catalogErr("index_info", err)
		}
		cols = append(cols, name)
	}
	return cols, catalogErr("index_info", rows.Err())
}

func (d *sqliteDescriber) getForeignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	rows, err := d.db.QueryContext(ctx, `PRAGMA foreign_key_list(`+quoteIdentForPragma(table)+`)`)
	if err != nil {
		return nil, connErr("foreign_key_list", err)
	}
	defer rows.Close()

	byID := map[int]*schema.ForeignKey{}
	var order []int
	for rows.Next() {
		var id, seq int
		var refTable, from, to, onUpdate, onDelete, match string
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, catalogErr("foreign_key_list", err)
		}
		fk, ok := byID[id]
		if !ok {
			order = append(order, id)
			fk = &schema.ForeignKey{
				ReferencedTable: refTable,
				OnDelete:        referentialActionFromRule(onDelete),
				OnUpdate:        referentialActionFromRule(onUpdate),
			}
			byID[id] = fk
		}
		fk.Columns = append(fk.Columns, from)
		fk.ReferencedColumns = append(fk.ReferencedColumns, to)
	}
	var out []schema.ForeignKey
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out, catalogErr("foreign_key_list", rows.Err())
}
