package schema

// Walkers are lightweight, read-only views over a positional element of a
// Schema. Each carries a back-reference to the enclosing Schema so that,
// e.g., a ForeignKeyWalker can resolve the table it references by name.
// They replace cyclic parent-pointers with on-demand resolution: equality
// and identity of schema objects is by position, never by pointer.

// TableWalker views one table plus its enclosing schema.
type TableWalker struct {
	schema *Schema
	Index  TableIndex
}

// Table returns a walker for the table at index within s.
func (s *Schema) Table(index TableIndex) TableWalker {
	return TableWalker{schema: s, Index: index}
}

// Get returns the underlying Table value.
func (w TableWalker) Get() *Table { return &w.schema.Tables[w.Index] }

// Name returns the table's name.
func (w TableWalker) Name() string { return w.Get().Name }

// Schema returns the enclosing schema.
func (w TableWalker) Schema() *Schema { return w.schema }

// Columns iterates the table's columns.
func (w TableWalker) Columns() []ColumnWalker {
	t := w.Get()
	out := make([]ColumnWalker, len(t.Columns))
	for i := range t.Columns {
		out[i] = ColumnWalker{schema: w.schema, Table: w.Index, Index: i}
	}
	return out
}

// Column returns a walker for the column at the given index within this
// table.
func (w TableWalker) Column(index int) ColumnWalker {
	return ColumnWalker{schema: w.schema, Table: w.Index, Index: index}
}

// ColumnNamed returns a walker for the named column, and whether it exists.
func (w TableWalker) ColumnNamed(name string) (ColumnWalker, bool) {
	i := w.Get().ColumnByName(name)
	if i < 0 {
		return ColumnWalker{}, false
	}
	return w.Column(i), true
}

// Indexes iterates the table's indexes.
func (w TableWalker) Indexes() []IndexWalker {
	t := w.Get()
	out := make([]IndexWalker, len(t.Indexes))
	for i := range t.Indexes {
		out[i] = IndexWalker{schema: w.schema, Table: w.Index, Index: i}
	}
	return out
}

// ForeignKeys iterates the table's foreign keys.
func (w TableWalker) ForeignKeys() []ForeignKeyWalker {
	t := w.Get()
	out := make([]ForeignKeyWalker, len(t.ForeignKeys))
	for i := range t.ForeignKeys {
		out[i] = ForeignKeyWalker{schema: w.schema, Table: w.Index, Index: i}
	}
	return out
}

// IsSingleColumnPrimaryKey reports whether the table's primary key covers
// exactly one column.
func (w TableWalker) IsSingleColumnPrimaryKey() bool {
	pk := w.Get().PrimaryKey
	return pk != nil && len(pk.Columns) == 1
}

// ColumnWalker views one column plus its owning table and schema.
type ColumnWalker struct {
	schema *Schema
	Table  TableIndex
	Index  int
}

// Get returns the underlying Column value.
func (w ColumnWalker) Get() *Column { return &w.schema.Tables[w.Table].Columns[w.Index] }

// Name returns the column's name.
func (w ColumnWalker) Name() string { return w.Get().Name }

// TableWalker returns a walker for the owning table.
func (w ColumnWalker) TableWalker() TableWalker { return TableWalker{schema: w.schema, Index: w.Table} }

// Schema returns the enclosing schema.
func (w ColumnWalker) Schema() *Schema { return w.schema }

// IsSinglePrimaryKey reports whether this column alone forms its table's
// primary key. MySQL omits AUTO_INCREMENT on non-PK columns; SQLite
// inlines a single-column integer PK on the column itself.
func (w ColumnWalker) IsSinglePrimaryKey() bool {
	t := w.schema.Tables[w.Table]
	return t.PrimaryKey != nil && len(t.PrimaryKey.Columns) == 1 && t.PrimaryKey.Columns[0] == w.Get().Name
}

// IsReferencedByForeignKey reports whether any foreign key on any table in
// the schema constrains this exact column.
func (w ColumnWalker) IsReferencedByForeignKey() bool {
	name := w.Get().Name
	tableName := w.schema.Tables[w.Table].Name
	for i := range w.schema.Tables {
		for _, fk := range w.schema.Tables[i].ForeignKeys {
			if fk.ReferencedTable != tableName {
				continue
			}
			for _, c := range fk.ReferencedColumns {
				if c == name {
					return true
				}
			}
		}
	}
	return false
}

// IsAutoIncrement reports whether this column auto-increments.
func (w ColumnWalker) IsAutoIncrement() bool { return w.Get().AutoIncrement }

// IndexWalker views one index plus its owning table.
type IndexWalker struct {
	schema *Schema
	Table  TableIndex
	Index  int
}

func (w IndexWalker) Get() *Index  { return &w.schema.Tables[w.Table].Indexes[w.Index] }
func (w IndexWalker) Name() string { return w.Get().Name }
func (w IndexWalker) TableWalker() TableWalker {
	return TableWalker{schema: w.schema, Index: w.Table}
}

// ForeignKeyWalker views one foreign key plus its owning and referenced
// tables.
type ForeignKeyWalker struct {
	schema *Schema
	Table  TableIndex
	Index  int
}

func (w ForeignKeyWalker) Get() *ForeignKey {
	return &w.schema.Tables[w.Table].ForeignKeys[w.Index]
}

func (w ForeignKeyWalker) TableWalker() TableWalker {
	return TableWalker{schema: w.schema, Index: w.Table}
}

// ReferencedTableWalker resolves the table this foreign key points at, if
// it still exists in the schema.
func (w ForeignKeyWalker) ReferencedTableWalker() (TableWalker, bool) {
	idx := w.schema.TableByName(w.Get().ReferencedTable)
	if idx < 0 {
		return TableWalker{}, false
	}
	return TableWalker{schema: w.schema, Index: idx}, true
}

// IsSelfReferential reports whether the foreign key's table is its own
// referenced table.
func (w ForeignKeyWalker) IsSelfReferential() bool {
	return w.schema.Tables[w.Table].Name == w.Get().ReferencedTable
}

// EnumWalker views one enum.
type EnumWalker struct {
	schema *Schema
	Index  EnumIndex
}

func (s *Schema) Enum(index EnumIndex) EnumWalker { return EnumWalker{schema: s, Index: index} }
func (w EnumWalker) Get() *Enum                   { return &w.schema.Enums[w.Index] }
func (w EnumWalker) Name() string                 { return w.Get().Name }

// Pair groups the previous and next value of the same logical object
// across a diff, so "the same thing, before and after" is a single value
// threaded through Differ, Checker and Renderer.
type Pair[T any] struct {
	Previous T
	Next     T
}

// MakePair is a convenience constructor.
func MakePair[T any](previous, next T) Pair[T] { return Pair[T]{Previous: previous, Next: next} }

// SchemaPair groups the previous and next whole schemas.
type SchemaPair = Pair[*Schema]

// TablesForPair resolves a TableIndex pair (previous, next) into walkers over
// SchemaPair.
func TablesForPair(schemas SchemaPair, previous, next TableIndex) Pair[TableWalker] {
	return Pair[TableWalker]{
		Previous: TableWalker{schema: schemas.Previous, Index: previous},
		Next:     TableWalker{schema: schemas.Next, Index: next},
	}
}

// ColumnsForPair resolves a pair of column positions within an already
// paired pair of tables.
func ColumnsForPair(tables Pair[TableWalker], previous, next int) Pair[ColumnWalker] {
	return Pair[ColumnWalker]{
		Previous: tables.Previous.Column(previous),
		Next:     tables.Next.Column(next),
	}
}
