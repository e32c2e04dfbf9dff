// Package schema is the dialect-agnostic in-memory representation of a
// relational database schema: tables, columns, indexes, foreign keys,
// enums, sequences and defaults.
//
// A Schema is a value tree with stable positional identity. Once produced
// by a describer or a datamodel compiler it is treated as immutable: slice
// position, not name, is the identifier used throughout the diff and
// render packages. Name-based lookup only happens while a Schema is being
// assembled.
package schema

// Schema is an ordered collection of tables, enums and sequences. Index
// into Tables/Enums/Sequences is the canonical object identity used by
// TableIndex/EnumIndex throughout the engine.
type Schema struct {
	Tables    []Table
	Enums     []Enum
	Sequences []Sequence
}

// TableIndex identifies a table by its position in Schema.Tables.
type TableIndex int

// EnumIndex identifies an enum by its position in Schema.Enums.
type EnumIndex int

// TableByName returns the index of the table with the given name, or -1.
func (s *Schema) TableByName(name string) TableIndex {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return TableIndex(i)
		}
	}
	return -1
}

// EnumByName returns the index of the enum with the given name, or -1.
func (s *Schema) EnumByName(name string) EnumIndex {
	for i := range s.Enums {
		if s.Enums[i].Name == name {
			return EnumIndex(i)
		}
	}
	return -1
}

// Table is a named relation: an ordered column sequence plus the
// constraints that reference it.
//
// Invariant: every column name referenced by PrimaryKey, by any Index, or
// by any ForeignKey must exist in Columns.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	Indexes     []Index
	ForeignKeys []ForeignKey

	// RLSEnabled reports whether row-level security is enabled on this
	// table. Postgres-only; always false on flavors without the concept.
	// It is introspection metadata, not part of the migration step
	// alphabet: the differ does not emit a step for an RLS-only change.
	// A caller that cares can compare Table.RLSEnabled across two schemas
	// directly.
	RLSEnabled bool
}

// ColumnByName returns the index of the column with the given name, or -1.
func (t *Table) ColumnByName(name string) int {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return i
		}
	}
	return -1
}

// Arity is the cardinality of a column's value.
type Arity int

const (
	Required Arity = iota
	Nullable
	List
)

func (a Arity) IsRequired() bool { return a == Required }
func (a Arity) IsNullable() bool { return a == Nullable }
func (a Arity) IsList() bool     { return a == List }

// Family is the dialect-agnostic type family of a column.
type Family int

const (
	FamilyBoolean Family = iota
	FamilyInt
	FamilyBigInt
	FamilyFloat
	FamilyDecimal
	FamilyString
	FamilyDateTime
	FamilyBinary
	FamilyJSON
	FamilyUUID
	FamilyEnum
	FamilyUnsupported
)

func (f Family) String() string {
	switch f {
	case FamilyBoolean:
		return "boolean"
	case FamilyInt:
		return "int"
	case FamilyBigInt:
		return "bigint"
	case FamilyFloat:
		return "float"
	case FamilyDecimal:
		return "decimal"
	case FamilyString:
		return "string"
	case FamilyDateTime:
		return "datetime"
	case FamilyBinary:
		return "binary"
	case FamilyJSON:
		return "json"
	case FamilyUUID:
		return "uuid"
	case FamilyEnum:
		return "enum"
	case FamilyUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// NativeType carries a flavor's own spelling for a column type, e.g.
// ("varchar", ["255"]) on Postgres or ("NVARCHAR", ["MAX"]) on MSSQL.
type NativeType struct {
	Name string
	Args []string
}

// ColumnType describes the shape of a column's values.
//
// Invariant: if Family is FamilyEnum, EnumName names an enum that exists
// in the owning schema. If Arity is List, the owning flavor must support
// list columns (today: PostgreSQL only).
type ColumnType struct {
	Family                 Family
	EnumName               string // set iff Family == FamilyEnum
	FullDataType           string // raw catalog spelling; may be empty
	CharacterMaximumLength *int
	Arity                  Arity
	Native                 *NativeType
}

// Column is one field of a table.
type Column struct {
	Name          string
	Type          ColumnType
	AutoIncrement bool
	Default       *Default
}

// PrimaryKey is the ordered key of a table.
//
// Invariant: Columns refer to distinct columns of the owning table.
type PrimaryKey struct {
	Columns        []string
	SequenceName   *string
	ConstraintName *string
}

// IndexKind distinguishes a unique index from a plain one.
type IndexKind int

const (
	IndexNormal IndexKind = iota
	IndexUnique
)

// Index is a named, ordered set of columns.
//
// Invariant: Columns refer to columns of the owning table.
type Index struct {
	Name    string
	Columns []string
	Kind    IndexKind
}

// ReferentialAction is a foreign key's ON DELETE / ON UPDATE behavior.
type ReferentialAction int

const (
	NoAction ReferentialAction = iota
	Restrict
	Cascade
	SetNull
	SetDefault
)

func (a ReferentialAction) String() string {
	switch a {
	case NoAction:
		return "NO ACTION"
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// ForeignKey constrains a set of columns to reference another table's
// columns.
//
// Invariant: len(Columns) == len(ReferencedColumns); ReferencedTable and
// ReferencedColumns exist in the owning schema.
type ForeignKey struct {
	ConstraintName    *string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferentialAction
	OnUpdate          ReferentialAction
}

// Enum is a named, ordered set of distinct string variants.
type Enum struct {
	Name     string
	Variants []string
}

// Sequence is a standalone auto-numbering generator (used to back
// autoincrement defaults on Postgres).
type Sequence struct {
	Name string
}

// DefaultKind tags the variant a Default carries.
type DefaultKind int

const (
	DefaultKindValue DefaultKind = iota
	DefaultKindDBGenerated
	DefaultKindNow
	DefaultKindSequence
)

// ValueKind tags the scalar payload of a DefaultKindValue default.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBoolean
	ValueBytes
	ValueEnum
	ValueNull
)

// Value is a literal scalar, modeled loosely on Prisma's PrismaValue: a
// small closed set of kinds rather than an interface{}, so default
// rendering can match exhaustively per flavor.
type Value struct {
	Kind  ValueKind
	Str   string // ValueString, ValueEnum (the enum variant name)
	Int   int64
	Float float64
	Bool  bool
	Bytes []byte
}

// Default is a column's default-value expression.
type Default struct {
	Kind DefaultKind

	Value Value  // set iff Kind == DefaultKindValue
	Expr  string // set iff Kind == DefaultKindDBGenerated
	Seq   string // set iff Kind == DefaultKindSequence

	// ConstraintName names the default as a constraint, used on MSSQL
	// where ALTER/DROP of a default requires naming its constraint.
	ConstraintName *string
}

// IsUsable reports whether the default can back-fill existing rows when a
// column is made required or added to a non-empty table. A sequence
// default is not usable: it produces fresh values, not a constant the
// checker can assume existing rows will receive.
func (d *Default) IsUsable() bool {
	if d == nil {
		return false
	}
	switch d.Kind {
	case DefaultKindValue:
		return true
	case DefaultKindNow:
		return true
	case DefaultKindDBGenerated:
		return d.Expr != ""
	case DefaultKindSequence:
		return false
	default:
		return false
	}
}
