// Package describe introspects a live database connection into the
// dialect-agnostic schema.Schema model (component C2). One Describer per
// flavor queries that engine's catalog tables/views and assembles a
// Schema; no two Describers share introspection SQL, since every engine's
// catalog shape differs, but they share the same error taxonomy and
// result type. Each implementation composes a per-table
// columns/primary-key/indexes/foreign-keys read against that engine's
// information_schema (or, for SQLite, its PRAGMA family).
package describe

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/schema"
)

// ErrorKind tags the variant of an Error: a connection failure or a
// catalog result the describer cannot interpret.
type ErrorKind int

const (
	// ErrConnection means the database could not be reached at all.
	ErrConnection ErrorKind = iota
	// ErrCatalog means a catalog query returned something the describer
	// doesn't know how to interpret (an unsupported type, a malformed
	// default expression).
	ErrCatalog
)

// Error is the typed error every Describer reports instead of a bare
// fmt.Errorf, so callers can distinguish "couldn't connect" from
// "connected, but the catalog had something unexpected" without string
// matching.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("describe: %s: %v", e.Op, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

func connErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrConnection, Op: op, Err: err}
}

func catalogErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrCatalog, Op: op, Err: err}
}

// Metadata reports facts about the connected engine and the named schema:
// the engine version, plus how many tables the schema holds and how much
// storage they occupy.
type Metadata struct {
	Flavor        flavor.Flavor
	Version       string
	DefaultSchema string
	TableCount    int
	SizeInBytes   int64
}

// Describer introspects a live connection into a schema.Schema.
type Describer interface {
	// ListSchemas returns the names of every schema/namespace visible on
	// the connection (a single entry for engines with no such concept).
	ListSchemas(ctx context.Context) ([]string, error)
	// Describe introspects the named schema (or the engine's default, if
	// schemaName is empty) into a schema.Schema.
	Describe(ctx context.Context, schemaName string) (*schema.Schema, error)
	// Version reports the engine's reported version string.
	Version(ctx context.Context) (string, error)
	// Metadata reports the engine version plus the named schema's table
	// count and on-disk size (the engine's default schema if schemaName
	// is empty).
	Metadata(ctx context.Context, schemaName string) (Metadata, error)
}

// New opens a Describer for the given flavor against an already-open
// *sql.DB. The caller owns the DB's lifecycle (open/close); Describe only
// ever reads.
func New(f flavor.Flavor, db *sql.DB) (Describer, error) {
	switch f {
	case flavor.Postgres:
		return &postgresDescriber{db: db}, nil
	case flavor.MySQL, flavor.MariaDB:
		return &mysqlDescriber{db: db}, nil
	case flavor.SQLite:
		return &sqliteDescriber{db: db}, nil
	case flavor.MSSQL:
		return &mssqlDescriber{db: db}, nil
	default:
		return nil, fmt.Errorf("describe: unsupported flavor %v", f)
	}
}
