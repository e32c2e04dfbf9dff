// Package flavor defines the closed set of supported database flavors and
// the per-engine facts the rest of the engine consults: the database/sql
// driver name, which features the engine supports, and how a type change
// is classified for diffing. Describing, checking and rendering live in
// their own packages, which switch on a Flavor value.
//
// Generalized from a single Introspector+SQLGenerator pair into the fuller
// Describer/Checker/Renderer split this engine's components require.
package flavor

import "fmt"

// Flavor identifies one of the supported database engines.
type Flavor int

const (
	Postgres Flavor = iota
	MySQL
	MariaDB
	SQLite
	MSSQL
)

func (f Flavor) String() string {
	switch f {
	case Postgres:
		return "postgres"
	case MySQL:
		return "mysql"
	case MariaDB:
		return "mariadb"
	case SQLite:
		return "sqlite"
	case MSSQL:
		return "mssql"
	default:
		return "unknown"
	}
}

// SQLDriverName returns the database/sql driver name registered for this
// flavor. MariaDB reuses the MySQL wire protocol driver; SQLite and libSQL
// both resolve to modernc.org/sqlite's driver name "sqlite". A libsql://
// connection string is opened under "libsql" by sqlDriverName in
// cmd/helpers.go, not here.
func (f Flavor) SQLDriverName() string {
	switch f {
	case Postgres:
		return "postgres"
	case MySQL, MariaDB:
		return "mysql"
	case SQLite:
		return "sqlite"
	case MSSQL:
		return "sqlserver"
	default:
		return ""
	}
}

// SupportsSchemas reports whether the flavor has a notion of multiple
// schemas/namespaces within one database (Postgres, MSSQL) as opposed to
// one schema per database file/connection (SQLite) or per database
// (MySQL/MariaDB, which conflate "schema" and "database").
func (f Flavor) SupportsSchemas() bool {
	return f == Postgres || f == MSSQL
}

// SupportsEnums reports whether the flavor has a native enum type. MySQL's
// column-level ENUM(...) is handled separately; this flag is specifically
// about standalone CREATE TYPE ... AS ENUM objects (Postgres only).
func (f Flavor) SupportsEnums() bool {
	return f == Postgres
}

// SupportsIndexRename reports whether the flavor can rename an index in
// place (Postgres ALTER INDEX ... RENAME TO, MySQL/MariaDB ALTER TABLE
// ... RENAME INDEX, MSSQL sp_rename). SQLite cannot: a renamed index is
// dropped and recreated instead.
func (f Flavor) SupportsIndexRename() bool {
	return f != SQLite
}

// RequiresTableRebuildForAlter reports whether altering a column on this
// flavor generally requires the rebuild-and-copy protocol (RedefineTables)
// rather than an in-place ALTER COLUMN. SQLite lacks ALTER COLUMN almost
// entirely; MSSQL can alter columns in place.
func (f Flavor) RequiresTableRebuildForAlter() bool {
	return f == SQLite
}

// ParseFlavor maps a connection-string scheme to a Flavor.
func ParseFlavor(scheme string) (Flavor, error) {
	switch scheme {
	case "postgres", "postgresql":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "mariadb":
		return MariaDB, nil
	case "sqlite", "sqlite3", "file", "libsql":
		return SQLite, nil
	case "sqlserver", "mssql":
		return MSSQL, nil
	default:
		return 0, fmt.Errorf("flavor: unrecognized connection scheme %q", scheme)
	}
}
