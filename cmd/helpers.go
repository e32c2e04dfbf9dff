package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"

	"github.com/schemadrift/schemadrift/flavor"
	"github.com/schemadrift/schemadrift/internal/config"
	"github.com/schemadrift/schemadrift/schema"
	"github.com/schemadrift/schemadrift/shadow"
)

// resolveConnectionString picks a connection string from --db, falling
// back to the named (or default) environment in schemadrift.toml / .env.
func resolveConnectionString(environment string) (string, error) {
	if strings.TrimSpace(flagDB) != "" {
		return flagDB, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	target, err := config.Resolve(cfg, environment)
	if err != nil {
		return "", err
	}
	return target.URL, nil
}

// sqlDriverName returns the database/sql driver name to open connStr with.
// libsql:// URLs open through the real libsql driver (remote Turso), while
// every other sqlite-flavored scheme opens through modernc.org/sqlite, the
// way describe.New dispatches by flavor.Flavor rather than by scheme.
func sqlDriverName(connStr string, f flavor.Flavor) string {
	if strings.HasPrefix(strings.ToLower(connStr), "libsql://") {
		return "libsql"
	}
	return f.SQLDriverName()
}

// resolveShadowURL picks the shadow database connection string: the
// --shadow-db override if given, otherwise the environment's
// shadow_database_url from schemadrift.toml / .env.
func resolveShadowURL(environment, override string) (string, error) {
	if strings.TrimSpace(override) != "" {
		return override, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	target, err := config.Resolve(cfg, environment)
	if err != nil {
		return "", err
	}
	if target.ShadowDatabaseURL == "" {
		return "", fmt.Errorf("cmd: no shadow database configured for environment %q (set shadow_database_url or pass --shadow-db)", target.Name)
	}
	return target.ShadowDatabaseURL, nil
}

// materializeFromMigrations replays a migrations directory into the shadow
// database and introspects the result as the "next" schema.
func materializeFromMigrations(ctx context.Context, migrationsDir, shadowOverride string) (*schema.Schema, error) {
	dirs, err := shadow.LoadDirectories(migrationsDir)
	if err != nil {
		return nil, err
	}
	shadowURL, err := resolveShadowURL(flagEnvironment, shadowOverride)
	if err != nil {
		return nil, err
	}
	db, f, err := openConnection(shadowURL)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return shadow.Materialize(ctx, db, f, "", dirs)
}

// openConnection parses connStr's scheme to infer the flavor, opens a
// database/sql connection with the matching driver, and returns both.
func openConnection(connStr string) (*sql.DB, flavor.Flavor, error) {
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, 0, fmt.Errorf("cmd: parse connection string: %w", err)
	}
	f, err := flavor.ParseFlavor(u.Scheme)
	if err != nil {
		return nil, 0, err
	}
	db, err := sql.Open(sqlDriverName(connStr, f), connStr)
	if err != nil {
		return nil, 0, fmt.Errorf("cmd: open %s connection: %w", f, err)
	}
	return db, f, nil
}
