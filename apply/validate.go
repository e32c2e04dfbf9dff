package apply

import (
	"fmt"

	pg_query "github.com/pganalyze/pg_query_go/v6"

	"github.com/schemadrift/schemadrift/render"
)

// ValidatePostgres parses every statement in script with pg_query_go's real
// Postgres parser before anything is sent to the connection. It exists
// because the renderer builds SQL by string concatenation: a malformed
// identifier or an unbalanced rebuild-protocol edit would otherwise only
// surface as an opaque syntax error from the server, mid-migration, with
// the prior statements in the step already applied.
func ValidatePostgres(script render.Script) error {
	for i, step := range script.Steps {
		for _, stmt := range step.Statements {
			if _, err := pg_query.Parse(stmt); err != nil {
				return fmt.Errorf("apply: step %d statement failed to parse: %w\n  %s", i, err, stmt)
			}
		}
	}
	return nil
}
