// Command schemadrift is the CLI front end for the migration engine core:
// introspect a database, diff it against a target schema, check the diff
// for destructive changes, and render or apply the resulting SQL.
package main

import "github.com/schemadrift/schemadrift/cmd"

func main() {
	cmd.Execute()
}
