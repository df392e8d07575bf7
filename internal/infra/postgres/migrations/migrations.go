// Package migrations holds the bun migrations for the Postgres backend.
// Each file registers itself; bun takes the version from the file name.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
