// Package migrations embeds SQL migration files into the binary.
//
// This allows myhomed to run migrations without the SQL files present on
// the filesystem.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-myhome/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

// Source returns the embedded migrations for database.DB.Migrate.
func Source() database.Source {
	return database.Source{FS: migrationsFS, Dir: "."}
}
