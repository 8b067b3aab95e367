// Package migrations embeds the SQL migration files at compile time so the
// daemon deploys as a single binary.
package migrations

import "embed"

//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
