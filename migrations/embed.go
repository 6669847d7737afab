// Package migrations holds the Postgres schema of the dashboard database.
package migrations

import "embed"

// FS contains the numbered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
