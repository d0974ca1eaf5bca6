// Package migrations embeds the Postgres schema for the record store backend.
package migrations

import "embed"

// FS holds the ordered up/down migration files.
//
//go:embed *.sql
var FS embed.FS
