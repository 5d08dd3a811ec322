// Package migrations embeds the SQL schema so it is available at runtime
// regardless of working directory.
package migrations

import "embed"

// FS holds all .sql migration files in this directory, applied in
// lexicographic order by the storage migration runner.
//
//go:embed *.sql
var FS embed.FS
