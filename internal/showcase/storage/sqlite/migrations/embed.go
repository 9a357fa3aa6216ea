package migrations

import "embed"

// FS contains embedded SQLite migrations for showcase storage.
//
//go:embed *.sql
var FS embed.FS
