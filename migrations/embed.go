package migrations

import "embed"

// EmbeddedFS holds the goose migrations so binaries can migrate without
// shipping the SQL files alongside them.
//
//go:embed *.sql
var EmbeddedFS embed.FS
