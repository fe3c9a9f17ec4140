// Package migrations embeds the schema migrations for the local SQLite store
// and the PostgreSQL remote document store.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
