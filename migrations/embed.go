// Package migrations embeds the versioned schema scripts applied by cmd/migrate.
package migrations

import "embed"

// Files holds every NNNN_name.sql script.
//
//go:embed *.sql
var Files embed.FS
