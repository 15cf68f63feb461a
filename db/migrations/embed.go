// Package migrations embeds the goose SQL migrations.
package migrations

import "embed"

// FS holds every migration file, rooted at ".".
//
//go:embed *.sql
var FS embed.FS
