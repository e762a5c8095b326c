// Package migrations embeds the SQL migration files for the access store.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
