// Package migrations embeds SQL migration files for the request journal, one
// directory per supported database driver.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
