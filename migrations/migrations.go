// Package migrations embeds the versioned schema files for the local
// (sqlite) and remote (postgres) databases.
package migrations

import "embed"

//go:embed sqlite/*.sql postgres/*.sql
var FS embed.FS
