// Package migrations embeds the resultstore's goose migration files so the
// binary ships them without a separate migrations directory on disk.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
