// Package migrations holds the postgres schema migrations
package migrations

import "embed"

// FS contains every *.sql migration file
//
//go:embed *.sql
var FS embed.FS
