// Package bmz exposes assets embedded at the module root, currently the
// goose SQL migrations applied by the migrate subcommand.
package bmz

import "embed"

// Migrations contains the goose migration files for the scan engine schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS
