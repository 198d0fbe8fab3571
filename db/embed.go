// Package db holds the embedded database schema.
package db

import _ "embed"

// Schema contains the DDL for all checkout tables. It is idempotent and
// applied on startup by repository.RunMigrations.
//
//go:embed migrations/001_schema.sql
var Schema string
