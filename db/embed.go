// Package db embeds the database schema applied at startup.
package db

import _ "embed"

// Schema contains idempotent DDL for every table the store uses.
//
//go:embed migrations/001_schema.sql
var Schema string
