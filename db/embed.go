// Package db embeds the Postgres schema.
package db

import _ "embed"

// Schema contains the DDL statements for the catalog, API key and order tables.
//
//go:embed migrations/001_schema.sql
var Schema string
