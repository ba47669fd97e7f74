// Package db embeds the storefront mirror schema.
package db

import _ "embed"

// Schema contains the DDL for the products mirror table.
//
//go:embed migrations/001_schema.sql
var Schema string
