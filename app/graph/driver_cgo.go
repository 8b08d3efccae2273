//go:build cgo_sqlite
// +build cgo_sqlite

package graph

import (
	_ "github.com/mattn/go-sqlite3"
)

const sqliteDriverName = "sqlite3"
