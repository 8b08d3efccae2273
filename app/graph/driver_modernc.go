//go:build !cgo_sqlite
// +build !cgo_sqlite

package graph

import (
	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"
