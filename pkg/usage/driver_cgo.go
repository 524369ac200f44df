//go:build cgo

package usage

import (
	_ "github.com/mattn/go-sqlite3"
)

// sqliteDriver selects the cgo driver when available.
const sqliteDriver = "sqlite3"
