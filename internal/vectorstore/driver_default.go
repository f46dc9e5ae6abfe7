//go:build !(sqlite_vec && cgo)

package vectorstore

import (
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver used when no cgo ANN backend is
// compiled in. modernc.org/sqlite is pure Go, so this is always available.
const driverName = "sqlite"
