package sqlstore

// go-sql-driver/mysql is registered through dialect.go.
import (
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)
