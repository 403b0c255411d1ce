package sqlite

import (
	"strconv"
	"strings"
	"time"
)

// BusyTimeout is how long a connection waits for the database write lock
// before failing with SQLITE_BUSY.
const BusyTimeout = 5 * time.Second

// DSN adds a busy_timeout pragma to dsn unless one is already set. Every
// pooled connection applies it, so concurrent commits queue on the write
// lock instead of failing.
func DSN(dsn string) string {
	if strings.Contains(dsn, "busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(" + strconv.FormatInt(BusyTimeout.Milliseconds(), 10) + ")"
}
