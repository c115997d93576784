package store

import (
	"fmt"
	"strings"
	"time"
)

// sqliteDatetime is the layout of SQLite's datetime('now','localtime').
const sqliteDatetime = "2006-01-02 15:04:05"

// parseTime converts a scanned created_at value. Postgres returns a
// time.Time; SQLite returns local time as text.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if parsed, err := time.ParseInLocation(sqliteDatetime, t, time.Local); err == nil {
			return parsed
		}
	}
	return time.Time{}
}

// Rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func Rebind(query string) string {
	n := 0
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
