package store

import (
	"strconv"
	"strings"
	"time"
)

// dialect is what differs between the supported databases. Queries are
// written with ? placeholders and SQLite's datetime('now','localtime').
type dialect struct {
	name         string
	sqlDriver    string
	schema       string
	now          string
	numbered     bool
	singleWriter bool
}

const sqliteNow = "datetime('now','localtime')"

var (
	sqliteDialect = dialect{
		name:         "sqlite",
		sqlDriver:    "sqlite",
		schema:       schemaSQLite,
		now:          sqliteNow,
		singleWriter: true,
	}
	postgresDialect = dialect{
		name:      "postgres",
		sqlDriver: "pgx",
		schema:    schemaPostgres,
		now:       "NOW()",
		numbered:  true,
	}
)

func (d dialect) rewrite(query string) string {
	if d.now != sqliteNow {
		query = strings.ReplaceAll(query, sqliteNow, d.now)
	}
	if d.numbered {
		query = Rebind(query)
	}
	return query
}

// Rebind numbers ? placeholders as $1, $2, ...
func Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04:05-07:00",
}

// parseTime accepts both SQLite's text timestamps and Postgres time values.
func parseTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed
			}
		}
	case []byte:
		return parseTime(string(t))
	}
	return time.Time{}
}
