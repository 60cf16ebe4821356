package db

import (
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the driver's bind syntax. SQL files
// are written with '?', which both sqlite drivers accept; lib/pq needs $n.
// Quoted literals are left untouched.
func Rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
