package database

import (
	"strings"

	"github.com/satishbabariya/relq/internal/core/query/domain"
)

// namedPrefix is prepended to parameter names that database/sql would
// reject because they do not begin with a letter.
const namedPrefix = "p"

// ParamName returns the driver-facing name of a bound parameter.
func ParamName(name string) string {
	if name == "" || isLetter(name[0]) {
		return name
	}
	return namedPrefix + name
}

// RewriteNamed renames the @-placeholders of query the way ParamName
// renames their arguments. Quoted strings, quoted identifiers, comments
// and @@ variables are left alone.
func RewriteNamed(query string) string {
	if !strings.Contains(query, "@") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch ch {
		case '\'', '"', '[', '`':
			end := closing(query, i)
			b.WriteString(query[i:end])
			i = end - 1
			continue
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				end := strings.IndexByte(query[i:], '\n')
				if end < 0 {
					end = len(query) - i
				}
				b.WriteString(query[i : i+end])
				i += end - 1
				continue
			}
		case '@':
			if i+1 < len(query) && query[i+1] == '@' {
				b.WriteString("@@")
				i++
				continue
			}
			if i+1 < len(query) && !isLetter(query[i+1]) && isNameByte(query[i+1]) {
				b.WriteByte('@')
				b.WriteString(namedPrefix)
				continue
			}
		}
		b.WriteByte(ch)
	}
	return b.String()
}

// closing returns the index just past the quoted run starting at i.
// Doubled closing quotes are escapes.
func closing(query string, i int) int {
	end := query[i]
	if end == '[' {
		end = ']'
	}
	for j := i + 1; j < len(query); j++ {
		if query[j] != end {
			continue
		}
		if j+1 < len(query) && query[j+1] == end {
			j++
			continue
		}
		return j + 1
	}
	return len(query)
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func isNameByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || isLetter(c)
}

// command prepares query and params for the driver.
func (c *Conn) command(query string, params []domain.BoundParameter) (string, []any) {
	if c.driver.Params == NamedParams {
		query = RewriteNamed(query)
	}
	return query, c.Args(params)
}
