// Package jsonmap maps owned types stored in JSON columns to extraction
// expressions and reads the stored documents back tolerantly.
package jsonmap

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/satishbabariya/relq/internal/core/query/algebra"
)

// Key appends a property step to path without aliasing the input.
func Key(path []algebra.PathSegment, name string) []algebra.PathSegment {
	out := make([]algebra.PathSegment, len(path), len(path)+1)
	copy(out, path)
	return append(out, algebra.PathSegment{Property: name})
}

// Index appends an array element step to path without aliasing the input.
func Index(path []algebra.PathSegment, i int) []algebra.PathSegment {
	out := make([]algebra.PathSegment, len(path), len(path)+1)
	copy(out, path)
	return append(out, algebra.PathSegment{Index: i})
}

// FormatPath renders path as a JSON path, e.g. $.Branch.Leaves[1]. Keys
// that are not plain identifiers are quoted.
func FormatPath(path []algebra.PathSegment) string {
	var sb strings.Builder
	sb.WriteByte('$')
	for _, seg := range path {
		if seg.Property == "" {
			sb.WriteByte('[')
			sb.WriteString(strconv.Itoa(seg.Index))
			sb.WriteByte(']')
			continue
		}
		sb.WriteByte('.')
		if isIdentifier(seg.Property) {
			sb.WriteString(seg.Property)
			continue
		}
		sb.WriteByte('"')
		sb.WriteString(strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(seg.Property))
		sb.WriteByte('"')
	}
	return sb.String()
}

func isIdentifier(s string) bool {
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return s != ""
}
