package sqlgen

import "strings"

const indentUnit = "    "

// writer builds SQL text line by line with indentation for nested selects.
type writer struct {
	sb     strings.Builder
	indent int
	fresh  bool
}

func (w *writer) write(s string) {
	for {
		i := strings.IndexByte(s, '\n')
		if i < 0 {
			w.fragment(s)
			return
		}
		w.fragment(s[:i])
		w.newline()
		s = s[i+1:]
	}
}

func (w *writer) fragment(s string) {
	if s == "" {
		return
	}
	if w.fresh {
		w.sb.WriteString(strings.Repeat(indentUnit, w.indent))
		w.fresh = false
	}
	w.sb.WriteString(s)
}

func (w *writer) newline() {
	w.sb.WriteByte('\n')
	w.fresh = true
}

func (w *writer) String() string {
	return w.sb.String()
}
