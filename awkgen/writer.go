package awkgen

import (
	"fmt"
	"strings"
)

// A small indenting writer used to dump AWK source. Blocks are opened with
// Block and closed with End, every Line is emitted at the current indent.
type awkWriter struct {
	indent int
	buf    strings.Builder
	funcs  map[string]bool // helper functions already emitted
	prolog strings.Builder // helper function bodies, dumped before BEGIN
}

func newAwkWriter() *awkWriter {
	return &awkWriter{
		funcs: make(map[string]bool),
	}
}

func (self *awkWriter) Line(
	f string,
	args ...interface{},
) {
	self.buf.WriteString(strings.Repeat("  ", self.indent))
	self.buf.WriteString(fmt.Sprintf(f, args...))
	self.buf.WriteString("\n")
}

func (self *awkWriter) Block(
	f string,
	args ...interface{},
) {
	if f == "" {
		self.Line("{")
	} else {
		self.Line(f+" {", args...)
	}
	self.indent++
}

func (self *awkWriter) End() {
	self.indent--
	self.Line("}")
}

// Func records a helper function once, returning its name so it can be
// used inline inside of an expression.
func (self *awkWriter) Func(
	name string,
	body string,
) string {
	if !self.funcs[name] {
		self.funcs[name] = true
		self.prolog.WriteString(body)
		self.prolog.WriteString("\n")
	}
	return name
}

func (self *awkWriter) String() string {
	return self.prolog.String() + self.buf.String()
}

// awkString quotes s as an AWK string literal.
func awkString(s string) string {
	buf := strings.Builder{}
	buf.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf.WriteString(`\"`)
			break
		case '\\':
			buf.WriteString(`\\`)
			break
		case '\n':
			buf.WriteString(`\n`)
			break
		case '\t':
			buf.WriteString(`\t`)
			break
		case '\r':
			buf.WriteString(`\r`)
			break
		default:
			buf.WriteByte(c)
			break
		}
	}
	buf.WriteByte('"')
	return buf.String()
}
