package fieldlist

import (
	"bytes"
)

// Header holds the names of the first line of an input when header mode is
// on. Lookup returns the first occurrence of a name, later duplicates are
// still addressable by index.
type Header struct {
	Names []string
	index map[string]int
}

func NewHeader(names []string) *Header {
	h := &Header{
		Names: names,
		index: make(map[string]int, len(names)),
	}
	for i, n := range names {
		if _, ok := h.index[n]; !ok {
			h.index[n] = i
		}
	}
	return h
}

// ParseHeader splits a raw header line on delim.
func ParseHeader(
	line []byte,
	delim byte,
) *Header {
	parts := bytes.Split(line, []byte{delim})
	names := make([]string, len(parts))
	for i, p := range parts {
		names[i] = string(p)
	}
	return NewHeader(names)
}

func (self *Header) Len() int { return len(self.Names) }

// Lookup returns the 0-based position of name.
func (self *Header) Lookup(name string) (int, bool) {
	i, ok := self.index[name]
	return i, ok
}

// Name returns the name of the 1-based field idx, or "" when idx is out of
// range.
func (self *Header) Name(idx int) string {
	if idx < 1 || idx > len(self.Names) {
		return ""
	}
	return self.Names[idx-1]
}
