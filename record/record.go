package record

import (
	"bytes"
	"fmt"
)

// MissingFieldError reports a field index beyond the width of a record.
type MissingFieldError struct {
	Index int // 1-based index asked for
	Width int // number of fields the record has
}

func (self *MissingFieldError) Error() string {
	return fmt.Sprintf("not enough fields in line, field %d requested but the line has %d", self.Index, self.Width)
}

// Splitter locates field boundaries of a record. It only scans as far as the
// largest field asked for, so wide records are not fully tokenized when a
// caller needs a handful of leading columns.
//
// The slices handed out borrow the line passed to Split and are valid until
// the line is released by the caller.
type Splitter struct {
	Delim byte

	line     []byte
	ends     []int // exclusive end offset of each located field
	complete bool  // whether the last field of the line has been located
}

func NewSplitter(delim byte) *Splitter {
	return &Splitter{Delim: delim}
}

// Split locates at most max fields of line, max <= 0 locates all of them.
func (self *Splitter) Split(
	line []byte,
	max int,
) {
	self.line = line
	self.ends = self.ends[:0]
	self.complete = false

	pos := 0
	for max <= 0 || len(self.ends) < max {
		i := bytes.IndexByte(line[pos:], self.Delim)
		if i < 0 {
			self.ends = append(self.ends, len(line))
			self.complete = true
			return
		}
		self.ends = append(self.ends, pos+i)
		pos += i + 1
	}
}

// Located returns the number of fields found by the last Split.
func (self *Splitter) Located() int { return len(self.ends) }

// Width returns the number of fields of the line, scanning the rest of it
// when the last Split stopped early.
func (self *Splitter) Width() int {
	if self.complete {
		return len(self.ends)
	}
	pos := self.ends[len(self.ends)-1] + 1
	return len(self.ends) + bytes.Count(self.line[pos:], []byte{self.Delim}) + 1
}

// Field returns the 1-based field idx and whether the line has it.
func (self *Splitter) Field(idx int) ([]byte, bool) {
	if idx < 1 || idx > len(self.ends) {
		return nil, false
	}
	start := 0
	if idx > 1 {
		start = self.ends[idx-2] + 1
	}
	return self.line[start:self.ends[idx-1]], true
}

// Line returns the line of the last Split.
func (self *Splitter) Line() []byte { return self.line }

// AppendJoined appends the fields of list to dst separated by delim. A
// missing field fails in strict mode and contributes an empty span otherwise.
func (self *Splitter) AppendJoined(
	dst []byte,
	list []int,
	delim byte,
	strict bool,
) ([]byte, error) {
	for i, idx := range list {
		if i > 0 {
			dst = append(dst, delim)
		}
		f, ok := self.Field(idx)
		if !ok {
			if strict {
				return dst, &MissingFieldError{Index: idx, Width: self.Width()}
			}
			continue
		}
		dst = append(dst, f...)
	}
	return dst, nil
}

// ToLowerASCII lower cases ASCII letters of b in place.
func ToLowerASCII(b []byte) {
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
}

// EqualFoldASCII compares a and b ignoring ASCII case only.
func EqualFoldASCII(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		x, y := a[i], b[i]
		if x >= 'A' && x <= 'Z' {
			x += 'a' - 'A'
		}
		if y >= 'A' && y <= 'Z' {
			y += 'a' - 'A'
		}
		if x != y {
			return false
		}
	}
	return true
}
