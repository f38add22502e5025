package record

// KeyExtractor builds the composite key of a record from a list of fields.
//
//  1. no fields, or the whole line sentinel {0}, the line itself is the key
//  2. one field and case sensitive, the key borrows the field
//  3. otherwise the fields are copied into an owned buffer joined by Delim
//     and ASCII lower cased when IgnoreCase is on
//
// Borrowed keys are only valid while the line is; the buffer backing owned
// keys is reused by the next call, callers that retain keys must copy them.
type KeyExtractor struct {
	Fields     []int
	Delim      byte
	IgnoreCase bool
	Strict     bool

	sp  Splitter
	buf []byte
	max int
}

func NewKeyExtractor(
	fields []int,
	delim byte,
	ignoreCase bool,
	strict bool,
) *KeyExtractor {
	max := 0
	for _, v := range fields {
		if v > max {
			max = v
		}
	}
	return &KeyExtractor{
		Fields:     fields,
		Delim:      delim,
		IgnoreCase: ignoreCase,
		Strict:     strict,
		sp:         Splitter{Delim: delim},
		max:        max,
	}
}

func (self *KeyExtractor) WholeLine() bool {
	return len(self.Fields) == 0 || (len(self.Fields) == 1 && self.Fields[0] == 0)
}

func (self *KeyExtractor) Key(line []byte) ([]byte, error) {
	if self.WholeLine() {
		if !self.IgnoreCase {
			return line, nil
		}
		self.buf = append(self.buf[:0], line...)
		ToLowerASCII(self.buf)
		return self.buf, nil
	}

	self.sp.Split(line, self.max)

	if len(self.Fields) == 1 && !self.IgnoreCase {
		f, ok := self.sp.Field(self.Fields[0])
		if !ok {
			if self.Strict {
				return nil, &MissingFieldError{Index: self.Fields[0], Width: self.sp.Width()}
			}
			return line[:0], nil
		}
		return f, nil
	}

	var err error
	self.buf, err = self.sp.AppendJoined(self.buf[:0], self.Fields, self.Delim, self.Strict)
	if err != nil {
		return nil, err
	}
	if self.IgnoreCase {
		ToLowerASCII(self.buf)
	}
	return self.buf, nil
}
