package filter

import (
	"bytes"
	"math"
	"regexp"
	"strconv"

	"github.com/dianpeng/tsvkit/record"
	"github.com/rivo/uniseg"
)

type Kind int

const (
	KindEmpty Kind = iota
	KindNotEmpty
	KindBlank
	KindNotBlank
	KindNumCmp
	KindCharLen
	KindByteLen
	KindNumProp
	KindStrEq
	KindStrNe
	KindStrCmp
	KindStrIn
	KindRegex
	KindFFNum
	KindFFStrEq
	KindFFStrNe
	KindFFAbsDiff
	KindFFRelDiff
)

type CmpOp int

const (
	OpLt CmpOp = iota
	OpLe
	OpEq
	OpNe
	OpGt
	OpGe
)

func (self CmpOp) String() string {
	switch self {
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return "?"
	}
}

// holds reports whether c, the result of a three way comparison, satisfies
// the operator.
func (self CmpOp) holds(c int) bool {
	switch self {
	case OpLt:
		return c < 0
	case OpLe:
		return c <= 0
	case OpEq:
		return c == 0
	case OpNe:
		return c != 0
	case OpGt:
		return c > 0
	default:
		return c >= 0
	}
}

func (self CmpOp) float(a, b float64) bool {
	switch self {
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	default:
		return a >= b
	}
}

type NumProp int

const (
	PropNumeric NumProp = iota
	PropFinite
	PropNaN
	PropInfinity
)

// Test is one compiled row predicate bound to a single field, or to a pair
// of fields for the field-to-field kinds.
type Test struct {
	Kind       Kind
	Field      int // 1-based
	Right      int // 1-based, field-to-field kinds only
	Op         CmpOp
	Prop       NumProp
	Num        float64
	Len        int
	Str        []byte
	IgnoreCase bool
	Negate     bool
	Regex      *regexp.Regexp
}

func (self *Test) MaxField() int {
	if self.Right > self.Field {
		return self.Right
	}
	return self.Field
}

// ParseNum parses a field as a float64. Out of range values saturate to
// infinity instead of failing.
func ParseNum(b []byte) (float64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}

func lowerASCII(b []byte) []byte {
	out := append([]byte(nil), b...)
	record.ToLowerASCII(out)
	return out
}

// RelDiff is |a-b| / min(|a|,|b|), 0 when a == b and +Inf when exactly one
// side is zero.
func RelDiff(a, b float64) float64 {
	if a == b {
		return 0
	}
	m := math.Min(math.Abs(a), math.Abs(b))
	if m == 0 {
		return math.Inf(1)
	}
	return math.Abs(a-b) / m
}

func (self *Test) Eval(sp *record.Splitter) bool {
	f, ok := sp.Field(self.Field)

	switch self.Kind {
	case KindEmpty:
		return !ok || len(f) == 0

	case KindNotEmpty:
		return ok && len(f) != 0

	case KindBlank:
		return !ok || isBlank(f)

	case KindNotBlank:
		return ok && !isBlank(f)

	case KindNumCmp:
		if !ok {
			return false
		}
		v, ok := ParseNum(f)
		return ok && self.Op.float(v, self.Num)

	case KindCharLen:
		n := 0
		if ok {
			n = uniseg.GraphemeClusterCount(string(f))
		}
		return self.Op.holds(cmpInt(n, self.Len))

	case KindByteLen:
		return self.Op.holds(cmpInt(len(f), self.Len))

	case KindNumProp:
		if !ok {
			return false
		}
		v, ok := ParseNum(f)
		if !ok {
			return false
		}
		switch self.Prop {
		case PropFinite:
			return !math.IsNaN(v) && !math.IsInf(v, 0)
		case PropNaN:
			return math.IsNaN(v)
		case PropInfinity:
			return math.IsInf(v, 0)
		default:
			return true
		}

	case KindStrEq:
		return ok && self.strEqual(f)

	case KindStrNe:
		return !ok || !self.strEqual(f)

	case KindStrCmp:
		return ok && self.Op.holds(bytes.Compare(f, self.Str))

	case KindStrIn:
		hay := f
		if self.IgnoreCase {
			hay = lowerASCII(f)
		}
		return bytes.Contains(hay, self.Str) != self.Negate

	case KindRegex:
		if !ok {
			return self.Negate
		}
		return self.Regex.Match(f) != self.Negate

	case KindFFNum:
		r, rok := sp.Field(self.Right)
		if !ok || !rok {
			return false
		}
		a, aok := ParseNum(f)
		b, bok := ParseNum(r)
		return aok && bok && self.Op.float(a, b)

	case KindFFStrEq, KindFFStrNe:
		r, rok := sp.Field(self.Right)
		if !ok || !rok {
			return false
		}
		eq := false
		if self.IgnoreCase {
			eq = record.EqualFoldASCII(f, r)
		} else {
			eq = bytes.Equal(f, r)
		}
		return eq == (self.Kind == KindFFStrEq)

	case KindFFAbsDiff, KindFFRelDiff:
		r, rok := sp.Field(self.Right)
		if !ok || !rok {
			return false
		}
		a, aok := ParseNum(f)
		b, bok := ParseNum(r)
		if !aok || !bok {
			return false
		}
		d := 0.0
		if self.Kind == KindFFAbsDiff {
			d = math.Abs(a - b)
		} else {
			d = RelDiff(a, b)
		}
		return self.Op.float(d, self.Num)

	default:
		return false
	}
}

func (self *Test) strEqual(f []byte) bool {
	if self.IgnoreCase {
		return record.EqualFoldASCII(f, self.Str)
	}
	return bytes.Equal(f, self.Str)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
