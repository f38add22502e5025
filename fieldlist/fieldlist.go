package fieldlist

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrEmptySpec    = errors.New("empty field list")
	ErrEmptyElement = errors.New("empty field list element")
	ErrZeroIndex    = errors.New("zero is not a valid field index")
	ErrBadIndex     = errors.New("invalid field index")
	ErrNoHeader     = errors.New("field names require header mode")
	ErrUnknownName  = errors.New("field name not found in header")
	ErrNoMatch      = errors.New("field wildcard matched no header names")
	ErrLengthDiffer = errors.New("field lists have different lengths")
)

// Resolver turns a field list spec into 1-based field indices.
//
// The spec grammar is a comma separated list of elements. An element is an
// index (3), an index range (3-5, reversed ranges are swapped), a name, a
// name range (start-end), or a name carrying '*' wildcards. Backslash escapes
// the next character so names may contain ',', '-', ':', ' ', '*' or digits.
type Resolver struct {
	Header         *Header // nil when header mode is off
	Ordered        bool    // keep user order and duplicates
	AllowWholeLine bool    // a lone "0" resolves to the whole line sentinel
}

// Resolve returns the normalized (sorted, deduplicated) indices of spec.
func Resolve(
	spec string,
	header *Header,
) ([]int, error) {
	r := Resolver{Header: header}
	return r.Resolve(spec)
}

// ResolveOrdered returns the indices of spec in user order.
func ResolveOrdered(
	spec string,
	header *Header,
) ([]int, error) {
	r := Resolver{Header: header, Ordered: true}
	return r.Resolve(spec)
}

func (self *Resolver) Resolve(spec string) ([]int, error) {
	if spec == "" {
		return nil, ErrEmptySpec
	}
	toks := tokenize(spec)

	if self.AllowWholeLine && len(toks) == 1 && toks[0] == "0" {
		return []int{0}, nil
	}

	out := []int{}
	for _, tok := range toks {
		idx, err := self.resolveToken(tok)
		if err != nil {
			return nil, errors.Wrapf(err, "field list %q", spec)
		}
		out = append(out, idx...)
	}

	if !self.Ordered {
		out = normalize(out)
	}
	return out, nil
}

func normalize(in []int) []int {
	sort.Ints(in)
	out := in[:0]
	for i, v := range in {
		if i > 0 && in[i-1] == v {
			continue
		}
		out = append(out, v)
	}
	return out
}

// tokenize splits spec on unescaped commas. Escapes are kept in the tokens.
func tokenize(spec string) []string {
	out := []string{}
	start := 0
	for i := 0; i < len(spec); i++ {
		switch spec[i] {
		case '\\':
			i++
			break
		case ',':
			out = append(out, spec[start:i])
			start = i + 1
			break
		default:
			break
		}
	}
	return append(out, spec[start:])
}

// indexUnescaped returns the byte offset of the first unescaped c, or -1.
func indexUnescaped(
	s string,
	c byte,
) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == c {
			return i
		}
	}
	return -1
}

func isNumericToken(tok string) bool {
	if tok == "" || tok[0] == '\\' {
		return false
	}
	for i := 0; i < len(tok); i++ {
		c := tok[i]
		if !(c == '-' || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

func (self *Resolver) resolveToken(tok string) ([]int, error) {
	if tok == "" {
		return nil, ErrEmptyElement
	}
	if isNumericToken(tok) {
		return numericRange(tok)
	}
	return self.resolveName(tok)
}

func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, errors.Wrapf(ErrBadIndex, "%q", s)
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, errors.Wrapf(ErrBadIndex, "%q", s)
	}
	if v == 0 {
		return 0, ErrZeroIndex
	}
	return v, nil
}

func numericRange(tok string) ([]int, error) {
	parts := strings.Split(tok, "-")
	switch len(parts) {
	case 1:
		v, err := parseIndex(parts[0])
		if err != nil {
			return nil, err
		}
		return []int{v}, nil

	case 2:
		lo, err := parseIndex(parts[0])
		if err != nil {
			return nil, err
		}
		hi, err := parseIndex(parts[1])
		if err != nil {
			return nil, err
		}
		return span(lo, hi), nil

	default:
		return nil, errors.Wrapf(ErrBadIndex, "%q", tok)
	}
}

func span(lo, hi int) []int {
	if lo > hi {
		lo, hi = hi, lo
	}
	out := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		out = append(out, i)
	}
	return out
}

func (self *Resolver) lookup(escaped string) (int, error) {
	name, _ := unescapeName(escaped)
	if i, ok := self.Header.Lookup(name); ok {
		return i + 1, nil
	}
	return 0, errors.Wrapf(ErrUnknownName, "%q", name)
}

func (self *Resolver) resolveName(tok string) ([]int, error) {
	name, glob := unescapeName(tok)
	if self.Header == nil {
		return nil, errors.Wrapf(ErrNoHeader, "%q", name)
	}

	if glob {
		out, err := matchGlob(tok, self.Header)
		if err != nil {
			return nil, err
		}
		if len(out) == 0 {
			return nil, errors.Wrapf(ErrNoMatch, "%q", name)
		}
		return out, nil
	}

	// name range, only when both ends are known names
	if dash := indexUnescaped(tok, '-'); dash >= 0 {
		lo, err0 := self.lookup(tok[:dash])
		hi, err1 := self.lookup(tok[dash+1:])
		if err0 == nil && err1 == nil {
			return span(lo, hi), nil
		}
	}

	i, err := self.lookup(tok)
	if err != nil {
		return nil, err
	}
	return []int{i}, nil
}

// SplitArg splits a "fields:value" argument at the first unescaped ':'.
// The field part keeps its escapes so it can be handed to Resolve.
func SplitArg(arg string) (string, string, error) {
	i := indexUnescaped(arg, ':')
	if i < 0 {
		return "", "", errors.Errorf("invalid argument %q, expected <field-list>:<value>", arg)
	}
	if i == 0 {
		return "", "", errors.Wrapf(ErrEmptySpec, "argument %q", arg)
	}
	return arg[:i], arg[i+1:], nil
}

// ResolvePair resolves two field lists that must line up element by element,
// as used by the field-to-field tests and join keys.
func ResolvePair(
	left string,
	right string,
	header *Header,
) ([]int, []int, error) {
	l, err := ResolveOrdered(left, header)
	if err != nil {
		return nil, nil, err
	}
	r, err := ResolveOrdered(right, header)
	if err != nil {
		return nil, nil, err
	}
	if len(l) != len(r) {
		return nil, nil, errors.Wrapf(ErrLengthDiffer, "%q has %d, %q has %d", left, len(l), right, len(r))
	}
	return l, r, nil
}

// Max returns the largest index of list, 0 for an empty list.
func Max(list []int) int {
	m := 0
	for _, v := range list {
		if v > m {
			m = v
		}
	}
	return m
}
