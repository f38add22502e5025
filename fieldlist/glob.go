package fieldlist

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// ----------------------------------------------------------------------------
//
// Field name wildcard. A field name element may carry a glob so a single
// element can select several header columns, ie "*_time" or "run*".
//
// The wildcard is intentionally small
//
// 1. *, represents zero, one or more sequences of any characters
// 2. \x, represents x literally, so \* is a plain star
// 3. every other character, including ? and [, is literal
//
// The glob is translated into an anchored regex and matched against each
// header name in declaration order.
//
// ----------------------------------------------------------------------------

// unescapeName strips the backslash escapes of a field name element and
// reports whether any unescaped '*' was found.
func unescapeName(
	input string,
) (string, bool) {
	buf := strings.Builder{}
	glob := false
	l := len(input)

	for i := 0; i < l; i++ {
		c := input[i]
		switch c {
		case '\\':
			if i+1 < l {
				i++
				buf.WriteByte(input[i])
			} else {
				buf.WriteByte(c)
			}
			break

		case '*':
			glob = true
			buf.WriteByte(c)
			break

		default:
			buf.WriteByte(c)
			break
		}
	}
	return buf.String(), glob
}

// GlobToRegex translates an escaped field name element into an anchored
// regex source. Escaped characters are always matched literally.
func GlobToRegex(
	input string,
) string {
	buf := strings.Builder{}
	buf.WriteString("^")

	l := len(input)

	encodeC := func(c rune) {
		buf.WriteString(regexp.QuoteMeta(string(c)))
	}

	for i := 0; i < l; {
		c, xx := utf8.DecodeRuneInString(input[i:])
		if c == utf8.RuneError && xx <= 1 {
			buf.WriteString(regexp.QuoteMeta(input[i : i+1]))
			i++
			continue
		}

		switch c {
		case '\\':
			if i+xx < l {
				inner, sz := utf8.DecodeRuneInString(input[i+xx:])
				encodeC(inner)
				i += xx + sz
				continue
			}
			encodeC(c)
			break

		case '*':
			buf.WriteString("(?s:.*)")
			break

		default:
			encodeC(c)
			break
		}

		i += xx
	}

	buf.WriteString("$")
	return buf.String()
}

// matchGlob returns the 1-based indices of every header name matching the
// escaped glob element, in header order.
func matchGlob(
	input string,
	header *Header,
) ([]int, error) {
	re, err := regexp.Compile(GlobToRegex(input))
	if err != nil {
		return nil, err
	}
	out := []int{}
	for i, n := range header.Names {
		if re.MatchString(n) {
			out = append(out, i+1)
		}
	}
	return out, nil
}
