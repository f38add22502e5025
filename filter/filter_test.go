package filter

import (
	"bytes"
	"math"
	"sort"
	"strings"
	"testing"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, input string, config Config) (string, error) {
	buf := &bytes.Buffer{}
	w := tsvio.NewWriter(buf, false)
	config.Inputs = []string{"in"}
	config.Open = tsvio.StaticOpener(map[string]string{"in": input})
	err := Run(&config, w)
	require.NoError(t, w.Flush())
	return buf.String(), err
}

func specs(pairs ...string) []Spec {
	out := []Spec{}
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Spec{Flag: pairs[i], Arg: pairs[i+1]})
	}
	return out
}

func evalOne(t *testing.T, flag, arg, line string) bool {
	tests, err := Compile(specs(flag, arg), nil)
	require.NoError(t, err)
	require.Len(t, tests, 1)
	sp := record.NewSplitter('\t')
	sp.Split([]byte(line), 0)
	return tests[0].Eval(sp)
}

func TestNumericAndHeader(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "F1\tF2\n10\t1\n20\t2\n30\t3\n", Config{
		Header: true,
		Specs:  specs("ge", "F1:20", "le", "F2:2"),
	})
	assert.Nil(err)
	assert.Equal("F1\tF2\n20\t2\n", out)
}

func TestInvertOr(t *testing.T) {
	assert := assert.New(t)
	out, err := run(t, "a\n1\n2\n3\n", Config{
		Invert: true,
		Or:     true,
		Specs:  specs("eq", "1:1", "eq", "1:3"),
	})
	assert.Nil(err)
	assert.Equal("a\n2\n", out)
}

func TestNeutralAndDuality(t *testing.T) {
	assert := assert.New(t)
	input := "1\tx\n2\ty\n\n3\tz\nabc\t\n"
	records := "1\tx\n2\ty\n3\tz\nabc\t\n"
	{
		out, err := run(t, input, Config{})
		assert.Nil(err)
		assert.Equal(records, out)
	}
	{
		s := specs("gt", "1:1", "str-eq", "2:z")
		a, err := run(t, input, Config{Specs: s, Or: true})
		assert.Nil(err)
		b, err := run(t, input, Config{Specs: s, Or: true, Invert: true})
		assert.Nil(err)

		all := strings.Split(strings.TrimSuffix(a+b, "\n"), "\n")
		want := strings.Split(strings.TrimSuffix(records, "\n"), "\n")
		sort.Strings(all)
		sort.Strings(want)
		assert.Equal(want, all)
	}
}

func TestEmptyRecords(t *testing.T) {
	assert := assert.New(t)
	input := "1\n\n3\n\n"
	{
		out, err := run(t, input, Config{Specs: specs("eq", "1:1")})
		assert.Nil(err)
		assert.Equal("1\n", out)
	}
	{
		out, err := run(t, input, Config{Specs: specs("eq", "1:1"), Invert: true})
		assert.Nil(err)
		assert.Equal("3\n", out)
	}
	{
		out, err := run(t, input, Config{Count: true, Specs: specs("empty", "1"), Invert: true})
		assert.Nil(err)
		assert.Equal("2\n", out)
	}
	{
		out, err := run(t, input, Config{Label: "ok", Specs: specs("eq", "1:3")})
		assert.Nil(err)
		assert.Equal("1\t0\n3\t1\n", out)
	}
}

func TestCountAndLabel(t *testing.T) {
	assert := assert.New(t)
	input := "h\n1\n5\n9\n"
	{
		out, err := run(t, input, Config{Header: true, Count: true, Specs: specs("gt", "h:3")})
		assert.Nil(err)
		assert.Equal("2\n", out)
	}
	{
		out, err := run(t, input, Config{Header: true, Label: "big", Specs: specs("gt", "h:3")})
		assert.Nil(err)
		assert.Equal("h\tbig\n1\t0\n5\t1\n9\t1\n", out)
	}
	{
		c := Config{Label: "big", Specs: specs("gt", "1:3")}
		assert.Nil(c.SetLabelValues("Y:N"))
		out, err := run(t, "1\n5\n", c)
		assert.Nil(err)
		assert.Equal("1\tN\n5\tY\n", out)
	}
	{
		_, err := run(t, input, Config{Count: true, Label: "x"})
		assert.NotNil(err)
	}
}

func TestCRLFRejected(t *testing.T) {
	assert := assert.New(t)
	_, err := run(t, "a\r\nb\r\n", Config{})
	assert.True(errors.Is(err, tsvio.ErrCRLF))
}

func TestEmptyBlank(t *testing.T) {
	assert := assert.New(t)
	assert.True(evalOne(t, "empty", "2", "a\t"))
	assert.True(evalOne(t, "empty", "3", "a\t"))
	assert.False(evalOne(t, "empty", "1", "a\t"))
	assert.False(evalOne(t, "not-empty", "3", "a\t"))
	assert.True(evalOne(t, "not-empty", "1", "a\t"))
	assert.True(evalOne(t, "blank", "2", "a\t  "))
	assert.True(evalOne(t, "blank", "5", "a\t  "))
	assert.False(evalOne(t, "not-blank", "2", "a\t  "))
	assert.False(evalOne(t, "not-blank", "5", "a\t  "))
	assert.True(evalOne(t, "not-blank", "1", "a\t  "))
}

func TestNumeric(t *testing.T) {
	assert := assert.New(t)
	assert.True(evalOne(t, "lt", "1:10", "9.5"))
	assert.False(evalOne(t, "lt", "1:10", "abc"))
	assert.False(evalOne(t, "lt", "2:10", "1"))
	assert.True(evalOne(t, "ne", "1:1", "2"))
	assert.False(evalOne(t, "ne", "1:1", ""))
	assert.True(evalOne(t, "ge", "1:1e3", "1000"))
	assert.True(evalOne(t, "is-numeric", "1", "-1.5e3"))
	assert.False(evalOne(t, "is-numeric", "1", "x"))
	assert.False(evalOne(t, "is-numeric", "2", "1"))
	assert.True(evalOne(t, "is-finite", "1", "3"))
	assert.False(evalOne(t, "is-finite", "1", "inf"))
	assert.True(evalOne(t, "is-infinity", "1", "-inf"))
	assert.True(evalOne(t, "is-nan", "1", "nan"))
	assert.False(evalOne(t, "is-nan", "1", "1"))
}

func TestStrings(t *testing.T) {
	assert := assert.New(t)
	assert.True(evalOne(t, "str-eq", "1:abc", "abc"))
	assert.False(evalOne(t, "str-eq", "1:abc", "ABC"))
	assert.True(evalOne(t, "istr-eq", "1:abc", "ABC"))
	assert.False(evalOne(t, "istr-eq", "1:\u00e9", "\u00c9"))
	assert.False(evalOne(t, "str-eq", "2:abc", "abc"))
	assert.True(evalOne(t, "str-ne", "2:abc", "abc"))
	assert.True(evalOne(t, "istr-ne", "1:abc", "abd"))
	assert.True(evalOne(t, "str-lt", "1:b", "a"))
	assert.False(evalOne(t, "str-lt", "1:B", "a"))
	assert.True(evalOne(t, "str-ge", "1:b", "b"))
	assert.False(evalOne(t, "str-gt", "2:a", "b"))
	assert.True(evalOne(t, "str-in-fld", "1:ell", "hello"))
	assert.False(evalOne(t, "str-in-fld", "1:ELL", "hello"))
	assert.True(evalOne(t, "istr-in-fld", "1:ELL", "hello"))
	assert.True(evalOne(t, "str-not-in-fld", "2:x", "hello"))
	assert.True(evalOne(t, "str-in-fld", "2:", "hello"))
	assert.False(evalOne(t, "istr-not-in-fld", "1:HE", "hello"))
}

func TestRegex(t *testing.T) {
	assert := assert.New(t)
	assert.True(evalOne(t, "regex", "1:^a.c$", "abc"))
	assert.False(evalOne(t, "regex", "1:^a.c$", "ABC"))
	assert.True(evalOne(t, "iregex", "1:^a.c$", "ABC"))
	assert.True(evalOne(t, "not-regex", "1:^z", "abc"))
	assert.False(evalOne(t, "regex", "2:.*", "abc"))
	assert.True(evalOne(t, "not-iregex", "2:.*", "abc"))

	_, err := Compile(specs("regex", "1:("), nil)
	assert.NotNil(err)
}

func TestLength(t *testing.T) {
	assert := assert.New(t)
	// e + combining acute is one grapheme, three bytes
	assert.True(evalOne(t, "char-len-eq", "1:1", "e\u0301"))
	assert.True(evalOne(t, "byte-len-eq", "1:3", "e\u0301"))
	assert.True(evalOne(t, "char-len-eq", "1:2", "日本"))
	assert.True(evalOne(t, "byte-len-gt", "1:5", "日本"))
	assert.True(evalOne(t, "char-len-eq", "2:0", "x"))
	assert.True(evalOne(t, "byte-len-le", "2:0", "x"))
	assert.False(evalOne(t, "char-len-ge", "2:1", "x"))

	_, err := Compile(specs("char-len-eq", "1:-1"), nil)
	assert.NotNil(err)
}

func TestFieldToField(t *testing.T) {
	assert := assert.New(t)
	assert.True(evalOne(t, "ff-lt", "1:2", "1\t2"))
	assert.False(evalOne(t, "ff-lt", "1:2", "1\tx"))
	assert.False(evalOne(t, "ff-lt", "1:3", "1\t2"))
	assert.True(evalOne(t, "ff-str-eq", "1:2", "ab\tab"))
	assert.True(evalOne(t, "ff-istr-eq", "1:2", "ab\tAB"))
	assert.True(evalOne(t, "ff-str-ne", "1:2", "ab\tAB"))
	assert.False(evalOne(t, "ff-istr-ne", "1:2", "ab\tAB"))
	assert.False(evalOne(t, "ff-str-eq", "1:3", "ab\tab"))
	assert.True(evalOne(t, "ff-absdiff-le", "1:2:0.5", "1\t1.4"))
	assert.False(evalOne(t, "ff-absdiff-le", "1:2:0.5", "1\t1.6"))
	assert.True(evalOne(t, "ff-absdiff-gt", "1:2:0.5", "1\t1.6"))
	assert.True(evalOne(t, "ff-reldiff-le", "1:2:0.1", "100\t105"))
	assert.True(evalOne(t, "ff-reldiff-gt", "1:2:0.1", "0\t1"))
	assert.True(evalOne(t, "ff-reldiff-le", "1:2:0", "0\t0"))

	{
		tests, err := Compile(specs("ff-eq", "1,2:3,4"), nil)
		assert.Nil(err)
		assert.Len(tests, 2)
		assert.Equal(1, tests[0].Field)
		assert.Equal(3, tests[0].Right)
		assert.Equal(2, tests[1].Field)
		assert.Equal(4, tests[1].Right)
	}
	{
		_, err := Compile(specs("ff-eq", "1,2:3"), nil)
		assert.True(errors.Is(err, fieldlist.ErrLengthDiffer))
	}
}

func TestRelDiff(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(0.0, RelDiff(3, 3))
	assert.True(math.IsInf(RelDiff(0, 2), 1))
	assert.InDelta(0.5, RelDiff(2, 3), 1e-12)
	assert.InDelta(0.5, RelDiff(-2, -3), 1e-12)
}

func TestCompileErrors(t *testing.T) {
	assert := assert.New(t)
	{
		_, err := Compile(specs("eq", "1:abc"), nil)
		assert.NotNil(err)
	}
	{
		_, err := Compile(specs("eq", "F1:1"), nil)
		assert.True(errors.Is(err, fieldlist.ErrNoHeader))
	}
	{
		_, err := Compile(specs("bogus", "1"), nil)
		assert.NotNil(err)
	}
	{
		tests, err := Compile(specs("empty", "3,1-2"), nil)
		assert.Nil(err)
		assert.Len(tests, 3)
		f := New(tests, false, false, '\t')
		assert.Equal(3, f.MaxField())
	}
}

func TestFlagsRegistered(t *testing.T) {
	assert := assert.New(t)
	names := map[string]bool{}
	for _, f := range Flags() {
		assert.False(names[f.Name], f.Name)
		names[f.Name] = true
	}
	for _, n := range []string{
		"eq", "ne", "lt", "le", "gt", "ge",
		"str-eq", "str-ne", "str-lt", "str-le", "str-gt", "str-ge",
		"istr-eq", "istr-ne", "regex", "iregex",
		"char-len-eq", "byte-len-ge", "ff-eq", "ff-absdiff-le", "ff-reldiff-gt",
		"ff-str-eq", "ff-istr-eq", "str-in-fld", "istr-not-in-fld",
		"empty", "not-blank", "is-infinity",
	} {
		assert.True(names[n], n)
	}
}
