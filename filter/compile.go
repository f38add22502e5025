package filter

import (
	"regexp"
	"strconv"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/pkg/errors"
)

// Spec is one test as given on the command line, ie {"ge", "F1:20"}.
type Spec struct {
	Flag string
	Arg  string
}

type builder func(arg string, header *fieldlist.Header) ([]*Test, error)

type flagDef struct {
	name  string
	usage string
	build builder
}

// FlagInfo describes one test flag for the command layer.
type FlagInfo struct {
	Name  string
	Usage string
}

var flagTable []flagDef
var flagIndex map[string]*flagDef

func init() {
	unary := func(name, usage string, kind Kind, prop NumProp) {
		flagTable = append(flagTable, flagDef{
			name:  name,
			usage: "<field-list> " + usage,
			build: fieldTests(kind, prop),
		})
	}
	unary("empty", "true if field is empty", KindEmpty, 0)
	unary("not-empty", "true if field is not empty", KindNotEmpty, 0)
	unary("blank", "true if field is empty or all whitespace", KindBlank, 0)
	unary("not-blank", "true if field contains a non-whitespace character", KindNotBlank, 0)
	unary("is-numeric", "true if field can be parsed as a number", KindNumProp, PropNumeric)
	unary("is-finite", "true if field is a finite number", KindNumProp, PropFinite)
	unary("is-nan", "true if field is NaN", KindNumProp, PropNaN)
	unary("is-infinity", "true if field is a positive or negative infinity", KindNumProp, PropInfinity)

	ops := []struct {
		suffix string
		op     CmpOp
		text   string
	}{
		{"lt", OpLt, "less than"},
		{"le", OpLe, "less than or equal to"},
		{"eq", OpEq, "equal to"},
		{"ne", OpNe, "not equal to"},
		{"gt", OpGt, "greater than"},
		{"ge", OpGe, "greater than or equal to"},
	}

	for _, o := range ops {
		add := func(name, usage string, b builder) {
			flagTable = append(flagTable, flagDef{name: name, usage: usage, build: b})
		}
		add(o.suffix, "<field-list>:NUM true if field is numerically "+o.text+" NUM", numCmp(o.op))
		add("char-len-"+o.suffix, "<field-list>:NUM true if character length is "+o.text+" NUM", lenTest(KindCharLen, o.op))
		add("byte-len-"+o.suffix, "<field-list>:NUM true if byte length is "+o.text+" NUM", lenTest(KindByteLen, o.op))
		add("ff-"+o.suffix, "FIELD1:FIELD2 true if FIELD1 is numerically "+o.text+" FIELD2", ffTest(KindFFNum, o.op, false))

		switch o.op {
		case OpEq:
			add("str-eq", "<field-list>:STR true if field is equal to STR", strTest(KindStrEq, o.op, false))
			break
		case OpNe:
			add("str-ne", "<field-list>:STR true if field is not equal to STR", strTest(KindStrNe, o.op, false))
			break
		default:
			add("str-"+o.suffix, "<field-list>:STR true if field is lexically "+o.text+" STR", strTest(KindStrCmp, o.op, false))
			break
		}
	}

	more := []flagDef{
		{"istr-eq", "<field-list>:STR true if field is equal to STR, ignoring case", strTest(KindStrEq, OpEq, true)},
		{"istr-ne", "<field-list>:STR true if field is not equal to STR, ignoring case", strTest(KindStrNe, OpNe, true)},
		{"str-in-fld", "<field-list>:STR true if field contains STR", inTest(false, false)},
		{"str-not-in-fld", "<field-list>:STR true if field does not contain STR", inTest(false, true)},
		{"istr-in-fld", "<field-list>:STR true if field contains STR, ignoring case", inTest(true, false)},
		{"istr-not-in-fld", "<field-list>:STR true if field does not contain STR, ignoring case", inTest(true, true)},
		{"regex", "<field-list>:REGEX true if field matches REGEX", regexTest(false, false)},
		{"iregex", "<field-list>:REGEX true if field matches REGEX, ignoring case", regexTest(true, false)},
		{"not-regex", "<field-list>:REGEX true if field does not match REGEX", regexTest(false, true)},
		{"not-iregex", "<field-list>:REGEX true if field does not match REGEX, ignoring case", regexTest(true, true)},
		{"ff-str-eq", "FIELD1:FIELD2 true if FIELD1 and FIELD2 are equal strings", ffTest(KindFFStrEq, OpEq, false)},
		{"ff-str-ne", "FIELD1:FIELD2 true if FIELD1 and FIELD2 are different strings", ffTest(KindFFStrNe, OpNe, false)},
		{"ff-istr-eq", "FIELD1:FIELD2 true if FIELD1 and FIELD2 are equal strings, ignoring case", ffTest(KindFFStrEq, OpEq, true)},
		{"ff-istr-ne", "FIELD1:FIELD2 true if FIELD1 and FIELD2 differ, ignoring case", ffTest(KindFFStrNe, OpNe, true)},
		{"ff-absdiff-le", "FIELD1:FIELD2:NUM true if |FIELD1 - FIELD2| <= NUM", ffDiff(KindFFAbsDiff, OpLe)},
		{"ff-absdiff-gt", "FIELD1:FIELD2:NUM true if |FIELD1 - FIELD2| > NUM", ffDiff(KindFFAbsDiff, OpGt)},
		{"ff-reldiff-le", "FIELD1:FIELD2:NUM true if relative difference <= NUM", ffDiff(KindFFRelDiff, OpLe)},
		{"ff-reldiff-gt", "FIELD1:FIELD2:NUM true if relative difference > NUM", ffDiff(KindFFRelDiff, OpGt)},
	}
	flagTable = append(flagTable, more...)

	flagIndex = make(map[string]*flagDef, len(flagTable))
	for i := range flagTable {
		flagIndex[flagTable[i].name] = &flagTable[i]
	}
}

// Flags lists every test flag in registration order.
func Flags() []FlagInfo {
	out := make([]FlagInfo, 0, len(flagTable))
	for _, d := range flagTable {
		out = append(out, FlagInfo{Name: d.name, Usage: d.usage})
	}
	return out
}

// Compile turns test specs into tests, resolving field names against header
// (nil when header mode is off). A field list expands into one test per
// field.
func Compile(
	specs []Spec,
	header *fieldlist.Header,
) ([]*Test, error) {
	out := []*Test{}
	for _, s := range specs {
		d, ok := flagIndex[s.Flag]
		if !ok {
			return nil, errors.Errorf("unknown test --%s", s.Flag)
		}
		tests, err := d.build(s.Arg, header)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s %s", s.Flag, s.Arg)
		}
		out = append(out, tests...)
	}
	return out, nil
}

func expand(
	spec string,
	header *fieldlist.Header,
	proto Test,
) ([]*Test, error) {
	fields, err := fieldlist.Resolve(spec, header)
	if err != nil {
		return nil, err
	}
	out := make([]*Test, 0, len(fields))
	for _, f := range fields {
		t := proto
		t.Field = f
		out = append(out, &t)
	}
	return out, nil
}

func fieldTests(kind Kind, prop NumProp) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		return expand(arg, header, Test{Kind: kind, Prop: prop})
	}
}

func numCmp(op CmpOp) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		spec, value, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		v, ok := ParseNum([]byte(value))
		if !ok {
			return nil, errors.Errorf("invalid numeric value %q", value)
		}
		return expand(spec, header, Test{Kind: KindNumCmp, Op: op, Num: v})
	}
}

func lenTest(kind Kind, op CmpOp) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		spec, value, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return nil, errors.Errorf("invalid length %q", value)
		}
		return expand(spec, header, Test{Kind: kind, Op: op, Len: n})
	}
}

func strTest(kind Kind, op CmpOp, ci bool) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		spec, value, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		return expand(spec, header, Test{
			Kind:       kind,
			Op:         op,
			Str:        []byte(value),
			IgnoreCase: ci,
		})
	}
}

func inTest(ci bool, negate bool) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		spec, value, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		str := []byte(value)
		if ci {
			str = lowerASCII(str)
		}
		return expand(spec, header, Test{
			Kind:       KindStrIn,
			Str:        str,
			IgnoreCase: ci,
			Negate:     negate,
		})
	}
}

func regexTest(ci bool, negate bool) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		spec, value, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		pattern := value
		if ci {
			pattern = "(?i:" + value + ")"
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.Wrap(err, "invalid regular expression")
		}
		return expand(spec, header, Test{
			Kind:       KindRegex,
			Str:        []byte(value),
			IgnoreCase: ci,
			Negate:     negate,
			Regex:      re,
		})
	}
}

func pairs(
	left string,
	right string,
	header *fieldlist.Header,
	proto Test,
) ([]*Test, error) {
	l, r, err := fieldlist.ResolvePair(left, right, header)
	if err != nil {
		return nil, err
	}
	out := make([]*Test, 0, len(l))
	for i := range l {
		t := proto
		t.Field = l[i]
		t.Right = r[i]
		out = append(out, &t)
	}
	return out, nil
}

func ffTest(kind Kind, op CmpOp, ci bool) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		left, right, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		return pairs(left, right, header, Test{Kind: kind, Op: op, IgnoreCase: ci})
	}
}

func ffDiff(kind Kind, op CmpOp) builder {
	return func(arg string, header *fieldlist.Header) ([]*Test, error) {
		left, rest, err := fieldlist.SplitArg(arg)
		if err != nil {
			return nil, err
		}
		right, value, err := fieldlist.SplitArg(rest)
		if err != nil {
			return nil, err
		}
		v, ok := ParseNum([]byte(value))
		if !ok {
			return nil, errors.Errorf("invalid numeric value %q", value)
		}
		return pairs(left, right, header, Test{Kind: kind, Op: op, Num: v})
	}
}
