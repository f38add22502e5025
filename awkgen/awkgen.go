package awkgen

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dianpeng/tsvkit/filter"
	"github.com/pkg/errors"
)

// ----------------------------------------------------------------------------
// Translation of a compiled filter into a standalone AWK program, so the
// same row selection can run where only awk is available. The layout is
//
// function isnum(x) { ... }        helpers, only the ones referenced
//
// BEGIN { FS = OFS = "<delim>" }
//
// $0 == "" { next }                       empty lines are not records
//
// FNR == 1 { if (NR == 1) print; next }   header mode only
//
// {
//   if (<composed test expression>) print
// }
//
// END { print n + 0 }                     count mode only
//
// Regex, character length, byte length, NaN and infinity tests have no
// faithful AWK equivalent and are rejected.
// ----------------------------------------------------------------------------

var ErrUnsupported = errors.New("test has no AWK equivalent")

type Config struct {
	Delim     byte
	Header    bool
	Count     bool
	Label     string
	LabelPass string
	LabelFail string
}

const fnIsNum = `function isnum(x) {
  return x ~ /^[-+]?([0-9]+[.]?[0-9]*|[.][0-9]+)([eE][-+]?[0-9]+)?$/
}`

const fnAbs = `function abs(x) {
  return x < 0 ? -x : x
}`

const fnRelDiff = `function reldiff(a, b,    m) {
  if (a == b) return 0
  m = abs(a) < abs(b) ? abs(a) : abs(b)
  if (m == 0) return 1e308 * 10
  return abs(a - b) / m
}`

type exprCodeGen struct {
	w *awkWriter
}

func field(i int) string { return fmt.Sprintf("$%d", i) }

func has(i int) string { return fmt.Sprintf("NF >= %d", i) }

func num(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", errors.Wrap(ErrUnsupported, "non-finite numeric literal")
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (self *exprCodeGen) isnum(x string) string {
	return fmt.Sprintf("%s(%s)", self.w.Func("isnum", fnIsNum), x)
}

func (self *exprCodeGen) str(x string, ci bool) string {
	if ci {
		return fmt.Sprintf("tolower(%s)", x)
	}
	return fmt.Sprintf("(%s \"\")", x)
}

func (self *exprCodeGen) genTest(t *filter.Test) (string, error) {
	f := field(t.Field)

	switch t.Kind {
	case filter.KindEmpty:
		return fmt.Sprintf("(NF < %d || %s == \"\")", t.Field, f), nil

	case filter.KindNotEmpty:
		return fmt.Sprintf("(%s && %s != \"\")", has(t.Field), f), nil

	case filter.KindBlank:
		return fmt.Sprintf("(NF < %d || %s ~ /^[ \\t\\r\\n\\v\\f]*$/)", t.Field, f), nil

	case filter.KindNotBlank:
		return fmt.Sprintf("(%s && %s !~ /^[ \\t\\r\\n\\v\\f]*$/)", has(t.Field), f), nil

	case filter.KindNumCmp:
		v, err := num(t.Num)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(%s && %s && (%s + 0) %s %s)", has(t.Field), self.isnum(f), f, t.Op, v), nil

	case filter.KindNumProp:
		if t.Prop != filter.PropNumeric && t.Prop != filter.PropFinite {
			return "", errors.Wrap(ErrUnsupported, "NaN and infinity tests")
		}
		return fmt.Sprintf("(%s && %s)", has(t.Field), self.isnum(f)), nil

	case filter.KindStrEq, filter.KindStrNe:
		lit := string(t.Str)
		if t.IgnoreCase {
			lit = strings.ToLower(lit)
		}
		if t.Kind == filter.KindStrEq {
			return fmt.Sprintf("(%s && %s == %s)", has(t.Field), self.str(f, t.IgnoreCase), awkString(lit)), nil
		}
		return fmt.Sprintf("(NF < %d || %s != %s)", t.Field, self.str(f, t.IgnoreCase), awkString(lit)), nil

	case filter.KindStrCmp:
		return fmt.Sprintf("(%s && %s %s %s)", has(t.Field), self.str(f, false), t.Op, awkString(string(t.Str))), nil

	case filter.KindStrIn:
		hay := self.str(f, t.IgnoreCase)
		e := fmt.Sprintf("(%s == \"\" || index(%s, %s) > 0)", awkString(string(t.Str)), hay, awkString(string(t.Str)))
		if t.Negate {
			return "!" + e, nil
		}
		return e, nil

	case filter.KindFFNum:
		r := field(t.Right)
		return fmt.Sprintf(
			"(%s && %s && %s && %s && (%s + 0) %s (%s + 0))",
			has(t.Field), has(t.Right), self.isnum(f), self.isnum(r), f, t.Op, r,
		), nil

	case filter.KindFFStrEq, filter.KindFFStrNe:
		op := "=="
		if t.Kind == filter.KindFFStrNe {
			op = "!="
		}
		r := field(t.Right)
		return fmt.Sprintf(
			"(%s && %s && %s %s %s)",
			has(t.Field), has(t.Right), self.str(f, t.IgnoreCase), op, self.str(r, t.IgnoreCase),
		), nil

	case filter.KindFFAbsDiff, filter.KindFFRelDiff:
		v, err := num(t.Num)
		if err != nil {
			return "", err
		}
		r := field(t.Right)
		fn := self.w.Func("abs", fnAbs)
		if t.Kind == filter.KindFFRelDiff {
			fn = self.w.Func("reldiff", fnRelDiff)
			return fmt.Sprintf(
				"(%s && %s && %s && %s && %s(%s + 0, %s + 0) %s %s)",
				has(t.Field), has(t.Right), self.isnum(f), self.isnum(r), fn, f, r, t.Op, v,
			), nil
		}
		return fmt.Sprintf(
			"(%s && %s && %s && %s && %s(%s - %s) %s %s)",
			has(t.Field), has(t.Right), self.isnum(f), self.isnum(r), fn, f, r, t.Op, v,
		), nil

	default:
		return "", errors.Wrapf(ErrUnsupported, "test on field %d", t.Field)
	}
}

// Generate returns the AWK program equivalent to f.
func Generate(
	f *filter.Filter,
	config *Config,
) (string, error) {
	w := newAwkWriter()
	g := &exprCodeGen{w: w}

	parts := []string{}
	for _, t := range f.Tests {
		e, err := g.genTest(t)
		if err != nil {
			return "", err
		}
		parts = append(parts, e)
	}

	cond := "1"
	if len(parts) > 0 {
		if f.Or {
			cond = strings.Join(parts, " || ")
		} else {
			cond = strings.Join(parts, " && ")
		}
	}
	if f.Invert {
		cond = fmt.Sprintf("!(%s)", cond)
	}

	delim := awkString(string([]byte{config.Delim}))
	fs := delim
	if config.Delim == ' ' {
		// a lone space FS splits on runs of blanks
		fs = `"[ ]"`
	}

	w.Block("BEGIN")
	w.Line("FS = %s", fs)
	w.Line("OFS = %s", delim)
	w.End()

	w.Block(`$0 == ""`)
	w.Line("next")
	w.End()

	if config.Header {
		w.Block("FNR == 1")
		switch {
		case config.Count:
			break
		case config.Label != "":
			w.Line("if (NR == 1) print $0 OFS %s", awkString(config.Label))
			break
		default:
			w.Line("if (NR == 1) print")
			break
		}
		w.Line("next")
		w.End()
	}

	w.Block("")
	switch {
	case config.Count:
		w.Line("if (%s) n++", cond)
		break
	case config.Label != "":
		w.Line("print $0 OFS ((%s) ? %s : %s)", cond, awkString(config.LabelPass), awkString(config.LabelFail))
		break
	default:
		w.Line("if (%s) print", cond)
		break
	}
	w.End()

	if config.Count {
		w.Block("END")
		w.Line("print n + 0")
		w.End()
	}
	return w.String(), nil
}
