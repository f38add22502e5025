package filter

import (
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

// Filter evaluates a compiled test list against records. With no tests every
// record passes, Invert is applied after the AND/OR composition.
type Filter struct {
	Tests  []*Test
	Or     bool
	Invert bool

	max int
	sp  *record.Splitter
}

func New(
	tests []*Test,
	or bool,
	invert bool,
	delim byte,
) *Filter {
	max := 0
	for _, t := range tests {
		if m := t.MaxField(); m > max {
			max = m
		}
	}
	return &Filter{
		Tests:  tests,
		Or:     or,
		Invert: invert,
		max:    max,
		sp:     record.NewSplitter(delim),
	}
}

// MaxField is the largest field index any test reads, only that many fields
// are located per record.
func (self *Filter) MaxField() int { return self.max }

func (self *Filter) Match(line []byte) bool {
	result := true
	if len(self.Tests) > 0 {
		self.sp.Split(line, self.max)
		if self.Or {
			result = false
			for _, t := range self.Tests {
				if t.Eval(self.sp) {
					result = true
					break
				}
			}
		} else {
			for _, t := range self.Tests {
				if !t.Eval(self.sp) {
					result = false
					break
				}
			}
		}
	}
	return result != self.Invert
}

type Config struct {
	Inputs []string
	Open   tsvio.Opener
	Header bool
	Delim  byte

	Specs  []Spec
	Or     bool
	Invert bool

	Count      bool   // print only the number of matching records
	Label      string // append a pass/fail column with this header name
	LabelPass  string
	LabelFail  string
	labelValue bool
}

// SetLabelValues parses a "PASS:FAIL" pair.
func (self *Config) SetLabelValues(v string) error {
	i := strings.IndexByte(v, ':')
	if i < 0 {
		return errors.Errorf("invalid label values %q, expected PASS:FAIL", v)
	}
	self.LabelPass = v[:i]
	self.LabelFail = v[i+1:]
	self.labelValue = true
	return nil
}

func (self *Config) Validate() error {
	if self.Count && self.Label != "" {
		return errors.New("--count and --label cannot be used together")
	}
	if self.labelValue && self.Label == "" {
		return errors.New("--label-values requires --label")
	}
	if !self.labelValue {
		self.LabelPass = "1"
		self.LabelFail = "0"
	}
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

func (self *Config) reader() *tsvio.Reader {
	return tsvio.NewReader(self.Inputs, tsvio.ReaderConfig{
		Header:     self.Header,
		Delim:      self.Delim,
		RejectCRLF: true,
		Open:       self.Open,
	})
}

// Build reads the header if any and compiles the tests against it.
func Build(
	config *Config,
	r *tsvio.Reader,
) (*Filter, []byte, error) {
	header, err := r.Header()
	if err != nil {
		return nil, nil, err
	}
	var h *fieldlist.Header
	if config.Header && header != nil {
		h = fieldlist.ParseHeader(header, config.Delim)
	}
	tests, err := Compile(config.Specs, h)
	if err != nil {
		return nil, nil, err
	}
	return New(tests, config.Or, config.Invert, config.Delim), header, nil
}

func Run(
	config *Config,
	w *tsvio.Writer,
) error {
	if err := config.Validate(); err != nil {
		return err
	}
	r := config.reader()
	defer r.Close()

	f, header, err := Build(config, r)
	if err != nil {
		return err
	}
	slog.Debug("filter compiled", "tests", len(f.Tests), "max_field", f.MaxField(), "or", f.Or, "invert", f.Invert)

	if header != nil && !config.Count {
		w.Write(header)
		if config.Label != "" {
			w.WriteByte(config.Delim)
			w.WriteString(config.Label)
		}
		if err := w.EndRecord(); err != nil {
			return err
		}
	}

	count := 0
	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if len(line) == 0 {
			continue
		}

		ok := f.Match(line)

		switch {
		case config.Count:
			if ok {
				count++
			}
			break

		case config.Label != "":
			w.Write(line)
			w.WriteByte(config.Delim)
			if ok {
				w.WriteString(config.LabelPass)
			} else {
				w.WriteString(config.LabelFail)
			}
			if err := w.EndRecord(); err != nil {
				return err
			}
			break

		default:
			if ok {
				if err := w.WriteRecord(line); err != nil {
					return err
				}
			}
			break
		}
	}

	if config.Count {
		w.WriteString(strconv.Itoa(count))
		return w.EndRecord()
	}
	return nil
}
