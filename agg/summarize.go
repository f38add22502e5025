package agg

import (
	"io"
	"log/slog"
	"sort"
	"strconv"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/sample"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

const DefaultPrecision = 12

// Spec is one operator flag as given on the command line, Fields is a field
// list and is empty for Count.
type Spec struct {
	Op     Op
	Fields string
}

type Config struct {
	Inputs []string
	Open   tsvio.Opener
	Header bool
	Delim  byte

	GroupBy     string
	Specs       []Spec
	WriteHeader bool // synthesize a header without header mode
	Precision   int  // decimals of rendered floats, see SetPrecision
	Seed        uint64

	precisionSet bool
}

// SetPrecision fixes the decimals of rendered floats, 0 included. Without it
// DefaultPrecision is used.
func (self *Config) SetPrecision(p int) {
	self.Precision = p
	self.precisionSet = true
}

func (self *Config) Validate() error {
	if len(self.Specs) == 0 {
		return errors.New("no summary operators given")
	}
	for _, s := range self.Specs {
		if s.Op != OpCount && s.Fields == "" {
			return errors.Errorf("--%s requires a field list", s.Op.Name())
		}
	}
	if self.Precision < 0 {
		return errors.Errorf("invalid --float-precision %d", self.Precision)
	}
	if !self.precisionSet {
		self.Precision = DefaultPrecision
	}
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

// Operations expands the flag list into one operation per field.
func Operations(
	specs []Spec,
	header *fieldlist.Header,
) ([]Operation, error) {
	out := []Operation{}
	for _, s := range specs {
		if s.Op == OpCount {
			out = append(out, Operation{Op: OpCount})
			continue
		}
		idx, err := fieldlist.ResolveOrdered(s.Fields, header)
		if err != nil {
			return nil, errors.Wrapf(err, "--%s", s.Op.Name())
		}
		for _, i := range idx {
			out = append(out, Operation{Op: s.Op, Field: i})
		}
	}
	return out, nil
}

// columnName is the output name of field idx.
func columnName(
	header *fieldlist.Header,
	idx int,
) string {
	if header != nil {
		return header.Name(idx)
	}
	return "field" + strconv.Itoa(idx)
}

// Summarizer accumulates records into groups.
type Summarizer struct {
	Schema *Schema
	Group  []int

	delim  byte
	sp     *record.Splitter
	max    int
	key    []byte
	groups map[string]*State
	keys   []string
}

func NewSummarizer(
	schema *Schema,
	group []int,
	delim byte,
) *Summarizer {
	max := schema.MaxField()
	if m := fieldlist.Max(group); m > max {
		max = m
	}
	return &Summarizer{
		Schema: schema,
		Group:  group,
		delim:  delim,
		sp:     record.NewSplitter(delim),
		max:    max,
		groups: make(map[string]*State),
	}
}

func (self *Summarizer) Add(line []byte) {
	self.sp.Split(line, self.max)
	self.key, _ = self.sp.AppendJoined(self.key[:0], self.Group, self.delim, false)

	st, ok := self.groups[string(self.key)]
	if !ok {
		st = self.Schema.NewState()
		k := string(self.key)
		self.groups[k] = st
		self.keys = append(self.keys, k)
	}
	self.Schema.Update(st, self.sp)
}

func (self *Summarizer) Len() int { return len(self.groups) }

// WriteRows emits one row per group, sorted by the group key bytes.
func (self *Summarizer) WriteRows(
	w *tsvio.Writer,
	precision int,
) error {
	if len(self.Group) == 0 && len(self.keys) == 0 {
		// no input, still one row of empty results
		self.groups[""] = self.Schema.NewState()
		self.keys = append(self.keys, "")
	}
	sort.Strings(self.keys)

	buf := []byte{}
	for _, k := range self.keys {
		st := self.groups[k]
		buf = append(buf[:0], k...)
		for i := range self.Schema.Ops {
			if i > 0 || len(self.Group) > 0 {
				buf = append(buf, self.delim)
			}
			buf = self.Schema.AppendResult(buf, st, i, precision)
		}
		if err := w.WriteRecord(buf); err != nil {
			return err
		}
	}
	return nil
}

// WriteHeader emits the group column names followed by one name per
// operation, <field>_<suffix> or count.
func (self *Summarizer) WriteHeader(
	w *tsvio.Writer,
	header *fieldlist.Header,
) error {
	first := true
	sep := func() {
		if !first {
			w.WriteByte(self.delim)
		}
		first = false
	}
	for _, idx := range self.Group {
		sep()
		w.WriteString(columnName(header, idx))
	}
	for _, op := range self.Schema.Ops {
		sep()
		if op.Op == OpCount {
			w.WriteString("count")
			continue
		}
		w.WriteString(columnName(header, op.Field))
		w.WriteByte('_')
		w.WriteString(op.Op.Suffix())
	}
	return w.EndRecord()
}

func Run(
	config *Config,
	w *tsvio.Writer,
) error {
	if err := config.Validate(); err != nil {
		return err
	}

	r := tsvio.NewReader(config.Inputs, tsvio.ReaderConfig{
		Header: config.Header,
		Delim:  config.Delim,
		Open:   config.Open,
	})
	defer r.Close()

	hline, err := r.Header()
	if err != nil {
		return err
	}
	var header *fieldlist.Header
	if config.Header {
		if hline == nil {
			return nil
		}
		header = fieldlist.ParseHeader(hline, config.Delim)
	}

	var group []int
	if config.GroupBy != "" {
		group, err = fieldlist.ResolveOrdered(config.GroupBy, header)
		if err != nil {
			return errors.Wrap(err, "--group-by")
		}
	}
	ops, err := Operations(config.Specs, header)
	if err != nil {
		return err
	}

	rng := sample.NewRNG(sample.PickSeed(false, config.Seed))
	s := NewSummarizer(NewSchema(ops, rng), group, config.Delim)

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
		s.Add(line)
	}
	slog.Debug("summarized", "groups", s.Len(), "operations", len(ops))

	if config.Header || config.WriteHeader {
		if err := s.WriteHeader(w, header); err != nil {
			return err
		}
	}
	return s.WriteRows(w, config.Precision)
}
