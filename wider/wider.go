package wider

import (
	"io"
	"log/slog"
	"sort"

	"github.com/dianpeng/tsvkit/agg"
	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/sample"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

// ops accepted as the cell aggregator
var cellOps = map[agg.Op]bool{
	agg.OpCount:   true,
	agg.OpSum:     true,
	agg.OpMean:    true,
	agg.OpMin:     true,
	agg.OpMax:     true,
	agg.OpFirst:   true,
	agg.OpLast:    true,
	agg.OpMedian:  true,
	agg.OpNUnique: true,
}

// Config of a long to wide reshape. Inputs always carry a header.
type Config struct {
	Inputs []string
	Open   tsvio.Opener
	Delim  byte

	NamesFrom  string
	ValuesFrom string
	IDCols     string // defaults to every other column
	Fill       string
	NamesSort  bool
	Op         string // cell aggregator, defaults to last

	op agg.Op
}

func (self *Config) Validate() error {
	if self.NamesFrom == "" {
		return errors.New("--names-from is required")
	}
	if self.Op == "" {
		self.Op = "last"
	}
	op, err := agg.ParseOp(self.Op)
	if err != nil {
		return err
	}
	if !cellOps[op] {
		return errors.Errorf("--op %s is not supported", self.Op)
	}
	if op != agg.OpCount && self.ValuesFrom == "" {
		return errors.Errorf("--op %s requires --values-from", self.Op)
	}
	self.op = op
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

func single(
	flag string,
	spec string,
	header *fieldlist.Header,
) (int, error) {
	idx, err := fieldlist.Resolve(spec, header)
	if err != nil {
		return 0, errors.Wrap(err, flag)
	}
	if len(idx) != 1 {
		return 0, errors.Errorf("%s %q must name a single column", flag, spec)
	}
	return idx[0], nil
}

type row struct {
	id    []byte
	cells map[string]*agg.State
}

// Reshaper pivots records into one row per id tuple and one column per
// distinct name, both kept in first seen order.
type Reshaper struct {
	Names  int
	Values int // 0 without a values column
	IDs    []int

	schema *agg.Schema
	delim  byte
	sp     *record.Splitter
	max    int
	key    []byte

	rows     map[string]*row
	order    []*row
	names    map[string]bool
	nameList []string
}

func NewReshaper(
	names int,
	values int,
	ids []int,
	op agg.Op,
	delim byte,
) *Reshaper {
	max := names
	if values > max {
		max = values
	}
	if m := fieldlist.Max(ids); m > max {
		max = m
	}
	schema := agg.NewSchema(
		[]agg.Operation{{Op: op, Field: values}},
		sample.NewRNG(sample.PickSeed(false, 0)),
	)
	return &Reshaper{
		Names:  names,
		Values: values,
		IDs:    ids,
		schema: schema,
		delim:  delim,
		sp:     record.NewSplitter(delim),
		max:    max,
		rows:   make(map[string]*row),
		names:  make(map[string]bool),
	}
}

func (self *Reshaper) Add(line []byte) {
	self.sp.Split(line, self.max)
	self.key, _ = self.sp.AppendJoined(self.key[:0], self.IDs, self.delim, false)

	r, ok := self.rows[string(self.key)]
	if !ok {
		r = &row{
			id:    append([]byte(nil), self.key...),
			cells: make(map[string]*agg.State),
		}
		self.rows[string(self.key)] = r
		self.order = append(self.order, r)
	}

	name, _ := self.sp.Field(self.Names)
	cell, ok := r.cells[string(name)]
	if !ok {
		cell = self.schema.NewState()
		r.cells[string(name)] = cell
	}
	if !self.names[string(name)] {
		self.names[string(name)] = true
		self.nameList = append(self.nameList, string(name))
	}
	self.schema.Update(cell, self.sp)
}

// Columns returns the new column names in output order.
func (self *Reshaper) Columns(sorted bool) []string {
	out := append([]string(nil), self.nameList...)
	if sorted {
		sort.Strings(out)
	}
	return out
}

func (self *Reshaper) Write(
	w *tsvio.Writer,
	idNames []string,
	columns []string,
	fill string,
) error {
	buf := []byte{}
	sep := func(first bool) {
		if !first {
			buf = append(buf, self.delim)
		}
	}

	for i, n := range idNames {
		sep(i == 0)
		buf = append(buf, n...)
	}
	for i, n := range columns {
		sep(i == 0 && len(idNames) == 0)
		buf = append(buf, n...)
	}
	if err := w.WriteRecord(buf); err != nil {
		return err
	}

	for _, r := range self.order {
		buf = append(buf[:0], r.id...)
		for i, n := range columns {
			sep(i == 0 && len(self.IDs) == 0)
			if cell, ok := r.cells[n]; ok {
				buf = self.schema.AppendResult(buf, cell, 0, agg.DefaultPrecision)
			} else {
				buf = append(buf, fill...)
			}
		}
		if err := w.WriteRecord(buf); err != nil {
			return err
		}
	}
	return nil
}

func Run(
	config *Config,
	w *tsvio.Writer,
) error {
	if err := config.Validate(); err != nil {
		return err
	}

	r := tsvio.NewReader(config.Inputs, tsvio.ReaderConfig{
		Header: true,
		Delim:  config.Delim,
		Open:   config.Open,
	})
	defer r.Close()

	hline, err := r.Header()
	if err != nil {
		return err
	}
	if hline == nil {
		return nil
	}
	header := fieldlist.ParseHeader(hline, config.Delim)

	names, err := single("--names-from", config.NamesFrom, header)
	if err != nil {
		return err
	}
	values := 0
	if config.ValuesFrom != "" {
		if values, err = single("--values-from", config.ValuesFrom, header); err != nil {
			return err
		}
	}
	var ids []int
	if config.IDCols != "" {
		if ids, err = fieldlist.ResolveOrdered(config.IDCols, header); err != nil {
			return errors.Wrap(err, "--id-cols")
		}
	} else {
		for i := 1; i <= header.Len(); i++ {
			if i != names && i != values {
				ids = append(ids, i)
			}
		}
	}
	idNames := make([]string, len(ids))
	for i, idx := range ids {
		idNames[i] = header.Name(idx)
	}

	rs := NewReshaper(names, values, ids, config.op, config.Delim)
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
		rs.Add(line)
	}
	slog.Debug("reshaped", "rows", len(rs.order), "columns", len(rs.nameList), "op", config.op)

	return rs.Write(w, idNames, rs.Columns(config.NamesSort), config.Fill)
}
