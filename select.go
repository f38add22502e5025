package main

import (
	"io"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

type selectConfig struct {
	Inputs  []string
	Open    tsvio.Opener
	Header  bool
	Delim   byte
	Fields  string // kept in order, repeats allowed
	Exclude string
}

func (self *selectConfig) Validate() error {
	if (self.Fields == "") == (self.Exclude == "") {
		return errors.New("exactly one of --fields and --exclude is required")
	}
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

// projection maps a record to its output fields. In exclude mode the list is
// computed per record since records may differ in width.
type projection struct {
	fields  []int
	exclude map[int]bool
	sp      *record.Splitter
	delim   byte
	list    []int
}

func (self *projection) apply(dst []byte, line []byte) ([]byte, error) {
	if self.exclude == nil {
		self.sp.Split(line, fieldlist.Max(self.fields))
		return self.sp.AppendJoined(dst, self.fields, self.delim, true)
	}

	self.sp.Split(line, 0)
	self.list = self.list[:0]
	for i := 1; i <= self.sp.Located(); i++ {
		if !self.exclude[i] {
			self.list = append(self.list, i)
		}
	}
	return self.sp.AppendJoined(dst, self.list, self.delim, false)
}

func newProjection(config *selectConfig, header *fieldlist.Header) (*projection, error) {
	p := &projection{
		sp:    record.NewSplitter(config.Delim),
		delim: config.Delim,
	}
	if config.Fields != "" {
		fields, err := fieldlist.ResolveOrdered(config.Fields, header)
		if err != nil {
			return nil, errors.Wrap(err, "--fields")
		}
		p.fields = fields
		return p, nil
	}
	ex, err := fieldlist.Resolve(config.Exclude, header)
	if err != nil {
		return nil, errors.Wrap(err, "--exclude")
	}
	p.exclude = make(map[int]bool, len(ex))
	for _, idx := range ex {
		p.exclude[idx] = true
	}
	return p, nil
}

func selectFields(
	config *selectConfig,
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

	p, err := newProjection(config, header)
	if err != nil {
		return err
	}

	buf := []byte{}
	if header != nil {
		if buf, err = p.apply(buf[:0], hline); err != nil {
			return errors.Wrapf(err, "%s header", r.Name())
		}
		if err := w.WriteRecord(buf); err != nil {
			return err
		}
	}

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
		if buf, err = p.apply(buf[:0], line); err != nil {
			return errors.Wrapf(err, "%s line %d", r.Name(), r.LineNum())
		}
		if err := w.WriteRecord(buf); err != nil {
			return err
		}
	}
	return nil
}
