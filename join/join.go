package join

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

var ErrDuplicateKey = errors.New("duplicate key with different append values")

// Config of a join run. The filter file is loaded in memory first, then
// every data input is streamed against it.
type Config struct {
	FilterFile string
	Inputs     []string
	Open       tsvio.Opener
	Header     bool
	Delim      byte

	KeyFields    string // filter file key, "0" is the whole line
	DataFields   string // data key, defaults to KeyFields
	AppendFields string // filter file fields appended to matching records

	Exclude      bool   // anti join
	WriteAll     string // left outer join filler
	writeAll     bool
	Prefix       string // prefix of appended header names
	AllowDupKeys bool
	IgnoreCase   bool
}

// SetWriteAll turns on left outer mode, v fills the append columns of
// records without a match.
func (self *Config) SetWriteAll(v string) {
	self.WriteAll = v
	self.writeAll = true
}

func (self *Config) Validate() error {
	if self.FilterFile == "" {
		return errors.New("--filter-file is required")
	}
	if self.Exclude && self.AppendFields != "" {
		return errors.New("--exclude and --append-fields cannot be used together")
	}
	if self.Exclude && self.writeAll {
		return errors.New("--exclude and --write-all cannot be used together")
	}
	if self.writeAll && self.AppendFields == "" {
		return errors.New("--write-all requires --append-fields")
	}
	if self.Prefix != "" && !self.Header {
		return errors.New("--prefix requires --header")
	}
	if tsvio.IsStdin(self.FilterFile) {
		if len(self.Inputs) == 0 {
			return errors.New("data file is required when standard input is the filter file")
		}
		for _, name := range self.Inputs {
			if tsvio.IsStdin(name) {
				return errors.New("standard input cannot be both the filter file and data file")
			}
		}
	}
	if self.KeyFields == "" {
		self.KeyFields = "0"
	}
	if self.DataFields == "" {
		self.DataFields = self.KeyFields
	}
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

func resolveKey(
	spec string,
	header *fieldlist.Header,
) ([]int, error) {
	r := fieldlist.Resolver{Header: header, Ordered: true, AllowWholeLine: true}
	return r.Resolve(spec)
}

func wholeLine(fields []int) bool {
	return len(fields) == 1 && fields[0] == 0
}

// Table is the in-memory side of the join, filter file key to the joined
// append fields.
type Table struct {
	Keys    []int
	Append  []int
	Header  *fieldlist.Header // nil without header mode
	entries map[string][]byte

	allowDup bool
	empty    bool // header mode filter file without a header line
}

func (self *Table) Len() int { return len(self.entries) }

// Lookup returns the append payload of key.
func (self *Table) Lookup(key []byte) ([]byte, bool) {
	v, ok := self.entries[string(key)]
	return v, ok
}

// Insert adds key with its payload. A duplicate key keeps the last payload
// when duplicates are allowed and otherwise must carry the same payload.
func (self *Table) Insert(
	key []byte,
	payload []byte,
) error {
	if old, ok := self.entries[string(key)]; ok && !self.allowDup {
		if bytes.Equal(old, payload) {
			return nil
		}
		return errors.Wrapf(ErrDuplicateKey, "key %q: %q and %q", key, old, payload)
	}
	self.entries[string(key)] = append([]byte(nil), payload...)
	return nil
}

// Load builds the table from the filter file.
func Load(config *Config) (*Table, error) {
	r := tsvio.NewReader([]string{config.FilterFile}, tsvio.ReaderConfig{
		Header: config.Header,
		Delim:  config.Delim,
		Open:   config.Open,
	})
	defer r.Close()

	hline, err := r.Header()
	if err != nil {
		return nil, err
	}
	var header *fieldlist.Header
	if config.Header {
		if hline == nil {
			return emptyTable(config)
		}
		header = fieldlist.ParseHeader(hline, config.Delim)
	}

	keys, err := resolveKey(config.KeyFields, header)
	if err != nil {
		return nil, errors.Wrap(err, "--key-fields")
	}
	var app []int
	if config.AppendFields != "" {
		app, err = fieldlist.ResolveOrdered(config.AppendFields, header)
		if err != nil {
			return nil, errors.Wrap(err, "--append-fields")
		}
	}

	table := &Table{
		Keys:     keys,
		Append:   app,
		Header:   header,
		entries:  make(map[string][]byte),
		allowDup: config.AllowDupKeys,
	}

	ke := record.NewKeyExtractor(keys, config.Delim, config.IgnoreCase, true)
	sp := record.NewSplitter(config.Delim)
	payload := []byte{}

	for {
		line, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(line) == 0 {
			continue
		}

		key, err := ke.Key(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s line %d", r.Name(), r.LineNum())
		}

		payload = payload[:0]
		if len(app) > 0 {
			sp.Split(line, fieldlist.Max(app))
			payload, err = sp.AppendJoined(payload, app, config.Delim, true)
			if err != nil {
				return nil, errors.Wrapf(err, "%s line %d", r.Name(), r.LineNum())
			}
		}
		if err := table.Insert(key, payload); err != nil {
			return nil, err
		}
	}

	slog.Debug("join filter loaded", "file", config.FilterFile, "keys", table.Len())
	return table, nil
}

// emptyTable stands for a header mode filter file with no lines at all. No
// key can match it, and the appended columns of --write-all can only be
// sized from numeric field lists.
func emptyTable(config *Config) (*Table, error) {
	table := &Table{
		entries: make(map[string][]byte),
		empty:   true,
	}
	if config.writeAll {
		app, err := fieldlist.ResolveOrdered(config.AppendFields, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "--append-fields, %s is empty", config.FilterFile)
		}
		table.Append = app
	}
	slog.Debug("join filter file empty", "file", config.FilterFile)
	return table, nil
}

// keyFor resolves the data side key against the data header and checks it
// pairs with the filter side key.
func (self *Table) keyFor(
	spec string,
	header *fieldlist.Header,
) ([]int, error) {
	keys, err := resolveKey(spec, header)
	if err != nil {
		return nil, errors.Wrap(err, "--data-fields")
	}
	if wholeLine(keys) != wholeLine(self.Keys) {
		return nil, errors.New("whole line as key must be used on both the filter file and the data")
	}
	if len(keys) != len(self.Keys) {
		return nil, errors.Errorf(
			"different number of --key-fields and --data-fields (%d and %d)",
			len(self.Keys),
			len(keys),
		)
	}
	return keys, nil
}

func (self *Table) writeHeader(
	w *tsvio.Writer,
	line []byte,
	config *Config,
) error {
	w.Write(line)
	for _, idx := range self.Append {
		w.WriteByte(config.Delim)
		w.WriteString(config.Prefix)
		if self.Header != nil {
			w.WriteString(self.Header.Name(idx))
		}
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
	table, err := Load(config)
	if err != nil {
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
	if config.Header && hline == nil {
		return nil
	}
	var header *fieldlist.Header
	if config.Header {
		header = fieldlist.ParseHeader(hline, config.Delim)
	}

	var ke *record.KeyExtractor
	if !table.empty {
		keys, err := table.keyFor(config.DataFields, header)
		if err != nil {
			return err
		}
		ke = record.NewKeyExtractor(keys, config.Delim, config.IgnoreCase, true)
	}
	if hline != nil {
		if err := table.writeHeader(w, hline, config); err != nil {
			return err
		}
	}

	outer := config.writeAll

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

		var payload []byte
		found := false
		if ke != nil {
			key, err := ke.Key(line)
			if err != nil {
				return errors.Wrapf(err, "%s line %d", r.Name(), r.LineNum())
			}
			payload, found = table.Lookup(key)
		}

		switch {
		case config.Exclude:
			if !found {
				if err := w.WriteRecord(line); err != nil {
					return err
				}
			}
			break

		case found:
			w.Write(line)
			if len(table.Append) > 0 {
				w.WriteByte(config.Delim)
				w.Write(payload)
			}
			if err := w.EndRecord(); err != nil {
				return err
			}
			break

		case outer:
			w.Write(line)
			for range table.Append {
				w.WriteByte(config.Delim)
				w.WriteString(config.WriteAll)
			}
			if err := w.EndRecord(); err != nil {
				return err
			}
			break
		}
	}
	return nil
}
