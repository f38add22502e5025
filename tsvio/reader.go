package tsvio

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
)

var (
	ErrHeaderMismatch = errors.New("header length differs from the first input")
	ErrCRLF           = errors.New("Windows/DOS line ending (CRLF) found, convert the input to Unix newlines")
)

const defBufferSize = 64 * 1024

type ReaderConfig struct {
	Header     bool // first non-empty line of each source is a header
	Delim      byte
	RejectCRLF bool // a CRLF ending on the first non-empty line of a source is fatal
	BufferSize int
	Open       Opener // nil opens files with Open
}

// Reader concatenates a list of sources into one stream of records. Sources
// are opened lazily in argument order and closed as soon as they end.
//
// The record returned by Next borrows the internal buffer and is only valid
// until the next call.
type Reader struct {
	config ReaderConfig
	names  []string
	cur    int

	src  io.ReadCloser
	br   *bufio.Reader // nil between sources
	pool *bufio.Reader
	buf  []byte // spill buffer for lines longer than the bufio buffer

	lineNo     int  // line number inside the current source
	headerDone bool // header of the current source consumed
	crlfDone   bool // line ending of the current source checked

	header      []byte // header of the first source, owned
	headerWidth int
	headerSeen  bool
}

// NewReader reads names in order, an empty list reads standard input.
func NewReader(
	names []string,
	config ReaderConfig,
) *Reader {
	if len(names) == 0 {
		names = []string{"-"}
	}
	if config.Delim == 0 {
		config.Delim = '\t'
	}
	if config.BufferSize <= 0 {
		config.BufferSize = defBufferSize
	}
	if config.Open == nil {
		config.Open = Open
	}
	return &Reader{
		config: config,
		names:  names,
	}
}

// Name returns the name of the source currently read.
func (self *Reader) Name() string {
	if self.cur < len(self.names) {
		return self.names[self.cur]
	}
	return self.names[len(self.names)-1]
}

// LineNum returns the line number of the last record inside its source.
func (self *Reader) LineNum() int { return self.lineNo }

// Header returns the header line of the first source in header mode, nil
// when header mode is off or the input is empty. It must be called before
// the first call to Next to observe the header.
func (self *Reader) Header() ([]byte, error) {
	if !self.config.Header || self.headerSeen {
		return self.header, nil
	}
	for !self.headerSeen {
		line, isHeader, err := self.advance()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !isHeader {
			return nil, errors.New("header expected")
		}
		self.storeHeader(line)
	}
	return self.header, nil
}

func (self *Reader) storeHeader(line []byte) {
	self.header = append([]byte(nil), line...)
	self.headerWidth = bytes.Count(line, []byte{self.config.Delim}) + 1
	self.headerSeen = true
}

// Next returns the next data record, io.EOF once every source is drained.
// Headers of the second and later sources are checked and discarded.
func (self *Reader) Next() ([]byte, error) {
	for {
		line, isHeader, err := self.advance()
		if err != nil {
			return nil, err
		}
		if !isHeader {
			return line, nil
		}
		if !self.headerSeen {
			self.storeHeader(line)
			continue
		}
		if w := bytes.Count(line, []byte{self.config.Delim}) + 1; w != self.headerWidth {
			return nil, errors.Wrapf(
				ErrHeaderMismatch,
				"%s has %d header fields, expected %d",
				self.Name(),
				w,
				self.headerWidth,
			)
		}
	}
}

func (self *Reader) advance() ([]byte, bool, error) {
	for {
		if self.br == nil {
			if self.cur >= len(self.names) {
				return nil, false, io.EOF
			}
			src, err := self.config.Open(self.names[self.cur])
			if err != nil {
				return nil, false, err
			}
			self.src = src
			if self.pool == nil {
				self.pool = bufio.NewReaderSize(src, self.config.BufferSize)
			} else {
				self.pool.Reset(src)
			}
			self.br = self.pool
			self.lineNo = 0
			self.headerDone = false
			self.crlfDone = false
		}

		line, err := self.readLine()
		if err == io.EOF {
			if err := self.closeSource(); err != nil {
				return nil, false, err
			}
			self.cur++
			continue
		}
		if err != nil {
			self.closeSource()
			if errors.Is(err, ErrCRLF) {
				return nil, false, err
			}
			return nil, false, errors.Wrapf(err, "reading %s", self.names[self.cur])
		}

		if self.config.Header && !self.headerDone {
			if len(line) == 0 {
				continue
			}
			self.headerDone = true
			return line, true, nil
		}
		return line, false, nil
	}
}

func (self *Reader) readLine() ([]byte, error) {
	line, err := self.br.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		self.buf = append(self.buf[:0], line...)
		for err == bufio.ErrBufferFull {
			line, err = self.br.ReadSlice('\n')
			self.buf = append(self.buf, line...)
		}
		line = self.buf
	}

	switch err {
	case nil:
		break
	case io.EOF:
		if len(line) == 0 {
			return nil, io.EOF
		}
		break
	default:
		return nil, err
	}

	self.lineNo++
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	n := len(line)
	if self.config.RejectCRLF && !self.crlfDone && n > 0 {
		self.crlfDone = true
		if line[n-1] == '\r' {
			return nil, errors.Wrapf(ErrCRLF, "%s, line %d", self.names[self.cur], self.lineNo)
		}
	}
	if n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}

func (self *Reader) closeSource() error {
	if self.src == nil {
		return nil
	}
	err := self.src.Close()
	self.src = nil
	self.br = nil
	return err
}

// Close releases the source currently open, if any.
func (self *Reader) Close() error {
	return self.closeSource()
}
