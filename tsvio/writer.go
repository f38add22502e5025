package tsvio

import (
	"bufio"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// Writer is the buffered sink shared by every command. Records are written
// piecewise and terminated with EndRecord, which flushes when line buffering
// is on.
type Writer struct {
	w            *bufio.Writer
	closer       io.Closer
	lineBuffered bool
}

func NewWriter(
	w io.Writer,
	lineBuffered bool,
) *Writer {
	return &Writer{
		w:            bufio.NewWriterSize(w, defBufferSize),
		lineBuffered: lineBuffered,
	}
}

// Create opens the output named by name, "" and "-" are standard output.
// Output to a terminal is always line buffered.
func Create(
	name string,
	lineBuffered bool,
) (*Writer, error) {
	if name == "" || name == "-" {
		if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
			lineBuffered = true
		}
		return NewWriter(os.Stdout, lineBuffered), nil
	}
	f, err := os.Create(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", name)
	}
	w := NewWriter(f, lineBuffered)
	w.closer = f
	return w, nil
}

func (self *Writer) Write(p []byte) (int, error) { return self.w.Write(p) }

func (self *Writer) WriteString(s string) (int, error) { return self.w.WriteString(s) }

func (self *Writer) WriteByte(c byte) error { return self.w.WriteByte(c) }

// EndRecord terminates the current record.
func (self *Writer) EndRecord() error {
	if err := self.w.WriteByte('\n'); err != nil {
		return err
	}
	if self.lineBuffered {
		return self.w.Flush()
	}
	return nil
}

// WriteRecord writes line as a complete record.
func (self *Writer) WriteRecord(line []byte) error {
	if _, err := self.w.Write(line); err != nil {
		return err
	}
	return self.EndRecord()
}

func (self *Writer) Flush() error { return self.w.Flush() }

// Close flushes and closes the underlying file when the writer owns it.
func (self *Writer) Close() error {
	err := self.w.Flush()
	if self.closer != nil {
		if cerr := self.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
