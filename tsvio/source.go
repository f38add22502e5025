package tsvio

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"
)

// Opener opens a named input source.
type Opener func(name string) (io.ReadCloser, error)

// StaticOpener serves sources from memory, keyed by name.
func StaticOpener(sources map[string]string) Opener {
	return func(name string) (io.ReadCloser, error) {
		data, ok := sources[name]
		if !ok {
			return nil, errors.Errorf("could not open %s: no such source", name)
		}
		return io.NopCloser(strings.NewReader(data)), nil
	}
}

// IsStdin reports whether name denotes standard input.
func IsStdin(name string) bool {
	return name == "-" || name == "stdin"
}

type multiCloser struct {
	io.Reader
	closers []func() error
}

func (self *multiCloser) Close() error {
	var first error
	for _, c := range self.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Open opens one input source. "-" and "stdin" are standard input, a .gz,
// .zst or .lz4 suffix is transparently decompressed.
func Open(name string) (io.ReadCloser, error) {
	if IsStdin(name) {
		return io.NopCloser(os.Stdin), nil
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", name)
	}

	switch {
	case strings.HasSuffix(name, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "could not open %s", name)
		}
		return &multiCloser{
			Reader:  zr,
			closers: []func() error{zr.Close, f.Close},
		}, nil

	case strings.HasSuffix(name, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, errors.Wrapf(err, "could not open %s", name)
		}
		return &multiCloser{
			Reader: zr,
			closers: []func() error{
				func() error { zr.Close(); return nil },
				f.Close,
			},
		}, nil

	case strings.HasSuffix(name, ".lz4"):
		return &multiCloser{
			Reader:  lz4.NewReader(f),
			closers: []func() error{f.Close},
		}, nil

	default:
		return f, nil
	}
}
