package sample

import (
	"io"
	"log/slog"
	"math/rand/v2"

	"github.com/dianpeng/tsvkit/fieldlist"
	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
	"github.com/pkg/errors"
)

type Config struct {
	Inputs []string
	Open   tsvio.Opener
	Header bool
	Delim  byte

	Prob        float64
	probSet     bool
	Num         int
	Replace     bool
	Inorder     bool
	WeightField string
	KeyFields   string

	PrintRandom       bool
	RandomValueHeader string
	GenRandomInorder  bool
	CompatMode        bool

	StaticSeed bool
	SeedValue  uint64 // non-zero overrides StaticSeed
}

// SetProb turns on Bernoulli sampling.
func (self *Config) SetProb(p float64) {
	self.Prob = p
	self.probSet = true
}

func (self *Config) Validate() error {
	if self.probSet && !(self.Prob > 0 && self.Prob <= 1) {
		return errors.Errorf("invalid --prob %v, must satisfy 0.0 < prob <= 1.0", self.Prob)
	}
	if self.Num < 0 {
		return errors.Errorf("invalid --num %d", self.Num)
	}

	sampling := self.probSet || self.Num > 0 || self.Replace || self.Inorder ||
		self.WeightField != "" || self.KeyFields != "" || self.CompatMode
	checks := []struct {
		bad bool
		msg string
	}{
		{self.GenRandomInorder && sampling, "--gen-random-inorder cannot be used with sampling options"},
		{self.Num > 0 && self.probSet, "--num and --prob cannot be used together"},
		{self.Replace && self.probSet, "--replace and --prob cannot be used together"},
		{self.Replace && self.Num == 0, "--replace requires --num greater than zero"},
		{self.Inorder && self.probSet, "--inorder and --prob cannot be used together"},
		{self.Inorder && self.Replace, "--inorder and --replace cannot be used together"},
		{self.Inorder && self.Num == 0, "--inorder requires --num greater than zero"},
		{self.WeightField != "" && self.probSet, "--weight-field and --prob cannot be used together"},
		{self.WeightField != "" && self.Replace, "--weight-field and --replace cannot be used together"},
		{self.KeyFields != "" && !self.probSet, "--key-fields requires --prob"},
		{self.KeyFields != "" && self.Num > 0, "--key-fields and --num cannot be used together"},
		{self.KeyFields != "" && self.Replace, "--key-fields and --replace cannot be used together"},
		{self.KeyFields != "" && self.Inorder, "--key-fields and --inorder cannot be used together"},
		{self.KeyFields != "" && self.WeightField != "", "--key-fields and --weight-field cannot be used together"},
		{self.PrintRandom && self.Replace, "--print-random and --replace cannot be used together"},
	}
	for _, c := range checks {
		if c.bad {
			return errors.New(c.msg)
		}
	}

	if self.RandomValueHeader == "" {
		self.RandomValueHeader = "random_value"
	}
	if self.Delim == 0 {
		self.Delim = '\t'
	}
	return nil
}

// PickSeed applies the seed rules, an explicit non-zero value wins over the
// static seed and neither of them draws a fresh seed.
func PickSeed(
	static bool,
	value uint64,
) uint64 {
	switch {
	case value != 0:
		return value
	case static:
		return DefaultSeed
	default:
		return rand.Uint64()
	}
}

// Seed returns the seed of the run.
func (self *Config) Seed() uint64 {
	return PickSeed(self.StaticSeed, self.SeedValue)
}

// printsRandom reports whether emitted records carry their random value.
func (self *Config) printsRandom() bool {
	return self.PrintRandom || self.GenRandomInorder
}

// choose selects the strategy of the configuration, the order of the cases
// is the precedence among options.
func (self *Config) choose(
	rng *RNG,
	header *fieldlist.Header,
) (strategy, string, error) {
	switch {
	case self.GenRandomInorder:
		return &randomInorder{rng: rng}, "gen-random-inorder", nil

	case self.probSet && self.KeyFields != "":
		r := fieldlist.Resolver{Header: header, Ordered: true, AllowWholeLine: true}
		keys, err := r.Resolve(self.KeyFields)
		if err != nil {
			return nil, "", errors.Wrap(err, "--key-fields")
		}
		return &distinctBernoulli{
			rng:  rng,
			p:    self.Prob,
			keys: record.NewKeyExtractor(keys, self.Delim, false, true),
			seen: make(map[string]float64),
		}, "distinct-bernoulli", nil

	case self.probSet:
		return newBernoulli(rng, self.Prob, self.PrintRandom), "bernoulli", nil

	case self.Replace:
		return &replacement{buffered: buffered{rng: rng}, k: self.Num}, "replacement", nil

	case self.Inorder:
		if self.PrintRandom {
			return &randomKeyed{rng: rng, k: self.Num, inputOrder: true}, "inorder", nil
		}
		return &inorder{buffered: buffered{rng: rng}, k: self.Num}, "inorder", nil

	case self.WeightField != "":
		idx, err := fieldlist.Resolve(self.WeightField, header)
		if err != nil {
			return nil, "", errors.Wrap(err, "--weight-field")
		}
		if len(idx) != 1 {
			return nil, "", errors.Errorf("--weight-field %q must name a single field", self.WeightField)
		}
		return &weighted{
			rng:   rng,
			k:     self.Num,
			field: idx[0],
			sp:    record.NewSplitter(self.Delim),
		}, "weighted-reservoir", nil

	case self.Num > 0 && self.CompatMode:
		return &randomKeyed{rng: rng, k: self.Num}, "compat", nil

	case self.Num > 0 && self.PrintRandom:
		return &weighted{rng: rng, k: self.Num}, "reservoir", nil

	case self.Num > 0:
		return &reservoir{rng: rng, k: self.Num}, "reservoir", nil

	case self.CompatMode || self.PrintRandom:
		return &randomKeyed{rng: rng}, "compat", nil

	default:
		return &shuffle{buffered: buffered{rng: rng}}, "shuffle", nil
	}
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
	if config.Header && hline != nil {
		header = fieldlist.ParseHeader(hline, config.Delim)
	}

	seed := config.Seed()
	s, name, err := config.choose(NewRNG(seed), header)
	if err != nil {
		return err
	}
	slog.Debug("sampling", "strategy", name, "seed", seed, "num", config.Num, "prob", config.Prob)

	out := &output{
		w:           w,
		delim:       config.Delim,
		printRandom: config.printsRandom(),
	}

	if hline != nil {
		if out.printRandom {
			w.WriteString(config.RandomValueHeader)
			w.WriteByte(config.Delim)
		}
		if err := w.WriteRecord(hline); err != nil {
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
		if err := s.add(line, out); err != nil {
			return errors.Wrapf(err, "%s line %d", r.Name(), r.LineNum())
		}
	}
	return s.finish(out)
}
