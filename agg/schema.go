package agg

import (
	"bytes"
	"math"
	"sort"
	"strconv"

	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/sample"
)

// ----------------------------------------------------------------------------
// Slot layout. Every operation owns its own slots in the parallel vectors of
// a State, two operations never share one even when they read the same
// field, since each one updates its slots once per record.
//
//   floats   running sums, sums of squares, logs, inverses, min and max
//   counts   number of values that contributed to the floats
//   values   numeric samples kept for the order statistics
//   strs     single string value, first or last
//   lists    every string value, collapse and rand
//   counters string value to count, in first seen order
// ----------------------------------------------------------------------------

// Operation is one operator applied to one field, Field is 1-based and
// unused by Count.
type Operation struct {
	Op    Op
	Field int

	f0, f1 int // floats
	c      int // counts
	v      int // values
	s      int // strs
	l      int // lists
	m      int // counters
}

type Schema struct {
	Ops []Operation

	nFloats   int
	nCounts   int
	nValues   int
	nStrs     int
	nLists    int
	nCounters int
	max       int
	rng       *sample.RNG
}

func NewSchema(
	ops []Operation,
	rng *sample.RNG,
) *Schema {
	s := &Schema{rng: rng}
	for _, op := range ops {
		op.f0, op.f1, op.c, op.v, op.s, op.l, op.m = -1, -1, -1, -1, -1, -1, -1

		switch op.Op {
		case OpCount:
			break
		case OpSum:
			op.f0 = s.float()
			break
		case OpMean, OpGeoMean, OpHarmMean:
			op.f0 = s.float()
			op.c = s.count()
			break
		case OpVariance, OpStdev, OpCV:
			op.f0 = s.float()
			op.f1 = s.float()
			op.c = s.count()
			break
		case OpMin, OpMax, OpRange:
			op.f0 = s.float()
			op.f1 = s.float()
			op.c = s.count()
			break
		case OpMedian, OpQ1, OpQ3, OpIQR, OpMad:
			op.v = s.nValues
			s.nValues++
			break
		case OpFirst, OpLast:
			op.s = s.nStrs
			s.nStrs++
			break
		case OpCollapse, OpRand:
			op.l = s.nLists
			s.nLists++
			break
		case OpNUnique, OpMode, OpUnique:
			op.m = s.nCounters
			s.nCounters++
			break
		}

		if op.Field > s.max {
			s.max = op.Field
		}
		s.Ops = append(s.Ops, op)
	}
	return s
}

func (self *Schema) float() int {
	self.nFloats++
	return self.nFloats - 1
}

func (self *Schema) count() int {
	self.nCounts++
	return self.nCounts - 1
}

// MaxField is the largest field any operation reads.
func (self *Schema) MaxField() int { return self.max }

type counter struct {
	index  map[string]int
	keys   []string
	counts []int
}

func (self *counter) add(v []byte) {
	if i, ok := self.index[string(v)]; ok {
		self.counts[i]++
		return
	}
	self.index[string(v)] = len(self.keys)
	self.keys = append(self.keys, string(v))
	self.counts = append(self.counts, 1)
}

// State is the accumulated data of one group.
type State struct {
	Records int

	floats   []float64
	counts   []int
	values   [][]float64
	strs     [][]byte
	hasStr   []bool
	lists    [][][]byte
	counters []*counter
}

func (self *Schema) NewState() *State {
	st := &State{
		floats:   make([]float64, self.nFloats),
		counts:   make([]int, self.nCounts),
		values:   make([][]float64, self.nValues),
		strs:     make([][]byte, self.nStrs),
		hasStr:   make([]bool, self.nStrs),
		lists:    make([][][]byte, self.nLists),
		counters: make([]*counter, self.nCounters),
	}
	for i := range st.counters {
		st.counters[i] = &counter{index: make(map[string]int)}
	}
	for _, op := range self.Ops {
		switch op.Op {
		case OpMin, OpMax, OpRange:
			st.floats[op.f0] = math.Inf(1)
			st.floats[op.f1] = math.Inf(-1)
			break
		}
	}
	return st
}

func trimASCII(b []byte) []byte {
	return bytes.Trim(b, " \t\r\n\v\f")
}

func parseNum(b []byte) (float64, bool) {
	b = trimASCII(b)
	if len(b) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// Update folds the record located by sp into st.
func (self *Schema) Update(
	st *State,
	sp *record.Splitter,
) {
	st.Records++
	for i := range self.Ops {
		op := &self.Ops[i]
		if op.Op == OpCount {
			continue
		}
		f, ok := sp.Field(op.Field)
		if !ok {
			continue
		}
		if op.Op.Numeric() {
			if v, ok := parseNum(f); ok {
				self.addNum(st, op, v)
			}
		} else {
			self.addStr(st, op, f)
		}
	}
}

func (self *Schema) addNum(
	st *State,
	op *Operation,
	v float64,
) {
	switch op.Op {
	case OpSum:
		st.floats[op.f0] += v
		break

	case OpMean:
		st.floats[op.f0] += v
		st.counts[op.c]++
		break

	case OpGeoMean:
		if v > 0 {
			st.floats[op.f0] += math.Log(v)
			st.counts[op.c]++
		}
		break

	case OpHarmMean:
		if v != 0 {
			st.floats[op.f0] += 1 / v
			st.counts[op.c]++
		}
		break

	case OpVariance, OpStdev, OpCV:
		st.floats[op.f0] += v
		st.floats[op.f1] += v * v
		st.counts[op.c]++
		break

	case OpMin, OpMax, OpRange:
		if v < st.floats[op.f0] {
			st.floats[op.f0] = v
		}
		if v > st.floats[op.f1] {
			st.floats[op.f1] = v
		}
		st.counts[op.c]++
		break

	case OpMedian, OpQ1, OpQ3, OpIQR, OpMad:
		st.values[op.v] = append(st.values[op.v], v)
		break
	}
}

func (self *Schema) addStr(
	st *State,
	op *Operation,
	v []byte,
) {
	switch op.Op {
	case OpFirst:
		if !st.hasStr[op.s] {
			st.strs[op.s] = append([]byte(nil), v...)
			st.hasStr[op.s] = true
		}
		break

	case OpLast:
		st.strs[op.s] = append(st.strs[op.s][:0], v...)
		st.hasStr[op.s] = true
		break

	case OpCollapse, OpRand:
		st.lists[op.l] = append(st.lists[op.l], append([]byte(nil), v...))
		break

	case OpNUnique, OpMode, OpUnique:
		st.counters[op.m].add(v)
		break
	}
}

// Quantile of sorted by linear interpolation between the closest ranks.
func Quantile(
	sorted []float64,
	p float64,
) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	pos := p * float64(n-1)
	lo := math.Floor(pos)
	i := int(lo)
	if i+1 >= n {
		return sorted[n-1]
	}
	return sorted[i] + (sorted[i+1]-sorted[i])*(pos-lo)
}

func sortedValues(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Float64s(out)
	return out
}

func variance(sum, sumSq float64, n int) float64 {
	if n <= 1 {
		return math.NaN()
	}
	v := (sumSq - sum*sum/float64(n)) / float64(n-1)
	if v < 0 {
		// rounding on constant samples
		return 0
	}
	return v
}

// AppendResult renders the result of operation i over st.
func (self *Schema) AppendResult(
	dst []byte,
	st *State,
	i int,
	precision int,
) []byte {
	op := &self.Ops[i]
	num := func(v float64) []byte { return AppendNumber(dst, v, precision) }

	switch op.Op {
	case OpCount:
		return strconv.AppendInt(dst, int64(st.Records), 10)

	case OpSum:
		return num(st.floats[op.f0])

	case OpMean:
		n := st.counts[op.c]
		if n == 0 {
			return num(math.NaN())
		}
		return num(st.floats[op.f0] / float64(n))

	case OpGeoMean:
		n := st.counts[op.c]
		if n == 0 {
			return num(math.NaN())
		}
		return num(math.Exp(st.floats[op.f0] / float64(n)))

	case OpHarmMean:
		n := st.counts[op.c]
		if n == 0 {
			return num(math.NaN())
		}
		return num(float64(n) / st.floats[op.f0])

	case OpVariance, OpStdev, OpCV:
		n := st.counts[op.c]
		v := variance(st.floats[op.f0], st.floats[op.f1], n)
		switch op.Op {
		case OpVariance:
			return num(v)
		case OpStdev:
			return num(math.Sqrt(v))
		default:
			return num(math.Sqrt(v) / (st.floats[op.f0] / float64(n)))
		}

	case OpMin, OpMax, OpRange:
		if st.counts[op.c] == 0 {
			return num(math.NaN())
		}
		switch op.Op {
		case OpMin:
			return num(st.floats[op.f0])
		case OpMax:
			return num(st.floats[op.f1])
		default:
			return num(st.floats[op.f1] - st.floats[op.f0])
		}

	case OpMedian, OpQ1, OpQ3, OpIQR, OpMad:
		s := sortedValues(st.values[op.v])
		switch op.Op {
		case OpMedian:
			return num(Quantile(s, 0.5))
		case OpQ1:
			return num(Quantile(s, 0.25))
		case OpQ3:
			return num(Quantile(s, 0.75))
		case OpIQR:
			return num(Quantile(s, 0.75) - Quantile(s, 0.25))
		default:
			return num(Mad(s))
		}

	case OpFirst, OpLast:
		return append(dst, st.strs[op.s]...)

	case OpCollapse:
		return appendJoined(dst, st.lists[op.l])

	case OpRand:
		l := st.lists[op.l]
		if len(l) == 0 {
			return dst
		}
		return append(dst, l[self.rng.Below(len(l))]...)

	case OpNUnique:
		return strconv.AppendInt(dst, int64(len(st.counters[op.m].keys)), 10)

	case OpMode:
		c := st.counters[op.m]
		best := -1
		for i, k := range c.keys {
			if best < 0 || c.counts[i] > c.counts[best] ||
				(c.counts[i] == c.counts[best] && k < c.keys[best]) {
				best = i
			}
		}
		if best < 0 {
			return dst
		}
		return append(dst, c.keys[best]...)

	case OpUnique:
		c := st.counters[op.m]
		for i, k := range c.keys {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, k...)
		}
		return dst
	}
	return dst
}

// Mad is the median absolute deviation from the median of sorted.
func Mad(sorted []float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	m := Quantile(sorted, 0.5)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - m)
	}
	sort.Float64s(dev)
	return Quantile(dev, 0.5)
}

func appendJoined(dst []byte, list [][]byte) []byte {
	for i, v := range list {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, v...)
	}
	return dst
}

// AppendNumber renders v: integral values without a fraction, others with at
// most precision decimals and no trailing zeros.
func AppendNumber(
	dst []byte,
	v float64,
	precision int,
) []byte {
	switch {
	case math.IsNaN(v):
		return append(dst, "nan"...)
	case math.IsInf(v, 1):
		return append(dst, "inf"...)
	case math.IsInf(v, -1):
		return append(dst, "-inf"...)
	case v == 0:
		return append(dst, '0')
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.AppendFloat(dst, v, 'f', 0, 64)
	}

	start := len(dst)
	dst = strconv.AppendFloat(dst, v, 'f', precision, 64)
	if bytes.IndexByte(dst[start:], '.') >= 0 {
		dst = bytes.TrimRight(dst, "0")
		dst = bytes.TrimSuffix(dst, []byte{'.'})
	}
	if s := dst[start:]; string(s) == "-0" {
		dst = append(dst[:start], '0')
	}
	return dst
}
