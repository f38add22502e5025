package sample

import (
	"bytes"
	"container/heap"
	"math"
	"sort"
	"strconv"

	"github.com/dianpeng/tsvkit/record"
	"github.com/dianpeng/tsvkit/tsvio"
)

// ----------------------------------------------------------------------------
// Strategies. Each one sees the data records one at a time through add and
// emits either while streaming or from finish once the input is drained.
// Records kept past a call to add are copied, the reader reuses its buffer.
// ----------------------------------------------------------------------------

type strategy interface {
	add(line []byte, out *output) error
	finish(out *output) error
}

type output struct {
	w           *tsvio.Writer
	delim       byte
	printRandom bool
	num         []byte
}

// emit writes line, prefixed by its random value u when printing them.
func (self *output) emit(
	u float64,
	line []byte,
) error {
	if self.printRandom {
		self.num = strconv.AppendFloat(self.num[:0], u, 'f', 10, 64)
		self.w.Write(self.num)
		self.w.WriteByte(self.delim)
	}
	return self.w.WriteRecord(line)
}

func own(line []byte) []byte {
	return append([]byte(nil), line...)
}

// randomInorder prints every record in input order with its random value.
type randomInorder struct {
	rng *RNG
}

func (self *randomInorder) add(line []byte, out *output) error {
	return out.emit(self.rng.Float(), line)
}

func (self *randomInorder) finish(out *output) error { return nil }

// bernoulli keeps each record with probability p. Without random values to
// print it draws the gap to the next kept record instead of one value per
// record.
type bernoulli struct {
	rng     *RNG
	p       float64
	skip    int
	perLine bool
}

func newBernoulli(rng *RNG, p float64, perLine bool) *bernoulli {
	b := &bernoulli{rng: rng, p: p, perLine: perLine}
	if !perLine {
		b.skip = rng.geometricSkip(p)
	}
	return b
}

func (self *bernoulli) add(line []byte, out *output) error {
	if self.perLine {
		if u := self.rng.Float(); u < self.p {
			return out.emit(u, line)
		}
		return nil
	}
	if self.skip > 0 {
		self.skip--
		return nil
	}
	self.skip = self.rng.geometricSkip(self.p)
	return out.emit(0, line)
}

func (self *bernoulli) finish(out *output) error { return nil }

// distinctBernoulli draws once per key, every record sharing a key follows
// the first decision.
type distinctBernoulli struct {
	rng  *RNG
	p    float64
	keys *record.KeyExtractor
	seen map[string]float64
}

func (self *distinctBernoulli) add(line []byte, out *output) error {
	key, err := self.keys.Key(line)
	if err != nil {
		return err
	}
	u, ok := self.seen[string(key)]
	if !ok {
		u = self.rng.Float()
		self.seen[string(key)] = u
	}
	if u < self.p {
		return out.emit(u, line)
	}
	return nil
}

func (self *distinctBernoulli) finish(out *output) error { return nil }

// reservoir is Algorithm R over k slots, shuffled before emission.
type reservoir struct {
	rng   *RNG
	k     int
	seen  int
	lines [][]byte
}

func (self *reservoir) add(line []byte, out *output) error {
	if len(self.lines) < self.k {
		self.lines = append(self.lines, own(line))
	} else if j := self.rng.Below(self.seen + 1); j < self.k {
		self.lines[j] = own(line)
	}
	self.seen++
	return nil
}

func (self *reservoir) finish(out *output) error {
	self.rng.Shuffle(len(self.lines), func(i, j int) {
		self.lines[i], self.lines[j] = self.lines[j], self.lines[i]
	})
	for _, line := range self.lines {
		if err := out.emit(0, line); err != nil {
			return err
		}
	}
	return nil
}

type keyed struct {
	key  float64
	line []byte
}

type minHeap []keyed

func (self minHeap) Len() int { return len(self) }

func (self minHeap) Less(i, j int) bool { return self[i].key < self[j].key }

func (self minHeap) Swap(i, j int) { self[i], self[j] = self[j], self[i] }

func (self *minHeap) Push(x interface{}) { *self = append(*self, x.(keyed)) }

func (self *minHeap) Pop() interface{} {
	old := *self
	n := len(old)
	x := old[n-1]
	*self = old[:n-1]
	return x
}

// weighted is A-Res. Each record gets the key ln(u)/w and the k largest keys
// are retained, k == 0 retains every record. A field of 0 gives every record
// the weight 1, which turns it into a plain reservoir that can report the
// value each record was ranked by.
type weighted struct {
	rng   *RNG
	k     int
	field int
	sp    *record.Splitter
	h     minHeap
}

func (self *weighted) weight(line []byte) (float64, bool) {
	if self.field == 0 {
		return 1, true
	}
	self.sp.Split(line, self.field)
	f, ok := self.sp.Field(self.field)
	if !ok {
		return 0, false
	}
	w, err := strconv.ParseFloat(string(bytes.TrimSpace(f)), 64)
	if err != nil || math.IsNaN(w) || w <= 0 {
		return 0, false
	}
	return w, true
}

func (self *weighted) add(line []byte, out *output) error {
	w, ok := self.weight(line)
	if !ok {
		return nil
	}
	key := math.Log(self.rng.positive()) / w
	switch {
	case self.k == 0 || len(self.h) < self.k:
		heap.Push(&self.h, keyed{key: key, line: own(line)})
		break
	case key > self.h[0].key:
		self.h[0] = keyed{key: key, line: own(line)}
		heap.Fix(&self.h, 0)
		break
	}
	return nil
}

func (self *weighted) finish(out *output) error {
	all := make([]keyed, len(self.h))
	for i := len(all) - 1; i >= 0; i-- {
		all[i] = heap.Pop(&self.h).(keyed)
	}
	for _, v := range all {
		if err := out.emit(math.Exp(v.key), v.line); err != nil {
			return err
		}
	}
	return nil
}

// buffered is the base of the strategies that need the whole input.
type buffered struct {
	rng   *RNG
	lines [][]byte
}

func (self *buffered) add(line []byte, out *output) error {
	self.lines = append(self.lines, own(line))
	return nil
}

type shuffle struct {
	buffered
}

func (self *shuffle) finish(out *output) error {
	self.rng.Shuffle(len(self.lines), func(i, j int) {
		self.lines[i], self.lines[j] = self.lines[j], self.lines[i]
	})
	for _, line := range self.lines {
		if err := out.emit(0, line); err != nil {
			return err
		}
	}
	return nil
}

// inorder takes k uniformly chosen positions and emits them in input order.
type inorder struct {
	buffered
	k int
}

func (self *inorder) finish(out *output) error {
	n := len(self.lines)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	self.rng.Shuffle(n, func(i, j int) {
		idx[i], idx[j] = idx[j], idx[i]
	})
	if self.k < n {
		idx = idx[:self.k]
	}
	sort.Ints(idx)
	for _, i := range idx {
		if err := out.emit(0, self.lines[i]); err != nil {
			return err
		}
	}
	return nil
}

// randomKeyed buffers every record with a random value. Sorted by value it
// is the compatibility mode sample, whose first k records do not depend on
// k. With inputOrder the k records with the smallest values are emitted in
// input order instead.
type randomKeyed struct {
	rng        *RNG
	k          int
	inputOrder bool
	rows       []keyed
}

func (self *randomKeyed) add(line []byte, out *output) error {
	self.rows = append(self.rows, keyed{key: self.rng.Float(), line: own(line)})
	return nil
}

func (self *randomKeyed) finish(out *output) error {
	rows := self.rows
	pos := make([]int, len(rows))
	for i := range pos {
		pos[i] = i
	}
	sort.SliceStable(pos, func(i, j int) bool {
		return rows[pos[i]].key < rows[pos[j]].key
	})
	if self.k > 0 && self.k < len(pos) {
		pos = pos[:self.k]
	}
	if self.inputOrder {
		sort.Ints(pos)
	}
	for _, i := range pos {
		if err := out.emit(rows[i].key, rows[i].line); err != nil {
			return err
		}
	}
	return nil
}

// replacement emits k records drawn with replacement.
type replacement struct {
	buffered
	k int
}

func (self *replacement) finish(out *output) error {
	if len(self.lines) == 0 {
		return nil
	}
	for i := 0; i < self.k; i++ {
		if err := out.emit(0, self.lines[self.rng.Below(len(self.lines))]); err != nil {
			return err
		}
	}
	return nil
}
