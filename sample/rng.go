package sample

import (
	"math"
	"math/rand/v2"
)

// DefaultSeed is the seed used by --static-seed.
const DefaultSeed = 2438424139

// RNG is the generator shared by every strategy.
type RNG struct {
	src *rand.Rand
}

func NewRNG(seed uint64) *RNG {
	return &RNG{
		src: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Float returns u in [0,1) from the top 53 bits of the next draw.
func (self *RNG) Float() float64 {
	return float64(self.src.Uint64()>>11) / (1 << 53)
}

// positive returns u in (0,1), for use under a logarithm.
func (self *RNG) positive() float64 {
	for {
		if u := self.Float(); u > 0 {
			return u
		}
	}
}

// Below returns a uniform integer in [0,n).
func (self *RNG) Below(n int) int {
	return int(self.src.Uint64N(uint64(n)))
}

// Shuffle permutes n elements with Fisher-Yates.
func (self *RNG) Shuffle(
	n int,
	swap func(i, j int),
) {
	for i := n - 1; i > 0; i-- {
		swap(i, self.Below(i+1))
	}
}

// geometricSkip draws the number of records skipped before the next one
// kept by a Bernoulli(p) sampler.
func (self *RNG) geometricSkip(p float64) int {
	if p >= 1 {
		return 0
	}
	v := math.Floor(math.Log(self.positive()) / math.Log1p(-p))
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
