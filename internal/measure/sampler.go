// Package measure draws computational-basis outcomes from a state's probability
// distribution and accumulates them into a histogram.
package measure

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
)

var ErrNegativeShots = errors.New("shot count must not be negative")

// Distribution is anything that exposes |amplitude[i]|² per basis index.
type Distribution interface {
	Probabilities() []float64
}

// Sampler owns a random source. It is not safe for concurrent use.
type Sampler struct {
	rng *rand.Rand
}

// NewSampler seeds a PCG source. Seed 0 picks one from the clock.
func NewSampler(seed uint64) *Sampler {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Sampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// CDF returns the running sums of probs.
func CDF(probs []float64) []float64 {
	cdf := make([]float64, len(probs))
	if len(probs) == 0 {
		return cdf
	}
	return floats.CumSum(cdf, probs)
}

// Select returns the smallest j with r < cdf[j]. When rounding leaves r at or
// above the final total, the last index is returned.
func Select(cdf []float64, r float64) int {
	j := sort.Search(len(cdf), func(i int) bool { return r < cdf[i] })
	if j == len(cdf) {
		return len(cdf) - 1
	}
	return j
}

// Sample draws shots outcomes into a fresh histogram.
func (s *Sampler) Sample(d Distribution, shots int) (*Histogram, error) {
	h := &Histogram{}
	if err := s.SampleInto(h, d, shots, false); err != nil {
		return nil, err
	}
	return h, nil
}

// SampleInto draws shots outcomes into h. Unless accumulate is set, or if h was
// sized for a different register, h is reset first.
func (s *Sampler) SampleInto(h *Histogram, d Distribution, shots int, accumulate bool) error {
	if shots < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeShots, shots)
	}
	probs := d.Probabilities()
	if !accumulate || len(h.Counts) != len(probs) {
		h.Reset(len(probs))
	}
	if len(probs) == 0 {
		return nil
	}
	cdf := CDF(probs)
	for i := 0; i < shots; i++ {
		h.Counts[Select(cdf, s.rng.Float64())]++
	}
	h.Shots += shots
	return nil
}
