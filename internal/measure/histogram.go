package measure

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Histogram counts outcomes by basis index.
type Histogram struct {
	Counts []int `json:"counts" yaml:"counts" msgpack:"counts"`
	Shots  int   `json:"shots" yaml:"shots" msgpack:"shots"`
}

// NewHistogram returns an empty histogram over size basis states.
func NewHistogram(size int) *Histogram {
	return &Histogram{Counts: make([]int, size)}
}

// Reset zeroes every count and resizes to size basis states.
func (h *Histogram) Reset(size int) {
	if cap(h.Counts) >= size {
		h.Counts = h.Counts[:size]
		clear(h.Counts)
	} else {
		h.Counts = make([]int, size)
	}
	h.Shots = 0
}

func (h *Histogram) Clone() *Histogram {
	c := &Histogram{Counts: make([]int, len(h.Counts)), Shots: h.Shots}
	copy(c.Counts, h.Counts)
	return c
}

// Frequencies returns Counts / Shots, or all zeros before the first shot.
func (h *Histogram) Frequencies() []float64 {
	f := make([]float64, len(h.Counts))
	if h.Shots == 0 {
		return f
	}
	for i, c := range h.Counts {
		f[i] = float64(c)
	}
	floats.Scale(1/float64(h.Shots), f)
	return f
}

// Stats summarizes the outcome indices.
type Stats struct {
	Mean   float64 `json:"mean" yaml:"mean" msgpack:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev" msgpack:"std_dev"`
	Mode   int     `json:"mode" yaml:"mode" msgpack:"mode"`
}

// Stats returns the weighted mean and standard deviation of the outcome index
// and the most frequent outcome. Zero value when nothing has been sampled.
func (h *Histogram) Stats() Stats {
	if h.Shots == 0 {
		return Stats{}
	}
	x := make([]float64, len(h.Counts))
	w := make([]float64, len(h.Counts))
	mode := 0
	for i, c := range h.Counts {
		x[i] = float64(i)
		w[i] = float64(c)
		if c > h.Counts[mode] {
			mode = i
		}
	}
	mean, std := stat.MeanStdDev(x, w)
	if h.Shots < 2 {
		std = 0
	}
	return Stats{Mean: mean, StdDev: std, Mode: mode}
}

// ChiSquare is Pearson's statistic of the counts against the expected
// probabilities. Outcomes with zero expected probability are skipped.
func (h *Histogram) ChiSquare(probs []float64) float64 {
	var obs, exp []float64
	for i, p := range probs {
		if p <= 0 || i >= len(h.Counts) {
			continue
		}
		obs = append(obs, float64(h.Counts[i]))
		exp = append(exp, p*float64(h.Shots))
	}
	if len(obs) == 0 {
		return 0
	}
	return stat.ChiSquare(obs, exp)
}
