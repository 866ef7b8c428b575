// Package quantum implements the state-vector engine: the amplitude vector of an
// N-qubit register and the gate application kernel that evolves it.
//
// Basis index i encodes qubit values as bits: bit q of i is qubit q.
package quantum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/floats"

	"qtermsim/internal/gate"
)

// MaxQubits is the hard engine ceiling. 2^20 amplitudes is 16 MiB per buffer.
const MaxQubits = 20

var (
	ErrNoQubits      = errors.New("register needs at least one qubit")
	ErrTooManyQubits = errors.New("qubit count exceeds engine ceiling")
	ErrBasisIndex    = errors.New("basis index out of range")
)

type Complex = complex128

// State is an amplitude vector plus a scratch buffer of the same length. Apply
// writes into the scratch buffer and swaps, so a circuit fold allocates nothing
// per gate.
type State struct {
	amps      []Complex
	scratch   []Complex
	numQubits int
}

// New returns the all-zero basis state |0…0⟩.
func New(numQubits int) (*State, error) {
	return NewBasis(numQubits, 0)
}

// NewBasis returns the computational basis state |index⟩.
func NewBasis(numQubits, index int) (*State, error) {
	if err := CheckQubits(numQubits); err != nil {
		return nil, err
	}
	n := 1 << numQubits
	if index < 0 || index >= n {
		return nil, fmt.Errorf("%w: %d of %d", ErrBasisIndex, index, n)
	}
	amps := make([]Complex, n)
	amps[index] = 1
	return &State{amps: amps, scratch: make([]Complex, n), numQubits: numQubits}, nil
}

// CheckQubits validates a register size against the engine ceiling.
func CheckQubits(numQubits int) error {
	if numQubits < 1 {
		return ErrNoQubits
	}
	if numQubits > MaxQubits {
		return fmt.Errorf("%w: %d > %d", ErrTooManyQubits, numQubits, MaxQubits)
	}
	return nil
}

func (s *State) NumQubits() int { return s.numQubits }

// Len is 2^N.
func (s *State) Len() int { return len(s.amps) }

// Amplitude returns the coefficient of basis state i.
func (s *State) Amplitude(i int) Complex { return s.amps[i] }

// Amplitudes returns a copy of the amplitude vector.
func (s *State) Amplitudes() []Complex {
	out := make([]Complex, len(s.amps))
	copy(out, s.amps)
	return out
}

func (s *State) Clone() *State {
	c := &State{
		amps:      make([]Complex, len(s.amps)),
		scratch:   make([]Complex, len(s.amps)),
		numQubits: s.numQubits,
	}
	copy(c.amps, s.amps)
	return c
}

// Apply validates g against the register and applies it in place.
func (s *State) Apply(g gate.Descriptor) error {
	if err := g.Validate(s.numQubits); err != nil {
		return err
	}
	s.apply(g)
	return nil
}

func (s *State) apply(g gate.Descriptor) {
	Apply(s.scratch, s.amps, g)
	s.amps, s.scratch = s.scratch, s.amps
}

// Apply writes g·src into dst. dst and src must have equal length 2^N and must
// not overlap; g must already be validated for N. Every slot of dst is written.
// It panics on a descriptor with no gate kind, such as the zero Descriptor.
// Use State.Apply for checked application.
func Apply(dst, src []Complex, g gate.Descriptor) {
	t := g.Target()
	tBit := 1 << t
	lowMask := tBit - 1
	rule := g.Kind().Rule()
	if rule == nil {
		panic(fmt.Sprintf("quantum.Apply: unvalidated descriptor %s", g))
	}

	cBit := 0
	if c, ok := g.Control(); ok {
		cBit = 1 << c
	}

	pairs := len(src) >> 1
	for k := 0; k < pairs; k++ {
		// Reinsert a zero at bit t: low bits stay, high bits shift up by one.
		idx0 := (k & lowMask) | ((k &^ lowMask) << 1)
		idx1 := idx0 | tBit
		if cBit != 0 && idx0&cBit == 0 {
			dst[idx0], dst[idx1] = src[idx0], src[idx1]
			continue
		}
		dst[idx0], dst[idx1] = rule(src[idx0], src[idx1])
	}
}

// Validate checks every gate against numQubits before anything is simulated.
func Validate(numQubits int, gates []gate.Descriptor) error {
	if err := CheckQubits(numQubits); err != nil {
		return err
	}
	for i, g := range gates {
		if err := g.Validate(numQubits); err != nil {
			return fmt.Errorf("gate %d: %w", i, err)
		}
	}
	return nil
}

// Simulate folds gates, in order, over |0…0⟩.
func Simulate(numQubits int, gates []gate.Descriptor) (*State, error) {
	return SimulateFrom(numQubits, 0, gates)
}

// SimulateFrom folds gates, in order, over the basis state |index⟩.
func SimulateFrom(numQubits, index int, gates []gate.Descriptor) (*State, error) {
	if err := Validate(numQubits, gates); err != nil {
		return nil, err
	}
	s, err := NewBasis(numQubits, index)
	if err != nil {
		return nil, err
	}
	for _, g := range gates {
		s.apply(g)
	}
	return s, nil
}

// Probabilities returns |amplitude[i]|² for every basis state, clamped to [0,1].
func (s *State) Probabilities() []float64 {
	probs := make([]float64, len(s.amps))
	for i, a := range s.amps {
		probs[i] = clamp01(SquaredMagnitude(a))
	}
	return probs
}

// Norm returns Σ|amplitude[i]|², which is 1 for any well-formed circuit.
func (s *State) Norm() float64 {
	probs := make([]float64, len(s.amps))
	for i, a := range s.amps {
		probs[i] = SquaredMagnitude(a)
	}
	return floats.Sum(probs)
}

// Marginal is the measurement distribution of one qubit.
type Marginal struct {
	Prob0 float64
	Prob1 float64
}

// Marginals returns P(0) and P(1) for each qubit.
func (s *State) Marginals() []Marginal {
	out := make([]Marginal, s.numQubits)
	for i, a := range s.amps {
		p := SquaredMagnitude(a)
		for q := 0; q < s.numQubits; q++ {
			if i&(1<<q) != 0 {
				out[q].Prob1 += p
			} else {
				out[q].Prob0 += p
			}
		}
	}
	for q := range out {
		out[q].Prob0 = clamp01(out[q].Prob0)
		out[q].Prob1 = clamp01(out[q].Prob1)
	}
	return out
}

// Term is one basis state with non-negligible weight.
type Term struct {
	Index     int
	Amplitude Complex
	Prob      float64
	Phase     float64
}

// Support lists the basis states whose probability exceeds eps, in index order.
func (s *State) Support(eps float64) []Term {
	terms := make([]Term, 0, len(s.amps))
	for i, a := range s.amps {
		p := SquaredMagnitude(a)
		if p > eps {
			terms = append(terms, Term{Index: i, Amplitude: a, Prob: clamp01(p), Phase: cmplx.Phase(a)})
		}
	}
	return terms
}

// SquaredMagnitude is |a|² without the square root of cmplx.Abs.
func SquaredMagnitude(a Complex) float64 {
	return real(a)*real(a) + imag(a)*imag(a)
}

// BasisLabel renders index as a ket with qubit 0 leftmost, so index 1 on two
// qubits is |10⟩.
func BasisLabel(index, numQubits int) string {
	b := make([]byte, numQubits)
	for q := 0; q < numQubits; q++ {
		b[q] = '0'
		if index&(1<<q) != 0 {
			b[q] = '1'
		}
	}
	return "|" + string(b) + "⟩"
}

func clamp01(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}
