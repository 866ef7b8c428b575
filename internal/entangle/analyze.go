package entangle

import (
	"fmt"
	"math"

	"qtermsim/internal/density"
)

// MaxMutualInfoQubits is the largest register for which pairwise mutual
// information is exact with 2×2 reductions only.
const MaxMutualInfoQubits = 3

// QubitState is one qubit's reduced state as seen by a Bloch-sphere consumer.
// Phi is always 0: the reduction keeps P(|0⟩) and discards the azimuth.
type QubitState struct {
	Qubit   int     `json:"qubit" yaml:"qubit" msgpack:"qubit"`
	Prob0   float64 `json:"prob0" yaml:"prob0" msgpack:"prob0"`
	Prob1   float64 `json:"prob1" yaml:"prob1" msgpack:"prob1"`
	Theta   float64 `json:"theta" yaml:"theta" msgpack:"theta"`
	Phi     float64 `json:"phi" yaml:"phi" msgpack:"phi"`
	Entropy float64 `json:"entropy" yaml:"entropy" msgpack:"entropy"`
}

// Pair is the mutual information I(A:B) between two qubits, in bits.
type Pair struct {
	A    int     `json:"a" yaml:"a" msgpack:"a"`
	B    int     `json:"b" yaml:"b" msgpack:"b"`
	Bits float64 `json:"bits" yaml:"bits" msgpack:"bits"`
}

// Metrics bundles everything derived from one amplitude vector.
type Metrics struct {
	Qubits              []QubitState `json:"qubits" yaml:"qubits" msgpack:"qubits"`
	MutualInfoAvailable bool         `json:"mutual_info_available" yaml:"mutual_info_available" msgpack:"mutual_info_available"`
	MutualInfo          []Pair       `json:"mutual_info,omitempty" yaml:"mutual_info,omitempty" msgpack:"mutual_info,omitempty"`
	Bell                *BellReport  `json:"bell,omitempty" yaml:"bell,omitempty" msgpack:"bell,omitempty"`
}

// Entropies returns the per-qubit entropies in qubit order.
func (m *Metrics) Entropies() []float64 {
	out := make([]float64, len(m.Qubits))
	for i, q := range m.Qubits {
		out[i] = q.Entropy
	}
	return out
}

// Analyze reduces psi to each qubit once and derives every metric from those
// reductions.
func Analyze(psi density.Amplitudes) (*Metrics, error) {
	n := psi.NumQubits()
	m := &Metrics{Qubits: make([]QubitState, n)}

	var l1, l2 float64
	for q := 0; q < n; q++ {
		rho, err := density.Reduce(psi, q)
		if err != nil {
			return nil, fmt.Errorf("qubit %d: %w", q, err)
		}
		e1, e2, err := Eigenvalues(rho)
		if err != nil {
			return nil, fmt.Errorf("qubit %d: %w", q, err)
		}
		if q == 0 {
			l1, l2 = e1, e2
		}
		m.Qubits[q] = qubitState(q, real(rho.At(0, 0)), shannon(e1)+shannon(e2))
	}

	m.MutualInfo, m.MutualInfoAvailable = MutualInformation(m.Entropies())
	if n == 2 {
		m.Bell = bellReport(psi, l1, l2)
	}
	return m, nil
}

func qubitState(q int, p0, entropy float64) QubitState {
	p0 = math.Min(1, math.Max(0, p0))
	return QubitState{
		Qubit:   q,
		Prob0:   p0,
		Prob1:   1 - p0,
		Theta:   BlochTheta(p0),
		Entropy: entropy,
	}
}

// BlochTheta is 2·acos(√P(|0⟩)), with P clamped to [0,1].
func BlochTheta(p0 float64) float64 {
	p0 = math.Min(1, math.Max(0, p0))
	return 2 * math.Acos(math.Sqrt(p0))
}

// MutualInformation returns I(A:B) = S(A) + S(B) - S(AB) for every qubit pair,
// given the single-qubit entropies of a pure state. S(AB) comes from pure-state
// complementarity: 0 when A and B are the whole register, S(C) when one qubit C
// remains. Registers above MaxMutualInfoQubits report unavailable.
func MutualInformation(entropies []float64) ([]Pair, bool) {
	n := len(entropies)
	if n > MaxMutualInfoQubits {
		return nil, false
	}
	pairs := make([]Pair, 0, n*(n-1)/2)
	for a := 0; a < n; a++ {
		for b := a + 1; b < n; b++ {
			joint := 0.0
			if n == 3 {
				joint = entropies[3-a-b]
			}
			pairs = append(pairs, Pair{A: a, B: b, Bits: entropies[a] + entropies[b] - joint})
		}
	}
	return pairs, true
}
