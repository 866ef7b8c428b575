package quantum

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"qtermsim/internal/gate"
)

// DefaultUnitaryMaxQubits bounds the 2^N simulations Unitary runs.
const DefaultUnitaryMaxQubits = 5

var ErrUnitaryTooLarge = errors.New("circuit too large for unitary construction")

// Unitary returns the 2^N × 2^N matrix of the circuit. Column j is the circuit
// applied to |j⟩. maxQubits caps N; a value <= 0 means DefaultUnitaryMaxQubits.
func Unitary(numQubits int, gates []gate.Descriptor, maxQubits int) (*mat.CDense, error) {
	if maxQubits <= 0 {
		maxQubits = DefaultUnitaryMaxQubits
	}
	if err := Validate(numQubits, gates); err != nil {
		return nil, err
	}
	if numQubits > maxQubits {
		return nil, fmt.Errorf("%w: %d qubits > %d", ErrUnitaryTooLarge, numQubits, maxQubits)
	}

	dim := 1 << numQubits
	u := mat.NewCDense(dim, dim, nil)
	s, err := New(numQubits)
	if err != nil {
		return nil, err
	}
	for col := 0; col < dim; col++ {
		clear(s.amps)
		s.amps[col] = 1
		for _, g := range gates {
			s.apply(g)
		}
		for row, a := range s.amps {
			u.Set(row, col, a)
		}
	}
	return u, nil
}
