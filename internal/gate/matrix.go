package gate

import (
	"math"
	"math/cmplx"
)

// Matrix holds the entries of a 2×2 unitary, row major: {{u00, u01}, {u10, u11}}.
type Matrix [2][2]complex128

// Apply returns (u00·a0+u01·a1, u10·a0+u11·a1).
func (m Matrix) Apply(a0, a1 complex128) (complex128, complex128) {
	return m[0][0]*a0 + m[0][1]*a1, m[1][0]*a0 + m[1][1]*a1
}

var (
	invSqrt2 = complex(1/math.Sqrt2, 0)

	matrices = map[Kind]Matrix{
		H: {{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}},
		X: {{0, 1}, {1, 0}},
		Y: {{0, -1i}, {1i, 0}},
		Z: {{1, 0}, {0, -1}},
		S: {{1, 0}, {0, 1i}},
		T: {{1, 0}, {0, cmplx.Exp(complex(0, math.Pi/4))}},
	}
)

// Matrix returns the 2×2 unitary for a single-qubit kind. For a controlled kind
// it returns the matrix applied to the target on the control-set subspace.
func (k Kind) Matrix() Matrix {
	return matrices[k.Base()]
}

// PairRule maps the amplitudes of a basis pair that differs only in the target
// bit, (|…0…⟩, |…1…⟩), to their new values.
type PairRule func(a0, a1 complex128) (complex128, complex128)

func swapRule(a0, a1 complex128) (complex128, complex128)   { return a1, a0 }
func negateRule(a0, a1 complex128) (complex128, complex128) { return a0, -a1 }
func phaseIRule(a0, a1 complex128) (complex128, complex128) { return a0, 1i * a1 }

// yRule is Y restricted to the pair: (a0, a1) → (-i·a1, i·a0).
func yRule(a0, a1 complex128) (complex128, complex128) { return -1i * a1, 1i * a0 }

// Rule returns the pair transformation for k. Controlled kinds get the
// specialised rule that the engine applies only where the control bit is set.
func (k Kind) Rule() PairRule {
	switch k {
	case CX:
		return swapRule
	case CY:
		return yRule
	case CZ:
		return negateRule
	case CS:
		return phaseIRule
	}
	if m, ok := matrices[k]; ok {
		return m.Apply
	}
	return nil
}
