// Package entangle derives entanglement measures from reduced density matrices.
//
// The only eigenproblem solved here is the closed form for 2×2 Hermitian,
// trace-one matrices; anything that would need a larger one is reported as
// unavailable.
package entangle

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"

	"qtermsim/internal/density"
)

// eigenFloor is the eigenvalue below which λ·log2(λ) is taken as 0.
const eigenFloor = 1e-9

var ErrNotTwoByTwo = errors.New("entropy needs a 2x2 density matrix")

// Eigenvalues returns the eigenvalues λ1 ≥ λ2 of a 2×2 trace-one density matrix:
// λ = (1 ± √(max(0, 1-4·det)))/2 with det = ρ00·ρ11 - |ρ01|².
func Eigenvalues(rho mat.CMatrix) (float64, float64, error) {
	r, c := rho.Dims()
	if r != 2 || c != 2 {
		return 0, 0, fmt.Errorf("%w: got %dx%d", ErrNotTwoByTwo, r, c)
	}
	offDiag := cmplx.Abs(rho.At(0, 1))
	det := real(rho.At(0, 0))*real(rho.At(1, 1)) - offDiag*offDiag
	disc := math.Sqrt(math.Max(0, 1-4*det))
	return (1 + disc) / 2, (1 - disc) / 2, nil
}

// Entropy is the von Neumann entropy -Σλ·log2(λ) of a 2×2 density matrix, in bits.
func Entropy(rho mat.CMatrix) (float64, error) {
	l1, l2, err := Eigenvalues(rho)
	if err != nil {
		return 0, err
	}
	return shannon(l1) + shannon(l2), nil
}

func shannon(l float64) float64 {
	if l <= eigenFloor {
		return 0
	}
	return -l * math.Log2(l)
}

// QubitEntropy reduces psi to qubit q and returns its entropy.
func QubitEntropy(psi density.Amplitudes, q int) (float64, error) {
	rho, err := density.Reduce(psi, q)
	if err != nil {
		return 0, err
	}
	return Entropy(rho)
}

// Entropies returns the single-qubit entropy of every qubit.
func Entropies(psi density.Amplitudes) ([]float64, error) {
	out := make([]float64, psi.NumQubits())
	for q := range out {
		s, err := QubitEntropy(psi, q)
		if err != nil {
			return nil, fmt.Errorf("qubit %d: %w", q, err)
		}
		out[q] = s
	}
	return out, nil
}
