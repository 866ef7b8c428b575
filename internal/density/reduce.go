// Package density computes reduced density matrices of a pure state by tracing
// out every qubit that is not kept.
package density

import (
	"errors"
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/mat"
)

// MaxKept is the largest kept subsystem Reduce supports.
const MaxKept = 2

var (
	ErrUnsupportedReduction = errors.New("reduction size not supported")
	ErrInvalidKeep          = errors.New("invalid kept qubit set")
)

// Amplitudes is the read-only view of a state vector that Reduce needs.
type Amplitudes interface {
	NumQubits() int
	Amplitude(i int) complex128
}

// Reduce returns ρ = Tr_rest(|ψ⟩⟨ψ|) over the qubits in keep. Bit j of a row or
// column index of ρ is qubit keep[j].
func Reduce(psi Amplitudes, keep ...int) (*mat.CDense, error) {
	n := psi.NumQubits()
	if len(keep) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKeep)
	}
	if len(keep) > MaxKept {
		return nil, fmt.Errorf("%w: %d kept qubits > %d", ErrUnsupportedReduction, len(keep), MaxKept)
	}

	kept := make([]bool, n)
	for _, q := range keep {
		if q < 0 || q >= n {
			return nil, fmt.Errorf("%w: q[%d] with %d qubits", ErrInvalidKeep, q, n)
		}
		if kept[q] {
			return nil, fmt.Errorf("%w: q[%d] repeated", ErrInvalidKeep, q)
		}
		kept[q] = true
	}
	traced := make([]int, 0, n-len(keep))
	for q := 0; q < n; q++ {
		if !kept[q] {
			traced = append(traced, q)
		}
	}

	dim := 1 << len(keep)
	keptIdx := make([]int, dim)
	for u := range keptIdx {
		keptIdx[u] = scatter(u, keep)
	}

	rho := make([]complex128, dim*dim)
	for k := 0; k < 1<<len(traced); k++ {
		base := scatter(k, traced)
		for u := 0; u < dim; u++ {
			au := psi.Amplitude(base | keptIdx[u])
			if au == 0 {
				continue
			}
			for v := 0; v < dim; v++ {
				rho[u*dim+v] += au * cmplx.Conj(psi.Amplitude(base|keptIdx[v]))
			}
		}
	}
	return mat.NewCDense(dim, dim, rho), nil
}

// scatter places bit j of local at bit positions[j] of the full index.
func scatter(local int, positions []int) int {
	full := 0
	for j, q := range positions {
		if local&(1<<j) != 0 {
			full |= 1 << q
		}
	}
	return full
}

// Trace returns Σρ[i,i].
func Trace(rho mat.CMatrix) complex128 {
	r, _ := rho.Dims()
	var tr complex128
	for i := 0; i < r; i++ {
		tr += rho.At(i, i)
	}
	return tr
}

// IsHermitian reports whether ρ[i,j] = conj(ρ[j,i]) within tol.
func IsHermitian(rho mat.CMatrix, tol float64) bool {
	r, c := rho.Dims()
	if r != c {
		return false
	}
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			if cmplx.Abs(rho.At(i, j)-cmplx.Conj(rho.At(j, i))) > tol {
				return false
			}
		}
	}
	return true
}
