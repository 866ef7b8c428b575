package entangle

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/vmihailenco/msgpack/v5"

	"qtermsim/internal/density"
)

const (
	ClassicalBound = 2.0
	QuantumBound   = 2 * math.Sqrt2

	// bellTolerance is how close to 1 the concurrence must be before the state is
	// named as one of the four Bell states.
	bellTolerance = 0.01
)

// BellState names one of the four maximally entangled two-qubit states.
type BellState int

const (
	BellNone BellState = iota
	PhiPlus
	PhiMinus
	PsiPlus
	PsiMinus
)

func (b BellState) String() string {
	switch b {
	case PhiPlus:
		return "Φ+"
	case PhiMinus:
		return "Φ-"
	case PsiPlus:
		return "Ψ+"
	case PsiMinus:
		return "Ψ-"
	}
	return "none"
}

func (b BellState) MarshalText() ([]byte, error) {
	switch b {
	case PhiPlus:
		return []byte("phi+"), nil
	case PhiMinus:
		return []byte("phi-"), nil
	case PsiPlus:
		return []byte("psi+"), nil
	case PsiMinus:
		return []byte("psi-"), nil
	}
	return []byte("none"), nil
}

func (b *BellState) UnmarshalText(text []byte) error {
	for _, v := range []BellState{BellNone, PhiPlus, PhiMinus, PsiPlus, PsiMinus} {
		name, _ := v.MarshalText()
		if string(name) == string(text) {
			*b = v
			return nil
		}
	}
	return fmt.Errorf("unknown bell state %q", text)
}

// EncodeMsgpack writes the state as a msgpack str, matching the JSON form.
func (b BellState) EncodeMsgpack(enc *msgpack.Encoder) error {
	text, _ := b.MarshalText()
	return enc.EncodeString(string(text))
}

func (b *BellState) DecodeMsgpack(dec *msgpack.Decoder) error {
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	return b.UnmarshalText([]byte(name))
}

// BellReport holds the two-qubit-only metrics.
type BellReport struct {
	Concurrence    float64   `json:"concurrence" yaml:"concurrence" msgpack:"concurrence"`
	CHSH           float64   `json:"chsh" yaml:"chsh" msgpack:"chsh"`
	ClassicalBound float64   `json:"classical_bound" yaml:"classical_bound" msgpack:"classical_bound"`
	QuantumBound   float64   `json:"quantum_bound" yaml:"quantum_bound" msgpack:"quantum_bound"`
	Violates       bool      `json:"violates" yaml:"violates" msgpack:"violates"`
	State          BellState `json:"state" yaml:"state" msgpack:"state"`
}

// Bell computes the report for a two-qubit state. It returns false for any
// other register size.
func Bell(psi density.Amplitudes) (*BellReport, bool) {
	if psi.NumQubits() != 2 {
		return nil, false
	}
	rho, err := density.Reduce(psi, 0)
	if err != nil {
		return nil, false
	}
	l1, l2, err := Eigenvalues(rho)
	if err != nil {
		return nil, false
	}
	return bellReport(psi, l1, l2), true
}

// bellReport uses the eigenvalues of either single-qubit reduction; for a pure
// two-qubit state both reductions share their spectrum.
func bellReport(psi density.Amplitudes, l1, l2 float64) *BellReport {
	c := math.Min(1, 2*math.Sqrt(math.Max(0, l1*l2)))
	chsh := 2 * math.Sqrt(1+c*c)
	r := &BellReport{
		Concurrence:    c,
		CHSH:           chsh,
		ClassicalBound: ClassicalBound,
		QuantumBound:   QuantumBound,
		Violates:       chsh > ClassicalBound+1e-9,
	}
	if math.Abs(c-1) <= bellTolerance {
		r.State = classify(psi)
	}
	return r
}

// classify picks the dominant amplitude pair, |00⟩,|11⟩ (indices 0,3) or
// |10⟩,|01⟩ (indices 1,2), and names the state by the sign of their relative phase.
func classify(psi density.Amplitudes) BellState {
	a00, a10, a01, a11 := psi.Amplitude(0), psi.Amplitude(1), psi.Amplitude(2), psi.Amplitude(3)
	even := sq(a00) + sq(a11)
	odd := sq(a10) + sq(a01)
	if even >= odd {
		if real(a11*cmplx.Conj(a00)) >= 0 {
			return PhiPlus
		}
		return PhiMinus
	}
	if real(a01*cmplx.Conj(a10)) >= 0 {
		return PsiPlus
	}
	return PsiMinus
}

func sq(a complex128) float64 {
	return real(a)*real(a) + imag(a)*imag(a)
}
