package density

import (
	"math/cmplx"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtermsim/internal/gate"
	"qtermsim/internal/quantum"
)

func simulate(t *testing.T, n int, gates ...gate.Descriptor) *quantum.State {
	t.Helper()
	s, err := quantum.Simulate(n, gates)
	require.NoError(t, err)
	return s
}

func TestReduceBellQubit(t *testing.T) {
	s := simulate(t, 2, gate.MustNew(gate.H, 0), gate.MustControlled(gate.CX, 0, 1))

	for q := 0; q < 2; q++ {
		rho, err := Reduce(s, q)
		require.NoError(t, err)
		r, c := rho.Dims()
		require.Equal(t, 2, r)
		require.Equal(t, 2, c)
		assert.InDelta(t, 0.5, real(rho.At(0, 0)), 1e-12)
		assert.InDelta(t, 0.5, real(rho.At(1, 1)), 1e-12)
		assert.InDelta(t, 0, cmplx.Abs(rho.At(0, 1)), 1e-12)
	}
}

func TestReduceProductStateIsPure(t *testing.T) {
	// q0 = |1⟩, q1 = |+⟩
	s := simulate(t, 2, gate.MustNew(gate.X, 0), gate.MustNew(gate.H, 1))

	rho0, err := Reduce(s, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0, real(rho0.At(0, 0)), 1e-12)
	assert.InDelta(t, 1, real(rho0.At(1, 1)), 1e-12)

	rho1, err := Reduce(s, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, real(rho1.At(0, 1)), 1e-12)
	assert.InDelta(t, 0.5, real(rho1.At(1, 0)), 1e-12)
}

func TestReduceTwoQubitsOfGHZ(t *testing.T) {
	s := simulate(t, 3,
		gate.MustNew(gate.H, 0),
		gate.MustControlled(gate.CX, 0, 1),
		gate.MustControlled(gate.CX, 1, 2),
	)
	rho, err := Reduce(s, 0, 2)
	require.NoError(t, err)
	r, _ := rho.Dims()
	require.Equal(t, 4, r)
	// Kept index 0b00 and 0b11 each carry half; coherences vanish.
	assert.InDelta(t, 0.5, real(rho.At(0, 0)), 1e-12)
	assert.InDelta(t, 0.5, real(rho.At(3, 3)), 1e-12)
	assert.InDelta(t, 0, cmplx.Abs(rho.At(0, 3)), 1e-12)
}

func TestReduceKeepsOrder(t *testing.T) {
	// |q0 q1⟩ = |10⟩: keeping (1, 0) puts q1 in bit 0, so the weight lands on index 2.
	s := simulate(t, 2, gate.MustNew(gate.X, 0))
	rho, err := Reduce(s, 1, 0)
	require.NoError(t, err)
	assert.InDelta(t, 1, real(rho.At(2, 2)), 1e-12)
}

func TestReduceHermitianTraceOne(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 5))
	for trial := 0; trial < 25; trial++ {
		n := 2 + r.IntN(3)
		var gates []gate.Descriptor
		for i := 0; i < 30; i++ {
			k := gate.Kinds[r.IntN(len(gate.Kinds))]
			target := r.IntN(n)
			if k.Controlled() {
				control := (target + 1 + r.IntN(n-1)) % n
				gates = append(gates, gate.MustControlled(k, control, target))
			} else {
				gates = append(gates, gate.MustNew(k, target))
			}
		}
		s := simulate(t, n, gates...)

		for q := 0; q < n; q++ {
			rho, err := Reduce(s, q)
			require.NoError(t, err)
			assert.True(t, IsHermitian(rho, 1e-9))
			assert.InDelta(t, 0, cmplx.Abs(Trace(rho)-1), 1e-9)
		}
		rho, err := Reduce(s, 0, n-1)
		require.NoError(t, err)
		assert.True(t, IsHermitian(rho, 1e-9))
		assert.InDelta(t, 0, cmplx.Abs(Trace(rho)-1), 1e-9)
	}
}

func TestReduceRejects(t *testing.T) {
	s := simulate(t, 3)

	_, err := Reduce(s)
	assert.ErrorIs(t, err, ErrInvalidKeep)

	_, err = Reduce(s, 3)
	assert.ErrorIs(t, err, ErrInvalidKeep)

	_, err = Reduce(s, 1, 1)
	assert.ErrorIs(t, err, ErrInvalidKeep)

	_, err = Reduce(s, 0, 1, 2)
	assert.ErrorIs(t, err, ErrUnsupportedReduction)
}
