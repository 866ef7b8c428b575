package circuit

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtermsim/internal/gate"
	"qtermsim/internal/quantum"
)

func TestParseQASM(t *testing.T) {
	qasm := `OPENQASM 2.0;
include "qelib1.inc";

qreg q[3];
creg c[3];

h q[1];
cx q[1], q[2];
cx q[0], q[1];
h q[0]; // teleport
barrier q[0], q[1], q[2];
measure q[0] -> c[0];
cs q[2],q[0];`

	c, err := ParseQASM(qasm)
	require.NoError(t, err)
	assert.Equal(t, 3, c.NumQubits)
	assert.Equal(t, []gate.Descriptor{
		gate.MustNew(gate.H, 1),
		gate.MustControlled(gate.CX, 1, 2),
		gate.MustControlled(gate.CX, 0, 1),
		gate.MustNew(gate.H, 0),
		gate.MustControlled(gate.CS, 2, 0),
	}, c.Gates)
}

func TestParseQASMWithoutQreg(t *testing.T) {
	c, err := ParseQASM("x q[0]; cy q[0], q[3];")
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumQubits)
	assert.Len(t, c.Gates, 2)

	empty, err := ParseQASM("")
	require.NoError(t, err)
	assert.Equal(t, 1, empty.NumQubits)
	assert.Empty(t, empty.Gates)
}

func TestParseQASMErrors(t *testing.T) {
	tests := []struct {
		name    string
		qasm    string
		line    string
		wantErr error
	}{
		{"unknown gate", "qreg q[2];\nrx(pi) q[0];", "line 2", nil},
		{"unsupported kind", "qreg q[2];\n\nswap q[0], q[1];", "line 3", gate.ErrUnsupportedKind},
		{"out of range", "qreg q[2];\ncx q[0], q[2];", "line 2", gate.ErrQubitOutOfRange},
		{"same qubit", "cz q[1], q[1];", "line 1", gate.ErrSameQubit},
		{"missing control", "cx q[1];", "line 1", gate.ErrMissingControl},
		{"reset", "qreg q[1];\nreset q[0];", "line 2", nil},
		{"second qreg", "qreg q[1];\nqreg r[2];", "line 2", nil},
		{"index overflow", "h q[99999999999999999999];", "line 1", strconv.ErrRange},
		{"index above engine limit", "x q[0];\nh q[25];", "line 2", quantum.ErrTooManyQubits},
		{"control overflow", "qreg q[2];\ncx q[99999999999999999999], q[1];", "line 2", strconv.ErrRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQASM(tt.qasm)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)
			assert.Contains(t, err.Error(), tt.line)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestQASMRoundTrip(t *testing.T) {
	c := New(3,
		gate.MustNew(gate.H, 0),
		gate.MustNew(gate.T, 2),
		gate.MustControlled(gate.CY, 0, 2),
		gate.MustControlled(gate.CZ, 2, 1),
		gate.MustNew(gate.S, 1),
		gate.MustNew(gate.Y, 0),
	)

	text := ToQASM(c)
	assert.True(t, strings.HasPrefix(text, "OPENQASM 2.0;\n"))
	assert.Contains(t, text, "qreg q[3];")
	assert.Contains(t, text, "cy q[0], q[2];")

	back, err := ParseQASM(text)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestParsedCircuitSimulates(t *testing.T) {
	c, err := ParseQASM("qreg q[2];\nh q[0];\ncx q[0], q[1];")
	require.NoError(t, err)
	require.NoError(t, c.Validate(6))

	s, err := c.Simulate()
	require.NoError(t, err)
	p := s.Probabilities()
	assert.InDelta(t, 0.5, p[0], 1e-12)
	assert.InDelta(t, 0.5, p[3], 1e-12)
}
