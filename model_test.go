package main

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtermsim/internal/circuit"
	"qtermsim/internal/config"
	"qtermsim/internal/entangle"
)

func newTestModel(t *testing.T, n int) Model {
	t.Helper()
	cfg := config.Default()
	cfg.Simulator.MaxQubits = 3
	cfg.Sampler.Seed = 9
	cfg.Sampler.DefaultShots = 100
	m, err := newModel(cfg, zerolog.Nop(), n)
	require.NoError(t, err)
	m.savePath = filepath.Join(t.TempDir(), "circuit.qasm")
	return m
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(Model)
	}
	return m
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	right = tea.KeyMsg{Type: tea.KeyRight}
)

// buildBell places H on q0 then CX q0→q1 through the menu.
func buildBell(t *testing.T, m Model) Model {
	t.Helper()
	m = press(t, m, runes("a"), enter)
	require.Equal(t, focusCircuit, m.focus)
	m = press(t, m, right, runes("a"), right, enter)
	require.Equal(t, focusSelectTarget, m.focus)
	assert.Equal(t, 1, m.targetQubit)
	return press(t, m, enter)
}

func TestNewModelStartsEmpty(t *testing.T) {
	m := newTestModel(t, 2)
	require.NotNil(t, m.snap)
	require.Len(t, m.snap.Amplitudes, 1)
	assert.Equal(t, "|00⟩", m.snap.Amplitudes[0].Label)
	assert.Contains(t, m.qasmEditor.Value(), "qreg q[2];")

	_, err := newModel(config.Default(), zerolog.Nop(), 99)
	assert.Error(t, err)
}

func TestPlaceBellThroughMenu(t *testing.T) {
	m := buildBell(t, newTestModel(t, 2))

	assert.Equal(t, focusCircuit, m.focus)
	assert.Equal(t, 2, m.board.Len())
	require.NotNil(t, m.snap.Metrics.Bell)
	assert.Equal(t, entangle.PhiPlus, m.snap.Metrics.Bell.State)
	assert.InDelta(t, 2*math.Sqrt2, m.snap.Metrics.Bell.CHSH, 1e-6)
	assert.Contains(t, m.qasmEditor.Value(), "cx q[0], q[1];")
}

func TestPlaceConflict(t *testing.T) {
	m := newTestModel(t, 2)
	m = press(t, m, runes("a"), enter)
	m = press(t, m, runes("a"), runes("j"), enter)
	assert.Contains(t, m.statusMsg, "Cannot place")
	assert.Equal(t, 1, m.board.Len())
}

func TestDeleteAndReset(t *testing.T) {
	m := buildBell(t, newTestModel(t, 2))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Equal(t, 1, m.board.Len())
	assert.Len(t, m.snap.Amplitudes, 2)

	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Zero(t, m.board.Len())
	assert.Equal(t, 0, m.cursorStep)
	assert.Len(t, m.snap.Amplitudes, 1)
}

func TestQubitBounds(t *testing.T) {
	m := newTestModel(t, 2)
	m = press(t, m, runes("+"))
	assert.Equal(t, 3, m.board.NumQubits())
	assert.Equal(t, 3, m.snap.NumQubits)

	m = press(t, m, runes("+"))
	assert.Equal(t, 3, m.board.NumQubits())
	assert.Contains(t, m.statusMsg, "limit")

	m = press(t, m, runes("j"), runes("j"), runes("-"))
	assert.Equal(t, 2, m.board.NumQubits())
	assert.Equal(t, 1, m.cursorQubit)
}

func TestSampleKeys(t *testing.T) {
	m := buildBell(t, newTestModel(t, 2))

	m = press(t, m, runes("m"))
	require.NotNil(t, m.hist)
	assert.Equal(t, 100, m.hist.Shots)
	assert.Equal(t, 100, m.hist.Counts[0]+m.hist.Counts[3])

	m = press(t, m, runes("M"))
	assert.Equal(t, 200, m.hist.Shots)

	m = press(t, m, runes("m"))
	assert.Equal(t, 100, m.hist.Shots)

	// Editing the circuit discards the counts.
	m = press(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	assert.Zero(t, m.hist.Shots)
}

func TestEditQASM(t *testing.T) {
	m := newTestModel(t, 2)
	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusQASM, m.focus)

	m.qasmEditor.SetValue("qreg q[2];\nx q[1];\n")
	m.parseQASMInput()
	assert.Empty(t, m.statusMsg)
	assert.Equal(t, 1, m.board.Len())
	require.Len(t, m.snap.Amplitudes, 1)
	assert.Equal(t, "|01⟩", m.snap.Amplitudes[0].Label)

	m.qasmEditor.SetValue("qreg q[2];\nrx(0.1) q[0];\n")
	m.parseQASMInput()
	assert.Contains(t, m.statusMsg, "line 2")
	assert.Equal(t, 1, m.board.Len())

	m.qasmEditor.SetValue("qreg q[5];\n")
	m.parseQASMInput()
	assert.NotEmpty(t, m.statusMsg)
	assert.Equal(t, 2, m.board.NumQubits())

	m = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, focusCircuit, m.focus)
}

func TestSave(t *testing.T) {
	m := buildBell(t, newTestModel(t, 2))
	m = press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Contains(t, m.statusMsg, "Saved")

	data, err := os.ReadFile(m.savePath)
	require.NoError(t, err)
	assert.Equal(t, circuit.ToQASM(m.board.Circuit()), string(data))
}

func TestMenuEscape(t *testing.T) {
	m := newTestModel(t, 1)
	m = press(t, m, runes("a"), right, enter)
	assert.Equal(t, focusCircuit, m.focus)
	assert.Contains(t, m.statusMsg, "two qubits")

	m = press(t, m, runes("a"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, focusCircuit, m.focus)
	assert.Zero(t, m.board.Len())
}

func TestView(t *testing.T) {
	m := buildBell(t, newTestModel(t, 2))
	assert.Equal(t, "Loading...", m.View())

	next, _ := m.Update(tea.WindowSizeMsg{Width: 180, Height: 60})
	m = next.(Model)
	m = press(t, m, runes("m"))
	view := m.View()
	assert.Contains(t, view, "Quantum Circuit")
	assert.Contains(t, view, "QASM Editor")
	assert.Contains(t, view, "Φ+")
	assert.Contains(t, view, "shots=100")

	m = press(t, m, runes("a"))
	assert.Contains(t, m.View(), "Add Gate")
}

func TestQuit(t *testing.T) {
	m := newTestModel(t, 1)
	_, cmd := m.Update(runes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
