package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"qtermsim/internal/circuit"
	"qtermsim/internal/config"
	"qtermsim/internal/gate"
	"qtermsim/internal/measure"
	"qtermsim/internal/server"
	"qtermsim/internal/session"
)

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusCircuit focus = iota
	focusQASM
	focusMenu
	focusSelectTarget
)

const defaultSavePath = "circuit.qasm"

// Model represents the TUI application state.
type Model struct {
	cfg  *config.Config
	log  zerolog.Logger
	sess *session.Session

	board *circuit.Board // the grid is the source of truth; the session follows it
	snap  *session.Snapshot
	hist  *measure.Histogram

	cursorQubit int
	cursorStep  int
	width       int
	height      int
	qasmEditor  textarea.Model
	focus       focus
	lastQASM    string
	statusMsg   string // transient status message (e.g. save confirmation)
	savePath    string

	// Menu state
	menuCat  int
	menuItem int

	// Target-selection state (for controlled gates)
	pendingKind gate.Kind
	targetQubit int
}

func newModel(cfg *config.Config, log zerolog.Logger, numQubits int) (Model, error) {
	if numQubits > cfg.Simulator.MaxQubits {
		return Model{}, fmt.Errorf("%d qubits above max_qubits %d", numQubits, cfg.Simulator.MaxQubits)
	}
	sess, err := session.New(numQubits, server.Limits(cfg), cfg.Sampler.Seed, log)
	if err != nil {
		return Model{}, err
	}

	ta := textarea.New()
	ta.Placeholder = "Edit QASM here..."
	ta.SetWidth(40)
	ta.SetHeight(20)
	ta.ShowLineNumbers = true
	ta.KeyMap.InsertNewline.SetEnabled(true)

	m := Model{
		cfg:        cfg,
		log:        log.With().Str("component", "tui").Logger(),
		sess:       sess,
		board:      circuit.NewBoard(numQubits),
		qasmEditor: ta,
		focus:      focusCircuit,
		savePath:   defaultSavePath,
	}
	m.sync()
	return m, nil
}

// sync pushes the board into the session and rewrites the QASM editor.
func (m *Model) sync() {
	c := m.board.Circuit()
	if err := m.sess.SetCircuit(c); err != nil {
		m.statusMsg = err.Error()
		m.log.Warn().Err(err).Msg("Circuit rejected")
		return
	}
	m.refresh()

	qasm := circuit.ToQASM(c)
	m.qasmEditor.SetValue(qasm)
	m.lastQASM = qasm
}

// refresh re-reads the derived state from the session.
func (m *Model) refresh() {
	snap, err := m.sess.Snapshot()
	if err != nil {
		m.statusMsg = err.Error()
		m.log.Error().Err(err).Msg("Snapshot failed")
		return
	}
	m.snap = snap
	m.hist = m.sess.Histogram()
}

// parseQASMInput re-reads the editor text. A parse or validation error leaves
// the board as it was and shows the error.
func (m *Model) parseQASMInput() {
	qasm := m.qasmEditor.Value()
	if qasm == m.lastQASM {
		return
	}
	m.lastQASM = qasm

	c, err := circuit.ParseQASM(qasm)
	if err == nil {
		err = m.sess.SetCircuit(c)
	}
	if err != nil {
		m.statusMsg = err.Error()
		return
	}
	m.board = circuit.BoardFrom(c)
	m.cursorQubit = min(m.cursorQubit, c.NumQubits-1)
	m.refresh()
}

// placeGate places a gate at the cursor. For controlled kinds the cursor qubit
// is the control and targetQ the target. Returns false when blocked.
func (m *Model) placeGate(kind gate.Kind, targetQ int) bool {
	var (
		g   gate.Descriptor
		err error
	)
	if kind.Controlled() {
		g, err = gate.NewControlled(kind, m.cursorQubit, targetQ)
	} else {
		g, err = gate.New(kind, m.cursorQubit)
	}
	if err == nil {
		err = m.board.Place(m.cursorStep, g)
	}
	if errors.Is(err, circuit.ErrOccupied) {
		m.statusMsg = "Cannot place: qubit already used by another gate at this step"
		return false
	}
	if err != nil {
		m.statusMsg = err.Error()
		return false
	}
	m.sync()
	return true
}

// sample draws the configured number of shots from the current state.
func (m *Model) sample(accumulate bool) {
	h, err := m.sess.Sample(m.cfg.Sampler.DefaultShots, accumulate)
	if err != nil {
		m.statusMsg = err.Error()
		return
	}
	m.hist = h
	m.statusMsg = fmt.Sprintf("%d shots", h.Shots)
}

func (m *Model) save() {
	qasm := circuit.ToQASM(m.board.Circuit())
	if err := os.WriteFile(m.savePath, []byte(qasm), 0644); err != nil {
		m.statusMsg = fmt.Sprintf("Save error: %v", err)
		return
	}
	m.statusMsg = "Saved " + m.savePath
	m.log.Info().Str("path", m.savePath).Msg("Circuit saved")
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		qasmW := max(msg.Width/3-6, 20)
		m.qasmEditor.SetWidth(qasmW)
		ctrlH := 6
		circH := (msg.Height - ctrlH) / 2
		editorH := max(circH-4, 4)
		m.qasmEditor.SetHeight(editorH)

	case tea.KeyMsg:
		key := msg.String()
		m.statusMsg = ""

		if key == "ctrl+c" {
			return m, tea.Quit
		}

		switch m.focus {
		case focusCircuit:
			n := m.board.NumQubits()
			switch key {
			case "q":
				return m, tea.Quit
			case "tab":
				m.focus = focusQASM
				m.qasmEditor.Focus()
			case "ctrl+r":
				m.board.Clear()
				m.cursorStep = 0
				m.sync()
			case "ctrl+s":
				m.save()
			case "up", "k":
				if m.cursorQubit > 0 {
					m.cursorQubit--
				}
			case "down", "j":
				if m.cursorQubit < n-1 {
					m.cursorQubit++
				}
			case "left", "h":
				if m.cursorStep > 0 {
					m.cursorStep--
				}
			case "right", "l":
				m.cursorStep++
			case "+", "=":
				if n >= m.cfg.Simulator.MaxQubits {
					m.statusMsg = fmt.Sprintf("Qubit limit is %d", m.cfg.Simulator.MaxQubits)
					break
				}
				m.board.AddQubit()
				m.sync()
			case "-":
				if n > 1 {
					m.board.RemoveQubit(n - 1)
					m.cursorQubit = min(m.cursorQubit, n-2)
					m.sync()
				}
			case "a":
				m.focus = focusMenu
				m.menuCat = 0
				m.menuItem = 0
			case "backspace", "delete":
				if m.board.RemoveAt(m.cursorStep, m.cursorQubit) {
					m.sync()
				}
			case "m":
				m.sample(false)
			case "M":
				m.sample(true)
			}

		case focusMenu:
			switch key {
			case "esc":
				m.focus = focusCircuit
			case "up", "k":
				if m.menuItem > 0 {
					m.menuItem--
				}
			case "down", "j":
				cat := gateMenu[m.menuCat]
				if m.menuItem < len(cat.items)-1 {
					m.menuItem++
				}
			case "left", "h":
				if m.menuCat > 0 {
					m.menuCat--
					m.menuItem = 0
				}
			case "right", "l":
				if m.menuCat < len(gateMenu)-1 {
					m.menuCat++
					m.menuItem = 0
				}
			case "enter":
				item := gateMenu[m.menuCat].items[m.menuItem]
				m.pendingKind = item.kind

				if item.needsTarget() {
					if m.board.NumQubits() < 2 {
						m.statusMsg = "Controlled gates need two qubits"
						m.focus = focusCircuit
						break
					}
					m.focus = focusSelectTarget
					m.targetQubit = m.cursorQubit + 1
					if m.targetQubit >= m.board.NumQubits() {
						m.targetQubit = m.cursorQubit - 1
					}
				} else {
					m.placeGate(item.kind, -1)
					m.focus = focusCircuit
				}
			}

		case focusSelectTarget:
			switch key {
			case "esc":
				m.focus = focusCircuit
				m.pendingKind = gate.Invalid
			case "up", "k":
				for next := m.targetQubit - 1; next >= 0; next-- {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "down", "j":
				for next := m.targetQubit + 1; next < m.board.NumQubits(); next++ {
					if next != m.cursorQubit {
						m.targetQubit = next
						break
					}
				}
			case "enter":
				if m.placeGate(m.pendingKind, m.targetQubit) {
					m.focus = focusCircuit
				}
			}

		case focusQASM:
			switch key {
			case "tab":
				m.focus = focusCircuit
				m.qasmEditor.Blur()
			default:
				var cmd tea.Cmd
				m.qasmEditor, cmd = m.qasmEditor.Update(msg)
				cmds = append(cmds, cmd)
				m.parseQASMInput()
			}
		}
	}

	return m, tea.Batch(cmds...)
}

// View renders the UI.
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	qasmWidth := m.width / 3
	leftWidth := m.width - qasmWidth - 4
	controlsHeight := 6
	bodyHeight := max(m.height-controlsHeight-2, 12)
	circuitHeight := bodyHeight / 2
	lowerHeight := bodyHeight - circuitHeight - 2
	analysisWidth := leftWidth / 2

	circuitPanel := m.renderCircuitPanel(leftWidth, circuitHeight)
	analysisPanel := m.renderAnalysisPanel(analysisWidth, lowerHeight)
	histogramPanel := m.renderHistogramPanel(leftWidth-analysisWidth, lowerHeight)
	qasmPanel := m.renderQASMPanel(qasmWidth, bodyHeight)
	controlsPanel := m.renderControlsPanel(m.width-4, controlsHeight-2)

	lower := lipgloss.JoinHorizontal(lipgloss.Top, analysisPanel, histogramPanel)
	left := lipgloss.JoinVertical(lipgloss.Left, circuitPanel, lower)
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, left, qasmPanel)
	frame := lipgloss.JoinVertical(lipgloss.Left, topRow, controlsPanel)

	// Render menu overlay when in menu mode
	if m.focus == focusMenu {
		frame = overlayAt(frame, m.renderMenu(), 2, 2)
	}

	return frame
}
