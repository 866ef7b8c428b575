package main

import (
	"fmt"
	"math"
	"strings"

	"qtermsim/internal/circuit"
	"qtermsim/internal/entangle"
	"qtermsim/internal/gate"
	"qtermsim/internal/measure"
	"qtermsim/internal/quantum"
	"qtermsim/internal/session"
)

// ──────────────────────────── Rendering helpers ────────────────────────────

// padCenter centres a string within the given width.
func padCenter(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	total := width - len(s)
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// targetSymbol returns the wire symbol for the target qubit of a controlled gate.
func targetSymbol(kind gate.Kind) string {
	switch kind {
	case gate.CX:
		return "⊕"
	case gate.CZ:
		return "●"
	default:
		return kind.Base().String()
	}
}

// ──────────────────────────── Cell rendering ────────────────────────────

type cellHighlight int

const (
	hlNone cellHighlight = iota
	hlCursor
	hlTargetSelect
)

// renderCell returns 3 lines (top, mid, bot) for a single cell.
// Each line is exactly cellW (11) visual characters wide.
func renderCell(cell circuit.Cell, hl cellHighlight) (top, mid, bot string) {
	emptyRow := strings.Repeat(" ", cellW)
	halfW := cellW / 2
	vertRow := strings.Repeat(" ", halfW) + "│" + strings.Repeat(" ", cellW-halfW-1)

	// ── Highlighted cell (cursor or target selection) ──
	if hl == hlCursor || hl == hlTargetSelect {
		bdr := cursorBoxStyle
		if hl == hlTargetSelect {
			bdr = targetSelectStyle
		}
		innerW := cellW - 2
		dashL := (innerW - 1) / 2
		dashR := innerW - dashL - 1

		top = bdr.Render("╔" + strings.Repeat("═", innerW) + "╗")
		bot = bdr.Render("╚" + strings.Repeat("═", innerW) + "╝")

		switch {
		case cell.IsControl:
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + gateStyle.Render("●") + strings.Repeat("─", dashR) + bdr.Render("║")
		case cell.IsTarget:
			sym := targetSymbol(cell.Gate.Gate.Kind())
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + gateStyle.Render(sym) + strings.Repeat("─", dashR) + bdr.Render("║")
		case cell.Gate != nil:
			name := padCenter(cell.Gate.Gate.Kind().String(), gateNameW)
			mid = bdr.Render("║") + "─┤" + gateStyle.Render(name) + "├─" + bdr.Render("║")
		case cell.PassThrough:
			mid = bdr.Render("║") + strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR) + bdr.Render("║")
		default:
			mid = bdr.Render("║") + strings.Repeat("─", innerW) + bdr.Render("║")
		}
		return
	}

	// ── Normal (non-highlighted) cells ──
	dashL := (cellW - 1) / 2
	dashR := cellW - dashL - 1

	top, bot = emptyRow, emptyRow
	if cell.WireAbove {
		top = vertRow
	}
	if cell.WireBelow {
		bot = vertRow
	}

	switch {
	case cell.IsControl:
		mid = strings.Repeat("─", dashL) + gateStyle.Render("●") + strings.Repeat("─", dashR)
	case cell.IsTarget:
		sym := targetSymbol(cell.Gate.Gate.Kind())
		mid = strings.Repeat("─", dashL) + gateStyle.Render(sym) + strings.Repeat("─", dashR)
	case cell.Gate != nil:
		margin := (cellW - gateBoxW) / 2
		rightMargin := cellW - margin - gateBoxW
		name := padCenter(cell.Gate.Gate.Kind().String(), gateNameW)

		top = strings.Repeat(" ", margin) + gateStyle.Render("┌"+strings.Repeat("─", gateNameW)+"┐") + strings.Repeat(" ", rightMargin)
		mid = strings.Repeat("─", margin) + gateStyle.Render("┤"+name+"├") + strings.Repeat("─", rightMargin)
		bot = strings.Repeat(" ", margin) + gateStyle.Render("└"+strings.Repeat("─", gateNameW)+"┘") + strings.Repeat(" ", rightMargin)
	case cell.PassThrough:
		mid = strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR)
	default:
		mid = strings.Repeat("─", cellW)
	}
	return
}

// ──────────────────────────── Panel rendering ────────────────────────────

// renderCircuitPanel renders the circuit grid panel.
func (m Model) renderCircuitPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Quantum Circuit"))
	sb.WriteString("\n\n")

	// How many steps fit
	availWidth := width - labelVisualW - 4
	maxSteps := max(availWidth/cellW, 1)

	startStep := 0
	if m.cursorStep >= maxSteps {
		startStep = m.cursorStep - maxSteps + 1
	}

	if startStep > 0 {
		fmt.Fprintf(&sb, "  ◀ showing steps %d–%d\n", startStep, startStep+maxSteps-1)
	}

	// Step number header
	header := strings.Repeat(" ", labelVisualW)
	for step := startStep; step < startStep+maxSteps; step++ {
		header += dimStyle.Render(padCenter(fmt.Sprintf("%d", step), cellW))
	}
	sb.WriteString(header + "\n")

	// Render each qubit as 3 lines
	for qubit := range m.board.NumQubits() {
		topLine := strings.Repeat(" ", labelVisualW)
		label := fmt.Sprintf("q[%d]", qubit)
		midLine := qubitLabelStyle.Render(fmt.Sprintf("%-5s", label)) + "──"
		botLine := strings.Repeat(" ", labelVisualW)

		for step := startStep; step < startStep+maxSteps; step++ {
			hl := hlNone
			if step == m.cursorStep && qubit == m.cursorQubit && (m.focus == focusCircuit || m.focus == focusSelectTarget || m.focus == focusMenu) {
				hl = hlCursor
			} else if step == m.cursorStep && qubit == m.targetQubit && m.focus == focusSelectTarget {
				hl = hlTargetSelect
			}

			top, mid, bot := renderCell(m.board.Cell(step, qubit), hl)
			topLine += top
			midLine += mid
			botLine += bot
		}

		sb.WriteString(topLine + "\n")
		sb.WriteString(midLine + "\n")
		sb.WriteString(botLine + "\n")
	}

	// Status line
	if m.focus == focusSelectTarget {
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "  %s", activeGateStyle.Render(m.pendingKind.String()))
		sb.WriteString("  Select target qubit: ")
		sb.WriteString(targetSelectStyle.Render(fmt.Sprintf("q[%d]", m.targetQubit)))
		sb.WriteString(dimStyle.Render("   ↑↓ Move  Enter Confirm  Esc Cancel"))
	} else {
		fmt.Fprintf(&sb, "\n  Position: Step %d, Qubit %d", m.cursorStep, m.cursorQubit)
		if m.statusMsg != "" {
			fmt.Fprintf(&sb, "  │  %s", activeGateStyle.Render(m.statusMsg))
		}
	}

	return circuitStyle.Width(width).Height(height).Render(sb.String())
}

// renderQASMPanel renders the QASM editor panel.
func (m Model) renderQASMPanel(width, height int) string {
	var sb strings.Builder

	title := "QASM Editor"
	if m.focus == focusQASM {
		title += " [ACTIVE]"
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")
	sb.WriteString(m.qasmEditor.View())

	return qasmStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderAnalysisPanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("State"))
	sb.WriteString("\n")
	if m.snap != nil {
		writeAnalysis(&sb, m.snap)
	}
	return analysisStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderHistogramPanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Measurements"))
	sb.WriteString("\n")
	if m.hist == nil || m.hist.Shots == 0 {
		sb.WriteString(dimStyle.Render("m sample  M accumulate"))
	} else {
		writeHistogram(&sb, m.hist, m.board.NumQubits())
	}
	return histogramStyle.Width(width).Height(height).Render(sb.String())
}

// renderControlsPanel renders the bottom help/controls bar.
func (m Model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(activeGateStyle.Render("Navigate: "))
	sb.WriteString("↑↓/jk Move qubit  ←→/hl Move step  +/- Qubits")
	sb.WriteString("    ")
	sb.WriteString(activeGateStyle.Render("a"))
	sb.WriteString(" Add gate\n")

	sb.WriteString(activeGateStyle.Render("Actions:  "))
	sb.WriteString("Tab Switch focus  Bksp Delete  m/M Sample  ^R Reset  ^S Save  q/^C Quit")

	return controlsStyle.Width(width).Height(height).Render(sb.String())
}

// ──────────────────────────── Report text ────────────────────────────

// writeAnalysis lists the nonzero amplitudes, per-qubit marginals and
// entanglement metrics of a snapshot. The TUI and the run command share it.
func writeAnalysis(sb *strings.Builder, snap *session.Snapshot) {
	for i, a := range snap.Amplitudes {
		if i == maxAmpRows {
			sb.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(snap.Amplitudes)-maxAmpRows)))
			sb.WriteString("\n")
			break
		}
		fmt.Fprintf(sb, "  %s  %+.4f%+.4fi  p=%.4f\n", qubitLabelStyle.Render(a.Label), a.Re, a.Im, a.Prob)
	}
	if math.Abs(snap.Norm-1) > 1e-6 {
		sb.WriteString(violationStyle.Render(fmt.Sprintf("  norm %.8f", snap.Norm)))
		sb.WriteString("\n")
	}

	metrics := snap.Metrics
	if metrics == nil {
		return
	}
	for _, q := range metrics.Qubits {
		fmt.Fprintf(sb, "  q%d  P0=%.3f  θ=%-7s S=%.3f\n", q.Qubit, q.Prob0, formatAngle(q.Theta), q.Entropy)
	}
	if metrics.MutualInfoAvailable {
		for _, p := range metrics.MutualInfo {
			fmt.Fprintf(sb, "  I(q%d:q%d)=%.3f\n", p.A, p.B, p.Bits)
		}
	} else {
		sb.WriteString(dimStyle.Render("  mutual information needs ≤3 qubits"))
		sb.WriteString("\n")
	}
	if metrics.Bell != nil {
		writeBell(sb, metrics.Bell)
	}
}

func writeBell(sb *strings.Builder, b *entangle.BellReport) {
	fmt.Fprintf(sb, "  C=%.3f  CHSH=%.3f", b.Concurrence, b.CHSH)
	if b.Violates {
		sb.WriteString(violationStyle.Render(fmt.Sprintf(" > %g", b.ClassicalBound)))
	} else {
		sb.WriteString(dimStyle.Render(fmt.Sprintf(" ≤ %g", b.ClassicalBound)))
	}
	if b.State != entangle.BellNone {
		sb.WriteString("  " + gateStyle.Render(b.State.String()))
	}
	sb.WriteString("\n")
}

// writeHistogram draws one bar per outcome. Registers above four qubits list
// only the outcomes that were hit.
func writeHistogram(sb *strings.Builder, h *measure.Histogram, numQubits int) {
	freqs := h.Frequencies()
	for i, c := range h.Counts {
		if c == 0 && numQubits > 4 {
			continue
		}
		n := int(math.Round(freqs[i] * barW))
		fmt.Fprintf(sb, "  %s %s%s %d\n",
			qubitLabelStyle.Render(quantum.BasisLabel(i, numQubits)),
			barStyle.Render(strings.Repeat("█", n)),
			strings.Repeat(" ", barW-n),
			c)
	}
	st := h.Stats()
	sb.WriteString(dimStyle.Render(fmt.Sprintf("  shots=%d  mode=%s  mean=%.3f  std=%.3f",
		h.Shots, quantum.BasisLabel(st.Mode, numQubits), st.Mean, st.StdDev)))
	sb.WriteString("\n")
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt composites the overlay string on top of the background at position (x, y).
// It handles ANSI escape sequences by tracking visible column positions.
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	ovLines := strings.Split(overlay, "\n")

	for i, ovLine := range ovLines {
		bgIdx := y + i
		if bgIdx < 0 || bgIdx >= len(bgLines) {
			continue
		}
		bgLines[bgIdx] = spliceLineAt(bgLines[bgIdx], ovLine, x)
	}
	return strings.Join(bgLines, "\n")
}

// isEscEnd reports whether r terminates a CSI escape sequence.
func isEscEnd(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}

// spliceLineAt replaces visible columns starting at position x in bgLine with overlay content.
func spliceLineAt(bgLine, overlay string, x int) string {
	runes := []rune(bgLine)
	ovWidth := visibleLen(overlay)

	var prefix, suffix strings.Builder
	col, i := 0, 0

	// Collect prefix: everything up to visible column x, escapes included
	for i < len(runes) && col < x {
		if runes[i] == '\x1b' {
			for i < len(runes) {
				r := runes[i]
				prefix.WriteRune(r)
				i++
				if r != '\x1b' && r != '[' && isEscEnd(r) {
					break
				}
			}
			continue
		}
		prefix.WriteRune(runes[i])
		col++
		i++
	}

	// Pad prefix if bg line is shorter than x
	for col < x {
		prefix.WriteRune(' ')
		col++
	}

	// Skip over ovWidth visible columns in the background
	skipped := 0
	for i < len(runes) && skipped < ovWidth {
		if runes[i] == '\x1b' {
			for i < len(runes) {
				r := runes[i]
				i++
				if r != '\x1b' && r != '[' && isEscEnd(r) {
					break
				}
			}
			continue
		}
		skipped++
		i++
	}

	// Collect suffix: rest of the background line
	for i < len(runes) {
		suffix.WriteRune(runes[i])
		i++
	}

	return prefix.String() + overlay + suffix.String()
}

// visibleLen returns the number of visible (non-ANSI-escape) characters in a string.
func visibleLen(s string) int {
	n := 0
	inEsc := false
	for _, r := range s {
		if r == '\x1b' {
			inEsc = true
			continue
		}
		if inEsc {
			if isEscEnd(r) {
				inEsc = false
			}
			continue
		}
		n++
	}
	return n
}
