package circuit

import (
	"errors"
	"fmt"
	"slices"

	"qtermsim/internal/gate"
)

var ErrOccupied = errors.New("cell is occupied")

// Placement is a gate pinned to a column of the editing grid.
type Placement struct {
	Step int
	Gate gate.Descriptor
}

// span is the inclusive row range a placement covers, including the wire
// between control and target.
func (p Placement) span() (lo, hi int) {
	qs := p.Gate.Qubits()
	return slices.Min(qs), slices.Max(qs)
}

// Board is the editing grid: gates at (step, qubit) cells. Within a step no two
// placements may cover the same row.
type Board struct {
	numQubits  int
	placements []Placement
}

func NewBoard(numQubits int) *Board {
	return &Board{numQubits: numQubits}
}

// BoardFrom lays c out with Layout.
func BoardFrom(c *Circuit) *Board {
	b := &Board{numQubits: c.NumQubits, placements: make([]Placement, len(c.Gates))}
	for i, step := range Layout(c) {
		b.placements[i] = Placement{Step: step, Gate: c.Gates[i]}
	}
	return b
}

func (b *Board) NumQubits() int { return b.numQubits }

// Steps is one past the highest occupied step.
func (b *Board) Steps() int {
	n := 0
	for _, p := range b.placements {
		n = max(n, p.Step+1)
	}
	return n
}

func (b *Board) Len() int { return len(b.placements) }

// CanPlace reports whether every row between the lowest and highest of qubits
// is free at step.
func (b *Board) CanPlace(step int, qubits ...int) bool {
	if len(qubits) == 0 {
		return false
	}
	lo, hi := slices.Min(qubits), slices.Max(qubits)
	if lo < 0 || hi >= b.numQubits || step < 0 {
		return false
	}
	for _, p := range b.placements {
		if p.Step != step {
			continue
		}
		plo, phi := p.span()
		if plo <= hi && lo <= phi {
			return false
		}
	}
	return true
}

// Place validates g against the register and pins it at step.
func (b *Board) Place(step int, g gate.Descriptor) error {
	if err := g.Validate(b.numQubits); err != nil {
		return err
	}
	if !b.CanPlace(step, g.Qubits()...) {
		return fmt.Errorf("%w: step %d %s", ErrOccupied, step, g)
	}
	b.placements = append(b.placements, Placement{Step: step, Gate: g})
	return nil
}

// At returns the placement acting on qubit at step. A wire passing through the
// row does not count.
func (b *Board) At(step, qubit int) (Placement, bool) {
	for _, p := range b.placements {
		if p.Step == step && p.Gate.Touches(qubit) {
			return p, true
		}
	}
	return Placement{}, false
}

// RemoveAt deletes the placement acting on qubit at step.
func (b *Board) RemoveAt(step, qubit int) bool {
	n := len(b.placements)
	b.placements = slices.DeleteFunc(b.placements, func(p Placement) bool {
		return p.Step == step && p.Gate.Touches(qubit)
	})
	return len(b.placements) != n
}

// AddQubit appends a wire below the last one.
func (b *Board) AddQubit() {
	b.numQubits++
}

// RemoveQubit drops every gate touching q and renumbers the wires above it.
func (b *Board) RemoveQubit(q int) {
	if q < 0 || q >= b.numQubits {
		return
	}
	kept := b.placements[:0]
	for _, p := range b.placements {
		if p.Gate.Touches(q) {
			continue
		}
		p.Gate = shiftDown(p.Gate, q)
		kept = append(kept, p)
	}
	b.placements = kept
	b.numQubits--
}

func shiftDown(g gate.Descriptor, removed int) gate.Descriptor {
	shift := func(x int) int {
		if x > removed {
			return x - 1
		}
		return x
	}
	if c, ok := g.Control(); ok {
		return gate.MustControlled(g.Kind(), shift(c), shift(g.Target()))
	}
	return gate.MustNew(g.Kind(), shift(g.Target()))
}

// Clear removes every placement.
func (b *Board) Clear() {
	b.placements = nil
}

// Placements returns the placements in execution order.
func (b *Board) Placements() []Placement {
	out := slices.Clone(b.placements)
	slices.SortStableFunc(out, func(x, y Placement) int { return x.Step - y.Step })
	return out
}

// Circuit flattens the board by step. Gates sharing a step never share a row, so
// their relative order does not change the state; insertion order breaks ties.
func (b *Board) Circuit() *Circuit {
	ps := b.Placements()
	c := &Circuit{NumQubits: b.numQubits, Gates: make([]gate.Descriptor, len(ps))}
	for i, p := range ps {
		c.Gates[i] = p.Gate
	}
	return c
}

// Cell describes what to draw at one grid position.
type Cell struct {
	Gate        *Placement
	IsControl   bool
	IsTarget    bool
	WireAbove   bool
	WireBelow   bool
	PassThrough bool
}

// Cell returns drawing information for (step, qubit).
func (b *Board) Cell(step, qubit int) Cell {
	var cell Cell
	for i := range b.placements {
		p := &b.placements[i]
		if p.Step != step {
			continue
		}
		lo, hi := p.span()
		if qubit < lo || qubit > hi {
			continue
		}
		if p.Gate.Touches(qubit) {
			cell.Gate = p
			c, controlled := p.Gate.Control()
			cell.IsControl = controlled && c == qubit
			cell.IsTarget = controlled && p.Gate.Target() == qubit
		} else {
			cell.PassThrough = true
		}
		cell.WireAbove = qubit > lo
		cell.WireBelow = qubit < hi
	}
	return cell
}
