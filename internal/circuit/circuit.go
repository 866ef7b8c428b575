// Package circuit holds the authored gate list of a register and the formats it
// travels in: a step/qubit grid for editing and OpenQASM 2.0 text.
package circuit

import (
	"fmt"
	"slices"

	"qtermsim/internal/gate"
	"qtermsim/internal/quantum"
)

// Circuit is an ordered gate list over NumQubits qubits. Gates run in slice
// order.
type Circuit struct {
	NumQubits int
	Gates     []gate.Descriptor
}

func New(numQubits int, gates ...gate.Descriptor) *Circuit {
	return &Circuit{NumQubits: numQubits, Gates: gates}
}

func (c *Circuit) Append(g ...gate.Descriptor) {
	c.Gates = append(c.Gates, g...)
}

func (c *Circuit) Clone() *Circuit {
	return &Circuit{NumQubits: c.NumQubits, Gates: slices.Clone(c.Gates)}
}

// Validate checks the register size against maxQubits and every gate against
// the register. It never simulates.
func (c *Circuit) Validate(maxQubits int) error {
	if c.NumQubits > maxQubits {
		return fmt.Errorf("%w: %d > %d", quantum.ErrTooManyQubits, c.NumQubits, maxQubits)
	}
	return quantum.Validate(c.NumQubits, c.Gates)
}

// Simulate folds the gates over |0…0⟩.
func (c *Circuit) Simulate() (*quantum.State, error) {
	return quantum.Simulate(c.NumQubits, c.Gates)
}

// Op is the wire form of one gate. Control is omitted for single-qubit kinds.
type Op struct {
	Kind    gate.Kind `json:"kind" yaml:"kind" msgpack:"kind" validate:"required"`
	Target  int       `json:"target" yaml:"target" msgpack:"target" validate:"min=0"`
	Control *int      `json:"control,omitempty" yaml:"control,omitempty" msgpack:"control,omitempty" validate:"omitempty,min=0"`
}

// OpOf converts a descriptor to its wire form.
func OpOf(d gate.Descriptor) Op {
	op := Op{Kind: d.Kind(), Target: d.Target()}
	if c, ok := d.Control(); ok {
		op.Control = &c
	}
	return op
}

func (o Op) Descriptor() (gate.Descriptor, error) {
	return gate.Build(o.Kind, o.Target, o.Control)
}

// Wire is the serialized form of a Circuit.
type Wire struct {
	NumQubits int  `json:"num_qubits" yaml:"num_qubits" msgpack:"num_qubits" validate:"min=1"`
	Gates     []Op `json:"gates" yaml:"gates" msgpack:"gates" validate:"dive"`
}

func (c *Circuit) Wire() Wire {
	ops := make([]Op, len(c.Gates))
	for i, g := range c.Gates {
		ops[i] = OpOf(g)
	}
	return Wire{NumQubits: c.NumQubits, Gates: ops}
}

// Circuit builds descriptors from the wire form. Range checks against the
// register are left to Validate.
func (w Wire) Circuit() (*Circuit, error) {
	c := &Circuit{NumQubits: w.NumQubits, Gates: make([]gate.Descriptor, 0, len(w.Gates))}
	for i, op := range w.Gates {
		d, err := op.Descriptor()
		if err != nil {
			return nil, fmt.Errorf("gate %d: %w", i, err)
		}
		c.Gates = append(c.Gates, d)
	}
	return c, nil
}
