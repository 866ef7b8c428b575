// Package gate defines the supported gate kinds, the immutable gate descriptor,
// and the numeric rule each kind applies to a pair of amplitudes.
package gate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	ErrUnsupportedKind   = errors.New("unsupported gate kind")
	ErrNegativeQubit     = errors.New("qubit index is negative")
	ErrQubitOutOfRange   = errors.New("qubit index out of range")
	ErrSameQubit         = errors.New("control and target are the same qubit")
	ErrMissingControl    = errors.New("controlled gate needs a control qubit")
	ErrUnexpectedControl = errors.New("single-qubit gate cannot take a control qubit")
)

// Kind identifies a gate operator.
type Kind uint8

const (
	Invalid Kind = iota
	H
	X
	Y
	Z
	S
	T
	CX
	CY
	CZ
	CS
)

var kindNames = [...]string{
	Invalid: "INVALID",
	H:       "H",
	X:       "X",
	Y:       "Y",
	Z:       "Z",
	S:       "S",
	T:       "T",
	CX:      "CX",
	CY:      "CY",
	CZ:      "CZ",
	CS:      "CS",
}

// Kinds lists every supported kind in menu order.
var Kinds = []Kind{H, X, Y, Z, S, T, CX, CY, CZ, CS}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	return k >= H && k <= CS
}

// Controlled reports whether k takes a control qubit.
func (k Kind) Controlled() bool {
	return k >= CX && k <= CS
}

// Base returns the single-qubit operator a controlled kind applies to its target.
// Single-qubit kinds return themselves.
func (k Kind) Base() Kind {
	switch k {
	case CX:
		return X
	case CY:
		return Y
	case CZ:
		return Z
	case CS:
		return S
	}
	return k
}

// ParseKind accepts a gate name in any case ("h", "CX", "cnot").
func ParseKind(name string) (Kind, error) {
	switch up := strings.ToUpper(strings.TrimSpace(name)); up {
	case "CNOT":
		return CX, nil
	default:
		for _, k := range Kinds {
			if kindNames[k] == up {
				return k, nil
			}
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrUnsupportedKind, name)
}

// MarshalText encodes a kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind by name.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EncodeMsgpack writes the kind as a msgpack str. Without it the encoder falls
// back to MarshalText and emits bin.
func (k Kind) EncodeMsgpack(enc *msgpack.Encoder) error {
	text, err := k.MarshalText()
	if err != nil {
		return err
	}
	return enc.EncodeString(string(text))
}

func (k *Kind) DecodeMsgpack(dec *msgpack.Decoder) error {
	name, err := dec.DecodeString()
	if err != nil {
		return err
	}
	return k.UnmarshalText([]byte(name))
}

// Descriptor is one gate placed on a circuit. The zero value is not valid; build
// descriptors with New or NewControlled.
type Descriptor struct {
	kind    Kind
	target  int
	control int // -1 when kind is not controlled
}

// New builds a single-qubit gate descriptor.
func New(kind Kind, target int) (Descriptor, error) {
	if !kind.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	if kind.Controlled() {
		return Descriptor{}, fmt.Errorf("%s: %w", kind, ErrMissingControl)
	}
	if target < 0 {
		return Descriptor{}, fmt.Errorf("%s target %d: %w", kind, target, ErrNegativeQubit)
	}
	return Descriptor{kind: kind, target: target, control: -1}, nil
}

// NewControlled builds a two-qubit controlled gate descriptor.
func NewControlled(kind Kind, control, target int) (Descriptor, error) {
	if !kind.Valid() {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	if !kind.Controlled() {
		return Descriptor{}, fmt.Errorf("%s: %w", kind, ErrUnexpectedControl)
	}
	if target < 0 || control < 0 {
		return Descriptor{}, fmt.Errorf("%s control %d target %d: %w", kind, control, target, ErrNegativeQubit)
	}
	if target == control {
		return Descriptor{}, fmt.Errorf("%s on q[%d]: %w", kind, target, ErrSameQubit)
	}
	return Descriptor{kind: kind, target: target, control: control}, nil
}

// Build dispatches to New when control is nil and to NewControlled otherwise.
func Build(kind Kind, target int, control *int) (Descriptor, error) {
	if control == nil {
		return New(kind, target)
	}
	if !kind.Controlled() {
		return Descriptor{}, fmt.Errorf("%s: %w", kind, ErrUnexpectedControl)
	}
	return NewControlled(kind, *control, target)
}

// MustNew is New for literals in tests and fixtures.
func MustNew(kind Kind, target int) Descriptor {
	d, err := New(kind, target)
	if err != nil {
		panic(err)
	}
	return d
}

// MustControlled is NewControlled for literals in tests and fixtures.
func MustControlled(kind Kind, control, target int) Descriptor {
	d, err := NewControlled(kind, control, target)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Descriptor) Kind() Kind  { return d.kind }
func (d Descriptor) Target() int { return d.target }

// Control returns the control qubit and whether the gate has one.
func (d Descriptor) Control() (int, bool) {
	return d.control, d.kind.Controlled()
}

// Qubits returns the qubits the gate touches, control first.
func (d Descriptor) Qubits() []int {
	if d.kind.Controlled() {
		return []int{d.control, d.target}
	}
	return []int{d.target}
}

// Touches reports whether the gate acts on qubit q.
func (d Descriptor) Touches(q int) bool {
	return d.target == q || (d.kind.Controlled() && d.control == q)
}

// Validate checks the descriptor against a register of numQubits qubits.
func (d Descriptor) Validate(numQubits int) error {
	if !d.kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnsupportedKind, d.kind)
	}
	for _, q := range d.Qubits() {
		if q < 0 {
			return fmt.Errorf("%s: q[%d]: %w", d, q, ErrNegativeQubit)
		}
		if q >= numQubits {
			return fmt.Errorf("%s: q[%d] with %d qubits: %w", d, q, numQubits, ErrQubitOutOfRange)
		}
	}
	if d.kind.Controlled() && d.control == d.target {
		return fmt.Errorf("%s: %w", d, ErrSameQubit)
	}
	return nil
}

func (d Descriptor) String() string {
	if d.kind.Controlled() {
		return fmt.Sprintf("%s q[%d], q[%d]", d.kind, d.control, d.target)
	}
	return fmt.Sprintf("%s q[%d]", d.kind, d.target)
}
