package circuit

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"qtermsim/internal/gate"
	"qtermsim/internal/quantum"
)

var ErrParse = errors.New("qasm parse error")

var (
	singleGateRegex = regexp.MustCompile(`^([a-z]+)\s+\w+\[(\d+)\]$`)
	twoQubitRegex   = regexp.MustCompile(`^([a-z]+)\s+\w+\[(\d+)\]\s*,\s*\w+\[(\d+)\]$`)
	qregRegex       = regexp.MustCompile(`^qreg\s+\w+\[(\d+)\]$`)
)

// ignoredPrefixes are statements that carry no unitary content.
var ignoredPrefixes = []string{"OPENQASM", "include", "creg", "barrier", "measure"}

// ToQASM renders c as OpenQASM 2.0. CS is written as cs, which qelib1.inc does
// not define; ParseQASM reads it back.
func ToQASM(c *Circuit) string {
	var sb strings.Builder
	sb.WriteString("OPENQASM 2.0;\n")
	sb.WriteString("include \"qelib1.inc\";\n\n")
	fmt.Fprintf(&sb, "qreg q[%d];\n", c.NumQubits)
	fmt.Fprintf(&sb, "creg c[%d];\n\n", c.NumQubits)

	for _, g := range c.Gates {
		name := strings.ToLower(g.Kind().String())
		if ctrl, ok := g.Control(); ok {
			fmt.Fprintf(&sb, "%s q[%d], q[%d];\n", name, ctrl, g.Target())
			continue
		}
		fmt.Fprintf(&sb, "%s q[%d];\n", name, g.Target())
	}
	return sb.String()
}

// ParseQASM reads a circuit written with h x y z s t cx cy cz cs. Without a
// qreg declaration the register is sized to the highest qubit used. Any
// statement that is not understood fails with its line number.
func ParseQASM(text string) (*Circuit, error) {
	c := &Circuit{}
	declared := false
	highest := -1

	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := raw
		if j := strings.Index(line, "//"); j >= 0 {
			line = line[:j]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" || ignored(stmt) {
				continue
			}
			if m := qregRegex.FindStringSubmatch(stmt); m != nil {
				if declared {
					return nil, fmt.Errorf("%w: line %d: second qreg", ErrParse, lineNo)
				}
				n, err := strconv.Atoi(m[1])
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %q: %v", ErrParse, lineNo, stmt, err)
				}
				c.NumQubits = n
				declared = true
				continue
			}

			g, err := parseGate(stmt)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %q: %w", ErrParse, lineNo, stmt, err)
			}
			if declared {
				if err := g.Validate(c.NumQubits); err != nil {
					return nil, fmt.Errorf("%w: line %d: %w", ErrParse, lineNo, err)
				}
			}
			for _, q := range g.Qubits() {
				highest = max(highest, q)
			}
			c.Gates = append(c.Gates, g)
		}
	}

	if !declared {
		c.NumQubits = max(highest+1, 1)
	}
	return c, nil
}

func ignored(stmt string) bool {
	for _, p := range ignoredPrefixes {
		if strings.HasPrefix(stmt, p) {
			return true
		}
	}
	return false
}

func parseGate(stmt string) (gate.Descriptor, error) {
	if m := twoQubitRegex.FindStringSubmatch(stmt); m != nil {
		kind, err := gate.ParseKind(m[1])
		if err != nil {
			return gate.Descriptor{}, err
		}
		control, err := qubitIndex(m[2])
		if err != nil {
			return gate.Descriptor{}, err
		}
		target, err := qubitIndex(m[3])
		if err != nil {
			return gate.Descriptor{}, err
		}
		return gate.NewControlled(kind, control, target)
	}
	if m := singleGateRegex.FindStringSubmatch(stmt); m != nil {
		kind, err := gate.ParseKind(m[1])
		if err != nil {
			return gate.Descriptor{}, err
		}
		target, err := qubitIndex(m[2])
		if err != nil {
			return gate.Descriptor{}, err
		}
		return gate.New(kind, target)
	}
	return gate.Descriptor{}, errors.New("unrecognized statement")
}

// qubitIndex reads a register index. Indices the engine can never hold are
// rejected here so the error keeps its line number.
func qubitIndex(digits string) (int, error) {
	q, err := strconv.Atoi(digits)
	if err != nil {
		return 0, err
	}
	if q >= quantum.MaxQubits {
		return 0, fmt.Errorf("q[%d]: %w", q, quantum.ErrTooManyQubits)
	}
	return q, nil
}
