package circuit

import "slices"

// Layout assigns each gate of c the earliest step after the last gate covering
// any row it covers. A controlled gate covers every row from control to target,
// so the result is always placeable on a Board, and gates sharing a qubit keep
// their order.
func Layout(c *Circuit) []int {
	nextFree := make([]int, c.NumQubits)
	steps := make([]int, len(c.Gates))
	for i, g := range c.Gates {
		qs := g.Qubits()
		lo, hi := slices.Min(qs), slices.Max(qs)
		hi = min(hi, len(nextFree)-1)

		step := 0
		for r := lo; r <= hi; r++ {
			step = max(step, nextFree[r])
		}
		for r := lo; r <= hi; r++ {
			nextFree[r] = step + 1
		}
		steps[i] = step
	}
	return steps
}

// Depth is the number of steps Layout needs.
func Depth(c *Circuit) int {
	d := 0
	for _, s := range Layout(c) {
		d = max(d, s+1)
	}
	return d
}
