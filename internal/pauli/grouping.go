package pauli

import "sort"

// Group is a set of qubit-wise commuting terms together with the shared
// measurement basis they can all be estimated from. Basis maps each measured
// qubit to the axis it must be rotated into the computational basis from.
type Group struct {
	Basis map[int]Axis
	Terms []Term
}

// GroupQubitwise partitions the operator's non-identity terms into
// qubit-wise commuting groups: two terms share a group when, on every qubit
// both act on, they use the same axis. Each group can then be estimated from
// a single measured circuit with per-qubit basis rotations. The identity
// term is excluded; callers add Identity() directly to the estimate.
//
// Greedy first-fit over canonically ordered terms. Not minimal in general,
// but deterministic, and minimal for the Hamiltonians this system targets.
func (o Operator) GroupQubitwise() []Group {
	var groups []Group

	for _, t := range o.Terms() {
		if len(t.Ops) == 0 {
			continue
		}
		placed := false
		for i := range groups {
			if fitsGroup(groups[i].Basis, t) {
				for q, axis := range t.Ops {
					groups[i].Basis[q] = axis
				}
				groups[i].Terms = append(groups[i].Terms, t)
				placed = true
				break
			}
		}
		if !placed {
			basis := make(map[int]Axis, len(t.Ops))
			for q, axis := range t.Ops {
				basis[q] = axis
			}
			groups = append(groups, Group{Basis: basis, Terms: []Term{t}})
		}
	}

	return groups
}

// fitsGroup reports whether the term is qubit-wise compatible with the
// group's accumulated basis.
func fitsGroup(basis map[int]Axis, t Term) bool {
	for q, axis := range t.Ops {
		if existing, ok := basis[q]; ok && existing != axis {
			return false
		}
	}
	return true
}

// MeasuredQubits returns the group's measured qubit indices in ascending
// order.
func (g Group) MeasuredQubits() []int {
	qubits := make([]int, 0, len(g.Basis))
	for q := range g.Basis {
		qubits = append(qubits, q)
	}
	sort.Ints(qubits)
	return qubits
}
