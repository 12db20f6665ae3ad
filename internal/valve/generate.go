package valve

import "fmt"

// PortRange returns ports from..to inclusive.
func PortRange(from, to Port) []Port {
	if to < from {
		return nil
	}
	out := make([]Port, 0, to-from+1)
	for p := from; p <= to; p++ {
		out = append(out, p)
	}
	return out
}

// PairwiseRing generates a two-position valve with n ring ports joined
// pairwise, the second position shifted by one slot. The stator carries a
// dead-end on the axis, matching classic 2-position injection valves.
//
// For n = 6:
//
//	stator:     [(1,2,3,4,5,6), (-)]
//	position 0: [(7,8,8,9,9,7), (-)]   joins (1,6) (2,3) (4,5)
//	position 1: [(7,7,8,8,9,9), (-)]   joins (1,2) (3,4) (5,6)
func PairwiseRing(n int) (stator [][]Port, rotor [][][]Channel, err error) {
	if n < 2 || n%2 != 0 {
		return nil, nil, &GeometryError{Position: -1, Reason: fmt.Sprintf("pairwise ring needs an even port count >= 2, got %d", n)}
	}

	stator = [][]Port{PortRange(1, Port(n)), {DeadEnd}}
	base := Channel(n + 1)

	for _, shift := range []int{1, 0} {
		ring := make([]Channel, n)
		for i := range ring {
			ring[i] = base + Channel(((i+shift)%n)/2)
		}
		rotor = append(rotor, [][]Channel{ring, {NoChannel}})
	}
	return stator, rotor, nil
}

// CentralSelector generates an n-position distribution valve: central port
// 0 joined to one ring port per position, advancing one slot per step.
//
// For n = 4:
//
//	stator:     [(1,2,3,4), (0)]
//	position 0: [(5,-,-,-), (5)]   joins (0,1)
//	position 1: [(-,5,-,-), (5)]   joins (0,2)
func CentralSelector(n int) (stator [][]Port, rotor [][][]Channel, err error) {
	if n < 2 {
		return nil, nil, &GeometryError{Position: -1, Reason: fmt.Sprintf("selector needs at least 2 ports, got %d", n)}
	}

	stator = [][]Port{PortRange(1, Port(n)), {CentralPort}}
	ch := Channel(n + 1)

	for pos := 0; pos < n; pos++ {
		ring := make([]Channel, n)
		for i := range ring {
			ring[i] = NoChannel
		}
		ring[pos] = ch
		rotor = append(rotor, [][]Channel{ring, {ch}})
	}
	return stator, rotor, nil
}
