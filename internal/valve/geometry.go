package valve

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Port identifies a stator port: 0 for the central port, 1..n clockwise
// from the topmost port.
type Port int

// DeadEnd marks a stator slot with no physical opening. It can never be
// part of a connection.
const DeadEnd Port = -1

// String renders the port, "-" for a dead-end.
func (p Port) String() string {
	if p == DeadEnd {
		return "-"
	}
	return strconv.Itoa(int(p))
}

// Channel identifies a rotor passage within one rotor position.
type Channel int

// NoChannel marks a slot that no rotor passage reaches.
const NoChannel Channel = -1

// Group is a set of stator ports joined by one rotor channel, ascending.
type Group []Port

// Contains reports whether the group holds port p.
func (g Group) Contains(p Port) bool {
	for _, q := range g {
		if q == p {
			return true
		}
	}
	return false
}

func (g Group) String() string {
	parts := make([]string, len(g))
	for i, p := range g {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ",") + ")"
}

// Geometry is the immutable topology of one valve model.
//
// Stator holds rings of port identifiers; Rotor holds, per rotor position,
// rings of the same shape carrying channel ids. Slots sharing a channel id
// within one rotor position are fluidically joined.
//
// A Geometry is safe for concurrent use: nothing mutates it after
// NewGeometry returns.
type Geometry struct {
	stator [][]Port
	rotor  [][][]Channel

	ports   map[Port]struct{}
	groups  [][]Group      // connections per rotor position
	members []map[Port]int // port → index into groups[position]
}

// NewGeometry validates a stator/rotor table pair and precomputes the
// connections of every rotor position.
//
// Validation covers:
//   - at least one stator ring and one rotor position
//   - unique, non-negative port identifiers
//   - identical ring/slot shape for every rotor entry
//   - no channel id on a dead-end slot
//   - every channel id used at least twice per rotor position
//   - channel ids never collide with port identifiers
//
// Returns a *GeometryError (wrapping ErrGeometry) on the first violation.
func NewGeometry(stator [][]Port, rotor [][][]Channel) (*Geometry, error) {
	if len(stator) == 0 {
		return nil, &GeometryError{Position: -1, Reason: "stator has no rings"}
	}
	if len(rotor) == 0 {
		return nil, &GeometryError{Position: -1, Reason: "rotor has no positions"}
	}

	g := &Geometry{
		stator: cloneStator(stator),
		rotor:  cloneRotor(rotor),
		ports:  make(map[Port]struct{}),
	}

	for ri, ring := range g.stator {
		if len(ring) == 0 {
			return nil, &GeometryError{Position: -1, Ring: ri, Reason: "empty ring"}
		}
		for si, p := range ring {
			if p == DeadEnd {
				continue
			}
			if p < 0 {
				return nil, &GeometryError{Position: -1, Ring: ri, Slot: si, Reason: fmt.Sprintf("negative port identifier %d", p)}
			}
			if _, dup := g.ports[p]; dup {
				return nil, &GeometryError{Position: -1, Ring: ri, Slot: si, Reason: fmt.Sprintf("duplicate port %d", p)}
			}
			g.ports[p] = struct{}{}
		}
	}
	if len(g.ports) == 0 {
		return nil, &GeometryError{Position: -1, Reason: "stator has no ports"}
	}

	g.groups = make([][]Group, len(g.rotor))
	g.members = make([]map[Port]int, len(g.rotor))
	for pos := range g.rotor {
		if err := g.validatePosition(pos); err != nil {
			return nil, err
		}
		g.groups[pos], g.members[pos] = g.connect(pos)
	}

	return g, nil
}

// validatePosition checks shape and channel rules for one rotor entry.
func (g *Geometry) validatePosition(pos int) error {
	entry := g.rotor[pos]
	if len(entry) != len(g.stator) {
		return &GeometryError{Position: pos, Ring: len(entry), Reason: fmt.Sprintf("has %d rings, stator has %d", len(entry), len(g.stator))}
	}

	type firstUse struct{ ring, slot, count int }
	uses := make(map[Channel]*firstUse)
	var order []Channel

	for ri, ring := range entry {
		if len(ring) != len(g.stator[ri]) {
			return &GeometryError{Position: pos, Ring: ri, Reason: fmt.Sprintf("has %d slots, stator ring has %d", len(ring), len(g.stator[ri]))}
		}
		for si, ch := range ring {
			if ch == NoChannel {
				continue
			}
			if ch < 0 {
				return &GeometryError{Position: pos, Ring: ri, Slot: si, Reason: fmt.Sprintf("negative channel id %d", ch)}
			}
			if g.stator[ri][si] == DeadEnd {
				return &GeometryError{Position: pos, Ring: ri, Slot: si, Reason: fmt.Sprintf("channel %d placed on a dead-end", ch)}
			}
			if _, clash := g.ports[Port(ch)]; clash {
				return &GeometryError{Position: pos, Ring: ri, Slot: si, Reason: fmt.Sprintf("channel id %d collides with a port identifier", ch)}
			}
			u, seen := uses[ch]
			if !seen {
				u = &firstUse{ring: ri, slot: si}
				uses[ch] = u
				order = append(order, ch)
			}
			u.count++
		}
	}

	for _, ch := range order {
		if u := uses[ch]; u.count < 2 {
			return &GeometryError{Position: pos, Ring: u.ring, Slot: u.slot, Reason: fmt.Sprintf("channel %d has only one end", ch)}
		}
	}
	return nil
}

// connect builds the port groups for a validated rotor position.
func (g *Geometry) connect(pos int) ([]Group, map[Port]int) {
	byChannel := make(map[Channel]Group)
	for ri, ring := range g.rotor[pos] {
		for si, ch := range ring {
			if ch == NoChannel {
				continue
			}
			byChannel[ch] = append(byChannel[ch], g.stator[ri][si])
		}
	}

	groups := make([]Group, 0, len(byChannel))
	for _, grp := range byChannel {
		sort.Slice(grp, func(i, j int) bool { return grp[i] < grp[j] })
		groups = append(groups, grp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	members := make(map[Port]int)
	for gi, grp := range groups {
		for _, p := range grp {
			members[p] = gi
		}
	}
	return groups, members
}

// Positions returns the number of discrete rotor positions.
func (g *Geometry) Positions() int {
	return len(g.rotor)
}

// HasPort reports whether p is a stator port (dead-ends excluded).
func (g *Geometry) HasPort(p Port) bool {
	_, ok := g.ports[p]
	return ok
}

// Ports returns every stator port identifier in ascending order.
func (g *Geometry) Ports() []Port {
	out := make([]Port, 0, len(g.ports))
	for p := range g.ports {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Stator returns a copy of the stator rings.
func (g *Geometry) Stator() [][]Port {
	return cloneStator(g.stator)
}

// Rotor returns a copy of the rotor channel table.
func (g *Geometry) Rotor() [][][]Channel {
	return cloneRotor(g.rotor)
}

// ConnectionsAt returns the connected port groups at a rotor position.
// The returned slice is a copy and may be modified by the caller.
func (g *Geometry) ConnectionsAt(position int) ([]Group, error) {
	if position < 0 || position >= len(g.groups) {
		return nil, fmt.Errorf("%w: %d (valve has %d positions)", ErrPositionOutOfRange, position, len(g.groups))
	}
	out := make([]Group, len(g.groups[position]))
	for i, grp := range g.groups[position] {
		out[i] = append(Group(nil), grp...)
	}
	return out, nil
}

// Connected reports whether ports a and b share a channel at position.
// Out-of-range positions report false.
func (g *Geometry) Connected(position int, a, b Port) bool {
	if position < 0 || position >= len(g.members) {
		return false
	}
	ga, okA := g.members[position][a]
	gb, okB := g.members[position][b]
	return okA && okB && ga == gb
}

// GroupOf returns the group containing p at position, or nil if p is not
// connected to anything there.
func (g *Geometry) GroupOf(position int, p Port) Group {
	if position < 0 || position >= len(g.members) {
		return nil
	}
	gi, ok := g.members[position][p]
	if !ok {
		return nil
	}
	return append(Group(nil), g.groups[position][gi]...)
}

func cloneStator(in [][]Port) [][]Port {
	out := make([][]Port, len(in))
	for i, ring := range in {
		out[i] = append([]Port(nil), ring...)
	}
	return out
}

func cloneRotor(in [][][]Channel) [][][]Channel {
	out := make([][][]Channel, len(in))
	for i, entry := range in {
		out[i] = make([][]Channel, len(entry))
		for j, ring := range entry {
			out[i][j] = append([]Channel(nil), ring...)
		}
	}
	return out
}
