package valve

import (
	"fmt"
	"strings"
)

// Injection valve labels, assigned by convention in the model table.
const (
	LabelLoad   = "load"
	LabelInject = "inject"
)

// CentralPort is the always-open port on the rotation axis.
const CentralPort Port = 0

// Labeler translates between rotor indices and the labels exposed to users.
// It is immutable and safe for concurrent use.
type Labeler struct {
	labels []string
	index  map[string]int
}

// NewLabeler builds the label table for a geometry.
//
// An explicit table (one label per rotor position) takes precedence.
// Without one, position p is labelled with the stator port joined to the
// central port at p, which requires the geometry to have a central port.
//
// Every position must end up with a distinct, non-empty label; otherwise
// an *UnlabeledPositionError is returned.
func NewLabeler(g *Geometry, explicit []string) (*Labeler, error) {
	labels := make([]string, g.Positions())

	switch {
	case len(explicit) > 0:
		if len(explicit) != g.Positions() {
			return nil, &UnlabeledPositionError{
				Position: min(len(explicit), g.Positions()),
				Reason:   fmt.Sprintf("label table has %d entries for %d positions", len(explicit), g.Positions()),
			}
		}
		for i, l := range explicit {
			labels[i] = strings.TrimSpace(l)
		}
	case g.HasPort(CentralPort):
		for pos := range labels {
			l, err := centralLabel(g, pos)
			if err != nil {
				return nil, err
			}
			labels[pos] = l
		}
	default:
		return nil, &UnlabeledPositionError{Position: 0, Reason: "no central port and no label table"}
	}

	index := make(map[string]int, len(labels))
	for pos, l := range labels {
		if l == "" {
			return nil, &UnlabeledPositionError{Position: pos, Reason: "empty label"}
		}
		if prev, dup := index[l]; dup {
			return nil, &UnlabeledPositionError{Position: pos, Reason: fmt.Sprintf("label %q already names position %d", l, prev)}
		}
		index[l] = pos
	}

	return &Labeler{labels: labels, index: index}, nil
}

// centralLabel derives the label of a position from the port joined to
// the central port.
func centralLabel(g *Geometry, pos int) (string, error) {
	grp := g.GroupOf(pos, CentralPort)
	var peers []Port
	for _, p := range grp {
		if p != CentralPort {
			peers = append(peers, p)
		}
	}
	switch len(peers) {
	case 0:
		return "", &UnlabeledPositionError{Position: pos, Reason: "central port is not connected"}
	case 1:
		return peers[0].String(), nil
	default:
		return "", &UnlabeledPositionError{Position: pos, Reason: fmt.Sprintf("central port joins %d ports %s", len(peers), grp)}
	}
}

// Label returns the label of a rotor position.
func (l *Labeler) Label(position int) (string, error) {
	if position < 0 || position >= len(l.labels) {
		return "", &UnlabeledPositionError{Position: position, Reason: "position out of range"}
	}
	return l.labels[position], nil
}

// Position returns the rotor index carrying the label.
func (l *Labeler) Position(label string) (int, error) {
	pos, ok := l.index[label]
	if !ok {
		return 0, &InvalidRequestError{Reason: fmt.Sprintf("unknown position label %q", label)}
	}
	return pos, nil
}

// Labels returns every label in rotor order.
func (l *Labeler) Labels() []string {
	return append([]string(nil), l.labels...)
}
