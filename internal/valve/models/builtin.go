package models

import (
	"fmt"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

// Built-in model names.
const (
	Injection6Port  = "injection-6port"
	Injection10Port = "injection-10port"
	HamiltonT3      = "hamilton-t3"
	HamiltonL4      = "hamilton-l4"
	DocCentral8     = "doc-central-8"
)

// selectorSizes lists the generated distribution valves ("selector-N").
var selectorSizes = []int{6, 8, 10, 12, 16}

// SelectorName returns the built-in name of an n-port distribution valve.
func SelectorName(n int) string {
	return fmt.Sprintf("selector-%d", n)
}

// Builtin returns every built-in model table.
//
// Generated tables come from valve.PairwiseRing and valve.CentralSelector;
// irregular valves are declared by hand.
func Builtin() ([]valve.Model, error) {
	var out []valve.Model

	for _, n := range []int{6, 10} {
		stator, rotor, err := valve.PairwiseRing(n)
		if err != nil {
			return nil, err
		}
		out = append(out, valve.Model{
			Name:        fmt.Sprintf("injection-%dport", n),
			Kind:        valve.KindInjection,
			Description: fmt.Sprintf("%d-port 2-position injection valve", n),
			Stator:      stator,
			Rotor:       rotor,
			Labels:      []string{valve.LabelLoad, valve.LabelInject},
		})
	}

	for _, n := range selectorSizes {
		stator, rotor, err := valve.CentralSelector(n)
		if err != nil {
			return nil, err
		}
		out = append(out, valve.Model{
			Name:        SelectorName(n),
			Kind:        valve.KindDistribution,
			Description: fmt.Sprintf("%d-position distribution valve with central port", n),
			Stator:      stator,
			Rotor:       rotor,
		})
	}

	out = append(out, hamiltonT3(), hamiltonL4(), docCentral8())
	return out, nil
}

// hamiltonT3 is a 3-port T valve. The fourth slot of the ring is blanked
// in the stator, so the T channel can bridge all three ports at once.
func hamiltonT3() valve.Model {
	n := valve.NoChannel
	return valve.Model{
		Name:        HamiltonT3,
		Kind:        valve.KindMultiport,
		Description: "3-port T valve (one position bridges all three ports)",
		Stator:      [][]valve.Port{{1, 2, 3, valve.DeadEnd}},
		Rotor: [][][]valve.Channel{
			{{5, 5, 5, n}},
			{{n, 5, 5, n}},
			{{5, n, 5, n}},
			{{5, 5, n, n}},
		},
		Labels: []string{"1-2-3", "2-3", "1-3", "1-2"},
	}
}

// hamiltonL4 is a 4-port L valve joining adjacent ports.
func hamiltonL4() valve.Model {
	n := valve.NoChannel
	return valve.Model{
		Name:        HamiltonL4,
		Kind:        valve.KindMultiport,
		Description: "4-port L valve (adjacent ports joined)",
		Stator:      [][]valve.Port{{1, 2, 3, 4}},
		Rotor: [][][]valve.Channel{
			{{5, 5, n, n}},
			{{n, 5, 5, n}},
			{{n, n, 5, 5}},
			{{5, n, n, 5}},
		},
		Labels: []string{"1-2", "2-3", "3-4", "4-1"},
	}
}

// docCentral8 is the 8+1 port valve with a central port used throughout
// the documentation. Only the documented position is declared.
func docCentral8() valve.Model {
	n := valve.NoChannel
	return valve.Model{
		Name:        DocCentral8,
		Kind:        valve.KindDistribution,
		Description: "8-port valve with central port (documentation example)",
		Stator:      [][]valve.Port{{1, 2, 3, 4, 5, 6, 7, 8}, {valve.CentralPort}},
		Rotor: [][][]valve.Channel{
			{{n, n, 10, n, 10, n, 9, n}, {9}},
		},
	}
}
