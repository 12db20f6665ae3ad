// Package valve models rotary valves: the fixed stator ports, the rotor
// channels joining them at each rotor position, and the resolution of a
// user-level connection request into a rotor position.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                          valve package                            │
//	│                                                                   │
//	│  ┌────────────────┐   ┌────────────────┐   ┌────────────────┐    │
//	│  │    Geometry    │   │    Resolver    │   │    Labeler     │    │
//	│  │ (geometry.go)  │──▶│ (resolver.go)  │   │  (labeler.go)  │    │
//	│  │                │   │                │   │                │    │
//	│  │ • stator rings │   │ • validation   │   │ • load/inject  │    │
//	│  │ • rotor table  │   │ • candidates   │   │ • central port │    │
//	│  │ • connections  │   │ • tie-break    │   │ • label table  │    │
//	│  └────────────────┘   └────────────────┘   └────────────────┘    │
//	│           ▲                                                       │
//	│  ┌────────────────┐   ┌────────────────┐                          │
//	│  │   Generators   │   │  RuntimeState  │  (owned by the driver)   │
//	│  │ (generate.go)  │   │   (state.go)   │                          │
//	│  └────────────────┘   └────────────────┘                          │
//	└──────────────────────────────────────────────────────────────────┘
//
// Geometry, resolution and labeling are pure and immutable; they need no
// locking. Only RuntimeState is mutable, and it belongs to exactly one
// driver instance.
//
// # Usage
//
//	stator, rotor, _ := valve.PairwiseRing(6)
//	m := valve.Model{Name: "injection-6port", Kind: valve.KindInjection,
//	    Stator: stator, Rotor: rotor, Labels: []string{"load", "inject"}}
//	g, labels, err := m.Build()
//	if err != nil {
//	    return err // table bug: fail at startup
//	}
//
//	pos, err := g.Resolve(valve.Request{Connect: []valve.Pair{{A: 1, B: 2}}})
//	label, _ := labels.Label(pos) // "inject"
//
// # Dead-ends
//
// A DeadEnd in the stator is always immutable: it never receives a channel
// and requests naming it are rejected. A blanking plug is modelled as an
// ordinary port that happens not to be plumbed.
package valve
