package valve

import (
	"fmt"
	"strconv"
	"strings"
)

// Pair is an unordered pair of stator ports.
type Pair struct {
	A Port `json:"a"`
	B Port `json:"b"`
}

func (p Pair) String() string {
	return fmt.Sprintf("(%s,%s)", p.A, p.B)
}

// Request is one user-level connection request.
//
// Connect pairs must end up joined; Disconnect pairs must not. When several
// rotor positions satisfy both sets, AmbiguousSwitching lets the resolver
// pick the first in rotor order instead of failing.
type Request struct {
	Connect            []Pair `json:"connect"`
	Disconnect         []Pair `json:"disconnect,omitempty"`
	AmbiguousSwitching bool   `json:"ambiguous_switching,omitempty"`
}

// ParsePair parses the "a,b" spelling used on the wire and the command line.
func ParsePair(s string) (Pair, error) {
	a, b, ok := strings.Cut(s, ",")
	if !ok {
		return Pair{}, fmt.Errorf("%q is not a port pair", s)
	}
	pa, err := parsePort(a)
	if err != nil {
		return Pair{}, err
	}
	pb, err := parsePort(b)
	if err != nil {
		return Pair{}, err
	}
	return Pair{A: pa, B: pb}, nil
}

func parsePort(s string) (Port, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("port %q is not an integer", s)
	}
	return Port(n), nil
}

func (r Request) String() string {
	var b strings.Builder
	b.WriteString("connect{")
	for i, p := range r.Connect {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(p.String())
	}
	b.WriteString("}")
	if len(r.Disconnect) > 0 {
		b.WriteString(" disconnect{")
		for i, p := range r.Disconnect {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(p.String())
		}
		b.WriteString("}")
	}
	return b.String()
}

// Validate rejects requests naming unknown or dead-end ports and
// self-pairs. It never looks at rotor positions.
func (g *Geometry) Validate(req Request) error {
	check := func(kind string, pairs []Pair) error {
		for _, p := range pairs {
			for _, port := range [2]Port{p.A, p.B} {
				if port == DeadEnd {
					return &InvalidRequestError{Reason: fmt.Sprintf("%s pair %s names a dead-end", kind, p)}
				}
				if !g.HasPort(port) {
					return &InvalidRequestError{Reason: fmt.Sprintf("%s pair %s names unknown port %s", kind, p, port)}
				}
			}
			if p.A == p.B {
				return &InvalidRequestError{Reason: fmt.Sprintf("%s pair %s joins a port to itself", kind, p)}
			}
		}
		return nil
	}
	if err := check("connect", req.Connect); err != nil {
		return err
	}
	return check("disconnect", req.Disconnect)
}

// Satisfies reports whether the rotor position meets the request: every
// connect pair shares a group and no disconnect pair does.
func (g *Geometry) Satisfies(position int, req Request) bool {
	for _, p := range req.Connect {
		if !g.Connected(position, p.A, p.B) {
			return false
		}
	}
	for _, p := range req.Disconnect {
		if g.Connected(position, p.A, p.B) {
			return false
		}
	}
	return true
}

// Candidates returns every rotor position satisfying the request, in rotor
// order. The request is validated first.
func (g *Geometry) Candidates(req Request) ([]int, error) {
	if err := g.Validate(req); err != nil {
		return nil, err
	}
	var out []int
	for pos := 0; pos < g.Positions(); pos++ {
		if g.Satisfies(pos, req) {
			out = append(out, pos)
		}
	}
	return out, nil
}

// Resolve maps a request to exactly one rotor position.
//
// Resolution is pure: it depends only on the geometry and the request,
// never on where the rotor currently is.
//
// Returns:
//   - *InvalidRequestError for malformed requests
//   - *UnreachableConnectionError when no position satisfies the request
//   - *AmbiguousConnectionError when several do and AmbiguousSwitching is false
func (g *Geometry) Resolve(req Request) (int, error) {
	candidates, err := g.Candidates(req)
	if err != nil {
		return 0, err
	}

	switch {
	case len(candidates) == 0:
		return 0, &UnreachableConnectionError{Request: req}
	case len(candidates) == 1, req.AmbiguousSwitching:
		return candidates[0], nil
	default:
		return 0, &AmbiguousConnectionError{Request: req, Candidates: candidates}
	}
}
