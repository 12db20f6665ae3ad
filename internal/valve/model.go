package valve

import "fmt"

// Kind classifies a valve model for API consumers.
type Kind string

// Valve kinds.
const (
	KindInjection    Kind = "injection"
	KindDistribution Kind = "distribution"
	KindMultiport    Kind = "multiport"
)

// AllKinds returns all valid valve kinds.
func AllKinds() []Kind {
	return []Kind{KindInjection, KindDistribution, KindMultiport}
}

// Model is the static, per-hardware-model table a driver instantiates its
// geometry from. Labels may be empty when the geometry has a central port.
type Model struct {
	Name        string
	Kind        Kind
	Description string
	Stator      [][]Port
	Rotor       [][][]Channel
	Labels      []string
}

// Build validates the table and returns its geometry and labeler.
// Injection models must have exactly two positions labelled load/inject.
func (m Model) Build() (*Geometry, *Labeler, error) {
	g, err := NewGeometry(m.Stator, m.Rotor)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", m.Name, err)
	}

	if m.Kind == KindInjection {
		if g.Positions() != 2 {
			return nil, nil, fmt.Errorf("model %s: %w", m.Name,
				&GeometryError{Position: -1, Reason: fmt.Sprintf("injection valve has %d positions, want 2", g.Positions())})
		}
		if len(m.Labels) != 2 || m.Labels[0] != LabelLoad || m.Labels[1] != LabelInject {
			return nil, nil, fmt.Errorf("model %s: %w", m.Name,
				&UnlabeledPositionError{Position: 0, Reason: "injection valve labels must be [load inject]"})
		}
	}

	l, err := NewLabeler(g, m.Labels)
	if err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", m.Name, err)
	}
	return g, l, nil
}
