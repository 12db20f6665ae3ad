package valve

import (
	"errors"
	"testing"
)

func TestModel_Build(t *testing.T) {
	stator, rotor := injectionTable()
	selStator, selRotor, _ := CentralSelector(4)

	tests := []struct {
		name    string
		model   Model
		wantErr error
	}{
		{
			name:  "injection",
			model: Model{Name: "inj", Kind: KindInjection, Stator: stator, Rotor: rotor, Labels: []string{LabelLoad, LabelInject}},
		},
		{
			name:    "injection with wrong labels",
			model:   Model{Name: "inj", Kind: KindInjection, Stator: stator, Rotor: rotor, Labels: []string{"a", "b"}},
			wantErr: ErrUnlabeled,
		},
		{
			name:    "injection with four positions",
			model:   Model{Name: "inj", Kind: KindInjection, Stator: selStator, Rotor: selRotor},
			wantErr: ErrGeometry,
		},
		{
			name:  "distribution from central port",
			model: Model{Name: "sel", Kind: KindDistribution, Stator: selStator, Rotor: selRotor},
		},
		{
			name:    "broken table",
			model:   Model{Name: "bad", Kind: KindMultiport, Stator: [][]Port{{1, 2}}, Rotor: [][][]Channel{{{3, 4}}}},
			wantErr: ErrGeometry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, l, err := tt.model.Build()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Build() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			if g == nil || l == nil {
				t.Fatal("Build() returned nil geometry or labeler")
			}
			if len(l.Labels()) != g.Positions() {
				t.Errorf("%d labels for %d positions", len(l.Labels()), g.Positions())
			}
		})
	}
}
