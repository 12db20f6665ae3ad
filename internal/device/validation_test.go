package device

import (
	"errors"
	"strings"
	"testing"
)

func validDescriptor() Descriptor {
	return Descriptor{
		ID:     "hplc-1",
		Name:   "HPLC rack",
		Kind:   KindValveActuator,
		Driver: "simulated",
		Components: []ComponentDescriptor{
			{Name: "injector", Kind: ComponentInjectionValve},
			{Name: "column_select", Kind: ComponentSelectorValve},
		},
	}
}

func TestValidateDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr error
	}{
		{name: "valid", mutate: func(*Descriptor) {}},
		{name: "uppercase id", mutate: func(d *Descriptor) { d.ID = "HPLC" }, wantErr: ErrInvalidSlug},
		{name: "empty id", mutate: func(d *Descriptor) { d.ID = "" }, wantErr: ErrInvalidSlug},
		{name: "long id", mutate: func(d *Descriptor) { d.ID = strings.Repeat("a", 51) }, wantErr: ErrInvalidSlug},
		{name: "blank name", mutate: func(d *Descriptor) { d.Name = "  " }, wantErr: ErrInvalidName},
		{name: "long name", mutate: func(d *Descriptor) { d.Name = strings.Repeat("n", 101) }, wantErr: ErrInvalidName},
		{name: "unknown kind", mutate: func(d *Descriptor) { d.Kind = "pump" }, wantErr: ErrInvalidDevice},
		{name: "no driver", mutate: func(d *Descriptor) { d.Driver = "" }, wantErr: ErrInvalidDevice},
		{name: "no components", mutate: func(d *Descriptor) { d.Components = nil }, wantErr: ErrInvalidDevice},
		{name: "bad component name", mutate: func(d *Descriptor) { d.Components[0].Name = "in jector" }, wantErr: ErrInvalidSlug},
		{name: "duplicate component", mutate: func(d *Descriptor) { d.Components[1].Name = "injector" }, wantErr: ErrInvalidDevice},
		{name: "unknown component kind", mutate: func(d *Descriptor) { d.Components[0].Kind = "pump" }, wantErr: ErrInvalidDevice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDescriptor()
			tt.mutate(&d)
			err := ValidateDescriptor(d)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateDescriptor() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateDescriptor() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestComponentKindFor(t *testing.T) {
	if ComponentKindFor("injection") != ComponentInjectionValve {
		t.Error("injection models should map to injection_valve")
	}
	if ComponentKindFor("distribution") != ComponentDistributionValve {
		t.Error("distribution models should map to distribution_valve")
	}
	if ComponentKindFor("multiport") != ComponentSelectorValve {
		t.Error("multiport models should map to selector_valve")
	}
}
