package models

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/nerrad567/benchlink-core/internal/valve"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	return c
}

func TestNewCatalog_Builtins(t *testing.T) {
	c := newTestCatalog(t)

	want := []string{
		DocCentral8, HamiltonL4, HamiltonT3, Injection10Port, Injection6Port,
		"selector-10", "selector-12", "selector-16", "selector-6", "selector-8",
	}
	entries := c.List()
	if len(entries) != len(want) {
		t.Fatalf("List() returned %d entries, want %d", len(entries), len(want))
	}
	for i, e := range entries {
		if e.Model.Name != want[i] {
			t.Errorf("List()[%d] = %q, want %q", i, e.Model.Name, want[i])
		}
		if e.Source != SourceBuiltin {
			t.Errorf("%s: Source = %q", e.Model.Name, e.Source)
		}
	}
}

func TestBuiltin_DocumentedScenarios(t *testing.T) {
	c := newTestCatalog(t)

	inj, err := c.Get(Injection6Port)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	pos, err := inj.Geometry.Resolve(valve.Request{Connect: []valve.Pair{{A: 1, B: 2}}})
	if err != nil {
		t.Fatalf("Resolve(1,2) error = %v", err)
	}
	if label, _ := inj.Labels.Label(pos); label != valve.LabelInject {
		t.Errorf("Resolve(1,2) label = %q, want inject", label)
	}

	doc, _ := c.Get(DocCentral8)
	if _, err := doc.Geometry.Resolve(valve.Request{Connect: []valve.Pair{{A: 0, B: 1}}}); !errors.Is(err, valve.ErrUnreachable) {
		t.Errorf("Resolve(0,1) error = %v, want ErrUnreachable", err)
	}
}

func TestBuiltin_HamiltonT3BridgesThreePorts(t *testing.T) {
	c := newTestCatalog(t)
	e, _ := c.Get(HamiltonT3)

	pos, err := e.Geometry.Resolve(valve.Request{Connect: []valve.Pair{{A: 1, B: 2}, {A: 2, B: 3}}})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if label, _ := e.Labels.Label(pos); label != "1-2-3" {
		t.Errorf("label = %q, want 1-2-3", label)
	}

	// (1,2) alone is satisfied by the T and the 1-2 elbow.
	_, err = e.Geometry.Resolve(valve.Request{Connect: []valve.Pair{{A: 1, B: 2}}})
	var amb *valve.AmbiguousConnectionError
	if !errors.As(err, &amb) {
		t.Fatalf("Resolve(1,2) error = %v, want ambiguous", err)
	}

	// Disconnecting (2,3) picks the elbow.
	pos, err = e.Geometry.Resolve(valve.Request{
		Connect:    []valve.Pair{{A: 1, B: 2}},
		Disconnect: []valve.Pair{{A: 2, B: 3}},
	})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if label, _ := e.Labels.Label(pos); label != "1-2" {
		t.Errorf("label = %q, want 1-2", label)
	}
}

func TestCatalog_SelectorLabels(t *testing.T) {
	c := newTestCatalog(t)
	e, err := c.Get(SelectorName(8))
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	labels := e.Labels.Labels()
	if len(labels) != 8 || labels[0] != "1" || labels[7] != "8" {
		t.Errorf("Labels() = %v", labels)
	}
}

func TestCatalog_Errors(t *testing.T) {
	c := newTestCatalog(t)

	if _, err := c.Get("nope"); !errors.Is(err, ErrModelNotFound) {
		t.Errorf("Get(nope) error = %v, want ErrModelNotFound", err)
	}

	e, _ := c.Get(HamiltonL4)
	if err := c.Add(e.Model, "test"); !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("Add(duplicate) error = %v, want ErrDuplicateModel", err)
	}
}

func TestCatalog_LoadPaths(t *testing.T) {
	c := newTestCatalog(t)

	n, err := c.LoadPaths([]string{"testdata"})
	if err != nil {
		t.Fatalf("LoadPaths() error = %v", err)
	}
	if n != 3 {
		t.Errorf("LoadPaths() loaded %d models, want 3", n)
	}

	sw, err := c.Get("lab-switch")
	if err != nil {
		t.Fatalf("Get(lab-switch) error = %v", err)
	}
	if sw.Source != filepath.Join("testdata", "lab-switch.yaml") {
		t.Errorf("Source = %q", sw.Source)
	}
	if sw.Geometry.HasPort(valve.DeadEnd) {
		t.Error("dead-end registered as a port")
	}

	sel, _ := c.Get("lab-selector")
	if got := sel.Labels.Labels(); len(got) != 3 || got[2] != "3" {
		t.Errorf("lab-selector labels = %v", got)
	}

	// Loading the same directory twice collides on names.
	if _, err := c.LoadPaths([]string{"testdata"}); !errors.Is(err, ErrDuplicateModel) {
		t.Errorf("second LoadPaths() error = %v, want ErrDuplicateModel", err)
	}
}

func TestCatalog_LoadFileRejectsBadTables(t *testing.T) {
	tests := []struct {
		file    string
		wantErr error
	}{
		{file: "bad-kind.yaml", wantErr: ErrInvalidModel},
		{file: "negative-port.json", wantErr: ErrInvalidModel},
		{file: "one-ended.toml", wantErr: valve.ErrGeometry},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			c := newTestCatalog(t)
			_, err := c.LoadFile(filepath.Join("testdata", "invalid", tt.file))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("LoadFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCatalog_LoadPathsMissing(t *testing.T) {
	c := newTestCatalog(t)
	if _, err := c.LoadPaths([]string{filepath.Join(t.TempDir(), "missing")}); err == nil {
		t.Error("LoadPaths(missing) succeeded")
	}
}
