package valve

import "testing"

func TestRuntimeState_Lifecycle(t *testing.T) {
	s := NewRuntimeState()

	if pos, ok := s.Position(); ok || pos != UnknownPosition {
		t.Fatalf("new state Position() = %d, %v; want unknown", pos, ok)
	}
	if !s.UpdatedAt().IsZero() {
		t.Error("new state has a non-zero UpdatedAt")
	}

	s.Set(3)
	if pos, ok := s.Position(); !ok || pos != 3 {
		t.Errorf("after Set(3) Position() = %d, %v", pos, ok)
	}

	s.MarkStale()
	if pos, ok := s.Position(); ok || pos != 3 {
		t.Errorf("after MarkStale Position() = %d, %v; want 3, false", pos, ok)
	}
	if !s.Stale() {
		t.Error("Stale() = false after MarkStale")
	}

	s.Set(1)
	if s.Stale() {
		t.Error("Set did not clear the stale flag")
	}

	s.Invalidate()
	if pos, ok := s.Position(); ok || pos != UnknownPosition {
		t.Errorf("after Invalidate Position() = %d, %v; want unknown", pos, ok)
	}
	if s.UpdatedAt().IsZero() {
		t.Error("UpdatedAt not set after Invalidate")
	}
}
