package valve

import "time"

// UnknownPosition is reported while the rotor index has not been observed.
const UnknownPosition = -1

// RuntimeState caches the last known rotor index of one physical valve.
//
// The device is authoritative; the cache is filled after a successful move
// or query, cleared on reconnect, and marked stale when a transport call
// fails or times out.
//
// Thread Safety: not synchronised. The owning driver serialises access
// under its own mutex.
type RuntimeState struct {
	position  int
	stale     bool
	updatedAt time.Time
}

// NewRuntimeState returns a state with an unknown position.
func NewRuntimeState() RuntimeState {
	return RuntimeState{position: UnknownPosition}
}

// Position returns the cached index and whether it can be trusted.
func (s *RuntimeState) Position() (int, bool) {
	if s.position == UnknownPosition || s.stale {
		return s.position, false
	}
	return s.position, true
}

// Set records a confirmed rotor index.
func (s *RuntimeState) Set(position int) {
	s.position = position
	s.stale = false
	s.updatedAt = time.Now().UTC()
}

// MarkStale keeps the last believed index but flags it as untrusted.
func (s *RuntimeState) MarkStale() {
	s.stale = true
	s.updatedAt = time.Now().UTC()
}

// Invalidate forgets the cached index entirely (used on reconnect).
func (s *RuntimeState) Invalidate() {
	s.position = UnknownPosition
	s.stale = false
	s.updatedAt = time.Now().UTC()
}

// Stale reports whether the last transport call failed.
func (s *RuntimeState) Stale() bool {
	return s.stale
}

// UpdatedAt returns when the state last changed (zero if never).
func (s *RuntimeState) UpdatedAt() time.Time {
	return s.updatedAt
}
