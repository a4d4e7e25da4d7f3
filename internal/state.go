package internal

import (
	"maps"
	"slices"
)

// State is the application-wide value container shared by every request.
// It is not synchronized: populate it before serving, or guard writes made
// while serving yourself.
type State struct {
	values map[string]any
}

// NewState returns a State holding a copy of initial.
func NewState(initial map[string]any) *State {
	s := &State{values: make(map[string]any, len(initial))}
	maps.Copy(s.values, initial)
	return s
}

// Get returns the value stored under key.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key.
func (s *State) Set(key string, value any) {
	s.values[key] = value
}

// Delete removes key.
func (s *State) Delete(key string) {
	delete(s.values, key)
}

// Keys returns the stored keys in sorted order.
func (s *State) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// StateValue returns the value under key converted to T.
func StateValue[T any](s *State, key string) (T, bool) {
	v, ok := s.Get(key)
	if !ok {
		var zero T
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
