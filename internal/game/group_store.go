// internal/game/group_store.go
package game

import (
	"sort"
	"sync"
)

// GroupStore holds every live group in memory. Groups are created on first
// join and never removed.
type GroupStore struct {
	mu     sync.Mutex
	groups map[string]*Group
}

func NewGroupStore() *GroupStore {
	return &GroupStore{
		groups: make(map[string]*Group),
	}
}

// GetOrCreate returns the named group, building it with create if absent.
// The boolean reports whether the group was created by this call.
func (s *GroupStore) GetOrCreate(name string, create func() *Group) (*Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[name]; ok {
		return g, false
	}
	g := create()
	s.groups[name] = g
	return g, true
}

func (s *GroupStore) Get(name string) (*Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	return g, ok
}

// Names lists the live groups in sorted order.
func (s *GroupStore) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the live groups, for shutdown.
func (s *GroupStore) All() []*Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out
}
