package cjs

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// orderedSet is an insertion-ordered set of unique strings. Re-adding a
// member keeps its original position.
type orderedSet struct {
	m *orderedmap.OrderedMap[string, struct{}]
}

func newOrderedSet() *orderedSet {
	return &orderedSet{m: orderedmap.New[string, struct{}]()}
}

// add inserts v and reports whether it was new.
func (s *orderedSet) add(v string) bool {
	if _, present := s.m.Get(v); present {
		return false
	}
	s.m.Set(v, struct{}{})
	return true
}

func (s *orderedSet) has(v string) bool {
	_, present := s.m.Get(v)
	return present
}

func (s *orderedSet) len() int {
	return s.m.Len()
}

// values returns the members in insertion order. The result is never nil.
func (s *orderedSet) values() []string {
	out := make([]string, 0, s.m.Len())
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// merge adds every member of other in its order.
func (s *orderedSet) merge(other *orderedSet) {
	if other == nil {
		return
	}
	for pair := other.m.Oldest(); pair != nil; pair = pair.Next() {
		s.add(pair.Key)
	}
}
