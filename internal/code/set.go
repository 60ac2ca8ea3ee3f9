package code

import "sort"

// Set is a map-backed set of codes with O(1) membership checks.
// It is not safe for concurrent use; callers provide their own locking.
type Set struct {
	codes map[string]struct{}
}

// NewSet creates a set pre-sized for capacity codes and adds the given codes.
func NewSet(capacity int, codes ...string) *Set {
	if capacity < len(codes) {
		capacity = len(codes)
	}
	s := &Set{codes: make(map[string]struct{}, capacity)}
	for _, c := range codes {
		s.Add(c)
	}
	return s
}

// Contains checks if a code exists in the set.
func (s *Set) Contains(code string) bool {
	_, exists := s.codes[code]
	return exists
}

// Add adds a code to the set and reports whether it was new.
func (s *Set) Add(code string) bool {
	if _, exists := s.codes[code]; exists {
		return false
	}
	s.codes[code] = struct{}{}
	return true
}

// Remove deletes a code from the set and reports whether it was present.
func (s *Set) Remove(code string) bool {
	if _, exists := s.codes[code]; !exists {
		return false
	}
	delete(s.codes, code)
	return true
}

// Len returns the number of codes in the set.
func (s *Set) Len() int {
	return len(s.codes)
}

// Sorted returns the codes in ascending order.
func (s *Set) Sorted() []string {
	out := make([]string, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
