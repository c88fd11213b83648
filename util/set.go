package util

import "iter"

// MSet is a shallow wrapper around a map
type MSet[A comparable] struct {
	underlying map[A]struct{}
}

func NewEmptySet[A comparable]() MSet[A] {
	return MSet[A]{
		underlying: make(map[A]struct{}),
	}
}

func NewSetOf[A comparable](elems ...A) MSet[A] {
	underlying := make(map[A]struct{}, len(elems))
	for _, elem := range elems {
		underlying[elem] = struct{}{}
	}
	return MSet[A]{
		underlying: underlying,
	}
}

// Add inserts elems and reports whether at least one of them was not present before
func (s MSet[A]) Add(elems ...A) (changed bool) {
	for _, elem := range elems {
		if _, ok := s.underlying[elem]; !ok {
			s.underlying[elem] = struct{}{}
			changed = true
		}
	}
	return changed
}

func (s MSet[A]) AddSeq(elems iter.Seq[A]) (changed bool) {
	for elem := range elems {
		changed = s.Add(elem) || changed
	}
	return changed
}

func (s MSet[A]) Remove(elems ...A) {
	for _, elem := range elems {
		delete(s.underlying, elem)
	}
}

func (s MSet[A]) Contains(elem A) bool {
	_, ok := s.underlying[elem]
	return ok
}

// ContainsAll is true when every element of other is also in s
func (s MSet[A]) ContainsAll(other MSet[A]) bool {
	for elem := range other.underlying {
		if !s.Contains(elem) {
			return false
		}
	}
	return true
}

func (s MSet[A]) Len() int {
	return len(s.underlying)
}

func (s MSet[A]) All() iter.Seq[A] {
	return func(yield func(A) bool) {
		for elem := range s.underlying {
			if !yield(elem) {
				return
			}
		}
	}
}

func (s MSet[A]) AsSlice() []A {
	slice := make([]A, 0, len(s.underlying))
	for elem := range s.underlying {
		slice = append(slice, elem)
	}
	return slice
}

func (s MSet[A]) Copy() MSet[A] {
	c := MSet[A]{underlying: make(map[A]struct{}, len(s.underlying))}
	for elem := range s.underlying {
		c.underlying[elem] = struct{}{}
	}
	return c
}
