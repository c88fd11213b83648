// Package hset implements a set of hashable elements, JVM style
package hset

import (
	"iter"

	"github.com/benbjohnson/immutable"
)

// HSet is a shallow wrapper around a map keyed by element hash.
// Iteration follows insertion order
type HSet[A any] struct {
	hasher     immutable.Hasher[A]
	underlying map[uint32]A
	order      *[]uint32
}

func Empty[A any](hasher immutable.Hasher[A]) HSet[A] {
	return HSet[A]{
		hasher:     hasher,
		underlying: make(map[uint32]A),
		order:      new([]uint32),
	}
}

func New[A any](hasher immutable.Hasher[A], elems ...A) HSet[A] {
	n := Empty(hasher)
	n.Add(elems...)
	return n
}

func (s HSet[A]) Add(elems ...A) {
	for _, elem := range elems {
		h := s.hasher.Hash(elem)
		if _, ok := s.underlying[h]; !ok {
			*s.order = append(*s.order, h)
		}
		s.underlying[h] = elem
	}
}

// RetainAll removes every element which is not in other
func (s HSet[A]) RetainAll(other HSet[A]) {
	kept := (*s.order)[:0]
	for _, h := range *s.order {
		if other.Contains(s.underlying[h]) {
			kept = append(kept, h)
		} else {
			delete(s.underlying, h)
		}
	}
	*s.order = kept
}

func (s HSet[A]) Remove(elems ...A) {
	for _, elem := range elems {
		h := s.hasher.Hash(elem)
		if _, ok := s.underlying[h]; !ok {
			continue
		}
		delete(s.underlying, h)
		i := 0
		for i < len(*s.order) && (*s.order)[i] != h {
			i++
		}
		*s.order = append((*s.order)[:i], (*s.order)[i+1:]...)
	}
}

func (s HSet[A]) Contains(elem A) bool {
	_, ok := s.underlying[s.hasher.Hash(elem)]
	return ok
}

func (s HSet[A]) Len() int {
	return len(s.underlying)
}

func (s HSet[A]) All() iter.Seq[A] {
	return func(yield func(A) bool) {
		for _, h := range *s.order {
			if !yield(s.underlying[h]) {
				return
			}
		}
	}
}
