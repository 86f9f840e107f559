// Package rngtest provides scripted random sources for tests.
package rngtest

import "fmt"

// Scripted returns queued draws in order. Once the queue is exhausted it
// keeps returning Fallback (clamped into range).
type Scripted struct {
	Draws    []int
	Fallback int
	calls    int
}

func New(draws ...int) *Scripted {
	return &Scripted{Draws: draws}
}

func (s *Scripted) IntN(n int) int {
	s.calls++
	if len(s.Draws) == 0 {
		return min(s.Fallback, n-1)
	}

	v := s.Draws[0]
	s.Draws = s.Draws[1:]
	if v < 0 || v >= n {
		panic(fmt.Sprintf("rngtest: scripted draw %d out of range [0,%d)", v, n))
	}

	return v
}

// Calls reports how many draws were taken.
func (s *Scripted) Calls() int {
	return s.calls
}
