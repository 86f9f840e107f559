// Package rng provides the seedable random source consumed by every
// probabilistic engine decision, so a seed fully determines jackpot
// activations, item draws and bonus assignment.
package rng

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source draws uniform integers in [0, n).
type Source interface {
	IntN(n int) int
}

// Locked is a PCG generator safe for use by concurrent games.
type Locked struct {
	mu sync.Mutex
	r  *rand.Rand
}

// New returns a source seeded with seed. Equal seeds yield equal sequences.
func New(seed int64) *Locked {
	s := uint64(seed)
	return &Locked{r: rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))}
}

func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.r.IntN(n)
}

// NewSeed generates a seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}

	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Between draws a uniform integer in the closed range [lo, hi].
func Between(s Source, lo, hi int) int {
	return lo + s.IntN(hi-lo+1)
}
