// Package random provides seeded pseudo-random sources.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Source is a seeded float source safe for concurrent use.
type Source struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	seed int64
}

// New returns a Source with the given seed.
func New(seed int64) *Source {
	return &Source{rnd: rand.New(rand.NewSource(seed)), seed: seed}
}

// NewRandom returns a Source seeded from crypto/rand, falling back to the
// clock when the system source fails.
func NewRandom() *Source {
	seed, err := NewSeed()
	if err != nil {
		seed = time.Now().UnixNano()
	}
	return New(seed)
}

// Seed returns the seed the source was created with.
func (s *Source) Seed() int64 {
	return s.seed
}

// Float64 returns a value in [0, 1).
func (s *Source) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rnd.Float64()
}

// Chance reports true with probability p. p <= 0 never fires and p >= 1
// always does.
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	return s.Float64() < p
}
