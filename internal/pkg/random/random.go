// Package random provides seeded random sources and dice adapters for
// deterministic dungeon generation.
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-dungeon/internal/errors"
)

// Source is the subset of *rand.Rand used by generation and spawning
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Locked is a seeded Source that is safe for concurrent use
type Locked struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a Locked source seeded with seed
func New(seed int64) *Locked {
	return &Locked{rng: rand.New(rand.NewSource(seed))} // #nosec G404 -- gameplay randomness
}

// Float64 returns a number in [0.0, 1.0)
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Float64()
}

// Intn returns a number in [0, n). It panics if n <= 0.
func (l *Locked) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.Intn(n)
}

// Roller adapts a Source to the toolkit's dice.Roller
type Roller struct {
	src Source
}

// NewRoller wraps src as a dice.Roller
func NewRoller(src Source) *Roller {
	return &Roller{src: src}
}

var _ dice.Roller = (*Roller)(nil)

// Roll returns a value in [1, size]
func (r *Roller) Roll(size int) (int, error) {
	if size <= 0 {
		return 0, errors.InvalidArgumentf("die size must be positive, got %d", size)
	}
	return r.src.Intn(size) + 1, nil
}

// RollN rolls count dice of the given size
func (r *Roller) RollN(count, size int) ([]int, error) {
	if count < 0 {
		return nil, errors.InvalidArgumentf("die count must not be negative, got %d", count)
	}
	out := make([]int, count)
	for i := range out {
		v, err := r.Roll(size)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Between samples an integer in [lo, hi] with a single roll
func Between(r dice.Roller, lo, hi int) (int, error) {
	if hi < lo {
		return 0, errors.InvalidArgumentf("invalid range [%d, %d]", lo, hi)
	}
	if hi == lo {
		return lo, nil
	}
	v, err := r.Roll(hi - lo + 1)
	if err != nil {
		return 0, errors.Wrap(err, "failed to roll range")
	}
	return lo + v - 1, nil
}

// NewSeed generates a run seed using crypto/rand
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, errors.Wrap(err, "failed to read random seed")
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil // #nosec G115 -- bit reinterpretation
}

// FloorSeed derives the generation seed for one floor of a run
func FloorSeed(runSeed int64, floor int) int64 {
	return runSeed*31 + int64(floor)
}
