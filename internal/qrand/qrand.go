// Package qrand wraps the random-number source the engine needs for
// measurement sampling and global-phase randomization. The spec treats the
// RNG as an external collaborator; this is the narrow seam so the engine can
// hold a handle without depending on a concrete generator.
package qrand

import "math/rand/v2"

// Source is the RNG handle an Engine carries. A nil *Source is valid and
// falls back to the package-level generator, matching how a caller who
// never wires a custom RNG still gets deterministic-enough randomness for
// measurement sampling.
type Source struct {
	rng *rand.Rand
}

// New wraps a seeded generator so tests can get reproducible measurement
// outcomes.
func New(seed1, seed2 uint64) *Source {
	return &Source{rng: rand.New(rand.NewPCG(seed1, seed2))}
}

// Float64 returns a uniform value in [0, 1).
func (s *Source) Float64() float64 {
	if s == nil || s.rng == nil {
		return rand.Float64()
	}
	return s.rng.Float64()
}
