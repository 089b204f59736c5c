// Package dice provides the randomness source for dice terms and the
// analytic statistics of dice notation.
package dice

import "math/rand/v2"

// Source is the randomness provider for dice rolls.
type Source interface {
	// Intn returns a uniformly distributed int in [0, n). n > 0.
	Intn(n int) int
}

// RNG is a seeded generator that counts the words it draws. Seed and
// position together are enough to rebuild it, which is how snapshots carry
// dice state.
type RNG struct {
	seed  int64
	draws int64
	pcg   *rand.PCG
	rand  *rand.Rand
}

// NewRNG returns a generator at position zero for seed.
func NewRNG(seed int64) *RNG {
	r := &RNG{seed: seed, pcg: rand.NewPCG(uint64(seed), pcgStream)}
	r.rand = rand.New(r)
	return r
}

// pcgStream selects the PCG sequence; it is fixed so that equal seeds give
// equal rolls.
const pcgStream = 0x5eed_d1ce

// Uint64 draws one word from the underlying PCG.
func (r *RNG) Uint64() uint64 {
	r.draws++
	return r.pcg.Uint64()
}

// Intn returns a random integer in [0, n).
func (r *RNG) Intn(n int) int {
	return r.rand.IntN(n)
}

// Seed returns the seed the generator was created with.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Position returns the number of words drawn since creation.
func (r *RNG) Position() int64 {
	return r.draws
}

// RestoreRNG rebuilds the generator for seed advanced to position.
func RestoreRNG(seed, position int64) *RNG {
	r := NewRNG(seed)
	for r.draws < position {
		r.Uint64()
	}
	return r
}
