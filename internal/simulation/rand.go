package simulation

import "math/rand/v2"

// RandSource is the only source of randomness a simulator draws from.
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Float64() float64
	NormFloat64() float64
}

// NewRand returns a generator whose sequence is fully determined by seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
