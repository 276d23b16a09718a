package kitchen

import (
	"math"
	"math/rand"
)

// --------------------------------------------------------------------------
// Poisson sampling
// --------------------------------------------------------------------------

// PoissonSampler draws per-second order counts from a Poisson distribution
// with a fixed mean, using Knuth's inverse-transform algorithm: multiply
// uniforms until the product drops below e^-mean. Adequate for the means a
// kitchen produces at (well below the point where the product underflows).
type PoissonSampler struct {
	limit float64
	rng   *rand.Rand
}

// NewPoissonSampler creates a sampler with the given mean that draws its
// uniforms from rng.
func NewPoissonSampler(mean float64, rng *rand.Rand) *PoissonSampler {
	return &PoissonSampler{
		limit: math.Exp(-mean),
		rng:   rng,
	}
}

// Sample draws one value.
func (p *PoissonSampler) Sample() int {
	k := 0
	product := 1.0
	for {
		product *= p.rng.Float64()
		if product <= p.limit {
			return k
		}
		k++
	}
}
