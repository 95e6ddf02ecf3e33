package solver

import (
	"fmt"
	"math"
)

// CosineAnnealing anneals a solver's learning rate from Base down to
// Floor over TMax steps along a half cosine:
//
//	lr(t) = Floor + (Base - Floor)/2 × (1 + cos(πt/TMax))
//
// Past TMax the rate stays at Floor.
type CosineAnnealing struct {
	Base  float64
	Floor float64
	TMax  int

	t int
}

// NewCosineAnnealing returns a new cosine annealing schedule.
func NewCosineAnnealing(base, floor float64,
	tMax int) (*CosineAnnealing, error) {
	if tMax < 1 {
		return nil, fmt.Errorf("newcosineannealing: tMax must be "+
			"positive, got %v", tMax)
	}
	if floor > base {
		return nil, fmt.Errorf("newcosineannealing: floor %v exceeds "+
			"base %v", floor, base)
	}
	return &CosineAnnealing{Base: base, Floor: floor, TMax: tMax}, nil
}

// Rate returns the learning rate at the current step.
func (c *CosineAnnealing) Rate() float64 {
	t := c.t
	if t > c.TMax {
		t = c.TMax
	}
	return c.Floor + (c.Base-c.Floor)/2*
		(1+math.Cos(math.Pi*float64(t)/float64(c.TMax)))
}

// Step advances the schedule by one step and applies the new rate to
// the solver. It should be called once after each solver step.
func (c *CosineAnnealing) Step(s *Solver) error {
	c.t++
	return s.SetLearningRate(c.Rate())
}
