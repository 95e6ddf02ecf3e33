package solver

import G "gorgonia.org/gorgonia"

// VanillaConfig describes a configuration of the vanilla SGD solver
type VanillaConfig struct {
	LearnRate float64
	Batch     int
}

// NewVanilla returns a new vanilla gradient descent Solver
func NewVanilla(learnRate float64, batchSize int) (*Solver, error) {
	vanilla := VanillaConfig{
		LearnRate: learnRate,
		Batch:     batchSize,
	}

	return newSolver(Vanilla, vanilla)
}

// Create returns a new Gorgonia vanilla solver as described by the
// VanillaConfig
func (v VanillaConfig) Create() G.Solver {
	return G.NewVanillaSolver(
		G.WithLearnRate(v.LearnRate),
		G.WithBatchSize(float64(v.Batch)),
	)
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (v VanillaConfig) ValidType(t Type) bool {
	return t == Vanilla
}
