package solver

import (
	"fmt"
	"math"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// AdamWConfig describes a configuration of the AdamW solver
type AdamWConfig struct {
	StepSize    float64
	Epsilon     float64 // Smoothing factor
	Beta1       float64
	Beta2       float64
	WeightDecay float64 // Decoupled weight decay
}

// NewDefaultAdamW returns a new AdamW Solver with default
// hyperparameters.
func NewDefaultAdamW(stepSize, weightDecay float64) (*Solver, error) {
	return NewAdamW(stepSize, 1e-8, 0.9, 0.999, weightDecay)
}

// NewAdamW returns a new AdamW Solver
func NewAdamW(stepSize, epsilon, beta1, beta2,
	weightDecay float64) (*Solver, error) {
	adamW := AdamWConfig{
		StepSize:    stepSize,
		Epsilon:     epsilon,
		Beta1:       beta1,
		Beta2:       beta2,
		WeightDecay: weightDecay,
	}

	return newSolver(AdamW, adamW)
}

// Create returns a new Gorgonia Solver implementing AdamW as
// described by the AdamWConfig
func (a AdamWConfig) Create() G.Solver {
	return &adamWSolver{
		stepSize:    a.StepSize,
		epsilon:     a.Epsilon,
		beta1:       a.Beta1,
		beta2:       a.Beta2,
		weightDecay: a.WeightDecay,
	}
}

// ValidType returns if the given Solver type is a valid type to be
// created with this config.
func (a AdamWConfig) ValidType(t Type) bool {
	return t == AdamW
}

// adamWSolver implements Adam with decoupled weight decay as a
// Gorgonia Solver. Unlike Gorgonia's built-in Adam, the decay is
// applied directly to the weights rather than to the gradients, and
// the step size can be changed between steps, which a learning rate
// schedule requires.
type adamWSolver struct {
	stepSize    float64
	epsilon     float64
	beta1       float64
	beta2       float64
	weightDecay float64

	steps int
	m     [][]float64 // First moment estimates, one slice per parameter
	v     [][]float64 // Second moment estimates
}

// SetLearningRate changes the step size applied on subsequent calls
// to Step. Moment estimates are unaffected.
func (a *adamWSolver) SetLearningRate(lr float64) {
	a.stepSize = lr
}

// StepSize returns the current step size
func (a *adamWSolver) StepSize() float64 {
	return a.stepSize
}

// Step updates only the parameters in model. Parameters left out of
// model keep their values, so restricting model to a subset of a
// network's learnables freezes the rest.
func (a *adamWSolver) Step(model []G.ValueGrad) error {
	if a.m == nil {
		a.m = make([][]float64, len(model))
		a.v = make([][]float64, len(model))
	}
	if len(model) != len(a.m) {
		return fmt.Errorf("step: model size changed between steps"+
			"\n\twant(%v)\n\thave(%v)", len(a.m), len(model))
	}

	a.steps++
	mCorrection := 1 - math.Pow(a.beta1, float64(a.steps))
	vCorrection := 1 - math.Pow(a.beta2, float64(a.steps))

	for i, param := range model {
		weights, err := float64Data(param.Value())
		if err != nil {
			return fmt.Errorf("step: parameter %v: %v", i, err)
		}

		gradValue, err := param.Grad()
		if err != nil {
			return fmt.Errorf("step: parameter %v has no gradient: %v", i,
				err)
		}
		grad, err := float64Data(gradValue)
		if err != nil {
			return fmt.Errorf("step: gradient %v: %v", i, err)
		}
		if len(grad) != len(weights) {
			return fmt.Errorf("step: parameter %v gradient size mismatch"+
				"\n\twant(%v)\n\thave(%v)", i, len(weights), len(grad))
		}

		if a.m[i] == nil {
			a.m[i] = make([]float64, len(weights))
			a.v[i] = make([]float64, len(weights))
		}
		m, v := a.m[i], a.v[i]

		for j := range weights {
			m[j] = a.beta1*m[j] + (1-a.beta1)*grad[j]
			v[j] = a.beta2*v[j] + (1-a.beta2)*grad[j]*grad[j]

			mHat := m[j] / mCorrection
			vHat := v[j] / vCorrection

			weights[j] -= a.stepSize * mHat / (math.Sqrt(vHat) + a.epsilon)

			// Decoupled decay acts on the weights, not the gradients
			weights[j] -= a.stepSize * a.weightDecay * weights[j]
		}
	}

	return nil
}

// float64Data returns the float64 backing slice of a Gorgonia value.
func float64Data(value G.Value) ([]float64, error) {
	dense, ok := value.(*tensor.Dense)
	if !ok {
		return nil, fmt.Errorf("expected a dense tensor, got %T", value)
	}
	data, ok := dense.Data().([]float64)
	if !ok {
		return nil, fmt.Errorf("expected float64 data, got %T",
			dense.Data())
	}
	return data, nil
}
