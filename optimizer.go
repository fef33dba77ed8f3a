package conv_gan

import (
	"fmt"
	"math/rand"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	defaultLearnRate = 1e-4
	defaultBeta1     = 0.0
	defaultBeta2     = 0.9
	defaultLambda    = 10.0
)

type trainStepConfig struct {
	learnRate float64
	beta1     float64
	beta2     float64
	lambda    float64
	rng       *rand.Rand
}

func defaultTrainStepConfig() *trainStepConfig {
	return &trainStepConfig{
		learnRate: defaultLearnRate,
		beta1:     defaultBeta1,
		beta2:     defaultBeta2,
		lambda:    defaultLambda,
	}
}

func (cfg *trainStepConfig) newSolver() gorgonia.Solver {
	return gorgonia.NewAdamSolver(
		gorgonia.WithLearnRate(cfg.learnRate),
		gorgonia.WithBeta1(cfg.beta1),
		gorgonia.WithBeta2(cfg.beta2),
	)
}

// TrainStepOpt Option of train step
type TrainStepOpt func(cfg *trainStepConfig)

// WithLearnRate Sets learning rate of both solvers
func WithLearnRate(eta float64) TrainStepOpt {
	return func(cfg *trainStepConfig) {
		cfg.learnRate = eta
	}
}

// WithBeta1 Sets decay of first moment estimates of both solvers
func WithBeta1(beta1 float64) TrainStepOpt {
	return func(cfg *trainStepConfig) {
		cfg.beta1 = beta1
	}
}

// WithBeta2 Sets decay of second moment estimates of both solvers
func WithBeta2(beta2 float64) TrainStepOpt {
	return func(cfg *trainStepConfig) {
		cfg.beta2 = beta2
	}
}

// WithLambda Sets weight of gradient penalty
func WithLambda(lambda float64) TrainStepOpt {
	return func(cfg *trainStepConfig) {
		cfg.lambda = lambda
	}
}

// WithRand Sets source of interpolation coefficients. Useful for reproducible runs
func WithRand(rng *rand.Rand) TrainStepOpt {
	return func(cfg *trainStepConfig) {
		cfg.rng = rng
	}
}

// valueGrad Bridge between autograd variable and gorgonia's solvers.
// Value is the variable's own tensor, so solver updates it in place
type valueGrad struct {
	value *tensor.Dense
	grad  *tensor.Dense
}

func (vg *valueGrad) Value() gorgonia.Value {
	return vg.value
}

func (vg *valueGrad) Grad() (gorgonia.Value, error) {
	return vg.grad, nil
}

// NodesToValueGrads Pairs learnables with their gradients so they could be passed to gorgonia.Solver
func NodesToValueGrads(learnables, grads autograd.Nodes) ([]gorgonia.ValueGrad, error) {
	if len(learnables) != len(grads) {
		return nil, errors.Errorf("Number of learnables (%d) and gradients (%d) must be equal", len(learnables), len(grads))
	}
	model := make([]gorgonia.ValueGrad, len(learnables))
	for i := range learnables {
		if !learnables[i].IsVariable() {
			return nil, fmt.Errorf("Node '%s' is not learnable", learnables[i])
		}
		if !learnables[i].Shape().Eq(grads[i].Shape()) || learnables[i].Size() != grads[i].Size() {
			return nil, errors.Errorf("Gradient of '%s' has shape %v", learnables[i], grads[i].Shape())
		}
		grad := grads[i].Value()
		if grads[i].IsVariable() {
			// solver zeroes gradient after update
			grad = grad.Clone().(*tensor.Dense)
		}
		model[i] = &valueGrad{
			value: learnables[i].Value(),
			grad:  grad,
		}
	}
	return model, nil
}
