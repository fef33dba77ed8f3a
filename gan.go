package conv_gan

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Scheme Adversarial training scheme
type Scheme uint16

const (
	// SchemeDCGAN Standard GAN: discriminator outputs probability, binary cross-entropy losses
	SchemeDCGAN = Scheme(iota)
	// SchemeWGANGP Wasserstein GAN with gradient penalty: critic outputs unbounded score
	SchemeWGANGP
)

func (s Scheme) String() string {
	switch s {
	case SchemeDCGAN:
		return "dcgan"
	case SchemeWGANGP:
		return "wgan-gp"
	default:
		return fmt.Sprintf("scheme(%d)", uint16(s))
	}
}

func (s Scheme) outputActivation() (ActivationFunc, error) {
	switch s {
	case SchemeDCGAN:
		return Sigmoid, nil
	case SchemeWGANGP:
		return NoActivation, nil
	default:
		return nil, fmt.Errorf("Scheme '%d' (uint16) is not handled", s)
	}
}

const (
	kernelSize = 3
	leakySlope = 0.2
)

func checkImageShape(shape tensor.Shape) error {
	if len(shape) != 3 {
		return errors.Errorf("Shape must be (H, W, C), but got %v", shape)
	}
	for _, dim := range shape {
		if dim <= 0 {
			return errors.Errorf("Every dimension must be positive, but got %v", shape)
		}
	}
	return nil
}

// newLearnable Creates variable of provided shape filled by gorgonia's initialization function
func newLearnable(name string, init gorgonia.InitWFn, shape ...int) (*autograd.Node, error) {
	backing, ok := init(tensor.Float64, shape...).([]float64)
	if !ok {
		return nil, fmt.Errorf("Initialization function for '%s' has not produced []float64", name)
	}
	return autograd.NewVariable(name, tensor.New(tensor.WithShape(shape...), tensor.WithBacking(backing)))
}

// TrainStep One alternating adversarial update of generator and discriminator.
//
// generatorPart - reference to Generator
// discriminatorPart - reference to Discriminator (critic in terms of WGAN). Its scheme defines losses
// generatorSolver, discriminatorSolver - independent Adam optimizers, so every network is updated by gradients of its own loss only
// lambda - weight of gradient penalty (WGAN-GP only)
// rng - source of interpolation coefficients for gradient penalty
//
type TrainStep struct {
	generatorPart     *GeneratorNet
	discriminatorPart *DiscriminatorNet

	generatorSolver     gorgonia.Solver
	discriminatorSolver gorgonia.Solver

	lambda float64
	rng    *rand.Rand

	mu sync.Mutex
}

// NewTrainStep Creates train step for provided networks. Scheme is taken from discriminator.
// Defaults: learning rate 1e-4, beta1 0.0, beta2 0.9, lambda 10
func NewTrainStep(definedGenerator *GeneratorNet, definedDiscriminator *DiscriminatorNet, opts ...TrainStepOpt) (*TrainStep, error) {
	if definedGenerator == nil {
		return nil, fmt.Errorf("Generator is nil")
	}
	if definedDiscriminator == nil {
		return nil, fmt.Errorf("Discriminator is nil")
	}
	if _, err := definedDiscriminator.Scheme().outputActivation(); err != nil {
		return nil, errors.Wrap(err, "Can't create train step")
	}
	cfg := defaultTrainStepConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.rng == nil {
		cfg.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &TrainStep{
		generatorPart:       definedGenerator,
		discriminatorPart:   definedDiscriminator,
		generatorSolver:     cfg.newSolver(),
		discriminatorSolver: cfg.newSolver(),
		lambda:              cfg.lambda,
		rng:                 cfg.rng,
	}, nil
}

// Generator Returns reference to generator being trained
func (step *TrainStep) Generator() *GeneratorNet {
	return step.generatorPart
}

// Discriminator Returns reference to discriminator being trained
func (step *TrainStep) Discriminator() *DiscriminatorNet {
	return step.discriminatorPart
}

// Scheme Returns training scheme
func (step *TrainStep) Scheme() Scheme {
	return step.discriminatorPart.Scheme()
}

// Losses Builds loss nodes for single batch without updating anything.
//
// Real and generated images are scored by single discriminator pass over their concatenation,
// then scores are split back in the same order.
//
// real - (batch, H, W, 3) real images
// noise - (batch, h, w, c) latent noise, same batch size
// alpha - interpolation coefficients for gradient penalty (batch values in [0;1]). Ignored by SchemeDCGAN
//
// Forward pass holds the same lock as Step. Differentiating returned nodes concurrently with Step is not safe.
func (step *TrainStep) Losses(real, noise *autograd.Node, alpha []float64) (dLoss, gLoss *autograd.Node, err error) {
	step.mu.Lock()
	defer step.mu.Unlock()
	return step.losses(real, noise, alpha)
}

func (step *TrainStep) losses(real, noise *autograd.Node, alpha []float64) (dLoss, gLoss *autograd.Node, err error) {
	if real == nil || noise == nil {
		return nil, nil, fmt.Errorf("Real images and noise must be provided")
	}
	if real.Dims() == 0 || noise.Dims() == 0 {
		return nil, nil, errors.Errorf("Real images and noise must have batch axis, but got %v and %v", real.Shape(), noise.Shape())
	}
	batchSize := real.Shape()[0]
	if batchSize == 0 {
		return nil, nil, fmt.Errorf("Batch of real images is empty")
	}
	if noise.Shape()[0] != batchSize {
		return nil, nil, errors.Errorf("Batch sizes must be equal, but real images have %d examples and noise has %d examples", batchSize, noise.Shape()[0])
	}
	fake, err := step.generatorPart.Fwd(noise)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't generate images")
	}
	combined, err := autograd.Concat(real, fake)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't concatenate real and generated images")
	}
	predictions, err := step.discriminatorPart.Fwd(combined)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't score images")
	}
	predReal, err := autograd.SliceRows(predictions, 0, batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't take scores of real images")
	}
	predFake, err := autograd.SliceRows(predictions, batchSize, 2*batchSize)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't take scores of generated images")
	}
	switch step.Scheme() {
	case SchemeDCGAN:
		return DCGANLosses(predReal, predFake)
	case SchemeWGANGP:
		penalty, err := GradientPenalty(step.discriminatorPart, real, fake, alpha)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Can't evaluate gradient penalty")
		}
		return WGANGPLosses(predReal, predFake, penalty, step.lambda)
	default:
		return nil, nil, fmt.Errorf("Scheme '%d' (uint16) is not handled", step.Scheme())
	}
}

// Step Performs one adversarial update and returns losses evaluated before it.
//
// Gradients of discriminator loss are taken with respect to discriminator's learnables only and gradients of
// generator loss with respect to generator's learnables only. Both sets are computed before any solver runs.
// Calls are serialized.
//
// real - (batch, H, W, 3) real images
// noise - (batch, h, w, c) latent noise, same batch size
//
func (step *TrainStep) Step(real, noise *tensor.Dense) (dLoss, gLoss float64, err error) {
	step.mu.Lock()
	defer step.mu.Unlock()

	realNode, err := autograd.NewConstant(real)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't wrap real images")
	}
	noiseNode, err := autograd.NewConstant(noise)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't wrap noise")
	}
	var alpha []float64
	if step.Scheme() == SchemeWGANGP && realNode.Dims() > 0 {
		alpha = make([]float64, realNode.Shape()[0])
		for i := range alpha {
			alpha[i] = step.rng.Float64()
		}
	}
	dLossNode, gLossNode, err := step.losses(realNode, noiseNode, alpha)
	if err != nil {
		return 0, 0, errors.Wrap(err, fmt.Sprintf("[%s]", step.Scheme()))
	}

	discriminatorLearnables := step.discriminatorPart.Learnables()
	discriminatorGrads, err := autograd.Grad(dLossNode, discriminatorLearnables...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't differentiate discriminator loss")
	}
	generatorLearnables := step.generatorPart.Learnables()
	generatorGrads, err := autograd.Grad(gLossNode, generatorLearnables...)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't differentiate generator loss")
	}

	discriminatorModel, err := NodesToValueGrads(discriminatorLearnables, discriminatorGrads)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't prepare discriminator's learnables for solver")
	}
	generatorModel, err := NodesToValueGrads(generatorLearnables, generatorGrads)
	if err != nil {
		return 0, 0, errors.Wrap(err, "Can't prepare generator's learnables for solver")
	}
	if err = step.discriminatorSolver.Step(discriminatorModel); err != nil {
		return 0, 0, errors.Wrap(err, "Can't update discriminator")
	}
	if err = step.generatorSolver.Step(generatorModel); err != nil {
		return 0, 0, errors.Wrap(err, "Can't update generator")
	}
	return dLossNode.ScalarValue(), gLossNode.ScalarValue(), nil
}
