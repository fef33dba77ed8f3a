package conv_gan

import (
	"fmt"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
)

type LossReduction uint16

const (
	LossReductionSum = LossReduction(iota)
	LossReductionMean
)

// Guards log(0) and √0
const stabilityEpsilon = 1e-8

func reduceLoss(a *autograd.Node, reduction []LossReduction) (*autograd.Node, error) {
	reductionDefault := LossReductionMean
	if len(reduction) != 0 {
		reductionDefault = reduction[0]
	}
	switch reductionDefault {
	case LossReductionSum:
		return autograd.Sum(a)
	case LossReductionMean:
		return autograd.Mean(a)
	default:
		return nil, fmt.Errorf("Reduction type %d is not supported", reductionDefault)
	}
}

// BinaryCrossEntropyLoss See ref. https://en.wikipedia.org/wiki/Cross_entropy#Cross-entropy_loss_function_and_logistic_regression
// Computes -[B*log(A+eps) + (1-B)*log(1-A+eps)] where A is predicted probability and B is target, eps = 1e-8.
// Default reduction is 'mean'
func BinaryCrossEntropyLoss(a, b *autograd.Node, reduction ...LossReduction) (*autograd.Node, error) {
	// Main part: B*log(A+eps)
	shifted, err := autograd.AddScalar(a, stabilityEpsilon)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (A+eps)")
	}
	logMain, err := autograd.Log(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(A+eps)")
	}
	hprodMain, err := autograd.HadamardProd(logMain, b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*B)")
	}

	// Here comes another part: (1-B)*log(1-A+eps)
	negA, err := autograd.Neg(a)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*A")
	}
	oneMinusA, err := autograd.AddScalar(negA, 1.0+stabilityEpsilon)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-A+eps)")
	}
	logBin, err := autograd.Log(oneMinusA)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do log(1-A+eps)")
	}
	negB, err := autograd.Neg(b)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*B")
	}
	oneMinusB, err := autograd.AddScalar(negB, 1.0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-B)")
	}
	hprodBin, err := autograd.HadamardProd(logBin, oneMinusB)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x.*(1-B))")
	}
	hprod, err := autograd.Add(hprodMain, hprodBin)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+y)")
	}
	neg, err := autograd.Neg(hprod)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do -1*x")
	}
	return reduceLoss(neg, reduction)
}

// DCGANLosses Losses of standard GAN for discriminator outputs on real and generated images:
//
//	discriminator: mean(-log(pred_real+eps)) + mean(-log(1-pred_fake+eps))
//	generator: mean(-log(pred_fake+eps))
//
func DCGANLosses(predReal, predFake *autograd.Node) (dLoss, gLoss *autograd.Node, err error) {
	ones := autograd.Ones(predReal.Shape()...)
	zeros := autograd.Zeros(predFake.Shape()...)
	realLoss, err := BinaryCrossEntropyLoss(predReal, ones)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't evaluate discriminator loss on real images")
	}
	fakeLoss, err := BinaryCrossEntropyLoss(predFake, zeros)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't evaluate discriminator loss on generated images")
	}
	dLoss, err = autograd.Add(realLoss, fakeLoss)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't sum discriminator losses")
	}
	gLoss, err = BinaryCrossEntropyLoss(predFake, autograd.Ones(predFake.Shape()...))
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't evaluate generator loss")
	}
	return dLoss, gLoss, nil
}

// WGANGPLosses Losses of Wasserstein GAN with gradient penalty for critic outputs on real and generated images:
//
//	critic: mean(pred_fake) - mean(pred_real) + lambda*penalty
//	generator: -mean(pred_fake)
//
func WGANGPLosses(predReal, predFake, penalty *autograd.Node, lambda float64) (dLoss, gLoss *autograd.Node, err error) {
	meanReal, err := autograd.Mean(predReal)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't average critic scores on real images")
	}
	meanFake, err := autograd.Mean(predFake)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't average critic scores on generated images")
	}
	distance, err := autograd.Sub(meanFake, meanReal)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do mean(fake)-mean(real)")
	}
	weighted, err := autograd.MulScalar(penalty, lambda)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't weight gradient penalty")
	}
	dLoss, err = autograd.Add(distance, weighted)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't add gradient penalty")
	}
	gLoss, err = autograd.Neg(meanFake)
	if err != nil {
		return nil, nil, errors.Wrap(err, "Can't do -mean(fake)")
	}
	return dLoss, gLoss, nil
}

// Scorer Anything which maps (batch, ...) images to (batch, 1) scores
type Scorer interface {
	Fwd(input *autograd.Node) (*autograd.Node, error)
}

// GradientPenalty See ref. https://arxiv.org/abs/1704.00028
//
// Evaluates mean((||∇D(x̂)||₂ - 1)^2) where x̂ = (1-alpha)*real + alpha*fake for every example.
// Norm is computed as sqrt(sum of squares + eps). Resulting node keeps graph of ∇D(x̂), so its
// gradient with respect to critic learnables is second-order derivative. x̂ is a leaf: penalty does not
// propagate to whatever produced real and fake images.
//
// critic - critic network
// real, fake - (batch, ...) real and generated images
// alpha - interpolation coefficient per example, in range [0;1]
//
func GradientPenalty(critic Scorer, real, fake *autograd.Node, alpha []float64) (*autograd.Node, error) {
	if critic == nil || real == nil || fake == nil {
		return nil, fmt.Errorf("Critic, real and generated images must be provided")
	}
	if real.Dims() == 0 || real.Shape()[0] == 0 {
		return nil, errors.Errorf("Real images must have non-empty batch axis, but got %v", real.Shape())
	}
	batchSize := real.Shape()[0]
	if len(alpha) != batchSize {
		return nil, errors.Errorf("Need %d interpolation coefficients, but got %d", batchSize, len(alpha))
	}
	alphaNode, err := autograd.NewConstantFrom([]int{batchSize}, append([]float64(nil), alpha...))
	if err != nil {
		return nil, errors.Wrap(err, "Can't wrap alpha")
	}
	complement := make([]float64, batchSize)
	for i := range alpha {
		complement[i] = 1.0 - alpha[i]
	}
	complementNode, err := autograd.NewConstantFrom([]int{batchSize}, complement)
	if err != nil {
		return nil, errors.Wrap(err, "Can't wrap (1-alpha)")
	}
	realPart, err := autograd.ScaleRows(real, complementNode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (1-alpha)*real")
	}
	fakePart, err := autograd.ScaleRows(fake, alphaNode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do alpha*fake")
	}
	interpolates, err := autograd.Add(realPart, fakePart)
	if err != nil {
		return nil, errors.Wrap(err, "Can't interpolate images")
	}
	watched := autograd.Watch(interpolates)
	scores, err := critic.Fwd(watched)
	if err != nil {
		return nil, errors.Wrap(err, "Can't score interpolated images")
	}
	// Scores of different examples are independent, so gradient of their sum is gradient of each
	total, err := autograd.Sum(scores)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum scores")
	}
	grads, err := autograd.Grad(total, watched)
	if err != nil {
		return nil, errors.Wrap(err, "Can't differentiate critic with respect to interpolated images")
	}
	sqr, err := autograd.Square(grads[0])
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	sumSqr, err := autograd.SumRows(sqr)
	if err != nil {
		return nil, errors.Wrap(err, "Can't sum squares per example")
	}
	shifted, err := autograd.AddScalar(sumSqr, stabilityEpsilon)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x+eps)")
	}
	norm, err := autograd.Sqrt(shifted)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do √x")
	}
	deviation, err := autograd.AddScalar(norm, -1.0)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x-1)")
	}
	sqrDeviation, err := autograd.Square(deviation)
	if err != nil {
		return nil, errors.Wrap(err, "Can't do (x^2)")
	}
	return autograd.Mean(sqrDeviation)
}
