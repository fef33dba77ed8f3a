// Package wgangp Wasserstein GAN with gradient penalty: critic outputs unbounded score and is kept close to
// 1-Lipschitz by penalizing norm of its gradient at interpolates of real and generated images
package wgangp

import (
	conv_gan "github.com/LdDl/conv-gan-go"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// BuildGenerator Builds generator which maps (batch, H, W, C) noise to (batch, 16*H, 16*W, 3) images
//
// inputShape - (H, W, C) shape of single noise example
//
func BuildGenerator(inputShape tensor.Shape) (*conv_gan.GeneratorNet, error) {
	return conv_gan.NewGenerator(inputShape)
}

// BuildCritic Builds critic which maps (batch, H, W, 3) images to (batch, 1) unbounded scores
//
// inputShape - (H, W, 3) shape of single image
//
func BuildCritic(inputShape tensor.Shape) (*conv_gan.DiscriminatorNet, error) {
	return conv_gan.NewDiscriminator(inputShape, conv_gan.SchemeWGANGP)
}

// BuildTrainStep Builds training step for provided networks.
// Returned TrainStep.Step(real, noise) updates both networks and returns (critic loss, generator loss).
// Weight of gradient penalty could be changed via conv_gan.WithLambda
func BuildTrainStep(generator *conv_gan.GeneratorNet, critic *conv_gan.DiscriminatorNet, opts ...conv_gan.TrainStepOpt) (*conv_gan.TrainStep, error) {
	if critic == nil {
		return nil, errors.New("Critic is nil")
	}
	if critic.Scheme() != conv_gan.SchemeWGANGP {
		return nil, errors.Errorf("Critic must be built for '%s' scheme, but got '%s'", conv_gan.SchemeWGANGP, critic.Scheme())
	}
	return conv_gan.NewTrainStep(generator, critic, opts...)
}
