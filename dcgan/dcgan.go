// Package dcgan Standard convolutional GAN: discriminator outputs probability of image being real and both
// networks are trained with binary cross-entropy
package dcgan

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

// BuildDiscriminator Builds discriminator which maps (batch, H, W, 3) images to (batch, 1) probabilities in (0;1)
//
// inputShape - (H, W, 3) shape of single image
//
func BuildDiscriminator(inputShape tensor.Shape) (*conv_gan.DiscriminatorNet, error) {
	return conv_gan.NewDiscriminator(inputShape, conv_gan.SchemeDCGAN)
}

// BuildTrainStep Builds training step for provided networks.
// Returned TrainStep.Step(real, noise) updates both networks and returns (discriminator loss, generator loss)
func BuildTrainStep(generator *conv_gan.GeneratorNet, discriminator *conv_gan.DiscriminatorNet, opts ...conv_gan.TrainStepOpt) (*conv_gan.TrainStep, error) {
	if discriminator == nil {
		return nil, errors.New("Discriminator is nil")
	}
	if discriminator.Scheme() != conv_gan.SchemeDCGAN {
		return nil, errors.Errorf("Discriminator must be built for '%s' scheme, but got '%s'", conv_gan.SchemeDCGAN, discriminator.Scheme())
	}
	return conv_gan.NewTrainStep(generator, discriminator, opts...)
}
