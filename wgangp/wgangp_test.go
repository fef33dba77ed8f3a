package wgangp

import (
	"math"
	"math/rand"
	"testing"

	conv_gan "github.com/LdDl/conv-gan-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestBuildNetworks(t *testing.T) {
	generator, err := BuildGenerator(tensor.Shape{2, 1, 4})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{32, 16, 3}, generator.OutputShape())

	critic, err := BuildCritic(generator.OutputShape())
	require.NoError(t, err)
	assert.Equal(t, conv_gan.SchemeWGANGP, critic.Scheme())

	rng := rand.New(rand.NewSource(1))
	images, err := generator.Generate(conv_gan.NormRandDense(rng, 2, 2, 1, 4))
	require.NoError(t, err)
	scores, err := critic.Score(images)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 1}, scores.Shape())

	_, err = BuildCritic(tensor.Shape{16, 16})
	assert.Error(t, err)
}

func TestBuildTrainStep(t *testing.T) {
	generator, err := BuildGenerator(tensor.Shape{1, 1, 4})
	require.NoError(t, err)
	critic, err := BuildCritic(generator.OutputShape())
	require.NoError(t, err)
	discriminator, err := conv_gan.NewDiscriminator(generator.OutputShape(), conv_gan.SchemeDCGAN)
	require.NoError(t, err)

	_, err = BuildTrainStep(generator, discriminator)
	assert.Error(t, err)
	_, err = BuildTrainStep(generator, nil)
	assert.Error(t, err)

	step, err := BuildTrainStep(generator, critic, conv_gan.WithLambda(5.0), conv_gan.WithRand(rand.New(rand.NewSource(3))))
	require.NoError(t, err)
	assert.Equal(t, conv_gan.SchemeWGANGP, step.Scheme())

	rng := rand.New(rand.NewSource(4))
	real := conv_gan.UniformRandDense(rng, 2, 16, 16, 3)
	noise := conv_gan.NormRandDense(rng, 2, 1, 1, 4)
	for i := 0; i < 3; i++ {
		dLoss, gLoss, err := step.Step(real, noise)
		require.NoError(t, err)
		assert.False(t, math.IsNaN(dLoss) || math.IsInf(dLoss, 0))
		assert.False(t, math.IsNaN(gLoss) || math.IsInf(gLoss, 0))
	}
}
