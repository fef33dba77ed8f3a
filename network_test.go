package conv_gan

import (
	"math"
	"testing"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func snapshot(nodes autograd.Nodes) [][]float64 {
	values := make([][]float64, len(nodes))
	for i, n := range nodes {
		values[i] = append([]float64(nil), n.Data()...)
	}
	return values
}

func changed(before [][]float64, nodes autograd.Nodes) bool {
	for i, n := range nodes {
		for j, v := range n.Data() {
			if v != before[i][j] {
				return true
			}
		}
	}
	return false
}

func TestGeneratorOutputShape(t *testing.T) {
	tests := []struct {
		batch int
		input tensor.Shape
	}{
		{1, tensor.Shape{1, 1, 4}},
		{2, tensor.Shape{2, 3, 8}},
	}
	for _, tt := range tests {
		generator, err := NewGenerator(tt.input)
		require.NoError(t, err)
		expected := tensor.Shape{16 * tt.input[0], 16 * tt.input[1], 3}
		assert.Equal(t, expected, generator.OutputShape())
		assert.Equal(t, tt.input, generator.InputShape())
		// 4 upsampling stages and final convolution, each with weights and bias
		assert.Len(t, generator.Learnables(), 10)

		rng := newTestRand(1)
		noise := NormRandDense(rng, append([]int{tt.batch}, tt.input...)...)
		images, err := generator.Generate(noise)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{tt.batch, expected[0], expected[1], expected[2]}, images.Shape())
		for _, v := range images.Float64s() {
			assert.True(t, v >= -1.0 && v <= 1.0, "tanh output %v is out of range", v)
		}
	}
}

func TestGeneratorRejectsBadShapes(t *testing.T) {
	_, err := NewGenerator(tensor.Shape{4, 4})
	assert.Error(t, err)
	_, err = NewGenerator(tensor.Shape{4, 0, 8})
	assert.Error(t, err)

	generator, err := NewGenerator(tensor.Shape{1, 1, 4})
	require.NoError(t, err)
	_, err = generator.Generate(NormRandDense(newTestRand(1), 2, 1, 1, 5))
	assert.Error(t, err)
}

func TestDiscriminatorOutputShape(t *testing.T) {
	for _, scheme := range []Scheme{SchemeDCGAN, SchemeWGANGP} {
		discriminator, err := NewDiscriminator(tensor.Shape{16, 16, 3}, scheme)
		require.NoError(t, err)
		assert.Equal(t, scheme, discriminator.Scheme())
		assert.Equal(t, tensor.Shape{16, 16, 3}, discriminator.InputShape())
		// 4 downsampling stages and dense unit, each with weights and bias
		assert.Len(t, discriminator.Learnables(), 10)

		images := UniformRandDense(newTestRand(2), 3, 16, 16, 3)
		scores, err := discriminator.Score(images)
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{3, 1}, scores.Shape())
	}
	_, err := NewDiscriminator(tensor.Shape{16, 16, 3}, Scheme(42))
	assert.Error(t, err)
}

func TestDiscriminatorRejectsBadInput(t *testing.T) {
	discriminator, err := NewDiscriminator(tensor.Shape{16, 16, 3}, SchemeDCGAN)
	require.NoError(t, err)
	_, err = discriminator.Score(UniformRandDense(newTestRand(3), 2, 32, 32, 3))
	assert.Error(t, err)
	_, err = discriminator.Score(UniformRandDense(newTestRand(3), 2, 16, 16))
	assert.Error(t, err)
	_, err = discriminator.Fwd(nil)
	assert.Error(t, err)
}

// setLastLayer Zeroes dense weights of discriminator and sets its bias, so pre-activation output equals bias
func setLastLayer(discriminator *DiscriminatorNet, bias float64) {
	last := discriminator.private.Layers[len(discriminator.private.Layers)-1]
	w := last.WeightNode.Value().Float64s()
	for i := range w {
		w[i] = 0
	}
	last.BiasNode.Value().Float64s()[0] = bias
}

func TestDCGANDiscriminatorIsProbability(t *testing.T) {
	discriminator, err := NewDiscriminator(tensor.Shape{16, 16, 3}, SchemeDCGAN)
	require.NoError(t, err)
	images := UniformRandDense(newTestRand(4), 4, 16, 16, 3)

	scores, err := discriminator.Score(images)
	require.NoError(t, err)
	for _, v := range scores.Float64s() {
		assert.True(t, v > 0.0 && v < 1.0, "probability %v is out of (0;1)", v)
	}

	for _, bias := range []float64{-5, 5} {
		setLastLayer(discriminator, bias)
		scores, err = discriminator.Score(images)
		require.NoError(t, err)
		for _, v := range scores.Float64s() {
			assert.InDelta(t, 1.0/(1.0+math.Exp(-bias)), v, 1e-12)
		}
	}
}

func TestWGANCriticIsUnbounded(t *testing.T) {
	critic, err := NewDiscriminator(tensor.Shape{16, 16, 3}, SchemeWGANGP)
	require.NoError(t, err)
	images := UniformRandDense(newTestRand(5), 4, 16, 16, 3)
	for _, bias := range []float64{-7.5, 12.0} {
		setLastLayer(critic, bias)
		scores, err := critic.Score(images)
		require.NoError(t, err)
		for _, v := range scores.Float64s() {
			assert.Equal(t, bias, v)
		}
	}
}

func TestCloneIsIndependent(t *testing.T) {
	generator, err := NewGenerator(tensor.Shape{1, 1, 4})
	require.NoError(t, err)
	copied, err := generator.Clone()
	require.NoError(t, err)
	require.Len(t, copied.Learnables(), len(generator.Learnables()))
	for i, n := range generator.Learnables() {
		other := copied.Learnables()[i]
		assert.NotSame(t, n, other)
		assert.Equal(t, n.Data(), other.Data())
	}
	copied.Learnables()[0].Value().Float64s()[0] += 1.0
	assert.NotEqual(t, generator.Learnables()[0].Data()[0], copied.Learnables()[0].Data()[0])
	assert.Equal(t, generator.OutputShape(), copied.OutputShape())
}

func TestLayerErrors(t *testing.T) {
	input := autograd.Ones(2, 4)
	layer := &Layer{Type: LayerLinear}
	_, err := layer.Fwd(input)
	assert.Error(t, err)

	layer = &Layer{Type: LayerType(100), WeightNode: autograd.Ones(4, 1)}
	_, err = layer.Fwd(input)
	assert.Error(t, err)

	pool := &Layer{Type: LayerGlobalAveragePool}
	_, err = pool.Fwd(autograd.Ones(2, 3, 3, 4))
	assert.NoError(t, err)

	net := Generator()
	_, err = net.Fwd(input)
	assert.Error(t, err)
}

func TestCustomLayers(t *testing.T) {
	w, err := autograd.NewVariable("w", tensor.New(tensor.WithShape(4, 2), tensor.WithBacking([]float64{1, 0, 0, 1, 1, 0, 0, 1})))
	require.NoError(t, err)
	b, err := autograd.NewVariable("b", tensor.New(tensor.WithShape(2), tensor.WithBacking([]float64{0.5, -0.5})))
	require.NoError(t, err)
	discriminator := Discriminator(SchemeWGANGP, &Layer{
		WeightNode: w,
		BiasNode:   b,
		Type:       LayerLinear,
		Activation: LeakyRectify(0.5),
	})
	input, err := autograd.NewConstantFrom(tensor.Shape{1, 4}, []float64{1, 2, -3, -4})
	require.NoError(t, err)
	out, err := discriminator.Fwd(input)
	require.NoError(t, err)
	// (1-3+0.5, 2-4-0.5) = (-1.5, -2.5) => leaky (-0.75, -1.25)
	assert.Equal(t, []float64{-0.75, -1.25}, out.Data())
	assert.Len(t, discriminator.Learnables(), 2)
}
