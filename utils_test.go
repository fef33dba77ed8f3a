package conv_gan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestRandDense(t *testing.T) {
	rng := newTestRand(41)
	uniform := UniformRandDense(rng, 3, 4, 5)
	assert.Equal(t, tensor.Shape{3, 4, 5}, uniform.Shape())
	for _, v := range uniform.Float64s() {
		assert.True(t, v >= 0.0 && v < 1.0)
	}

	norm := NormRandDense(rng, 100, 10)
	assert.Equal(t, tensor.Shape{100, 10}, norm.Shape())
	mean := 0.0
	for _, v := range norm.Float64s() {
		mean += v
	}
	mean /= 1000
	assert.InDelta(t, 0.0, mean, 0.15)

	// Same seed gives same noise
	a := NormRandDense(newTestRand(42), 2, 2)
	b := NormRandDense(newTestRand(42), 2, 2)
	assert.Equal(t, a.Float64s(), b.Float64s())
}

func TestPlotLosses(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "losses.png")
	err := PlotLosses([]float64{1.4, 1.2, 0.9}, []float64{0.7, 0.8, 1.1}, fname)
	require.NoError(t, err)
	info, err := os.Stat(fname)
	require.NoError(t, err)
	assert.True(t, info.Size() > 0)

	assert.Error(t, PlotLosses([]float64{1}, []float64{1, 2}, fname))
	assert.Error(t, PlotLosses(nil, nil, fname))
}

func TestASCIIPreview(t *testing.T) {
	// Two 2x3 images with single channel: second image has bright diagonal
	data := []float64{
		-1, -1, -1,
		-1, -1, -1,

		1, -1, -1,
		-1, 1, -1,
	}
	images := tensor.New(tensor.WithShape(2, 2, 3, 1), tensor.WithBacking(data))
	rows, err := ASCIIPreview(images, 1, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x  ", " x "}, rows)

	rows, err = ASCIIPreview(images, 0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []string{"   ", "   "}, rows)

	_, err = ASCIIPreview(images, 2, 0.0)
	assert.Error(t, err)
	_, err = ASCIIPreview(tensor.New(tensor.WithShape(2, 3), tensor.WithBacking(make([]float64, 6))), 0, 0.0)
	assert.Error(t, err)
}
