package conv_gan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func TestTrainSetBatch(t *testing.T) {
	data := make([]float64, 5*2*2*3)
	for i := range data {
		data[i] = float64(i)
	}
	ts := &TrainSet{
		TrainData:  tensor.New(tensor.WithShape(5, 2, 2, 3), tensor.WithBacking(data)),
		DataLength: 5,
	}

	batch, err := ts.Batch(1, 3)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 2, 2, 3}, batch.Shape())
	assert.Equal(t, data[12:36], batch.Float64s())

	// Batch is a copy
	batch.Float64s()[0] = -1
	assert.Equal(t, 12.0, data[12])

	single, err := ts.Batch(4, 5)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{1, 2, 2, 3}, single.Shape())
	assert.Equal(t, data[48:], single.Float64s())

	for _, bounds := range [][2]int{{-1, 2}, {3, 3}, {4, 2}, {2, 6}} {
		_, err = ts.Batch(bounds[0], bounds[1])
		assert.Error(t, err, "bounds %v", bounds)
	}
}

func TestGenerateSyntheticImages(t *testing.T) {
	ts, err := GenerateSyntheticImages(newTestRand(31), 6, 8, 10)
	require.NoError(t, err)
	assert.Equal(t, 6, ts.DataLength)
	assert.Equal(t, tensor.Shape{6, 8, 10, 3}, ts.TrainData.Shape())
	low, high := 1.0, -1.0
	for _, v := range ts.TrainData.Float64s() {
		require.True(t, v >= -1.0 && v <= 1.0, "pixel %v is out of [-1;1]", v)
		if v < low {
			low = v
		}
		if v > high {
			high = v
		}
	}
	// Background is dark and discs are not
	assert.True(t, high > low)

	_, err = GenerateSyntheticImages(newTestRand(31), 0, 8, 8)
	assert.Error(t, err)
	_, err = GenerateSyntheticImages(newTestRand(31), 2, 8, -1)
	assert.Error(t, err)
}
