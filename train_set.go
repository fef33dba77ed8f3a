package conv_gan

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// TrainSet Real images for training
//
// TrainData - (DataLength, H, W, C) images
// DataLength - number of images
//
type TrainSet struct {
	TrainData  *tensor.Dense
	DataLength int
}

// Batch Returns copy of images [start; end)
func (ts *TrainSet) Batch(start, end int) (*tensor.Dense, error) {
	if start < 0 || end > ts.DataLength || start >= end {
		return nil, errors.Errorf("Can't take batch [%d:%d] of %d images", start, end, ts.DataLength)
	}
	view, err := ts.TrainData.Slice(SlicerOneStep{StartIdx: start, EndIdx: end})
	if err != nil {
		return nil, errors.Wrap(err, "Can't slice train data")
	}
	batch := view.(*tensor.Dense).Materialize().(*tensor.Dense)
	// Slicing drops axis of size 1
	shp := ts.TrainData.Shape().Clone()
	shp[0] = end - start
	if err := batch.Reshape(shp...); err != nil {
		return nil, errors.Wrap(err, "Can't restore batch axis")
	}
	return batch, nil
}

// GenerateSyntheticImages Generates images of soft colored discs on dark background. Pixels are in [-1;1] as tanh outputs are
//
// rng - source of randomness
// numSamples - number of images
// height, width - spatial size of every image
//
func GenerateSyntheticImages(rng *rand.Rand, numSamples, height, width int) (*TrainSet, error) {
	if numSamples <= 0 || height <= 0 || width <= 0 {
		return nil, errors.Errorf("Can't generate %d images of size %dx%d", numSamples, height, width)
	}
	data := make([]float64, numSamples*height*width*imageChannels)
	minSide := math.Min(float64(height), float64(width))
	for i := 0; i < numSamples; i++ {
		cy := rng.Float64() * float64(height)
		cx := rng.Float64() * float64(width)
		radius := (0.15 + 0.2*rng.Float64()) * minSide
		rgb := [3]float64{rng.Float64(), rng.Float64(), rng.Float64()}
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				dist := math.Hypot(float64(y)+0.5-cy, float64(x)+0.5-cx)
				// Smooth edge of disc
				intensity := 1.0 / (1.0 + math.Exp(dist-radius))
				offset := ((i*height+y)*width + x) * imageChannels
				for c := 0; c < imageChannels; c++ {
					data[offset+c] = 2.0*intensity*rgb[c] - 1.0
				}
			}
		}
	}
	return &TrainSet{
		TrainData:  tensor.New(tensor.WithShape(numSamples, height, width, imageChannels), tensor.WithBacking(data)),
		DataLength: numSamples,
	}, nil
}
