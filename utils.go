package conv_gan

import (
	"fmt"
	"image/color"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with standard normally distributed float64 values
//
// rng - source of randomness
// shape - shape of resulting dense, e.g. (batch, H, W, C) for latent noise
//
func NormRandDense(rng *rand.Rand, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [0.0,1.0)
//
// rng - source of randomness
// shape - shape of resulting dense
//
func UniformRandDense(rng *rand.Rand, shape ...int) *tensor.Dense {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.Float64()
	}
	return tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data))
}

// SlicerOneStep Just iterator with step size = 1
type SlicerOneStep struct {
	StartIdx, EndIdx int
}

func (s SlicerOneStep) Start() int { return s.StartIdx }
func (s SlicerOneStep) End() int   { return s.EndIdx }
func (s SlicerOneStep) Step() int  { return 1 }

// PlotLosses Plot chart for losses of both networks over training steps
func PlotLosses(dLosses, gLosses []float64, fname string) error {
	if len(dLosses) != len(gLosses) {
		return fmt.Errorf("Loss histories must have same length, but discriminator has %d values and generator has %d values", len(dLosses), len(gLosses))
	}
	if len(dLosses) == 0 {
		return fmt.Errorf("Nothing to plot")
	}
	dData := make(plotter.XYs, len(dLosses))
	gData := make(plotter.XYs, len(gLosses))
	for i := range dLosses {
		dData[i].X = float64(i)
		dData[i].Y = dLosses[i]
		gData[i].X = float64(i)
		gData[i].Y = gLosses[i]
	}
	dLine, err := plotter.NewLine(dData)
	if err != nil {
		return errors.Wrap(err, "Can't init line for discriminator's loss")
	}
	dLine.LineStyle.Color = color.RGBA{R: 255, B: 128, A: 255}
	gLine, err := plotter.NewLine(gData)
	if err != nil {
		return errors.Wrap(err, "Can't init line for generator's loss")
	}
	gLine.LineStyle.Color = color.RGBA{G: 128, B: 255, A: 255}
	p := plot.New()
	p.X.Label.Text = "Step"
	p.Y.Label.Text = "Loss"
	p.Add(plotter.NewGrid())
	p.Add(dLine, gLine)
	p.Legend.Add("discriminator", dLine)
	p.Legend.Add("generator", gLine)
	// Save the plot to a PNG file.
	if err := p.Save(6*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}

// ASCIIPreview Renders single NHWC image as rows of characters: channels are averaged and pixels
// brighter than threshold become 'x'
func ASCIIPreview(images *tensor.Dense, idx int, threshold float64) ([]string, error) {
	shp := images.Shape()
	if len(shp) != 4 {
		return nil, errors.Errorf("Images must have shape (batch, H, W, C), but got %v", shp)
	}
	if idx < 0 || idx >= shp[0] {
		return nil, errors.Errorf("Index %d is out of batch of %d images", idx, shp[0])
	}
	view, err := images.Slice(SlicerOneStep{StartIdx: idx, EndIdx: idx + 1})
	if err != nil {
		return nil, errors.Wrap(err, "Can't select image")
	}
	data := view.(*tensor.Dense).Materialize().(*tensor.Dense).Float64s()
	if len(data) != shp[1]*shp[2]*shp[3] {
		return nil, errors.Errorf("Image #%d has %d values, but expected %d", idx, len(data), shp[1]*shp[2]*shp[3])
	}
	height, width, channels := shp[1], shp[2], shp[3]
	rows := make([]string, height)
	for y := 0; y < height; y++ {
		row := make([]byte, width)
		for x := 0; x < width; x++ {
			s := 0.0
			for c := 0; c < channels; c++ {
				s += data[(y*width+x)*channels+c]
			}
			row[x] = ' '
			if s/float64(channels) > threshold {
				row[x] = 'x'
			}
		}
		rows[y] = string(row)
	}
	return rows, nil
}
