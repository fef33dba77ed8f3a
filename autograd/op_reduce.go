package autograd

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// sumOp and fillOp are adjoint to each other

type sumOp struct{}

func (o sumOp) String() string { return "Σ" }

func (o sumOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := Fill(grad, inputs[0].shape)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// Sum Sums all elements. Result has shape (1)
func Sum(a *Node) (*Node, error) {
	s := 0.0
	for _, v := range a.Data() {
		s += v
	}
	return newResult(sumOp{}, tensor.Shape{1}, []float64{s}, a), nil
}

// Mean Averages all elements. Result has shape (1)
func Mean(a *Node) (*Node, error) {
	if a.Size() == 0 {
		return nil, errors.Errorf("Can't average empty node of shape %v", a.shape)
	}
	s, err := Sum(a)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1.0/float64(a.Size()))
}

type fillOp struct {
	shape tensor.Shape
}

func (o fillOp) String() string { return "fill" }

func (o fillOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := Sum(grad)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// Fill Broadcasts single-element node to provided shape
func Fill(a *Node, shape tensor.Shape) (*Node, error) {
	if a.Size() != 1 {
		return nil, errors.Errorf("Fill expects single-element node, but got shape %v", a.shape)
	}
	v := a.Data()[0]
	out := make([]float64, shape.TotalSize())
	for i := range out {
		out[i] = v
	}
	return newResult(fillOp{shape: shape.Clone()}, shape, out, a), nil
}

// rowsOp Reduces (N, ...) to (N) by summation, or broadcasts (N) back to (N, ...)

type rowsOp struct {
	reduce bool
	shape  tensor.Shape
}

func (o rowsOp) String() string {
	if o.reduce {
		return "Σrows"
	}
	return "broadcast_rows"
}

func (o rowsOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	var g *Node
	var err error
	if o.reduce {
		g, err = BroadcastRows(grad, inputs[0].shape)
	} else {
		g, err = SumRows(grad)
	}
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// SumRows Sums every example of batch over all non-batch axes: (N, ...) => (N)
func SumRows(a *Node) (*Node, error) {
	if a.Dims() < 1 || a.shape[0] == 0 {
		return nil, errors.Errorf("SumRows expects non-empty batch axis, but got shape %v", a.shape)
	}
	n := a.shape[0]
	stride := a.Size() / n
	ad := a.Data()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		s := 0.0
		for _, v := range ad[i*stride : (i+1)*stride] {
			s += v
		}
		out[i] = s
	}
	return newResult(rowsOp{reduce: true, shape: a.shape.Clone()}, tensor.Shape{n}, out, a), nil
}

// BroadcastRows Repeats every element of (N) node over all non-batch axes of provided shape
func BroadcastRows(a *Node, shape tensor.Shape) (*Node, error) {
	if a.Dims() != 1 || len(shape) < 1 || shape[0] != a.shape[0] {
		return nil, errors.Errorf("Can't broadcast rows of %v to %v", a.shape, shape)
	}
	n := a.shape[0]
	stride := shape.TotalSize() / n
	ad := a.Data()
	out := make([]float64, shape.TotalSize())
	for i := 0; i < n; i++ {
		row := out[i*stride : (i+1)*stride]
		for j := range row {
			row[j] = ad[i]
		}
	}
	return newResult(rowsOp{reduce: false, shape: shape.Clone()}, shape, out, a), nil
}

type scaleRowsOp struct{}

func (o scaleRowsOp) String() string { return "scale_rows" }

func (o scaleRowsOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	x, s := inputs[0], inputs[1]
	retVal := make(Nodes, 2)
	var err error
	if wrt[0] {
		if retVal[0], err = ScaleRows(grad, s); err != nil {
			return nil, err
		}
	}
	if wrt[1] {
		prod, err := HadamardProd(grad, x)
		if err != nil {
			return nil, err
		}
		if retVal[1], err = SumRows(prod); err != nil {
			return nil, err
		}
	}
	return retVal, nil
}

// ScaleRows Multiplies every example of (N, ...) node by corresponding element of (N) node
func ScaleRows(a, scale *Node) (*Node, error) {
	if a.Dims() < 1 || a.shape[0] == 0 || scale.Dims() != 1 || scale.shape[0] != a.shape[0] {
		return nil, errors.Errorf("Can't scale rows of %v by %v", a.shape, scale.shape)
	}
	n := a.shape[0]
	stride := a.Size() / n
	ad, sd := a.Data(), scale.Data()
	out := make([]float64, len(ad))
	for i := 0; i < n; i++ {
		for j := i * stride; j < (i+1)*stride; j++ {
			out[j] = ad[j] * sd[i]
		}
	}
	return newResult(scaleRowsOp{}, a.shape, out, a, scale), nil
}

// channelsOp Reduces (..., C) to (C) by summation, or tiles (C) to (..., C)

type channelsOp struct {
	reduce bool
	shape  tensor.Shape
}

func (o channelsOp) String() string {
	if o.reduce {
		return "Σchannels"
	}
	return "tile_channels"
}

func (o channelsOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	var g *Node
	var err error
	if o.reduce {
		g, err = TileChannels(grad, inputs[0].shape)
	} else {
		g, err = SumChannels(grad)
	}
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// SumChannels Sums over every axis but the last one: (..., C) => (C)
func SumChannels(a *Node) (*Node, error) {
	if a.Dims() < 1 {
		return nil, errors.Errorf("SumChannels expects channel axis, but got shape %v", a.shape)
	}
	c := a.shape[len(a.shape)-1]
	ad := a.Data()
	out := make([]float64, c)
	for i, v := range ad {
		out[i%c] += v
	}
	return newResult(channelsOp{reduce: true, shape: a.shape.Clone()}, tensor.Shape{c}, out, a), nil
}

// TileChannels Repeats (C) node over all leading axes of provided (..., C) shape
func TileChannels(a *Node, shape tensor.Shape) (*Node, error) {
	if a.Dims() != 1 || len(shape) < 1 || shape[len(shape)-1] != a.shape[0] {
		return nil, errors.Errorf("Can't tile channels of %v to %v", a.shape, shape)
	}
	c := a.shape[0]
	ad := a.Data()
	out := make([]float64, shape.TotalSize())
	for i := range out {
		out[i] = ad[i%c]
	}
	return newResult(channelsOp{reduce: false, shape: shape.Clone()}, shape, out, a), nil
}

// AddBias Adds (C) bias to every position of (..., C) node
func AddBias(a, bias *Node) (*Node, error) {
	tiled, err := TileChannels(bias, a.shape)
	if err != nil {
		return nil, errors.Wrap(err, "Can't tile bias")
	}
	return Add(a, tiled)
}

// spatialOp Reduces (N, H, W, C) to (N, C) by summation, or tiles (N, C) to (N, H, W, C)

type spatialOp struct {
	reduce bool
	height int
	width  int
}

func (o spatialOp) String() string {
	if o.reduce {
		return "Σspatial"
	}
	return "tile_spatial"
}

func (o spatialOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	var g *Node
	var err error
	if o.reduce {
		g, err = SpatialTile(grad, o.height, o.width)
	} else {
		g, err = SpatialSum(grad)
	}
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// SpatialSum Sums NHWC node over height and width: (N, H, W, C) => (N, C)
func SpatialSum(a *Node) (*Node, error) {
	if a.Dims() != 4 {
		return nil, errors.Errorf("SpatialSum expects NHWC node, but got shape %v", a.shape)
	}
	n, h, w, c := a.shape[0], a.shape[1], a.shape[2], a.shape[3]
	ad := a.Data()
	out := make([]float64, n*c)
	for b := 0; b < n; b++ {
		dst := out[b*c : (b+1)*c]
		src := ad[b*h*w*c : (b+1)*h*w*c]
		for i, v := range src {
			dst[i%c] += v
		}
	}
	return newResult(spatialOp{reduce: true, height: h, width: w}, tensor.Shape{n, c}, out, a), nil
}

// SpatialTile Repeats (N, C) node over height and width: (N, C) => (N, H, W, C)
func SpatialTile(a *Node, height, width int) (*Node, error) {
	if a.Dims() != 2 || height < 1 || width < 1 {
		return nil, errors.Errorf("Can't tile %v over %dx%d", a.shape, height, width)
	}
	n, c := a.shape[0], a.shape[1]
	ad := a.Data()
	out := make([]float64, n*height*width*c)
	for b := 0; b < n; b++ {
		src := ad[b*c : (b+1)*c]
		dst := out[b*height*width*c : (b+1)*height*width*c]
		for i := range dst {
			dst[i] = src[i%c]
		}
	}
	return newResult(spatialOp{reduce: false, height: height, width: width}, tensor.Shape{n, height, width, c}, out, a), nil
}

// GlobalAveragePool2D Averages NHWC node over height and width: (N, H, W, C) => (N, C)
func GlobalAveragePool2D(a *Node) (*Node, error) {
	s, err := SpatialSum(a)
	if err != nil {
		return nil, err
	}
	return MulScalar(s, 1.0/float64(a.shape[1]*a.shape[2]))
}
