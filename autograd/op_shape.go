package autograd

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

type reshapeOp struct {
	from, to tensor.Shape
}

func (o reshapeOp) String() string { return fmt.Sprintf("reshape%v", o.to) }

func (o reshapeOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := Reshape(grad, o.from)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// Reshape Changes shape of node keeping row-major order of elements
func Reshape(a *Node, shape tensor.Shape) (*Node, error) {
	if shape.TotalSize() != a.Size() {
		return nil, errors.Errorf("Can't reshape %v to %v", a.shape, shape)
	}
	out := append([]float64(nil), a.Data()...)
	return newResult(reshapeOp{from: a.shape.Clone(), to: shape.Clone()}, shape, out, a), nil
}

type concatOp struct {
	sizes []int
}

func (o concatOp) String() string { return "concat" }

func (o concatOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	retVal := make(Nodes, len(inputs))
	start := 0
	for i, n := range o.sizes {
		if wrt[i] {
			g, err := SliceRows(grad, start, start+n)
			if err != nil {
				return nil, err
			}
			retVal[i] = g
		}
		start += n
	}
	return retVal, nil
}

// Concat Joins nodes along batch (first) axis. All other dimensions must be equal
func Concat(nodes ...*Node) (*Node, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("Nothing to concatenate")
	}
	first := nodes[0]
	if first.Dims() < 1 {
		return nil, errors.Errorf("Can't concatenate node of shape %v along batch axis", first.shape)
	}
	sizes := make([]int, len(nodes))
	total := 0
	for i, n := range nodes {
		if n.Dims() != first.Dims() || !sameShape(n.shape[1:], first.shape[1:]) {
			return nil, errors.Errorf("Shape mismatch for concatenation: %v vs %v", first.shape, n.shape)
		}
		sizes[i] = n.shape[0]
		total += n.shape[0]
	}
	shape := first.shape.Clone()
	shape[0] = total
	out := make([]float64, 0, shape.TotalSize())
	for _, n := range nodes {
		out = append(out, n.Data()...)
	}
	return newResult(concatOp{sizes: sizes}, shape, out, nodes...), nil
}

// rowsSliceOp Takes rows [start; end) of (total, ...) node, or pads (end-start, ...) node with zero rows back

type rowsSliceOp struct {
	pad        bool
	start, end int
	total      int
}

func (o rowsSliceOp) String() string {
	if o.pad {
		return fmt.Sprintf("pad_rows[%d:%d]/%d", o.start, o.end, o.total)
	}
	return fmt.Sprintf("slice_rows[%d:%d]", o.start, o.end)
}

func (o rowsSliceOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	var g *Node
	var err error
	if o.pad {
		g, err = SliceRows(grad, o.start, o.end)
	} else {
		g, err = PadRows(grad, o.start, o.total)
	}
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// SliceRows Takes examples [start; end) of batch
func SliceRows(a *Node, start, end int) (*Node, error) {
	if a.Dims() < 1 || start < 0 || end > a.shape[0] || start >= end {
		return nil, errors.Errorf("Can't slice rows [%d:%d] of %v", start, end, a.shape)
	}
	stride := a.Size() / a.shape[0]
	shape := a.shape.Clone()
	shape[0] = end - start
	out := append([]float64(nil), a.Data()[start*stride:end*stride]...)
	return newResult(rowsSliceOp{start: start, end: end, total: a.shape[0]}, shape, out, a), nil
}

// PadRows Places batch into zero-filled batch of total examples starting from offset
func PadRows(a *Node, offset, total int) (*Node, error) {
	if a.Dims() < 1 || a.shape[0] == 0 || offset < 0 || offset+a.shape[0] > total {
		return nil, errors.Errorf("Can't pad rows of %v at offset %d to %d examples", a.shape, offset, total)
	}
	stride := a.Size() / a.shape[0]
	shape := a.shape.Clone()
	shape[0] = total
	out := make([]float64, shape.TotalSize())
	copy(out[offset*stride:], a.Data())
	return newResult(rowsSliceOp{pad: true, start: offset, end: offset + a.shape[0], total: total}, shape, out, a), nil
}
