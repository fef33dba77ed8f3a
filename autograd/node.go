package autograd

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Node Value of dynamically built expression graph.
//
// shape - shape of value (NHWC for images)
// data - row-major backing storage. Nil for variables, since variables read their tensor directly
// value - tensor which is held by variable. Optimizers update it in place
// op - operation which produced node. Nil for constants and variables
// inputs - operands of op
// requiresGrad - true if node depends on at least one variable
//
type Node struct {
	name         string
	shape        tensor.Shape
	data         []float64
	value        *tensor.Dense
	op           op
	inputs       Nodes
	requiresGrad bool
}

// Nodes Just an alias to slice of nodes
type Nodes []*Node

// op Operation which knows how to express its own derivative in terms of other operations.
//
// backward must return one entry per input. Entries for inputs which are not flagged in wrt may be nil.
type op interface {
	fmt.Stringer
	backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error)
}

// NewVariable Creates learnable node on top of provided tensor. Node and tensor share memory
func NewVariable(name string, value *tensor.Dense) (*Node, error) {
	if err := checkDense(value); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't create variable '%s'", name))
	}
	return &Node{
		name:         name,
		shape:        value.Shape().Clone(),
		value:        value,
		requiresGrad: true,
	}, nil
}

// NewConstant Creates non-learnable node holding copy of provided tensor
func NewConstant(value *tensor.Dense) (*Node, error) {
	if err := checkDense(value); err != nil {
		return nil, errors.Wrap(err, "Can't create constant")
	}
	materialized := value
	if value.IsView() {
		materialized = value.Materialize().(*tensor.Dense)
	}
	return newConstant(value.Shape(), append([]float64(nil), materialized.Float64s()...)), nil
}

// NewConstantFrom Creates non-learnable node from raw data. Data is not copied
func NewConstantFrom(shape tensor.Shape, data []float64) (*Node, error) {
	if shape.TotalSize() != len(data) {
		return nil, errors.Errorf("Shape %v needs %d elements, but got %d", shape, shape.TotalSize(), len(data))
	}
	return newConstant(shape, data), nil
}

// Ones Creates constant filled with 1.0
func Ones(shape ...int) *Node {
	return Full(1.0, shape...)
}

// Zeros Creates constant filled with 0.0
func Zeros(shape ...int) *Node {
	return newConstant(tensor.Shape(shape), make([]float64, tensor.Shape(shape).TotalSize()))
}

// Full Creates constant filled with provided value
func Full(v float64, shape ...int) *Node {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = v
	}
	return newConstant(tensor.Shape(shape), data)
}

func newConstant(shape tensor.Shape, data []float64) *Node {
	return &Node{
		shape: shape.Clone(),
		data:  data,
	}
}

// newResult Wraps output of operation. Graph is recorded only when some input depends on a variable
func newResult(o op, shape tensor.Shape, data []float64, inputs ...*Node) *Node {
	n := newConstant(shape, data)
	for _, in := range inputs {
		if in.requiresGrad {
			n.requiresGrad = true
			break
		}
	}
	if n.requiresGrad {
		n.op = o
		n.inputs = inputs
	}
	return n
}

// sameShape Strict comparison. tensor.Shape.Eq treats (N, 1) and (N) as equal
func sameShape(a, b tensor.Shape) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkDense(value *tensor.Dense) error {
	if value == nil {
		return fmt.Errorf("Tensor is nil")
	}
	if value.Dtype() != tensor.Float64 {
		return fmt.Errorf("Only Float64 tensors are supported, but got %v", value.Dtype())
	}
	if value.Dims() == 0 {
		return fmt.Errorf("Scalar tensors are not supported, use shape (1) instead")
	}
	return nil
}

// Name Returns name of node (empty for intermediate nodes)
func (n *Node) Name() string {
	return n.name
}

// Shape Returns shape of node
func (n *Node) Shape() tensor.Shape {
	return n.shape.Clone()
}

// Dims Returns number of dimensions
func (n *Node) Dims() int {
	return len(n.shape)
}

// Size Returns total number of elements
func (n *Node) Size() int {
	return n.shape.TotalSize()
}

// RequiresGrad Returns true when node depends on at least one variable
func (n *Node) RequiresGrad() bool {
	return n.requiresGrad
}

// IsVariable Returns true for learnable nodes
func (n *Node) IsVariable() bool {
	return n.value != nil
}

// Data Returns underlying values. Do not modify them
func (n *Node) Data() []float64 {
	if n.value != nil {
		return n.value.Float64s()
	}
	return n.data
}

// ScalarValue Returns first element of node. Meant for single-element costs
func (n *Node) ScalarValue() float64 {
	return n.Data()[0]
}

// Value Returns tensor representation of node. For variables it is the tensor itself, for others it is a copy
func (n *Node) Value() *tensor.Dense {
	if n.value != nil {
		return n.value
	}
	return tensor.New(tensor.WithShape(n.shape.Clone()...), tensor.WithBacking(append([]float64(nil), n.data...)))
}

// Watch Returns copy of node which starts graph of its own: gradients could be taken with respect to it,
// but they do not flow further to the inputs of original node
func Watch(a *Node) *Node {
	n := newConstant(a.shape, append([]float64(nil), a.Data()...))
	n.requiresGrad = true
	return n
}

// Detach Returns constant copy of node which is cut from graph
func (n *Node) Detach() *Node {
	return newConstant(n.shape, append([]float64(nil), n.Data()...))
}

func (n *Node) String() string {
	if n.name != "" {
		return fmt.Sprintf("%s%v", n.name, n.shape)
	}
	if n.op != nil {
		return fmt.Sprintf("%v%v", n.op, n.shape)
	}
	return fmt.Sprintf("const%v", n.shape)
}
