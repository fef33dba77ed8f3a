package autograd

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

type binaryKind uint16

const (
	binaryAdd = binaryKind(iota)
	binarySub
	binaryMul
	binaryDiv
)

func (k binaryKind) String() string {
	switch k {
	case binaryAdd:
		return "+"
	case binarySub:
		return "-"
	case binaryMul:
		return "⊙"
	case binaryDiv:
		return "÷"
	default:
		return fmt.Sprintf("binary(%d)", uint16(k))
	}
}

type binaryOp struct {
	kind binaryKind
}

func (o binaryOp) String() string { return o.kind.String() }

func (o binaryOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	a, b := inputs[0], inputs[1]
	retVal := make(Nodes, 2)
	var err error
	switch o.kind {
	case binaryAdd:
		retVal[0], retVal[1] = grad, grad
	case binarySub:
		retVal[0] = grad
		if wrt[1] {
			if retVal[1], err = Neg(grad); err != nil {
				return nil, err
			}
		}
	case binaryMul:
		if wrt[0] {
			if retVal[0], err = HadamardProd(grad, b); err != nil {
				return nil, err
			}
		}
		if wrt[1] {
			if retVal[1], err = HadamardProd(grad, a); err != nil {
				return nil, err
			}
		}
	case binaryDiv:
		// y = a/b: dy/da = 1/b, dy/db = -y/b
		if wrt[0] {
			if retVal[0], err = HadamardDiv(grad, b); err != nil {
				return nil, err
			}
		}
		if wrt[1] {
			gy, err := HadamardProd(grad, output)
			if err != nil {
				return nil, err
			}
			gyb, err := HadamardDiv(gy, b)
			if err != nil {
				return nil, err
			}
			if retVal[1], err = Neg(gyb); err != nil {
				return nil, err
			}
		}
	}
	return retVal, nil
}

func binary(kind binaryKind, a, b *Node) (*Node, error) {
	if !sameShape(a.shape, b.shape) {
		return nil, errors.Errorf("Shape mismatch for (A%vB): %v vs %v", kind, a.shape, b.shape)
	}
	ad, bd := a.Data(), b.Data()
	out := make([]float64, len(ad))
	switch kind {
	case binaryAdd:
		for i := range out {
			out[i] = ad[i] + bd[i]
		}
	case binarySub:
		for i := range out {
			out[i] = ad[i] - bd[i]
		}
	case binaryMul:
		for i := range out {
			out[i] = ad[i] * bd[i]
		}
	case binaryDiv:
		for i := range out {
			out[i] = ad[i] / bd[i]
		}
	}
	return newResult(binaryOp{kind: kind}, a.shape, out, a, b), nil
}

// Add Elementwise (A+B). Shapes must be equal
func Add(a, b *Node) (*Node, error) { return binary(binaryAdd, a, b) }

// Sub Elementwise (A-B). Shapes must be equal
func Sub(a, b *Node) (*Node, error) { return binary(binarySub, a, b) }

// HadamardProd Elementwise (A.*B). Shapes must be equal
func HadamardProd(a, b *Node) (*Node, error) { return binary(binaryMul, a, b) }

// HadamardDiv Elementwise (A./B). Shapes must be equal
func HadamardDiv(a, b *Node) (*Node, error) { return binary(binaryDiv, a, b) }

type addScalarOp struct {
	c float64
}

func (o addScalarOp) String() string { return fmt.Sprintf("+%v", o.c) }

func (o addScalarOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	return Nodes{grad}, nil
}

// AddScalar Adds constant to every element
func AddScalar(a *Node, c float64) (*Node, error) {
	ad := a.Data()
	out := make([]float64, len(ad))
	for i := range out {
		out[i] = ad[i] + c
	}
	return newResult(addScalarOp{c: c}, a.shape, out, a), nil
}

type mulScalarOp struct {
	c float64
}

func (o mulScalarOp) String() string { return fmt.Sprintf("×%v", o.c) }

func (o mulScalarOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := MulScalar(grad, o.c)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// MulScalar Multiplies every element by constant
func MulScalar(a *Node, c float64) (*Node, error) {
	ad := a.Data()
	out := make([]float64, len(ad))
	for i := range out {
		out[i] = ad[i] * c
	}
	return newResult(mulScalarOp{c: c}, a.shape, out, a), nil
}

// Neg -1*x
func Neg(a *Node) (*Node, error) { return MulScalar(a, -1.0) }

type unaryKind uint16

const (
	unaryLog = unaryKind(iota)
	unarySqrt
	unarySquare
	unaryTanh
	unarySigmoid
)

func (k unaryKind) String() string {
	switch k {
	case unaryLog:
		return "log"
	case unarySqrt:
		return "√"
	case unarySquare:
		return "sqr"
	case unaryTanh:
		return "tanh"
	case unarySigmoid:
		return "sigmoid"
	default:
		return fmt.Sprintf("unary(%d)", uint16(k))
	}
}

type unaryOp struct {
	kind unaryKind
}

func (o unaryOp) String() string { return o.kind.String() }

func (o unaryOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	x := inputs[0]
	var g *Node
	var err error
	switch o.kind {
	case unaryLog:
		g, err = HadamardDiv(grad, x)
	case unarySqrt:
		// d√x = 1/(2√x)
		var half *Node
		if half, err = MulScalar(grad, 0.5); err != nil {
			return nil, err
		}
		g, err = HadamardDiv(half, output)
	case unarySquare:
		var twice *Node
		if twice, err = MulScalar(x, 2.0); err != nil {
			return nil, err
		}
		g, err = HadamardProd(grad, twice)
	case unaryTanh:
		// dtanh = 1 - y^2
		var sqr, local *Node
		if sqr, err = Square(output); err != nil {
			return nil, err
		}
		if local, err = oneMinus(sqr); err != nil {
			return nil, err
		}
		g, err = HadamardProd(grad, local)
	case unarySigmoid:
		// dσ = y(1-y)
		var rest, local *Node
		if rest, err = oneMinus(output); err != nil {
			return nil, err
		}
		if local, err = HadamardProd(output, rest); err != nil {
			return nil, err
		}
		g, err = HadamardProd(grad, local)
	default:
		err = errors.Errorf("Unary operation %v is not handled", o.kind)
	}
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

func oneMinus(a *Node) (*Node, error) {
	neg, err := Neg(a)
	if err != nil {
		return nil, err
	}
	return AddScalar(neg, 1.0)
}

func unary(kind unaryKind, a *Node) (*Node, error) {
	ad := a.Data()
	out := make([]float64, len(ad))
	switch kind {
	case unaryLog:
		for i := range out {
			out[i] = math.Log(ad[i])
		}
	case unarySqrt:
		for i := range out {
			out[i] = math.Sqrt(ad[i])
		}
	case unarySquare:
		for i := range out {
			out[i] = ad[i] * ad[i]
		}
	case unaryTanh:
		for i := range out {
			out[i] = math.Tanh(ad[i])
		}
	case unarySigmoid:
		for i := range out {
			out[i] = 1.0 / (1.0 + math.Exp(-ad[i]))
		}
	default:
		return nil, errors.Errorf("Unary operation %v is not handled", kind)
	}
	return newResult(unaryOp{kind: kind}, a.shape, out, a), nil
}

// Log Natural logarithm
func Log(a *Node) (*Node, error) { return unary(unaryLog, a) }

// Sqrt Square root
func Sqrt(a *Node) (*Node, error) { return unary(unarySqrt, a) }

// Square x^2
func Square(a *Node) (*Node, error) { return unary(unarySquare, a) }

// Tanh Hyperbolic tangent
func Tanh(a *Node) (*Node, error) { return unary(unaryTanh, a) }

// Sigmoid Logistic function 1/(1+exp(-x))
func Sigmoid(a *Node) (*Node, error) { return unary(unarySigmoid, a) }

type leakyReluOp struct {
	alpha float64
}

func (o leakyReluOp) String() string { return fmt.Sprintf("leaky_relu(%v)", o.alpha) }

// Slope of leaky rectifier is piecewise constant, so mask is a constant and second derivative vanishes
func (o leakyReluOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	xd := inputs[0].Data()
	mask := make([]float64, len(xd))
	for i := range xd {
		if xd[i] > 0 {
			mask[i] = 1.0
		} else {
			mask[i] = o.alpha
		}
	}
	g, err := HadamardProd(grad, newConstant(inputs[0].shape, mask))
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

// LeakyRelu max(x, alpha*x) for alpha in [0;1)
func LeakyRelu(a *Node, alpha float64) (*Node, error) {
	ad := a.Data()
	out := make([]float64, len(ad))
	for i := range out {
		if ad[i] > 0 {
			out[i] = ad[i]
		} else {
			out[i] = alpha * ad[i]
		}
	}
	return newResult(leakyReluOp{alpha: alpha}, a.shape, out, a), nil
}
