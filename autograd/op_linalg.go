package autograd

import (
	"fmt"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gorgonia.org/tensor"
)

type matMulOp struct {
	transA, transB bool
}

func (o matMulOp) String() string {
	return fmt.Sprintf("matmul(%s, %s)", transposeMark(o.transA), transposeMark(o.transB))
}

func transposeMark(t bool) string {
	if t {
		return "Aᵀ"
	}
	return "A"
}

// backward For C = op(A)·op(B):
//
//	(A,  B):  dA = G·Bᵀ,   dB = Aᵀ·G
//	(A,  Bᵀ): dA = G·B,    dB = Gᵀ·A
//	(Aᵀ, B):  dA = B·Gᵀ,   dB = A·G
//	(Aᵀ, Bᵀ): dA = Bᵀ·Gᵀ,  dB = Gᵀ·Aᵀ
//
func (o matMulOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	a, b := inputs[0], inputs[1]
	retVal := make(Nodes, 2)
	var err error
	switch {
	case !o.transA && !o.transB:
		if wrt[0] {
			retVal[0], err = matMul(grad, b, false, true)
		}
		if err == nil && wrt[1] {
			retVal[1], err = matMul(a, grad, true, false)
		}
	case !o.transA && o.transB:
		if wrt[0] {
			retVal[0], err = matMul(grad, b, false, false)
		}
		if err == nil && wrt[1] {
			retVal[1], err = matMul(grad, a, true, false)
		}
	case o.transA && !o.transB:
		if wrt[0] {
			retVal[0], err = matMul(b, grad, false, true)
		}
		if err == nil && wrt[1] {
			retVal[1], err = matMul(a, grad, false, false)
		}
	default:
		if wrt[0] {
			retVal[0], err = matMul(b, grad, true, true)
		}
		if err == nil && wrt[1] {
			retVal[1], err = matMul(grad, a, true, true)
		}
	}
	if err != nil {
		return nil, err
	}
	return retVal, nil
}

// Mul Matrix product of (M, K) and (K, N) nodes
func Mul(a, b *Node) (*Node, error) {
	return matMul(a, b, false, false)
}

func matMul(a, b *Node, transA, transB bool) (*Node, error) {
	if a.Dims() != 2 || b.Dims() != 2 {
		return nil, errors.Errorf("Matrix product expects matrices, but got %v and %v", a.shape, b.shape)
	}
	m, k := a.shape[0], a.shape[1]
	if transA {
		m, k = k, m
	}
	kb, n := b.shape[0], b.shape[1]
	if transB {
		kb, n = n, kb
	}
	if k != kb {
		return nil, errors.Errorf("Shape mismatch for matrix product: %v%s vs %v%s", a.shape, transposeSuffix(transA), b.shape, transposeSuffix(transB))
	}
	out := make([]float64, m*n)
	if m > 0 && n > 0 && k > 0 {
		blas64.Gemm(blasTranspose(transA), blasTranspose(transB), 1.0,
			blas64.General{Rows: a.shape[0], Cols: a.shape[1], Stride: a.shape[1], Data: a.Data()},
			blas64.General{Rows: b.shape[0], Cols: b.shape[1], Stride: b.shape[1], Data: b.Data()},
			0.0,
			blas64.General{Rows: m, Cols: n, Stride: n, Data: out},
		)
	}
	return newResult(matMulOp{transA: transA, transB: transB}, tensor.Shape{m, n}, out, a, b), nil
}

func transposeSuffix(t bool) string {
	if t {
		return "ᵀ"
	}
	return ""
}

func blasTranspose(t bool) blas.Transpose {
	if t {
		return blas.Trans
	}
	return blas.NoTrans
}
