package autograd

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// window Geometry of strided 2D convolution over NHWC image with "same" padding.
//
// Image of (height, width) is covered by (outHeight, outWidth) kernel positions where outHeight = ceil(height/strideH).
// Total padding is split the way TensorFlow does it: the smaller half goes before, the larger half goes after.
//
type window struct {
	batch, height, width, channels int
	kernelH, kernelW               int
	strideH, strideW               int
	padTop, padLeft                int
	outHeight, outWidth            int
}

func sameWindow(imageShape tensor.Shape, kernelShape tensor.Shape, stride []int) (window, error) {
	if len(imageShape) != 4 {
		return window{}, errors.Errorf("Expected NHWC image, but got shape %v", imageShape)
	}
	if len(kernelShape) != 2 || kernelShape[0] < 1 || kernelShape[1] < 1 {
		return window{}, errors.Errorf("Expected kernel shape (height, width), but got %v", kernelShape)
	}
	if len(stride) != 2 || stride[0] < 1 || stride[1] < 1 {
		return window{}, errors.Errorf("Expected positive stride (height, width), but got %v", stride)
	}
	w := window{
		batch:    imageShape[0],
		height:   imageShape[1],
		width:    imageShape[2],
		channels: imageShape[3],
		kernelH:  kernelShape[0],
		kernelW:  kernelShape[1],
		strideH:  stride[0],
		strideW:  stride[1],
	}
	if w.height < 1 || w.width < 1 || w.channels < 1 {
		return window{}, errors.Errorf("Image shape %v has empty dimension", imageShape)
	}
	w.outHeight = (w.height + w.strideH - 1) / w.strideH
	w.outWidth = (w.width + w.strideW - 1) / w.strideW
	w.padTop = samePadding(w.height, w.outHeight, w.kernelH, w.strideH) / 2
	w.padLeft = samePadding(w.width, w.outWidth, w.kernelW, w.strideW) / 2
	return w, nil
}

func samePadding(in, out, kernel, stride int) int {
	pad := (out-1)*stride + kernel - in
	if pad < 0 {
		return 0
	}
	return pad
}

func (w window) imageShape() tensor.Shape {
	return tensor.Shape{w.batch, w.height, w.width, w.channels}
}

func (w window) colsShape() tensor.Shape {
	return tensor.Shape{w.batch * w.outHeight * w.outWidth, w.kernelH * w.kernelW * w.channels}
}

// visit Calls fn for every (row of patches matrix, column offset, image offset) pair inside image bounds
func (w window) visit(fn func(colIdx, imIdx int)) {
	patch := w.kernelH * w.kernelW * w.channels
	row := 0
	for n := 0; n < w.batch; n++ {
		for oh := 0; oh < w.outHeight; oh++ {
			for ow := 0; ow < w.outWidth; ow++ {
				base := row * patch
				for kh := 0; kh < w.kernelH; kh++ {
					ih := oh*w.strideH + kh - w.padTop
					if ih < 0 || ih >= w.height {
						continue
					}
					for kw := 0; kw < w.kernelW; kw++ {
						iw := ow*w.strideW + kw - w.padLeft
						if iw < 0 || iw >= w.width {
							continue
						}
						colIdx := base + (kh*w.kernelW+kw)*w.channels
						imIdx := ((n*w.height+ih)*w.width + iw) * w.channels
						fn(colIdx, imIdx)
					}
				}
				row++
			}
		}
	}
}

// im2colOp and col2imOp are adjoint linear maps, so each one is the derivative of the other

type im2colOp struct {
	w window
}

func (o im2colOp) String() string {
	return fmt.Sprintf("im2col(%dx%d/%d,%d)", o.w.kernelH, o.w.kernelW, o.w.strideH, o.w.strideW)
}

func (o im2colOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := col2im(grad, o.w)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

type col2imOp struct {
	w window
}

func (o col2imOp) String() string {
	return fmt.Sprintf("col2im(%dx%d/%d,%d)", o.w.kernelH, o.w.kernelW, o.w.strideH, o.w.strideW)
}

func (o col2imOp) backward(inputs Nodes, output, grad *Node, wrt []bool) (Nodes, error) {
	g, err := im2col(grad, o.w)
	if err != nil {
		return nil, err
	}
	return Nodes{g}, nil
}

func im2col(a *Node, w window) (*Node, error) {
	if !sameShape(a.shape, w.imageShape()) {
		return nil, errors.Errorf("im2col expects image of shape %v, but got %v", w.imageShape(), a.shape)
	}
	ad := a.Data()
	colsShape := w.colsShape()
	out := make([]float64, colsShape.TotalSize())
	c := w.channels
	w.visit(func(colIdx, imIdx int) {
		copy(out[colIdx:colIdx+c], ad[imIdx:imIdx+c])
	})
	return newResult(im2colOp{w: w}, colsShape, out, a), nil
}

func col2im(a *Node, w window) (*Node, error) {
	if !sameShape(a.shape, w.colsShape()) {
		return nil, errors.Errorf("col2im expects patches of shape %v, but got %v", w.colsShape(), a.shape)
	}
	ad := a.Data()
	imShape := w.imageShape()
	out := make([]float64, imShape.TotalSize())
	c := w.channels
	w.visit(func(colIdx, imIdx int) {
		dst := out[imIdx : imIdx+c]
		for i, v := range ad[colIdx : colIdx+c] {
			dst[i] += v
		}
	})
	return newResult(col2imOp{w: w}, imShape, out, a), nil
}

// Im2Col Extracts "same"-padded patches of NHWC image: (N, H, W, C) => (N*OH*OW, KH*KW*C)
func Im2Col(a *Node, kernelShape tensor.Shape, stride []int) (*Node, error) {
	w, err := sameWindow(a.shape, kernelShape, stride)
	if err != nil {
		return nil, err
	}
	return im2col(a, w)
}

// Col2Im Scatters patches back to NHWC image of provided shape summing overlaps. Adjoint of Im2Col
func Col2Im(a *Node, imageShape, kernelShape tensor.Shape, stride []int) (*Node, error) {
	w, err := sameWindow(imageShape, kernelShape, stride)
	if err != nil {
		return nil, err
	}
	return col2im(a, w)
}

// Conv2d Strided 2D convolution of NHWC image with "same" padding.
//
// im - (N, H, W, Cin) image
// filter - (KH*KW*Cin, Cout) kernel, rows ordered as (kh, kw, cin)
// kernelShape - (KH, KW)
// stride - (strideH, strideW)
// Output has shape (N, ceil(H/strideH), ceil(W/strideW), Cout)
//
func Conv2d(im, filter *Node, kernelShape tensor.Shape, stride []int) (*Node, error) {
	w, err := sameWindow(im.shape, kernelShape, stride)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare convolution window")
	}
	if filter.Dims() != 2 || filter.shape[0] != w.kernelH*w.kernelW*w.channels {
		return nil, errors.Errorf("Filter of shape %v does not match image %v and kernel %v", filter.shape, im.shape, kernelShape)
	}
	cols, err := im2col(im, w)
	if err != nil {
		return nil, errors.Wrap(err, "Can't extract patches")
	}
	prod, err := Mul(cols, filter)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply patches and filter")
	}
	return Reshape(prod, tensor.Shape{w.batch, w.outHeight, w.outWidth, filter.shape[1]})
}

// Conv2dTranspose Fractionally-strided 2D convolution of NHWC image (gradient of Conv2d with respect to its input).
//
// im - (N, H, W, Cin) image
// filter - (Cin, KH*KW*Cout) kernel, columns ordered as (kh, kw, cout)
// kernelShape - (KH, KW)
// stride - (strideH, strideW)
// Output has shape (N, H*strideH, W*strideW, Cout), which matches "same" padding of TensorFlow
//
func Conv2dTranspose(im, filter *Node, kernelShape tensor.Shape, stride []int) (*Node, error) {
	if im.Dims() != 4 {
		return nil, errors.Errorf("Expected NHWC image, but got shape %v", im.shape)
	}
	if len(kernelShape) != 2 || len(stride) != 2 {
		return nil, errors.Errorf("Expected 2D kernel shape and stride, but got %v and %v", kernelShape, stride)
	}
	n, h, wd, cin := im.shape[0], im.shape[1], im.shape[2], im.shape[3]
	patch := kernelShape[0] * kernelShape[1]
	if filter.Dims() != 2 || filter.shape[0] != cin || patch == 0 || filter.shape[1]%patch != 0 {
		return nil, errors.Errorf("Filter of shape %v does not match image %v and kernel %v", filter.shape, im.shape, kernelShape)
	}
	cout := filter.shape[1] / patch
	w, err := sameWindow(tensor.Shape{n, h * stride[0], wd * stride[1], cout}, kernelShape, stride)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare convolution window")
	}
	if w.outHeight != h || w.outWidth != wd {
		return nil, errors.Errorf("Transposed window %dx%d does not cover image %v", w.outHeight, w.outWidth, im.shape)
	}
	flat, err := Reshape(im, tensor.Shape{n * h * wd, cin})
	if err != nil {
		return nil, errors.Wrap(err, "Can't flatten image")
	}
	cols, err := Mul(flat, filter)
	if err != nil {
		return nil, errors.Wrap(err, "Can't multiply image and filter")
	}
	return col2im(cols, w)
}
