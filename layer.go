package conv_gan

import (
	"fmt"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layer Just an alias to Weight+Bias+ActivationFunction combo
//
// WeightNode - kernel (convolutions) or weights matrix (linear layer). Shapes:
//	LayerLinear - (in, out)
//	LayerConvolutional - (KernelHeight*KernelWidth*Cin, Cout)
//	LayerConvolutionalTranspose - (Cin, KernelHeight*KernelWidth*Cout)
// BiasNode - (out) bias, optional
// Stride - (strideH, strideW) for convolutions. Padding is always "same"
//
type Layer struct {
	WeightNode *autograd.Node
	BiasNode   *autograd.Node
	Activation ActivationFunc
	Type       LayerType

	KernelHeight int
	KernelWidth  int
	Stride       []int
}

type LayerType uint16

const (
	LayerLinear = LayerType(iota)
	LayerConvolutional
	LayerConvolutionalTranspose
	LayerGlobalAveragePool
)

func (lt LayerType) String() string {
	switch lt {
	case LayerLinear:
		return "linear"
	case LayerConvolutional:
		return "conv2d"
	case LayerConvolutionalTranspose:
		return "conv2d_transpose"
	case LayerGlobalAveragePool:
		return "global_average_pool2d"
	default:
		return fmt.Sprintf("layer_type(%d)", uint16(lt))
	}
}

var (
	allowedNoWeights = []LayerType{LayerGlobalAveragePool}
)

func noWeightsAllowed(checkType LayerType) bool {
	return checkLayerType(checkType, allowedNoWeights...)
}

func checkLayerType(checkType LayerType, t ...LayerType) bool {
	for _, typeOf := range t {
		if checkType == typeOf {
			return true
		}
	}
	return false
}

// Fwd Feedforward input through layer. Activation is not applied here
func (l *Layer) Fwd(input *autograd.Node) (*autograd.Node, error) {
	if l.WeightNode == nil && !noWeightsAllowed(l.Type) {
		return nil, fmt.Errorf("Layer of type '%s' has nil weight node", l.Type)
	}
	var nonBiased *autograd.Node
	var err error
	switch l.Type {
	case LayerLinear:
		nonBiased, err = autograd.Mul(input, l.WeightNode)
		if err != nil {
			return nil, errors.Wrap(err, "Can't multiply input and weights")
		}
	case LayerConvolutional:
		nonBiased, err = autograd.Conv2d(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D] input by kernel")
		}
	case LayerConvolutionalTranspose:
		nonBiased, err = autograd.Conv2dTranspose(input, l.WeightNode, tensor.Shape{l.KernelHeight, l.KernelWidth}, l.Stride)
		if err != nil {
			return nil, errors.Wrap(err, "Can't convolve[2D, transposed] input by kernel")
		}
	case LayerGlobalAveragePool:
		nonBiased, err = autograd.GlobalAveragePool2D(input)
		if err != nil {
			return nil, errors.Wrap(err, "Can't do global average pooling[2D]")
		}
	default:
		return nil, fmt.Errorf("Layer's type '%d' (uint16) is not handled", l.Type)
	}
	if l.BiasNode == nil {
		return nonBiased, nil
	}
	biased, err := autograd.AddBias(nonBiased, l.BiasNode)
	if err != nil {
		return nil, errors.Wrap(err, "Can't add bias to non-activated output")
	}
	return biased, nil
}

// Learnables Returns weight and bias nodes (if they are present)
func (l *Layer) Learnables() autograd.Nodes {
	learnables := make(autograd.Nodes, 0, 2)
	if l.WeightNode != nil {
		learnables = append(learnables, l.WeightNode)
	}
	if l.BiasNode != nil {
		learnables = append(learnables, l.BiasNode)
	}
	return learnables
}

// clone Creates copy of layer with its own learnables holding same values
func (l *Layer) clone(suffix string) (*Layer, error) {
	copied := &Layer{
		Activation:   l.Activation,
		Type:         l.Type,
		KernelHeight: l.KernelHeight,
		KernelWidth:  l.KernelWidth,
		Stride:       append([]int(nil), l.Stride...),
	}
	var err error
	if l.WeightNode != nil {
		copied.WeightNode, err = autograd.NewVariable(l.WeightNode.Name()+suffix, l.WeightNode.Value().Clone().(*tensor.Dense))
		if err != nil {
			return nil, errors.Wrap(err, "Can't copy weights")
		}
	}
	if l.BiasNode != nil {
		copied.BiasNode, err = autograd.NewVariable(l.BiasNode.Name()+suffix, l.BiasNode.Value().Clone().(*tensor.Dense))
		if err != nil {
			return nil, errors.Wrap(err, "Can't copy bias")
		}
	}
	return copied, nil
}
