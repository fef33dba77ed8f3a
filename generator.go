package conv_gan

import (
	"fmt"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	// Channel depths of upsampling stages
	generatorDepths = []int{512, 256, 128, 64}
	// Number of channels of generated image (RGB)
	imageChannels = 3
	// Every stride-2 stage doubles spatial dimensions
	upsamplingStride = 2
)

// GeneratorNet Abstraction for generator part of GAN. It's simple neural network actually.
type GeneratorNet struct {
	private *Network
}

// Generator Constructor for GeneratorNet with custom layers
func Generator(Layers ...*Layer) *GeneratorNet {
	return &GeneratorNet{private: &Network{
		Name:   "generator",
		Layers: Layers,
	}}
}

// NewGenerator Builds generator which maps (batch, H, W, C) noise to (batch, 16*H, 16*W, 3) images.
//
// Four stages of [3x3 transposed convolution with stride 2 + LeakyReLU(0.2)] with 512, 256, 128, 64 channels,
// then 3x3 convolution to 3 channels with tanh so pixels are in [-1;1]
//
// inputShape - (H, W, C) shape of single noise example
//
func NewGenerator(inputShape tensor.Shape) (*GeneratorNet, error) {
	if err := checkImageShape(inputShape); err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	layers := make([]*Layer, 0, len(generatorDepths)+1)
	channelsIn := inputShape[2]
	for i, depth := range generatorDepths {
		w, err := newLearnable(fmt.Sprintf("generator_w%d", i), gorgonia.GlorotU(1.0), channelsIn, kernelSize*kernelSize*depth)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Generator] Can't init weights of layer #%d", i))
		}
		b, err := newLearnable(fmt.Sprintf("generator_b%d", i), gorgonia.Zeroes(), depth)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Generator] Can't init bias of layer #%d", i))
		}
		layers = append(layers, &Layer{
			WeightNode:   w,
			BiasNode:     b,
			Type:         LayerConvolutionalTranspose,
			Activation:   LeakyRectify(leakySlope),
			KernelHeight: kernelSize,
			KernelWidth:  kernelSize,
			Stride:       []int{upsamplingStride, upsamplingStride},
		})
		channelsIn = depth
	}
	last := len(generatorDepths)
	w, err := newLearnable(fmt.Sprintf("generator_w%d", last), gorgonia.GlorotU(1.0), kernelSize*kernelSize*channelsIn, imageChannels)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Generator] Can't init weights of layer #%d", last))
	}
	b, err := newLearnable(fmt.Sprintf("generator_b%d", last), gorgonia.Zeroes(), imageChannels)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Generator] Can't init bias of layer #%d", last))
	}
	layers = append(layers, &Layer{
		WeightNode:   w,
		BiasNode:     b,
		Type:         LayerConvolutional,
		Activation:   Tanh,
		KernelHeight: kernelSize,
		KernelWidth:  kernelSize,
		Stride:       []int{1, 1},
	})
	return &GeneratorNet{private: &Network{
		Name:       "generator",
		Layers:     layers,
		inputShape: inputShape.Clone(),
	}}, nil
}

// InputShape Returns shape of single noise example
func (net *GeneratorNet) InputShape() tensor.Shape {
	return net.private.InputShape()
}

// OutputShape Returns shape of single generated image. Works for networks built by NewGenerator only
func (net *GeneratorNet) OutputShape() tensor.Shape {
	in := net.private.inputShape
	if len(in) != 3 {
		return nil
	}
	scale := 1
	for range generatorDepths {
		scale *= upsamplingStride
	}
	return tensor.Shape{in[0] * scale, in[1] * scale, imageChannels}
}

// Learnables Returns learnables nodes
func (net *GeneratorNet) Learnables() autograd.Nodes {
	return net.private.Learnables()
}

// Fwd Generates images for provided noise
//
// input - (batch, H, W, C) noise node
//
func (net *GeneratorNet) Fwd(input *autograd.Node) (*autograd.Node, error) {
	out, err := net.private.Fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return out, nil
}

// Generate Runs generator on provided noise and returns images as plain tensor
func (net *GeneratorNet) Generate(noise *tensor.Dense) (*tensor.Dense, error) {
	input, err := autograd.NewConstant(noise)
	if err != nil {
		return nil, errors.Wrap(err, "[Generator] Can't wrap noise")
	}
	out, err := net.Fwd(input)
	if err != nil {
		return nil, err
	}
	return out.Detach().Value(), nil
}

// Clone Returns deep copy of generator
func (net *GeneratorNet) Clone() (*GeneratorNet, error) {
	copied, err := net.private.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "[Generator]")
	}
	return &GeneratorNet{private: copied}, nil
}
