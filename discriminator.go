package conv_gan

import (
	"fmt"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

var (
	// Channel depths of downsampling stages
	discriminatorDepths = []int{64, 128, 256, 512}
	downsamplingStride  = 2
)

// DiscriminatorNet Abstraction for discriminator (critic in terms of WGAN) part of GAN. It's simple neural network actually.
type DiscriminatorNet struct {
	private *Network
	scheme  Scheme
}

// Discriminator Constructor for DiscriminatorNet with custom layers
func Discriminator(scheme Scheme, Layers ...*Layer) *DiscriminatorNet {
	return &DiscriminatorNet{
		private: &Network{
			Name:   "discriminator",
			Layers: Layers,
		},
		scheme: scheme,
	}
}

// NewDiscriminator Builds discriminator which maps (batch, H, W, 3) images to (batch, 1) scores.
//
// Four stages of [3x3 convolution with stride 2 + LeakyReLU(0.2)] with 64, 128, 256, 512 channels,
// global average pooling and single dense unit. Schemes differ in final activation only:
//	SchemeDCGAN - sigmoid, so output is probability of being real
//	SchemeWGANGP - none, so output is unbounded critic score
//
// inputShape - (H, W, C) shape of single image
//
func NewDiscriminator(inputShape tensor.Shape, scheme Scheme) (*DiscriminatorNet, error) {
	if err := checkImageShape(inputShape); err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	outActivation, err := scheme.outputActivation()
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	layers := make([]*Layer, 0, len(discriminatorDepths)+2)
	channelsIn := inputShape[2]
	for i, depth := range discriminatorDepths {
		w, err := newLearnable(fmt.Sprintf("discriminator_w%d", i), gorgonia.GlorotU(1.0), kernelSize*kernelSize*channelsIn, depth)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator] Can't init weights of layer #%d", i))
		}
		b, err := newLearnable(fmt.Sprintf("discriminator_b%d", i), gorgonia.Zeroes(), depth)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator] Can't init bias of layer #%d", i))
		}
		layers = append(layers, &Layer{
			WeightNode:   w,
			BiasNode:     b,
			Type:         LayerConvolutional,
			Activation:   LeakyRectify(leakySlope),
			KernelHeight: kernelSize,
			KernelWidth:  kernelSize,
			Stride:       []int{downsamplingStride, downsamplingStride},
		})
		channelsIn = depth
	}
	layers = append(layers, &Layer{
		Type:       LayerGlobalAveragePool,
		Activation: NoActivation,
	})
	last := len(discriminatorDepths) + 1
	w, err := newLearnable(fmt.Sprintf("discriminator_w%d", last), gorgonia.GlorotU(1.0), channelsIn, 1)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator] Can't init weights of layer #%d", last))
	}
	b, err := newLearnable(fmt.Sprintf("discriminator_b%d", last), gorgonia.Zeroes(), 1)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[Discriminator] Can't init bias of layer #%d", last))
	}
	layers = append(layers, &Layer{
		WeightNode: w,
		BiasNode:   b,
		Type:       LayerLinear,
		Activation: outActivation,
	})
	return &DiscriminatorNet{
		private: &Network{
			Name:       "discriminator",
			Layers:     layers,
			inputShape: inputShape.Clone(),
		},
		scheme: scheme,
	}, nil
}

// Scheme Returns training scheme discriminator was built for
func (net *DiscriminatorNet) Scheme() Scheme {
	return net.scheme
}

// InputShape Returns shape of single image
func (net *DiscriminatorNet) InputShape() tensor.Shape {
	return net.private.InputShape()
}

// Learnables Returns learnables nodes
func (net *DiscriminatorNet) Learnables() autograd.Nodes {
	return net.private.Learnables()
}

// Fwd Scores provided images
//
// input - (batch, H, W, 3) images node
//
func (net *DiscriminatorNet) Fwd(input *autograd.Node) (*autograd.Node, error) {
	out, err := net.private.Fwd(input)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return out, nil
}

// Score Runs discriminator on provided images and returns (batch, 1) scores as plain tensor
func (net *DiscriminatorNet) Score(images *tensor.Dense) (*tensor.Dense, error) {
	input, err := autograd.NewConstant(images)
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator] Can't wrap images")
	}
	out, err := net.Fwd(input)
	if err != nil {
		return nil, err
	}
	return out.Detach().Value(), nil
}

// Clone Returns deep copy of discriminator
func (net *DiscriminatorNet) Clone() (*DiscriminatorNet, error) {
	copied, err := net.private.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "[Discriminator]")
	}
	return &DiscriminatorNet{private: copied, scheme: net.scheme}, nil
}
