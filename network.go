package conv_gan

import (
	"fmt"

	"github.com/LdDl/conv-gan-go/autograd"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Network Abstraction for neural network.
//
// Name - prefix for learnables' names
// Layers - simple sequence of layers
// inputShape - shape of single example (without batch axis) which network accepts
//
type Network struct {
	Name       string
	Layers     []*Layer
	inputShape tensor.Shape
}

// InputShape Returns shape of single example expected by network
func (net *Network) InputShape() tensor.Shape {
	return net.inputShape.Clone()
}

// Learnables Returns learnables nodes
func (net *Network) Learnables() autograd.Nodes {
	learnables := make(autograd.Nodes, 0, 2*len(net.Layers))
	for _, l := range net.Layers {
		if l != nil {
			learnables = append(learnables, l.Learnables()...)
		}
	}
	return learnables
}

// Fwd Feedforward input through every layer and returns activated output of last one
//
// input - Input node. First axis is batch axis, the rest must match network's input shape (if defined)
//
func (net *Network) Fwd(input *autograd.Node) (*autograd.Node, error) {
	networkName := "network"
	if net.Name != "" {
		networkName = net.Name
	}
	if len(net.Layers) == 0 {
		return nil, fmt.Errorf("%s must have one layer atleast", networkName)
	}
	if err := net.checkInput(input); err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("[%s]", networkName))
	}
	lastActivatedLayer := input
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("%s's layer #%d is nil", networkName, i)
		}
		layerNonActivated, err := l.Fwd(lastActivatedLayer)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("[%s, Layer #%d] Can't feedforward input before activation", networkName, i))
		}
		if l.Activation == nil {
			lastActivatedLayer = layerNonActivated
			continue
		}
		layerActivated, err := l.Activation(layerNonActivated)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't apply activation function to non-activated output of %s's layer #%d", networkName, i))
		}
		lastActivatedLayer = layerActivated
	}
	return lastActivatedLayer, nil
}

func (net *Network) checkInput(input *autograd.Node) error {
	if input == nil {
		return fmt.Errorf("Input node is nil")
	}
	if len(net.inputShape) == 0 {
		return nil
	}
	shp := input.Shape()
	if len(shp) != len(net.inputShape)+1 {
		return errors.Errorf("Input must have shape (batch, %v), but got %v", net.inputShape, shp)
	}
	for i := range net.inputShape {
		if shp[i+1] != net.inputShape[i] {
			return errors.Errorf("Input must have shape (batch, %v), but got %v", net.inputShape, shp)
		}
	}
	return nil
}

// Clone Returns deep copy of network: same topology, own learnables with same values
func (net *Network) Clone() (*Network, error) {
	copied := &Network{
		Name:       net.Name,
		Layers:     make([]*Layer, len(net.Layers)),
		inputShape: net.inputShape.Clone(),
	}
	for i, l := range net.Layers {
		if l == nil {
			return nil, fmt.Errorf("Network's layer #%d is nil", i)
		}
		layerCopy, err := l.clone("_copy")
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't copy layer #%d", i))
		}
		copied.Layers[i] = layerCopy
	}
	return copied, nil
}
