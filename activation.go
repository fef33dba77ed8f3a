package conv_gan

import (
	"github.com/LdDl/conv-gan-go/autograd"
)

// ActivationFunc Just an alias to autograd's element-wise functions
type ActivationFunc func(a *autograd.Node) (*autograd.Node, error)

func NoActivation(a *autograd.Node) (*autograd.Node, error) { return a, nil }
func Tanh(a *autograd.Node) (*autograd.Node, error)         { return autograd.Tanh(a) }
func Sigmoid(a *autograd.Node) (*autograd.Node, error)      { return autograd.Sigmoid(a) }

// LeakyRectify Returns leaky rectifier with provided negative slope
func LeakyRectify(alpha float64) ActivationFunc {
	return func(a *autograd.Node) (*autograd.Node, error) {
		return autograd.LeakyRelu(a, alpha)
	}
}
