package autograd

import (
	"fmt"

	"github.com/pkg/errors"
)

// Grad Computes symbolic gradients of scalar cost with respect to provided nodes.
//
// Returned gradients are ordinary nodes: when they depend on variables they record their own graph,
// so they can be differentiated once again (this is how gradient penalties are built).
// Only nodes lying on a path from some wrt node to cost are visited. Gradient of node which does not
// affect cost at all is exact zero of the node's shape.
//
func Grad(cost *Node, wrt ...*Node) (Nodes, error) {
	if cost == nil {
		return nil, fmt.Errorf("Cost node is nil")
	}
	if cost.Size() != 1 {
		return nil, errors.Errorf("Cost must be single-element node, but got shape %v", cost.shape)
	}
	targets := make(map[*Node]bool, len(wrt))
	for i, w := range wrt {
		if w == nil {
			return nil, errors.Errorf("Node #%d to differentiate with respect to is nil", i)
		}
		targets[w] = true
	}

	// Post-order DFS: inputs come before consumers
	leads := make(map[*Node]bool)
	visited := make(map[*Node]bool)
	order := make(Nodes, 0, 64)
	var visit func(n *Node) bool
	visit = func(n *Node) bool {
		if visited[n] {
			return leads[n]
		}
		visited[n] = true
		l := targets[n]
		for _, in := range n.inputs {
			if visit(in) {
				l = true
			}
		}
		leads[n] = l
		if l {
			order = append(order, n)
		}
		return l
	}
	visit(cost)

	grads := make(map[*Node]*Node, len(order))
	grads[cost] = Ones(cost.shape...)
	for i := len(order) - 1; i >= 0; i-- {
		n := order[i]
		g, ok := grads[n]
		if !ok || n.op == nil {
			continue
		}
		mask := make([]bool, len(n.inputs))
		anyInput := false
		for j, in := range n.inputs {
			mask[j] = leads[in] && in.requiresGrad
			anyInput = anyInput || mask[j]
		}
		if !anyInput {
			continue
		}
		inputGrads, err := n.op.backward(n.inputs, n, g, mask)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't differentiate %v", n.op))
		}
		for j, in := range n.inputs {
			if !mask[j] || inputGrads[j] == nil {
				continue
			}
			prev, ok := grads[in]
			if !ok {
				grads[in] = inputGrads[j]
				continue
			}
			sum, err := Add(prev, inputGrads[j])
			if err != nil {
				return nil, errors.Wrap(err, fmt.Sprintf("Can't accumulate gradient for %v", in))
			}
			grads[in] = sum
		}
	}

	retVal := make(Nodes, len(wrt))
	for i, w := range wrt {
		if g, ok := grads[w]; ok {
			retVal[i] = g
		} else {
			retVal[i] = Zeros(w.shape...)
		}
	}
	return retVal, nil
}
