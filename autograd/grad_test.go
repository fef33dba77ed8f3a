package autograd

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

const (
	fdStep      = 1e-5
	fdTolerance = 1e-6
)

// randomVariable Variable with values in ±[low; high]
func randomVariable(t *testing.T, rng *rand.Rand, name string, low, high float64, shape ...int) *Node {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		v := low + (high-low)*rng.Float64()
		if rng.Intn(2) == 0 {
			v = -v
		}
		data[i] = v
	}
	v, err := NewVariable(name, tensor.New(tensor.WithShape(shape...), tensor.WithBacking(data)))
	require.NoError(t, err)
	return v
}

func randomConstant(rng *rand.Rand, shape ...int) *Node {
	data := make([]float64, tensor.Shape(shape).TotalSize())
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return newConstant(tensor.Shape(shape), data)
}

// projectedCost Reduces node to scalar by weighted sum with fixed random weights, so every output element matters
func projectedCost(out *Node, weights *Node) (*Node, error) {
	prod, err := HadamardProd(out, weights)
	if err != nil {
		return nil, err
	}
	return Sum(prod)
}

// checkGradients Compares symbolic gradients of scalar function with central finite differences
func checkGradients(t *testing.T, f func() (*Node, error), vars ...*Node) {
	cost, err := f()
	require.NoError(t, err)
	grads, err := Grad(cost, vars...)
	require.NoError(t, err)
	require.Len(t, grads, len(vars))
	for i, v := range vars {
		require.Equal(t, v.Shape(), grads[i].Shape(), "gradient shape of %s", v)
		data := v.Value().Float64s()
		analytic := grads[i].Data()
		for j := range data {
			orig := data[j]
			data[j] = orig + fdStep
			plus, err := f()
			require.NoError(t, err)
			data[j] = orig - fdStep
			minus, err := f()
			require.NoError(t, err)
			data[j] = orig
			numeric := (plus.ScalarValue() - minus.ScalarValue()) / (2 * fdStep)
			tolerance := fdTolerance * math.Max(1.0, math.Abs(numeric))
			assert.InDelta(t, numeric, analytic[j], tolerance, "d/d%s[%d]", v.Name(), j)
		}
	}
}

func TestGradRequiresScalarCost(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	x := randomVariable(t, rng, "x", 0.1, 1.0, 2, 3)
	_, err := Grad(x, x)
	assert.Error(t, err)

	_, err = Grad(nil, x)
	assert.Error(t, err)
}

func TestGradUnreachableIsZero(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	a := randomVariable(t, rng, "a", 0.1, 1.0, 2, 3)
	b := randomVariable(t, rng, "b", 0.1, 1.0, 4)
	sqr, err := Square(a)
	require.NoError(t, err)
	cost, err := Sum(sqr)
	require.NoError(t, err)

	grads, err := Grad(cost, a, b)
	require.NoError(t, err)
	require.Len(t, grads, 2)

	assert.Equal(t, tensor.Shape{4}, grads[1].Shape())
	for _, v := range grads[1].Data() {
		assert.Equal(t, 0.0, v)
	}
	for i, v := range a.Data() {
		assert.InDelta(t, 2*v, grads[0].Data()[i], 1e-12)
	}
}

func TestGradAccumulatesSharedInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	x := randomVariable(t, rng, "x", 0.1, 1.0, 5)
	// x*x + x => 2x + 1
	prod, err := HadamardProd(x, x)
	require.NoError(t, err)
	sum, err := Add(prod, x)
	require.NoError(t, err)
	cost, err := Sum(sum)
	require.NoError(t, err)
	grads, err := Grad(cost, x)
	require.NoError(t, err)
	for i, v := range x.Data() {
		assert.InDelta(t, 2*v+1, grads[0].Data()[i], 1e-12)
	}
}

func TestSecondOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	x := randomVariable(t, rng, "x", 0.1, 1.0, 3, 2)
	c := randomConstant(rng, 3, 2)
	// f = Σx³, ∂f/∂x = 3x², Σc⊙3x² differentiates to 6cx
	sqr, err := Square(x)
	require.NoError(t, err)
	cube, err := HadamardProd(sqr, x)
	require.NoError(t, err)
	f, err := Sum(cube)
	require.NoError(t, err)
	first, err := Grad(f, x)
	require.NoError(t, err)
	assert.True(t, first[0].RequiresGrad())
	for i, v := range x.Data() {
		assert.InDelta(t, 3*v*v, first[0].Data()[i], 1e-12)
	}
	projected, err := projectedCost(first[0], c)
	require.NoError(t, err)
	second, err := Grad(projected, x)
	require.NoError(t, err)
	for i, v := range x.Data() {
		assert.InDelta(t, 6*v*c.Data()[i], second[0].Data()[i], 1e-12)
	}
}

// Gradient of squared input-gradient norm of small convolutional scorer with respect to its kernel,
// which is the same kind of double backward gradient penalty needs
func TestSecondOrderThroughConvolution(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	image := randomConstant(rng, 2, 5, 5, 2)
	kernel := randomVariable(t, rng, "kernel", 0.1, 0.5, 3*3*2, 3)
	dense := randomVariable(t, rng, "dense", 0.1, 0.5, 3, 1)

	f := func() (*Node, error) {
		x := Watch(image)
		conv, err := Conv2d(x, kernel, tensor.Shape{3, 3}, []int{2, 2})
		if err != nil {
			return nil, err
		}
		act, err := Tanh(conv)
		if err != nil {
			return nil, err
		}
		pooled, err := GlobalAveragePool2D(act)
		if err != nil {
			return nil, err
		}
		scores, err := Mul(pooled, dense)
		if err != nil {
			return nil, err
		}
		total, err := Sum(scores)
		if err != nil {
			return nil, err
		}
		grads, err := Grad(total, x)
		if err != nil {
			return nil, err
		}
		sqr, err := Square(grads[0])
		if err != nil {
			return nil, err
		}
		perExample, err := SumRows(sqr)
		if err != nil {
			return nil, err
		}
		norm, err := Sqrt(perExample)
		if err != nil {
			return nil, err
		}
		return Mean(norm)
	}
	checkGradients(t, f, kernel, dense)
}

func TestWatchStopsGradient(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	x := randomVariable(t, rng, "x", 0.1, 1.0, 4)
	doubled, err := MulScalar(x, 2.0)
	require.NoError(t, err)
	watched := Watch(doubled)
	assert.True(t, watched.RequiresGrad())
	assert.False(t, watched.IsVariable())
	sqr, err := Square(watched)
	require.NoError(t, err)
	cost, err := Sum(sqr)
	require.NoError(t, err)

	grads, err := Grad(cost, watched, x)
	require.NoError(t, err)
	for i, v := range doubled.Data() {
		assert.InDelta(t, 2*v, grads[0].Data()[i], 1e-12)
		assert.Equal(t, 0.0, grads[1].Data()[i])
	}
}

func TestVariableSharesMemory(t *testing.T) {
	value := tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]float64{1, 2, 3, 4}))
	v, err := NewVariable("v", value)
	require.NoError(t, err)
	assert.True(t, v.IsVariable())
	assert.True(t, v.RequiresGrad())

	value.Float64s()[0] = 10
	assert.Equal(t, 10.0, v.Data()[0])

	c, err := NewConstant(value)
	require.NoError(t, err)
	value.Float64s()[0] = 20
	assert.Equal(t, 10.0, c.Data()[0])
	assert.False(t, c.RequiresGrad())

	_, err = NewVariable("scalar", tensor.New(tensor.FromScalar(1.0)))
	assert.Error(t, err)
	_, err = NewVariable("ints", tensor.New(tensor.WithShape(2), tensor.WithBacking([]int{1, 2})))
	assert.Error(t, err)
}

func TestConstantsDoNotRecordGraph(t *testing.T) {
	a := Ones(2, 2)
	b := Full(3.0, 2, 2)
	sum, err := Add(a, b)
	require.NoError(t, err)
	assert.False(t, sum.RequiresGrad())
	assert.Nil(t, sum.op)
	assert.Equal(t, []float64{4, 4, 4, 4}, sum.Data())
}

// Cross-check with gorgonia's own symbolic differentiation on dense layer with sigmoid
func TestGradMatchesGorgonia(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	xData := make([]float64, 4*3)
	for i := range xData {
		xData[i] = rng.NormFloat64()
	}
	wData := make([]float64, 3*2)
	for i := range wData {
		wData[i] = rng.NormFloat64()
	}

	g := gorgonia.NewGraph()
	xG := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(4, 3), gorgonia.WithName("x"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(4, 3), tensor.WithBacking(append([]float64(nil), xData...)))))
	wG := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(3, 2), gorgonia.WithName("w"),
		gorgonia.WithValue(tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(append([]float64(nil), wData...)))))
	prodG := gorgonia.Must(gorgonia.Mul(xG, wG))
	actG := gorgonia.Must(gorgonia.Sigmoid(prodG))
	costG := gorgonia.Must(gorgonia.Mean(actG))
	_, err := gorgonia.Grad(costG, wG)
	require.NoError(t, err)
	vm := gorgonia.NewTapeMachine(g, gorgonia.BindDualValues(wG))
	defer vm.Close()
	require.NoError(t, vm.RunAll())
	gradG, err := wG.Grad()
	require.NoError(t, err)

	x, err := NewConstantFrom(tensor.Shape{4, 3}, append([]float64(nil), xData...))
	require.NoError(t, err)
	w, err := NewVariable("w", tensor.New(tensor.WithShape(3, 2), tensor.WithBacking(append([]float64(nil), wData...))))
	require.NoError(t, err)
	prod, err := Mul(x, w)
	require.NoError(t, err)
	act, err := Sigmoid(prod)
	require.NoError(t, err)
	cost, err := Mean(act)
	require.NoError(t, err)
	grads, err := Grad(cost, w)
	require.NoError(t, err)

	assert.InDelta(t, costG.Value().Data().(float64), cost.ScalarValue(), 1e-12)
	expected := gradG.Data().([]float64)
	require.Len(t, expected, 6)
	for i := range expected {
		assert.InDelta(t, expected[i], grads[0].Data()[i], 1e-12)
	}
}
