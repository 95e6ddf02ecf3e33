package network

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// normEpsilon keeps the normalization denominator away from zero.
const normEpsilon = 1e-5

// NamedNode pairs a learnable node with its dotted parameter name,
// e.g. "hidden0.norm.weight".
type NamedNode struct {
	Name string
	Node *G.Node
}

// Layer is a single block of the classifier's forward pass.
type Layer interface {
	fwd(*G.Node) (*G.Node, error)
	CloneTo(*G.ExprGraph) Layer

	// Learnables returns the layer's learnable nodes together with
	// their dotted names, in a fixed order.
	Learnables() []NamedNode
}

// fcLayer implements a fully connected layer of a feed forward neural
// network. Its weights are named <name>.weight and <name>.bias.
type fcLayer struct {
	weights *G.Node
	bias    *G.Node
	act     *Activation
	name    string
}

// newFCLayer adds a named fully connected layer to g.
func newFCLayer(g *G.ExprGraph, in, out int, init G.InitWFn,
	act *Activation, name string) *fcLayer {
	weights := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(in, out),
		G.WithName(name+".weight"),
		G.WithInit(init),
	)
	bias := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(out),
		G.WithName(name+".bias"),
		G.WithInit(G.Zeroes()),
	)

	return &fcLayer{weights: weights, bias: bias, act: act, name: name}
}

// fwd adds the forward pass of the fcLayer to the computational graph
func (f *fcLayer) fwd(x *G.Node) (*G.Node, error) {
	x = G.Must(G.Mul(x, f.weights))

	// Broadcast the bias weights to all samples along the batch
	// dimension
	x = G.Must(G.BroadcastAdd(x, f.bias, nil, []byte{0}))

	if f.act == nil || f.act.IsIdentity() {
		return x, nil
	}
	return f.act.fwd(x)
}

// CloneTo clones the fcLayer to a new computational graph
func (f *fcLayer) CloneTo(g *G.ExprGraph) Layer {
	return &fcLayer{
		weights: f.weights.CloneTo(g),
		bias:    f.bias.CloneTo(g),
		act:     f.act,
		name:    f.name,
	}
}

func (f *fcLayer) Learnables() []NamedNode {
	return []NamedNode{
		{Name: f.name + ".weight", Node: f.weights},
		{Name: f.name + ".bias", Node: f.bias},
	}
}

// normLayer normalizes each sample to zero mean and unit variance
// across its features, then applies a learned per-unit scale and
// shift. The scale and shift are named <name>.weight and <name>.bias,
// the tensors the snapshot loop checkpoints.
type normLayer struct {
	weight *G.Node
	bias   *G.Node
	act    *Activation
	name   string
}

// newNormLayer adds a named normalization layer of the given width to
// g. Scale starts at one and shift at zero, so an untrained layer only
// standardizes its input.
func newNormLayer(g *G.ExprGraph, width int, act *Activation,
	name string) *normLayer {
	weight := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(width),
		G.WithName(name+".weight"),
		G.WithInit(G.Ones()),
	)
	bias := G.NewVector(
		g,
		tensor.Float64,
		G.WithShape(width),
		G.WithName(name+".bias"),
		G.WithInit(G.Zeroes()),
	)

	return &normLayer{weight: weight, bias: bias, act: act, name: name}
}

// fwd adds the normalization to the computational graph:
// y = weight ⊙ (x - E[x]) / sqrt(Var[x] + ε) + bias, with the
// statistics taken per sample across the feature dimension.
func (n *normLayer) fwd(x *G.Node) (*G.Node, error) {
	if !x.IsMatrix() {
		return nil, fmt.Errorf("fwd: normalization requires a matrix "+
			"input, got shape %v", x.Shape())
	}

	mean := G.Must(G.Mean(x, 1))
	centered := G.Must(G.BroadcastSub(x, mean, nil, []byte{1}))

	variance := G.Must(G.Mean(G.Must(G.Square(centered)), 1))
	denom := G.Must(G.Sqrt(
		G.Must(G.Add(variance, G.NewConstant(normEpsilon))),
	))
	standardized := G.Must(G.BroadcastHadamardDiv(centered, denom, nil,
		[]byte{1}))

	out := G.Must(G.BroadcastHadamardProd(standardized, n.weight, nil,
		[]byte{0}))
	out = G.Must(G.BroadcastAdd(out, n.bias, nil, []byte{0}))

	if n.act == nil || n.act.IsIdentity() {
		return out, nil
	}
	return n.act.fwd(out)
}

// CloneTo clones the normLayer to a new computational graph
func (n *normLayer) CloneTo(g *G.ExprGraph) Layer {
	return &normLayer{
		weight: n.weight.CloneTo(g),
		bias:   n.bias.CloneTo(g),
		act:    n.act,
		name:   n.name,
	}
}

func (n *normLayer) Learnables() []NamedNode {
	return []NamedNode{
		{Name: n.name + ".weight", Node: n.weight},
		{Name: n.name + ".bias", Node: n.bias},
	}
}
