// Package network implements a feed forward image classifier with
// named learnable parameters. Each learnable node carries a dotted
// name (hidden0.fc.weight, hidden1.norm.bias, readout.weight, ...) so
// that subsets of the parameters can be selected for training and
// checkpointing.
package network

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"strings"

	"gonum.org/v1/gonum/floats"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Classifier is a multi-layered perceptron classifier. Each hidden
// block is a fully connected layer followed by a normalization layer
// and a ReLU; a readout layer and a softmax produce the class
// probabilities.
type Classifier struct {
	g      *G.ExprGraph
	input  *G.Node
	layers []Layer

	features  int
	classes   int
	batchSize int

	// Data needed for gobbing
	hidden []int

	probabilities *G.Node
	probVal       G.Value

	learnables []NamedNode
	model      []G.ValueGrad
}

// NewClassifier returns a new classifier for inputs of features
// pixels and the given number of classes, operating on batches of
// batch inputs at a time. The classifier has one hidden block per
// element of hidden, with hidden[i] units in block i. The seed
// drives the weight initialization, so the same seed reproduces the
// same starting weights.
func NewClassifier(features, classes, batch int, hidden []int,
	init InitConfig, seed uint64) (*Classifier, error) {
	net := new(Classifier)
	if err := net.build(features, classes, batch, hidden, init,
		seed); err != nil {
		return nil, fmt.Errorf("newclassifier: %v", err)
	}
	return net, nil
}

// build constructs the graph, layers and forward pass in place on c.
// The softmax readback targets c's own fields, so c must not be
// copied by value afterwards.
func (c *Classifier) build(features, classes, batch int, hidden []int,
	init InitConfig, seed uint64) error {
	if features < 1 || classes < 2 || batch < 1 {
		return fmt.Errorf("invalid dimensions features(%v) classes(%v) "+
			"batch(%v)", features, classes, batch)
	}
	if len(hidden) == 0 {
		return fmt.Errorf("at least one hidden block is required")
	}

	initWFn, err := init.Create(seed)
	if err != nil {
		return err
	}

	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]Layer, 0, 2*len(hidden)+1)
	in := features
	for i, h := range hidden {
		prefix := fmt.Sprintf("hidden%d", i)
		layers = append(layers,
			newFCLayer(g, in, h, initWFn, nil, prefix+".fc"),
			newNormLayer(g, h, ReLU(), prefix+".norm"),
		)
		in = h
	}
	layers = append(layers, newFCLayer(g, in, classes, initWFn, nil,
		"readout"))

	*c = Classifier{
		g:         g,
		input:     input,
		layers:    layers,
		features:  features,
		classes:   classes,
		batchSize: batch,
		hidden:    hidden,
	}
	if err := c.fwd(input); err != nil {
		return fmt.Errorf("could not compute forward pass: %v", err)
	}
	return nil
}

// fwd performs the forward pass of the Classifier on the input node
func (c *Classifier) fwd(input *G.Node) error {
	pred := input
	var err error
	for i, l := range c.layers {
		if pred, err = l.fwd(pred); err != nil {
			return fmt.Errorf("fwd: could not compute forward pass of "+
				"layer %v: %v", i, err)
		}
	}

	c.probabilities = G.Must(G.SoftMax(pred, 1))
	G.Read(c.probabilities, &c.probVal)

	return nil
}

// Graph returns the computational graph of the Classifier
func (c *Classifier) Graph() *G.ExprGraph {
	return c.g
}

// Features returns the number of features in a single input
func (c *Classifier) Features() int {
	return c.features
}

// Classes returns the number of classes the Classifier predicts
func (c *Classifier) Classes() int {
	return c.classes
}

// BatchSize returns the batch size of inputs to the Classifier
func (c *Classifier) BatchSize() int {
	return c.batchSize
}

// Hidden returns the hidden block sizes
func (c *Classifier) Hidden() []int {
	return c.hidden
}

// SetInput sets the value of the input node before running the
// forward pass.
func (c *Classifier) SetInput(input []float64) error {
	if len(input) != c.features*c.batchSize {
		return fmt.Errorf("setinput: invalid number of inputs\n\twant(%v)"+
			"\n\thave(%v)", c.features*c.batchSize, len(input))
	}
	inputTensor := tensor.New(
		tensor.WithBacking(input),
		tensor.WithShape(c.input.Shape()...),
	)
	return G.Let(c.input, inputTensor)
}

// Probabilities returns the node of the computational graph that
// stores the softmax class probabilities.
func (c *Classifier) Probabilities() *G.Node {
	return c.probabilities
}

// Output returns the class probabilities computed by the last run of
// the Classifier's graph.
func (c *Classifier) Output() G.Value {
	return c.probVal
}

// Predictions returns the predicted class of each sample in the last
// batch, the argmax of each row of Output.
func (c *Classifier) Predictions() ([]int, error) {
	if c.probVal == nil {
		return nil, fmt.Errorf("predictions: no forward pass has been run")
	}
	probs := c.probVal.Data().([]float64)

	preds := make([]int, c.batchSize)
	for i := 0; i < c.batchSize; i++ {
		row := probs[i*c.classes : (i+1)*c.classes]
		preds[i] = floats.MaxIdx(row)
	}
	return preds, nil
}

// Learnables returns the learnable nodes of the Classifier
func (c *Classifier) Learnables() G.Nodes {
	named := c.NamedLearnables()
	nodes := make(G.Nodes, len(named))
	for i, n := range named {
		nodes[i] = n.Node
	}
	return nodes
}

// NamedLearnables returns the learnable nodes together with their
// dotted names, in network order. The name→node mapping is stable and
// unique for a given architecture.
func (c *Classifier) NamedLearnables() []NamedNode {
	// Lazy instantiation
	if c.learnables == nil {
		for _, l := range c.layers {
			c.learnables = append(c.learnables, l.Learnables()...)
		}
	}
	return c.learnables
}

// LearnablesMatching returns the learnables whose names contain at
// least one of the given patterns as a substring.
func (c *Classifier) LearnablesMatching(patterns []string) []NamedNode {
	var matched []NamedNode
	for _, learnable := range c.NamedLearnables() {
		for _, pattern := range patterns {
			if strings.Contains(learnable.Name, pattern) {
				matched = append(matched, learnable)
				break
			}
		}
	}
	return matched
}

// LastNormNames returns the names of the scale and shift tensors of
// the last n normalization layers, in network order.
func (c *Classifier) LastNormNames(n int) []string {
	if n > len(c.hidden) {
		n = len(c.hidden)
	}
	names := make([]string, 0, 2*n)
	for i := len(c.hidden) - n; i < len(c.hidden); i++ {
		prefix := fmt.Sprintf("hidden%d.norm", i)
		names = append(names, prefix+".weight", prefix+".bias")
	}
	return names
}

// ByName returns the learnable with the given exact name.
func (c *Classifier) ByName(name string) (NamedNode, error) {
	for _, learnable := range c.NamedLearnables() {
		if learnable.Name == name {
			return learnable, nil
		}
	}
	return NamedNode{}, fmt.Errorf("byname: no learnable named %q", name)
}

// Model returns the learnable nodes with their gradients.
func (c *Classifier) Model() []G.ValueGrad {
	// Lazy instantiation
	if c.model == nil {
		for _, node := range c.Learnables() {
			c.model = append(c.model, node)
		}
	}
	return c.model
}

// Set sets the weights of the Classifier to be equal to the weights
// of another Classifier with the same architecture.
func (c *Classifier) Set(source *Classifier) error {
	sourceNodes := source.NamedLearnables()
	nodes := c.NamedLearnables()
	if len(sourceNodes) != len(nodes) {
		return fmt.Errorf("set: architecture mismatch\n\twant(%v "+
			"learnables)\n\thave(%v)", len(nodes), len(sourceNodes))
	}
	for i, dest := range nodes {
		clone := sourceNodes[i].Node.Clone()
		err := G.Let(dest.Node, clone.(*G.Node).Value())
		if err != nil {
			return err
		}
	}
	return nil
}

// CloneWithBatch clones the Classifier onto a fresh computational
// graph with a new input batch size, keeping the learned weights.
func (c *Classifier) CloneWithBatch(batch int) (*Classifier, error) {
	if batch < 1 {
		return nil, fmt.Errorf("clonewithbatch: invalid batch size %v",
			batch)
	}

	g := G.NewGraph()
	input := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch, c.features),
		G.WithName("input"),
		G.WithInit(G.Zeroes()),
	)

	layers := make([]Layer, len(c.layers))
	for i := range c.layers {
		layers[i] = c.layers[i].CloneTo(g)
	}

	net := &Classifier{
		g:         g,
		input:     input,
		layers:    layers,
		features:  c.features,
		classes:   c.classes,
		batchSize: batch,
		hidden:    c.hidden,
	}
	if err := net.fwd(input); err != nil {
		return nil, fmt.Errorf("clonewithbatch: could not clone: %v", err)
	}

	return net, nil
}

// GobEncode implements the gob.GobEncoder interface
func (c *Classifier) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)

	if err := enc.Encode(c.features); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode features")
	}
	if err := enc.Encode(c.classes); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode classes")
	}
	if err := enc.Encode(c.batchSize); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode batch size")
	}
	if err := enc.Encode(c.hidden); err != nil {
		return nil, fmt.Errorf("gobencode: could not encode hidden sizes")
	}

	for _, learnable := range c.NamedLearnables() {
		if err := enc.Encode(learnable.Name); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode name of "+
				"%v: %v", learnable.Name, err)
		}
		value := learnable.Node.Value().(*tensor.Dense)
		if err := enc.Encode(value); err != nil {
			return nil, fmt.Errorf("gobencode: could not encode %v: %v",
				learnable.Name, err)
		}
	}

	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (c *Classifier) GobDecode(in []byte) error {
	buf := bytes.NewReader(in)
	dec := gob.NewDecoder(buf)

	var features, classes, batchSize int
	if err := dec.Decode(&features); err != nil {
		return fmt.Errorf("gobdecode: could not decode features")
	}
	if err := dec.Decode(&classes); err != nil {
		return fmt.Errorf("gobdecode: could not decode classes")
	}
	if err := dec.Decode(&batchSize); err != nil {
		return fmt.Errorf("gobdecode: could not decode batch size")
	}
	var hidden []int
	if err := dec.Decode(&hidden); err != nil {
		return fmt.Errorf("gobdecode: could not decode hidden sizes")
	}

	// Rebuild in place so the graph's softmax readback stays bound to
	// this classifier's fields.
	if err := c.build(features, classes, batchSize, hidden,
		InitConfig{Type: Zeroes}, 0); err != nil {
		return fmt.Errorf("gobdecode: could not construct classifier: %v",
			err)
	}

	for range c.NamedLearnables() {
		var name string
		if err := dec.Decode(&name); err != nil {
			return fmt.Errorf("gobdecode: could not decode learnable "+
				"name: %v", err)
		}
		value := new(tensor.Dense)
		if err := dec.Decode(value); err != nil {
			return fmt.Errorf("gobdecode: could not decode %v: %v", name,
				err)
		}

		learnable, err := c.ByName(name)
		if err != nil {
			return fmt.Errorf("gobdecode: %v", err)
		}
		if !learnable.Node.Shape().Eq(value.Shape()) {
			return fmt.Errorf("gobdecode: shape mismatch for %v"+
				"\n\twant(%v)\n\thave(%v)", name, learnable.Node.Shape(),
				value.Shape())
		}
		if err := G.Let(learnable.Node, value); err != nil {
			return fmt.Errorf("gobdecode: could not set %v: %v", name, err)
		}
	}

	return nil
}

// WriteFile saves the Classifier to the file at path.
func (c *Classifier) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("writefile: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(c); err != nil {
		return fmt.Errorf("writefile: could not encode classifier: %v", err)
	}
	return nil
}

// ReadFile loads a Classifier previously saved with WriteFile.
func ReadFile(path string) (*Classifier, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("readfile: %w", err)
	}
	defer file.Close()

	net := new(Classifier)
	if err := gob.NewDecoder(file).Decode(net); err != nil {
		return nil, fmt.Errorf("readfile: could not decode classifier: %v",
			err)
	}
	return net, nil
}
