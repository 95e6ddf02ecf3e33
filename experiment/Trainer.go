// Package experiment implements the training runners: pretraining a
// classifier, fine-tuning a parameter subset while snapshotting it at
// intervals, and evaluation.
package experiment

import (
	"fmt"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/wangqiang102938/pdiff/dataset"
	"github.com/wangqiang102938/pdiff/network"
	"github.com/wangqiang102938/pdiff/solver"
)

// logEpsilon keeps log(p) finite for vanishing probabilities.
const logEpsilon = 1e-10

// trainer owns the training graph machinery for one classifier: the
// cross-entropy cost over a targets node, a tape machine with dual
// values bound to the trainable subset, and the solver.
type trainer struct {
	net      *network.Classifier
	targets  *G.Node
	costVal  G.Value
	vm       G.VM
	solver   *solver.Solver
	model    []G.ValueGrad
	names    []string
	classes  int
	batch    int
}

// newTrainer builds the cost and gradient machinery on net's graph.
// Only the given trainable learnables receive gradients and solver
// updates; everything else is frozen.
func newTrainer(net *network.Classifier, trainable []network.NamedNode,
	learnRate, weightDecay float64) (*trainer, error) {
	if len(trainable) == 0 {
		return nil, fmt.Errorf("newtrainer: no trainable parameters")
	}

	g := net.Graph()
	targets := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(net.BatchSize(), net.Classes()),
		G.WithName("targets"),
		G.WithInit(G.Zeroes()),
	)

	// Cross-entropy: -mean over the batch of Σ target ⊙ log(prob)
	logProbs := G.Must(G.Log(G.Must(G.Add(net.Probabilities(),
		G.NewConstant(logEpsilon)))))
	perSample := G.Must(G.Sum(G.Must(G.HadamardProd(targets, logProbs)),
		1))
	cost := G.Must(G.Neg(G.Must(G.Mean(perSample))))

	t := &trainer{
		net:     net,
		targets: targets,
		classes: net.Classes(),
		batch:   net.BatchSize(),
	}
	G.Read(cost, &t.costVal)

	nodes := make(G.Nodes, len(trainable))
	for i, learnable := range trainable {
		nodes[i] = learnable.Node
		t.model = append(t.model, learnable.Node)
		t.names = append(t.names, learnable.Name)
	}
	if _, err := G.Grad(cost, nodes...); err != nil {
		return nil, fmt.Errorf("newtrainer: could not compute gradient: %v",
			err)
	}

	t.vm = G.NewTapeMachine(g, G.BindDualValues(nodes...))

	s, err := solver.NewDefaultAdamW(learnRate, weightDecay)
	if err != nil {
		return nil, fmt.Errorf("newtrainer: %v", err)
	}
	t.solver = s

	return t, nil
}

// step runs one forward/backward/update on a full batch and returns
// the batch loss.
func (t *trainer) step(b dataset.Batch) (float64, error) {
	if b.Size != t.batch {
		return 0, fmt.Errorf("step: batch %v has %v samples, the "+
			"training graph needs %v", b.Index, b.Size, t.batch)
	}

	if err := t.net.SetInput(b.Inputs); err != nil {
		return 0, fmt.Errorf("step: %v", err)
	}
	targets := tensor.New(
		tensor.WithBacking(b.Targets),
		tensor.WithShape(t.batch, t.classes),
	)
	if err := G.Let(t.targets, targets); err != nil {
		return 0, fmt.Errorf("step: could not set targets: %v", err)
	}

	if err := t.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("step: forward/backward pass failed: %v", err)
	}
	if err := t.solver.Step(t.model); err != nil {
		return 0, fmt.Errorf("step: solver step failed: %v", err)
	}

	loss := t.costVal.Data().(float64)
	t.vm.Reset()
	return loss, nil
}

// close releases the trainer's tape machine.
func (t *trainer) close() {
	t.vm.Close()
}
