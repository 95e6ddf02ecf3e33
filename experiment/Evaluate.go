package experiment

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"

	"github.com/wangqiang102938/pdiff/dataset"
	"github.com/wangqiang102938/pdiff/network"
)

// Result holds the outcome of one evaluation pass.
type Result struct {
	Loss     float64
	Accuracy float64

	// N is the number of samples evaluated
	N int

	// Confusion is the classes×classes confusion matrix; row = target
	// class, column = predicted class.
	Confusion *mat.Dense
}

// Evaluate computes loss and accuracy of net over one epoch of
// loader. The loader should apply the deterministic eval transform
// and must use net's batch size; a final short batch is zero-padded
// and only its real samples are scored.
func Evaluate(net *network.Classifier, loader *dataset.Loader) (Result,
	error) {
	if net.BatchSize() != loader.BatchSize() {
		return Result{}, fmt.Errorf("evaluate: network batch %v != "+
			"loader batch %v", net.BatchSize(), loader.BatchSize())
	}

	classes := net.Classes()
	features := net.Features()
	confusion := mat.NewDense(classes, classes, nil)

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	defer loader.Stop()

	var totalLoss float64
	var correct, n int
	for batch := range loader.Batches() {
		inputs := batch.Inputs
		if batch.Size < net.BatchSize() {
			padded := make([]float64, net.BatchSize()*features)
			copy(padded, inputs)
			inputs = padded
		}

		if err := net.SetInput(inputs); err != nil {
			return Result{}, fmt.Errorf("evaluate: %v", err)
		}
		if err := vm.RunAll(); err != nil {
			return Result{}, fmt.Errorf("evaluate: forward pass failed "+
				"on batch %v: %v", batch.Index, err)
		}

		probs := net.Output().Data().([]float64)
		for i := 0; i < batch.Size; i++ {
			row := probs[i*classes : (i+1)*classes]
			label := batch.Labels[i]
			pred := floats.MaxIdx(row)

			totalLoss += -math.Log(row[label] + logEpsilon)
			if pred == label {
				correct++
			}
			confusion.Set(label, pred, confusion.At(label, pred)+1)
			n++
		}
		vm.Reset()
	}

	if n == 0 {
		return Result{}, fmt.Errorf("evaluate: empty dataset")
	}
	return Result{
		Loss:      totalLoss / float64(n),
		Accuracy:  float64(correct) / float64(n),
		N:         n,
		Confusion: confusion,
	}, nil
}
