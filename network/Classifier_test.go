package network

import (
	"math"
	"path/filepath"
	"testing"

	G "gorgonia.org/gorgonia"
)

// runForward runs a single forward pass of net on input
func runForward(t *testing.T, net *Classifier, input []float64) {
	t.Helper()
	if err := net.SetInput(input); err != nil {
		t.Fatalf("could not set input: %v", err)
	}
	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}
	vm.Reset()
}

func TestNewClassifierNames(t *testing.T) {
	net, err := NewClassifier(8, 3, 2, []int{16, 4}, NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	want := []string{
		"hidden0.fc.weight", "hidden0.fc.bias",
		"hidden0.norm.weight", "hidden0.norm.bias",
		"hidden1.fc.weight", "hidden1.fc.bias",
		"hidden1.norm.weight", "hidden1.norm.bias",
		"readout.weight", "readout.bias",
	}

	named := net.NamedLearnables()
	if len(named) != len(want) {
		t.Fatalf("wrong number of learnables\n\twant(%v)\n\thave(%v)",
			len(want), len(named))
	}
	for i, n := range named {
		if n.Name != want[i] {
			t.Errorf("learnable %v: want name %v, have %v", i, want[i],
				n.Name)
		}
		if n.Node == nil {
			t.Errorf("learnable %v has a nil node", i)
		}
	}
}

func TestClassifierOutputIsDistribution(t *testing.T) {
	const (
		features = 6
		classes  = 4
		batch    = 3
	)
	net, err := NewClassifier(features, classes, batch, []int{8},
		NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	input := make([]float64, features*batch)
	for i := range input {
		input[i] = float64(i%7) / 7.0
	}
	runForward(t, net, input)

	probs := net.Output().Data().([]float64)
	if len(probs) != batch*classes {
		t.Fatalf("wrong output size\n\twant(%v)\n\thave(%v)",
			batch*classes, len(probs))
	}
	for b := 0; b < batch; b++ {
		sum := 0.0
		for _, p := range probs[b*classes : (b+1)*classes] {
			if p < 0 || p > 1 {
				t.Errorf("sample %v: probability %v outside [0, 1]", b, p)
			}
			sum += p
		}
		if math.Abs(sum-1.0) > 1e-8 {
			t.Errorf("sample %v: probabilities sum to %v, not 1", b, sum)
		}
	}

	preds, err := net.Predictions()
	if err != nil {
		t.Fatalf("could not compute predictions: %v", err)
	}
	if len(preds) != batch {
		t.Fatalf("wrong number of predictions\n\twant(%v)\n\thave(%v)",
			batch, len(preds))
	}
	for b, p := range preds {
		if p < 0 || p >= classes {
			t.Errorf("sample %v: prediction %v outside class range", b, p)
		}
	}
}

func TestLearnablesMatching(t *testing.T) {
	net, err := NewClassifier(4, 2, 1, []int{8, 8, 8}, NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	matched := net.LearnablesMatching([]string{
		"hidden1.norm.weight", "hidden1.norm.bias",
		"hidden2.norm.weight", "hidden2.norm.bias",
	})
	if len(matched) != 4 {
		t.Fatalf("wrong number of matches\n\twant(4)\n\thave(%v)",
			len(matched))
	}
	for _, m := range matched {
		if m.Name != "hidden1.norm.weight" && m.Name != "hidden1.norm.bias" &&
			m.Name != "hidden2.norm.weight" && m.Name != "hidden2.norm.bias" {
			t.Errorf("unexpected match %v", m.Name)
		}
	}

	// Substring semantics: "norm" matches every normalization tensor.
	all := net.LearnablesMatching([]string{"norm"})
	if len(all) != 6 {
		t.Errorf("substring match: want 6 learnables, have %v", len(all))
	}
}

func TestLastNormNames(t *testing.T) {
	net, err := NewClassifier(4, 2, 1, []int{8, 8, 8}, NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	names := net.LastNormNames(2)
	want := []string{
		"hidden1.norm.weight", "hidden1.norm.bias",
		"hidden2.norm.weight", "hidden2.norm.bias",
	}
	if len(names) != len(want) {
		t.Fatalf("wrong number of names\n\twant(%v)\n\thave(%v)",
			len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %v: want %v, have %v", i, want[i], names[i])
		}
	}
}

func TestSeededInitIsReproducible(t *testing.T) {
	build := func(seed uint64) []float64 {
		net, err := NewClassifier(6, 3, 2, []int{8}, NewGlorotU(1.0), seed)
		if err != nil {
			t.Fatalf("could not construct classifier: %v", err)
		}
		learnable, err := net.ByName("hidden0.fc.weight")
		if err != nil {
			t.Fatal(err)
		}
		return learnable.Node.Value().Data().([]float64)
	}

	a := build(40)
	b := build(40)
	c := build(41)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave different weights at %v: %v vs %v",
				i, a[i], b[i])
		}
	}

	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds produced identical weights")
	}
}

func TestGobRoundTrip(t *testing.T) {
	const (
		features = 5
		classes  = 3
		batch    = 2
	)
	net, err := NewClassifier(features, classes, batch, []int{6},
		NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	input := make([]float64, features*batch)
	for i := range input {
		input[i] = float64(i) / 10.0
	}
	runForward(t, net, input)
	wantProbs := append([]float64(nil),
		net.Output().Data().([]float64)...)

	path := filepath.Join(t.TempDir(), "classifier.bin")
	if err := net.WriteFile(path); err != nil {
		t.Fatalf("could not save classifier: %v", err)
	}

	restored, err := ReadFile(path)
	if err != nil {
		t.Fatalf("could not load classifier: %v", err)
	}
	if restored.Features() != features || restored.Classes() != classes ||
		restored.BatchSize() != batch {
		t.Fatalf("restored model has wrong architecture")
	}

	runForward(t, restored, input)
	gotProbs := restored.Output().Data().([]float64)
	for i := range wantProbs {
		if math.Abs(wantProbs[i]-gotProbs[i]) > 1e-12 {
			t.Fatalf("restored output differs at %v: want %v, have %v", i,
				wantProbs[i], gotProbs[i])
		}
	}
}

func TestCloneWithBatch(t *testing.T) {
	const features = 4
	net, err := NewClassifier(features, 2, 8, []int{6}, NewGlorotU(1.0), 40)
	if err != nil {
		t.Fatalf("could not construct classifier: %v", err)
	}

	clone, err := net.CloneWithBatch(1)
	if err != nil {
		t.Fatalf("could not clone: %v", err)
	}
	if clone.BatchSize() != 1 {
		t.Fatalf("wrong clone batch size\n\twant(1)\n\thave(%v)",
			clone.BatchSize())
	}
	if clone.Graph() == net.Graph() {
		t.Fatal("clone shares the source's graph")
	}

	// The clone carries the source's weights.
	src := net.NamedLearnables()
	dst := clone.NamedLearnables()
	for i := range src {
		srcData := src[i].Node.Value().Data().([]float64)
		dstData := dst[i].Node.Value().Data().([]float64)
		for j := range srcData {
			if srcData[j] != dstData[j] {
				t.Fatalf("%v differs between source and clone",
					src[i].Name)
			}
		}
	}
}
