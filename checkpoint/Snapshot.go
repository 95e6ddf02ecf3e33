// Package checkpoint implements partial parameter snapshots: saving a
// named subset of a classifier's learnables to disk at intervals
// during fine-tuning, and the file bookkeeping around the resulting
// checkpoint directories.
package checkpoint

import (
	"encoding/gob"
	"fmt"
	"os"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/wangqiang102938/pdiff/network"
)

// Param is one saved tensor. Data is stored as float32, halving the
// snapshot size without affecting the downstream ablations.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
}

// Snapshot is an ordered set of named parameters copied out of a
// network.
type Snapshot struct {
	Params []Param
}

// Take copies the learnables with the given exact names out of net,
// in the given order.
func Take(net *network.Classifier, names []string) (Snapshot, error) {
	snap := Snapshot{Params: make([]Param, 0, len(names))}
	for _, name := range names {
		learnable, err := net.ByName(name)
		if err != nil {
			return Snapshot{}, fmt.Errorf("take: %v", err)
		}

		value := learnable.Node.Value().(*tensor.Dense)
		data, ok := value.Data().([]float64)
		if !ok {
			return Snapshot{}, fmt.Errorf("take: %v holds %T, expected "+
				"float64 data", name, value.Data())
		}

		converted := make([]float32, len(data))
		for i, v := range data {
			converted[i] = float32(v)
		}
		snap.Params = append(snap.Params, Param{
			Name:  name,
			Shape: append([]int(nil), value.Shape()...),
			Data:  converted,
		})
	}
	return snap, nil
}

// Apply writes the snapshot's parameters back onto net. Every
// parameter is resolved and shape-checked before any value is set, so
// a failed Apply leaves net untouched.
func (s Snapshot) Apply(net *network.Classifier) error {
	nodes := make([]*G.Node, len(s.Params))
	for i, p := range s.Params {
		learnable, err := net.ByName(p.Name)
		if err != nil {
			return fmt.Errorf("apply: %v", err)
		}
		if size := learnable.Node.Shape().TotalSize(); size != len(p.Data) {
			return fmt.Errorf("apply: size mismatch for %v\n\twant(%v)"+
				"\n\thave(%v)", p.Name, size, len(p.Data))
		}
		nodes[i] = learnable.Node
	}

	for i, p := range s.Params {
		data := make([]float64, len(p.Data))
		for j, v := range p.Data {
			data[j] = float64(v)
		}
		value := tensor.New(
			tensor.WithBacking(data),
			tensor.WithShape(nodes[i].Shape()...),
		)
		if err := G.Let(nodes[i], value); err != nil {
			return fmt.Errorf("apply: could not set %v: %v", p.Name, err)
		}
	}
	return nil
}

// Names returns the parameter names in snapshot order.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return names
}

// WriteFile saves the snapshot to the file at path.
func (s Snapshot) WriteFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("checkpoint: write %v: %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(s); err != nil {
		return fmt.Errorf("checkpoint: encode %v: %v", path, err)
	}
	return nil
}

// ReadSnapshot loads a snapshot previously saved with WriteFile.
func ReadSnapshot(path string) (Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: open %v: %w", path, err)
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return Snapshot{}, fmt.Errorf("checkpoint: decode %v: %v", path,
			err)
	}
	return snap, nil
}
