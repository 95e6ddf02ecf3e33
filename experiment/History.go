package experiment

import (
	"encoding/gob"
	"fmt"
	"os"
)

// History tracks the per-step training loss of a run.
type History struct {
	Steps []int
	Loss  []float64
}

// Track records the loss at a training step.
func (h *History) Track(step int, loss float64) {
	h.Steps = append(h.Steps, step)
	h.Loss = append(h.Loss, loss)
}

// Len returns the number of tracked steps
func (h *History) Len() int {
	return len(h.Steps)
}

// Last returns the most recently tracked loss.
func (h *History) Last() float64 {
	if len(h.Loss) == 0 {
		return 0
	}
	return h.Loss[len(h.Loss)-1]
}

// Save writes the History to the file at path.
func (h *History) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("history: save %v: %w", path, err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(h); err != nil {
		return fmt.Errorf("history: encode %v: %v", path, err)
	}
	return nil
}

// LoadHistory loads a History previously written with Save.
func LoadHistory(path string) (*History, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("history: open %v: %w", path, err)
	}
	defer file.Close()

	h := new(History)
	if err := gob.NewDecoder(file).Decode(h); err != nil {
		return nil, fmt.Errorf("history: decode %v: %v", path, err)
	}
	return h, nil
}
