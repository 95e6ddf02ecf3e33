package checkpoint

import (
	"fmt"
	"os"
	"path/filepath"
)

// Writer saves snapshots at batch intervals under a quota. The saved
// count is monotonic across passes over the training set; once Quota
// files exist the Writer is exhausted and refuses further saves.
type Writer struct {
	// Dir is the output directory, created on the first save.
	Dir string

	// Interval is the number of batches between saves.
	Interval int

	// SkipBatches batches at the start of each pass are never save
	// points.
	SkipBatches int

	// Quota is the total number of files to write.
	Quota int

	Seed uint64
	Tag  string

	saved int
}

// Due reports whether batch batchIdx (zero-based, within a pass of
// batchesPerPass batches) is a save point. The last batch of a pass
// is always a save point, provided the skip window has passed.
func (w *Writer) Due(batchIdx, batchesPerPass int) bool {
	if w.Exhausted() {
		return false
	}
	if batchIdx <= w.SkipBatches-1 {
		return false
	}
	return (batchIdx+1)%w.Interval == 0 || batchIdx == batchesPerPass-1
}

// Save writes snap as the next enumerated checkpoint file, starting
// at index 0000, and returns its path. Saving after the quota is
// reached is an error.
func (w *Writer) Save(snap Snapshot, acc float64) (string, error) {
	if w.Exhausted() {
		return "", fmt.Errorf("checkpoint: save quota of %v reached",
			w.Quota)
	}
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("checkpoint: create %v: %w", w.Dir, err)
	}

	path := filepath.Join(w.Dir,
		FileName(w.saved, acc, w.Seed, w.Tag))
	if err := snap.WriteFile(path); err != nil {
		return "", err
	}
	w.saved++
	return path, nil
}

// Saved returns the number of files written so far.
func (w *Writer) Saved() int {
	return w.saved
}

// Exhausted reports whether the save quota has been reached.
func (w *Writer) Exhausted() bool {
	return w.saved >= w.Quota
}
