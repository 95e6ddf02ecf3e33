package checkpoint

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Names of the files Reselect produces
const (
	OriginName = "origin" + Extension
	RepeatName = "repeat" + Extension
)

// Reselect prepares a checkpoint-count ablation: it takes the first
// take files of the sorted listing of srcDir and copies each of them
// to dstDir under the name origin.bin, then again under repeat.bin.
// With take = 1 the single earliest checkpoint lands under both
// names; with a larger take, the last selected file wins both names.
func Reselect(srcDir, dstDir string, take int) error {
	if take < 1 {
		take = 1
	}

	files, err := os.ReadDir(srcDir)
	if err != nil {
		return fmt.Errorf("reselect: list %v: %w", srcDir, err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() {
			names = append(names, f.Name())
		}
	}
	if len(names) == 0 {
		return fmt.Errorf("reselect: no checkpoints in %v", srcDir)
	}
	sort.Strings(names)
	if take > len(names) {
		take = len(names)
	}
	selected := names[:take]

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("reselect: create %v: %w", dstDir, err)
	}

	for _, name := range selected {
		if err := copyFile(filepath.Join(srcDir, name),
			filepath.Join(dstDir, OriginName)); err != nil {
			return fmt.Errorf("reselect: %w", err)
		}
	}
	for _, name := range selected {
		if err := copyFile(filepath.Join(srcDir, name),
			filepath.Join(dstDir, RepeatName)); err != nil {
			return fmt.Errorf("reselect: %w", err)
		}
	}
	return nil
}

// copyFile copies src to dst byte for byte, truncating dst if it
// exists.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %v: %w", src, err)
	}
	return out.Close()
}
