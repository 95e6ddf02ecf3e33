// pdiff generates populations of near-duplicate network checkpoints:
// it pretrains an image classifier, fine-tunes a small parameter
// subset while snapshotting it at intervals, and prepares checkpoint
// directories for ablation experiments.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "pdiff:", err)
		os.Exit(1)
	}
}
