package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/checkpoint"
	"github.com/wangqiang102938/pdiff/dataset"
	"github.com/wangqiang102938/pdiff/experiment"
	"github.com/wangqiang102938/pdiff/network"
)

var flagCheckpoint string

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate the pretrained model on the test split",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		net, err := network.ReadFile(cfg.PretrainedPath)
		if err != nil {
			return err
		}
		net, err = net.CloneWithBatch(cfg.BatchSize)
		if err != nil {
			return err
		}

		// Optionally overlay a saved snapshot before evaluating.
		if flagCheckpoint != "" {
			snap, err := checkpoint.ReadSnapshot(flagCheckpoint)
			if err != nil {
				return err
			}
			if err := snap.Apply(net); err != nil {
				return err
			}
		}

		ds, err := dataset.Load(cfg.Dataset, cfg.DatasetRoot, false)
		if err != nil {
			return err
		}
		channels := 1
		if ds.Len() > 0 {
			channels = ds.Samples[0].Image.Channels
		}
		loader, err := dataset.NewLoader(ds, dataset.Options{
			BatchSize: cfg.BatchSize,
			Workers:   cfg.NumWorkers,
			Transform: dataset.EvalTransform(channels),
		})
		if err != nil {
			return err
		}

		res, err := experiment.Evaluate(net, loader)
		if err != nil {
			return err
		}

		fmt.Printf("samples: %v | loss: %.4f | accuracy: %.4f\n", res.N,
			res.Loss, res.Accuracy)
		printPerClass(res, ds.ClassNames)
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&flagCheckpoint, "checkpoint", "",
		"apply this snapshot file onto the model before evaluating")
}

// printPerClass prints per-class accuracy from the confusion matrix.
func printPerClass(res experiment.Result, classNames []string) {
	rows, _ := res.Confusion.Dims()
	for c := 0; c < rows; c++ {
		total := 0.0
		for p := 0; p < rows; p++ {
			total += res.Confusion.At(c, p)
		}
		if total == 0 {
			continue
		}
		name := fmt.Sprintf("class %v", c)
		if c < len(classNames) {
			name = classNames[c]
		}
		fmt.Printf("  %-12v %.4f (%v samples)\n", name,
			res.Confusion.At(c, c)/total, int(total))
	}
}
