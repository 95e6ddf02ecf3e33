package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/dataset"
)

var (
	flagOut     string
	flagRows    int
	flagCols    int
	flagAugment bool
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Render a PNG grid of (optionally augmented) samples",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		ds, err := dataset.Load(cfg.Dataset, cfg.DatasetRoot, true)
		if err != nil {
			return err
		}
		if ds.Len() == 0 {
			return fmt.Errorf("preview: %v train split is empty",
				cfg.Dataset)
		}

		// The raw pixels are previewable as-is; normalization is only
		// applied when showing the augmented training view.
		var transform dataset.Transform
		if flagAugment {
			transform = dataset.Compose{
				dataset.RandomCrop{Pad: 4},
				dataset.RandomHorizontalFlip{P: 0.5},
			}
		}

		if err := dataset.SavePreview(ds, transform, flagRows, flagCols,
			cfg.Seed, flagOut); err != nil {
			return err
		}
		fmt.Printf("wrote %vx%v preview to %v\n", flagRows, flagCols,
			flagOut)
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVar(&flagOut, "out", "preview.png",
		"output PNG path")
	previewCmd.Flags().IntVar(&flagRows, "rows", 8, "grid rows")
	previewCmd.Flags().IntVar(&flagCols, "cols", 8, "grid columns")
	previewCmd.Flags().BoolVar(&flagAugment, "augment", false,
		"apply the training augmentations before drawing")
}
