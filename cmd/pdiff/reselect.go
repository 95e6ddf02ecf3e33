package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/checkpoint"
)

var (
	flagFrom string
	flagTo   string
	flagTake int
)

var reselectCmd = &cobra.Command{
	Use:   "reselect",
	Short: "Copy the earliest checkpoint(s) under origin/repeat names",
	Long: `Reselect prepares a checkpoint-count ablation directory: the
first file(s) of the sorted source listing are copied into the target
directory as origin.bin and repeat.bin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFrom == "" {
			return fmt.Errorf("--from is required")
		}
		if err := checkpoint.Reselect(flagFrom, flagTo,
			flagTake); err != nil {
			return err
		}
		fmt.Printf("copied %v -> %v/{%v,%v}\n", flagFrom, flagTo,
			checkpoint.OriginName, checkpoint.RepeatName)
		return nil
	},
}

func init() {
	reselectCmd.Flags().StringVar(&flagFrom, "from", "",
		"source checkpoint directory")
	reselectCmd.Flags().StringVar(&flagTo, "to", "checkpoint",
		"target directory")
	reselectCmd.Flags().IntVar(&flagTake, "take", 1,
		"number of leading checkpoints to select")
}
