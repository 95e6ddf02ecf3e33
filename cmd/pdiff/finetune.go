package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/experiment"
)

var flagHistory string

var finetuneCmd = &cobra.Command{
	Use:   "finetune",
	Short: "Fine-tune the trainable subset, snapshotting it until the quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := experiment.Finetune(cfg)
		if err != nil {
			return err
		}

		if flagHistory != "" {
			if err := res.History.Save(flagHistory); err != nil {
				return err
			}
		}

		fmt.Printf("saved %v/%v checkpoints in %v passes under %v\n",
			res.Saved, cfg.TotalSaveNumber, res.Passes, cfg.CheckpointDir)
		if res.RunID != "" {
			fmt.Printf("registered as run %v\n", res.RunID)
		}
		return nil
	},
}

func init() {
	finetuneCmd.Flags().StringVar(&flagHistory, "history", "",
		"write the per-step loss history to this file")
}
