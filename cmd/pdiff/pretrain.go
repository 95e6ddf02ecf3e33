package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/experiment"
)

var pretrainCmd = &cobra.Command{
	Use:   "pretrain",
	Short: "Train the full classifier and write the pretrained backbone",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := experiment.Pretrain(cfg)
		if err != nil {
			return err
		}
		fmt.Printf("pretrained %v epochs | final loss %.4f | "+
			"eval acc %.4f | wrote %v\n",
			res.Epochs, res.FinalLoss, res.Eval.Accuracy,
			cfg.PretrainedPath)
		return nil
	},
}
