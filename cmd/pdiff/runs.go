package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/registry"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the checkpoint registry",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		runs, err := reg.Runs()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs registered")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%v  %v  %v  seed %v  lr %v  quota %v  %v\n",
				run.ID, run.Tag, run.Dataset, run.Seed, run.LearnRate,
				run.Quota, run.StartedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats <run-id>",
	Short: "Summarize the checkpoints of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry()
		if err != nil {
			return err
		}
		defer reg.Close()

		stats, err := reg.Stats(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("checkpoints: %v\n", stats.Count)
		fmt.Printf("mean bytes:  %.0f\n", stats.MeanBytes)
		fmt.Printf("index range: %v..%v\n", stats.FirstIndex,
			stats.LastIndex)
		return nil
	},
}

func openRegistry() (*registry.Registry, error) {
	if cfg.RegistryPath == "" {
		return nil, fmt.Errorf("no registry configured: set " +
			"registry_path in the configuration")
	}
	return registry.Open(cfg.RegistryPath)
}

func init() {
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsStatsCmd)
}
