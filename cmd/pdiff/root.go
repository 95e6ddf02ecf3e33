package main

import (
	"github.com/spf13/cobra"

	"github.com/wangqiang102938/pdiff/config"
)

// Version of the pdiff tool
const Version = "0.1.0"

// Global flag values.
var (
	flagConfig   string
	flagDataRoot string
	flagTag      string
	flagSeed     uint64
)

// cfg holds the run configuration loaded by PersistentPreRunE; flag
// overrides win over file values, which win over defaults.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:     "pdiff",
	Short:   "pdiff fine-tunes a classifier and harvests parameter snapshots",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if flagConfig != "" {
			cfg, err = config.Load(flagConfig)
		} else {
			cfg, err = config.LoadDir(".")
		}
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("data-root") {
			cfg.DatasetRoot = flagDataRoot
		}
		if cmd.Flags().Changed("tag") {
			cfg.Tag = flagTag
		}
		if cmd.Flags().Changed("seed") {
			cfg.Seed = flagSeed
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "",
		"configuration file (default: ./config.json when present)")
	rootCmd.PersistentFlags().StringVar(&flagDataRoot, "data-root", "",
		"dataset root directory (overrides the configuration)")
	rootCmd.PersistentFlags().StringVar(&flagTag, "tag", "",
		"tag embedded in checkpoint filenames (overrides the configuration)")
	rootCmd.PersistentFlags().Uint64Var(&flagSeed, "seed", 0,
		"RNG seed (overrides the configuration)")

	rootCmd.AddCommand(pretrainCmd)
	rootCmd.AddCommand(finetuneCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(reselectCmd)
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}
