package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the pdiff version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("pdiff", Version)
	},
}
