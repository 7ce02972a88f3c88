package main

import (
	"fmt"

	"github.com/mfelix/quibble/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show quibble version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("quibble %s\n", version.Version)
		},
	}
}
