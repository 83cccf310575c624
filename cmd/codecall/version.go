package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/codecall/backend/remote"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), remote.ClientName, remote.ClientVersion)
	},
}
