// Command codecall runs JavaScript against registered tools in a sandbox.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "codecall",
	Short: "Run sandboxed JavaScript that calls local and remote tools.",
	Long: `codecall executes JavaScript or TypeScript in a capability-restricted
Deno or Node process. The code reaches tools through the "tools" object
(tools.namespace.method(args)) and reports progress with progress(value).

Remote tool providers are read from CODECALL_SERVERS_FILE. Built-in tools
live under the "util" namespace.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runCmd, toolsCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
