// Command clover links payments to registrations and serves the review API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "clover",
		Short:         "Clover - payment to registration matching",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringSlice("env-file", []string{".env"}, "dotenv files loaded before the environment")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(matchCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
