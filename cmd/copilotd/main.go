package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/luminara-health/copilot/internal/cli"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "copilotd",
		Short: "Copilot daemon and CLI",
		Long:  "Copilot daemon for running the knowledge API server and managing ingested sources",
	}

	cli.AddHelpJSONFlag(rootCmd)
	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(cli.IngestCmd())
	rootCmd.AddCommand(cli.SweepCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
