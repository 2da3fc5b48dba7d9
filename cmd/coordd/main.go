package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:          "coordd",
		Short:        "coordd - cache-backed coordination service",
		Version:      Version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a YAML config file (COORD_* env vars override it)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(benchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
