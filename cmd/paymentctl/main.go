package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "paymentctl",
		Short:        "Operator tool for the storefront payment service",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.json (default $PAY_CONFIG_PATH or ./config.json)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(refundCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
