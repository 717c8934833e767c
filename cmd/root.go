package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/pcs/internal/version"
)

var rootCmd = &cobra.Command{
	Use:          "pcs",
	Short:        "Playground compile service",
	Long:         `Compile Dart playground samples to JavaScript with the batch build pipeline or incremental compiler workers`,
	SilenceUsage: true,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (%s) %s", version.Version, version.Commit, version.BuildTime)
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("work-dir", "", "Parent directory for workspaces")
	rootCmd.PersistentFlags().String("sdk", "", "Path to the Dart SDK")
	rootCmd.PersistentFlags().String("sdk-version", "", "Toolchain version used for artifact URLs")
	rootCmd.PersistentFlags().IntP("workers", "w", 0, "Number of incremental compiler workers")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Upper bound for a single compile")
	rootCmd.PersistentFlags().String("cache-backend", "", "Dependency cache backend (bolt, memory, nats, redis, s3)")
	rootCmd.PersistentFlags().String("cache-dir", "", "Directory for the bolt dependency cache")

	rootCmd.AddCommand(compileCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(warmupCmd)
	rootCmd.AddCommand(cacheCmd)
}
