package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:     "mychat",
	Short:   "mychat - a single-binary chat server",
	Long:    `A chat server with contacts, groups and realtime message delivery over websockets, backed by SQLite.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate("mychat version {{.Version}}\n")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
