package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/walkv/cmd/backup"
	"github.com/ValentinKolb/walkv/cmd/bench"
	"github.com/ValentinKolb/walkv/cmd/inspect"
	"github.com/ValentinKolb/walkv/cmd/kv"
	"github.com/ValentinKolb/walkv/cmd/serve"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "walkv",
		Short: "durable key-value store",
		Long: fmt.Sprintf(`walkv (v%s)

A durable, ordered key-value store written in Go. Every mutation is
appended to a write-ahead log and flushed before it is applied, the log is
compacted into snapshots in the background of a single writer.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of walkv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "walkv v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(inspect.InspectCommands)
	RootCmd.AddCommand(backup.BackupCommands)
	RootCmd.AddCommand(bench.BenchCmd)
	RootCmd.AddCommand(versionCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
