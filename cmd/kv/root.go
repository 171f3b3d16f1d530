package kv

import (
	"github.com/ValentinKolb/walkv/cmd/util"
	"github.com/ValentinKolb/walkv/rpc/client"
	"github.com/spf13/cobra"
)

var (
	rpcClient *client.Client

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:                "kv",
		Short:              "Perform key-value store operations on a running server",
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	// Add subcommands
	KeyValueCommands.AddCommand(putCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(rangeCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(valuesCmd)
	KeyValueCommands.AddCommand(lengthCmd)
	KeyValueCommands.AddCommand(dumpCmd)
	KeyValueCommands.AddCommand(shutdownCmd)
}

// setupKVClient connects the client used by all subcommands
func setupKVClient(cmd *cobra.Command, _ []string) error {
	c, err := util.DialClient(cmd)
	if err != nil {
		return err
	}
	rpcClient = c
	return nil
}

func closeKVClient(_ *cobra.Command, _ []string) error {
	if rpcClient == nil {
		return nil
	}
	return rpcClient.Close()
}
