package kv

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/spf13/cobra"
)

// out is where the results are printed, replaced in tests
var out io.Writer = os.Stdout

var (
	putCmd = &cobra.Command{
		Use:   "put [key] [value...]",
		Short: "Sets the value for a key, the value is the rest of the arguments",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Put(args[0], strings.Join(args[1:], " ")); err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Gets the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := rpcClient.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "delete [key]",
		Short: "Deletes a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
	rangeCmd = &cobra.Command{
		Use:   "range [start] [end]",
		Short: "Lists all pairs with start <= key <= end",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := rpcClient.Range(args[0], args[1])
			if err != nil {
				return err
			}
			printPairs(pairs)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys [needle]",
		Short: "Lists all keys containing needle (all keys without needle)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := rpcClient.Keys(optional(args))
			if err != nil {
				return err
			}
			printList(keys)
			return nil
		},
	}
	valuesCmd = &cobra.Command{
		Use:   "values [needle]",
		Short: "Lists all values containing needle (all values without needle)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := rpcClient.Values(optional(args))
			if err != nil {
				return err
			}
			printList(values)
			return nil
		},
	}
	lengthCmd = &cobra.Command{
		Use:   "length",
		Short: "Prints the number of keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcClient.Length()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, n)
			return nil
		},
	}
	dumpCmd = &cobra.Command{
		Use:   "dump",
		Short: "Lists all pairs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pairs, err := rpcClient.DumpAll()
			if err != nil {
				return err
			}
			printPairs(pairs)
			return nil
		},
	}
	shutdownCmd = &cobra.Command{
		Use:   "shutdown",
		Short: "Stops the server after all accepted mutations are durable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcClient.Shutdown(); err != nil {
				return err
			}
			fmt.Fprintln(out, "OK")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func optional(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func printList(items []string) {
	for _, item := range items {
		fmt.Fprintln(out, item)
	}
}

func printPairs(pairs []db.Pair) {
	for _, p := range pairs {
		fmt.Fprintf(out, "%s\t%s\n", p.Key, p.Value)
	}
}
